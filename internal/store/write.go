package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sensorsync/internal/engine"
	"github.com/roach88/sensorsync/internal/ir"
)

// RunStatus is the lifecycle of a stored replay run.
type RunStatus string

const (
	// RunRunning marks a checkpoint written while the replay was in progress.
	RunRunning RunStatus = "running"

	// RunInterrupted marks a replay stopped before draining (cancel, --until).
	RunInterrupted RunStatus = "interrupted"

	// RunCompleted marks a replay that drained every stream.
	RunCompleted RunStatus = "completed"
)

// WriteSeries stores series under its id, replacing any previous content.
//
// Returns written=false without touching the database when the stored
// content hash already matches. Otherwise the old samples are removed and
// the new ones inserted in a single transaction; on error nothing changes.
func (s *Store) WriteSeries(ctx context.Context, series *ir.Series) (written bool, err error) {
	if series == nil {
		return false, fmt.Errorf("write series: series is nil")
	}
	if !series.Monotonic() {
		return false, fmt.Errorf("write series: %w",
			ir.NewInvalidSeriesError(series.ID(), -1, "timestamps are not non-decreasing"))
	}
	hash, err := ir.SeriesHash(series)
	if err != nil {
		return false, fmt.Errorf("write series: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT content_hash FROM series WHERE id = ?`, string(series.ID())).Scan(&existing)
	switch {
	case err == nil && existing == hash:
		err = tx.Commit()
		if err != nil {
			return false, fmt.Errorf("commit: %w", err)
		}
		return false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("read content hash: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM samples WHERE series_id = ?`, string(series.ID())); err != nil {
		return false, fmt.Errorf("clear samples: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO series (id, width, sample_count, content_hash, ir_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			width = excluded.width,
			sample_count = excluded.sample_count,
			content_hash = excluded.content_hash,
			ir_version = excluded.ir_version
	`,
		string(series.ID()),
		series.Width(),
		series.Len(),
		hash,
		ir.IRVersion,
	)
	if err != nil {
		return false, fmt.Errorf("upsert series: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (series_id, idx, t, v) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return false, fmt.Errorf("prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < series.Len(); i++ {
		smp := series.At(i)
		var v string
		v, err = marshalValue(smp.V)
		if err != nil {
			return false, fmt.Errorf("sample %d: %w", i, err)
		}
		if _, err = stmt.ExecContext(ctx, string(series.ID()), i, smp.T, v); err != nil {
			return false, fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	s.evict(series.ID())
	return true, nil
}

// DeleteSeries removes a series and its samples.
// Returns ErrNotFound if the id does not exist.
func (s *Store) DeleteSeries(ctx context.Context, id ir.StreamID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	s.evict(id)
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("series %q: %w", id, ErrNotFound)
	}
	return nil
}

// WriteCheckpoint records the latest position of a replay run.
// A run keeps its original seq across updates, so listings stay in start
// order.
func (s *Store) WriteCheckpoint(ctx context.Context, runID, session string, cp engine.Checkpoint, status RunStatus) error {
	positions, err := marshalPositions(cp.Positions)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO replay_runs (id, session, clock, started, positions, status, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM replay_runs))
		ON CONFLICT(id) DO UPDATE SET
			session = excluded.session,
			clock = excluded.clock,
			started = excluded.started,
			positions = excluded.positions,
			status = excluded.status
	`,
		runID,
		session,
		cp.Clock,
		cp.Started,
		positions,
		string(status),
	)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}
