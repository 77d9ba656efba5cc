package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sensorsync/internal/engine"
	"github.com/roach88/sensorsync/internal/ir"
)

// SeriesInfo summarizes a stored series without loading its samples.
type SeriesInfo struct {
	ID          ir.StreamID `json:"id"`
	Width       int         `json:"width"`
	SampleCount int         `json:"sample_count"`
	ContentHash string      `json:"content_hash"`
	Start       float64     `json:"start"`
	End         float64     `json:"end"`
}

// Run is a stored replay run.
type Run struct {
	ID         string            `json:"id"`
	Session    string            `json:"session"`
	Status     RunStatus         `json:"status"`
	Checkpoint engine.Checkpoint `json:"checkpoint"`
	Seq        int64             `json:"seq"`
}

// ReadSeries loads a series by id, samples ORDER BY idx.
// Returns an error wrapping ErrNotFound if the id does not exist.
func (s *Store) ReadSeries(ctx context.Context, id ir.StreamID) (*ir.Series, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(string(id)); ok {
			return cached.(*ir.Series), nil
		}
	}

	if err := s.seriesExists(ctx, id); err != nil {
		return nil, err
	}
	samples, err := s.readSamples(ctx, id, `
		SELECT t, v FROM samples
		WHERE series_id = ?
		ORDER BY idx ASC
	`, string(id))
	if err != nil {
		return nil, err
	}

	series, err := ir.NewSeries(id, samples)
	if err != nil {
		return nil, fmt.Errorf("series %q: stored data invalid: %w", id, err)
	}
	if s.cache != nil {
		s.cache.SetDefault(string(id), series)
	}
	return series, nil
}

// ReadSeriesRange loads the samples of a series with lo <= t <= hi.
// The result shares the stored series' id. Not cached.
func (s *Store) ReadSeriesRange(ctx context.Context, id ir.StreamID, lo, hi float64) (*ir.Series, error) {
	if err := s.seriesExists(ctx, id); err != nil {
		return nil, err
	}
	samples, err := s.readSamples(ctx, id, `
		SELECT t, v FROM samples
		WHERE series_id = ? AND t >= ? AND t <= ?
		ORDER BY idx ASC
	`, string(id), lo, hi)
	if err != nil {
		return nil, err
	}
	series, err := ir.NewSeries(id, samples)
	if err != nil {
		return nil, fmt.Errorf("series %q: stored data invalid: %w", id, err)
	}
	return series, nil
}

// ListSeries returns every stored series ordered by id (binary collation).
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ListSeries(ctx context.Context) ([]SeriesInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.width, s.sample_count, s.content_hash,
			COALESCE(MIN(p.t), 0), COALESCE(MAX(p.t), 0)
		FROM series s
		LEFT JOIN samples p ON p.series_id = s.id
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	infos := []SeriesInfo{}
	for rows.Next() {
		var info SeriesInfo
		var id string
		if err := rows.Scan(&id, &info.Width, &info.SampleCount, &info.ContentHash, &info.Start, &info.End); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		info.ID = ir.StreamID(id)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return infos, nil
}

// ReadCheckpoint loads a replay run by id.
// Returns an error wrapping ErrNotFound if the run does not exist.
func (s *Store) ReadCheckpoint(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session, clock, started, positions, status, seq
		FROM replay_runs
		WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return run, err
}

// ListRuns returns every stored run ORDER BY seq, id.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, clock, started, positions, status, seq
		FROM replay_runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		clock     float64
		started   bool
		positions string
		status    string
	)
	if err := row.Scan(&run.ID, &run.Session, &clock, &started, &positions, &status, &run.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	cp, err := checkpointFromRow(clock, started, positions)
	if err != nil {
		return Run{}, fmt.Errorf("run %q: %w", run.ID, err)
	}
	run.Status = RunStatus(status)
	run.Checkpoint = cp
	return run, nil
}

func (s *Store) seriesExists(ctx context.Context, id ir.StreamID) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM series WHERE id = ?`, string(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("series %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query series: %w", err)
	}
	return nil
}

func (s *Store) readSamples(ctx context.Context, id ir.StreamID, query string, args ...any) ([]ir.Sample, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []ir.Sample
	for rows.Next() {
		var (
			t float64
			v string
		)
		if err := rows.Scan(&t, &v); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		val, err := unmarshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", id, err)
		}
		samples = append(samples, ir.Sample{T: t, V: val})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

func (s *Store) evict(id ir.StreamID) {
	if s.cache != nil {
		s.cache.Delete(string(id))
	}
}
