package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/sensorsync/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSeries creates a small two-channel series.
func createTestSeries(id ir.StreamID) *ir.Series {
	return ir.MustSeries(id, []ir.Sample{
		{T: 0.005, V: ir.Value{0.0, 1}},
		{T: 0.007, V: ir.Value{0.1, 1}},
		{T: 0.009, V: ir.Value{0.2, -1}},
	})
}
