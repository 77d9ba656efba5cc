package testutil

// FixedRunIDGenerator generates the same run id every time.
//
// This enables deterministic golden output: the same scenario with the same
// generator produces byte-identical stored checkpoints.
//
// Unlike engine.FixedGenerator which returns ids in sequence, this generator
// always returns the same id.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a fixed run id generator.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
