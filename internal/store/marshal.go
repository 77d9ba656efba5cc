package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/sensorsync/internal/engine"
	"github.com/roach88/sensorsync/internal/ir"
)

// marshalValue converts a sample value to canonical JSON TEXT for storage.
// Canonical float formatting keeps stored rows byte-stable across writes.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses a stored JSON array of numbers.
func unmarshalValue(data string) (ir.Value, error) {
	var v []float64
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return ir.Value(v), nil
}

// marshalPositions converts checkpoint positions to canonical JSON TEXT.
func marshalPositions(pos map[ir.StreamID]int) (string, error) {
	obj := make(ir.IRObject, len(pos))
	for id, idx := range pos {
		obj[string(id)] = ir.IRInt(idx)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal positions: %w", err)
	}
	return string(data), nil
}

// unmarshalPositions parses stored checkpoint positions.
func unmarshalPositions(data string) (map[ir.StreamID]int, error) {
	pos := map[ir.StreamID]int{}
	if err := json.Unmarshal([]byte(data), &pos); err != nil {
		return nil, fmt.Errorf("unmarshal positions: %w", err)
	}
	return pos, nil
}

// checkpointFromRow assembles a checkpoint from its stored columns.
func checkpointFromRow(clock float64, started bool, positions string) (engine.Checkpoint, error) {
	pos, err := unmarshalPositions(positions)
	if err != nil {
		return engine.Checkpoint{}, err
	}
	return engine.Checkpoint{Clock: clock, Started: started, Positions: pos}, nil
}
