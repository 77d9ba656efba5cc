package ir

import (
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface for values that have a canonical encoding.
// Only IRString, IRInt, IRFloat, IRBool, IRArray and IRObject implement it.
// There is no null: absent data is an absent key.
type IRValue interface {
	irValue()
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a finite float value.
// NaN and Inf are rejected by MarshalCanonical.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// FloatArray converts a float slice into an IRArray of IRFloat.
func FloatArray(xs []float64) IRArray {
	arr := make(IRArray, len(xs))
	for i, x := range xs {
		arr[i] = IRFloat(x)
	}
	return arr
}

// SampleIR converts a sample to its canonical object form {"t":..,"v":[..]}.
func SampleIR(s Sample) IRObject {
	return IRObject{
		"t": IRFloat(s.T),
		"v": FloatArray(s.V),
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders supplementary-plane
// characters differently.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
