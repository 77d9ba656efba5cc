package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSeries   = "sensorsync/series/v1"
	DomainEmission = "sensorsync/emission/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SeriesHash computes the content hash of a series: its id and every sample.
// Two series with the same id and samples always hash identically, so the
// store can skip re-importing unchanged data.
func SeriesHash(s *Series) (string, error) {
	samples := make(IRArray, s.Len())
	for i := 0; i < s.Len(); i++ {
		samples[i] = SampleIR(s.At(i))
	}
	obj := IRObject{
		"id":      IRString(s.ID()),
		"samples": samples,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SeriesHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSeries, canonical), nil
}

// TraceHash computes a digest over an ordered emission trace.
// Each element is (stream, index, sample); the digest changes if any element
// or the order changes, which is how replay determinism is verified.
func TraceHash(stream []StreamID, index []int, samples []Sample) (string, error) {
	if len(stream) != len(index) || len(stream) != len(samples) {
		return "", fmt.Errorf("TraceHash: mismatched lengths %d/%d/%d", len(stream), len(index), len(samples))
	}
	arr := make(IRArray, len(stream))
	for i := range stream {
		obj := SampleIR(samples[i])
		obj["stream"] = IRString(stream[i])
		obj["index"] = IRInt(index[i])
		arr[i] = obj
	}

	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEmission, canonical), nil
}

// MustSeriesHash is like SeriesHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSeriesHash(s *Series) string {
	h, err := SeriesHash(s)
	if err != nil {
		panic(err)
	}
	return h
}
