// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package vecmath holds the float32 vector arithmetic shared by the encoder,
// the stores and the search engine. Accumulation is done in float64.
package vecmath

import (
	"encoding/binary"
	"fmt"
	"math"
)

// UnitTolerance is the maximum deviation of ‖v‖₂ from 1 accepted for a
// normalized vector.
const UnitTolerance = 1e-5

// Dot returns the dot product of a and b. Lengths must match.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// IsUnit reports whether v is L2-normalized within UnitTolerance.
func IsUnit(v []float32) bool {
	return math.Abs(Norm(v)-1) <= UnitTolerance
}

// Normalize scales v in place to unit length. A zero vector cannot be
// normalized and yields an error.
func Normalize(v []float32) error {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("vecmath: cannot normalize vector with norm %v", n)
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return nil
}

// MeanPool averages token representations into one vector of the given
// dimension. Every row must have exactly dims components.
func MeanPool(tokens [][]float32, dims int) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vecmath: no token representations to pool")
	}
	acc := make([]float64, dims)
	for i, row := range tokens {
		if len(row) != dims {
			return nil, fmt.Errorf("vecmath: token %d has %d components, want %d", i, len(row), dims)
		}
		for j, x := range row {
			acc[j] += float64(x)
		}
	}
	out := make([]float32, dims)
	n := float64(len(tokens))
	for j := range acc {
		out[j] = float32(acc[j] / n)
	}
	return out, nil
}

// Clone returns a copy of v so stored vectors are never aliased by callers.
func Clone(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// Decode reads a little-endian float32 blob, the layout sqlite-vec uses for
// its float[] columns.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vecmath: invalid vector blob length %d (not multiple of 4)", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
