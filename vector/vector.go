// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package vector provides pure numeric routines over embedding vectors.
//
// All functions are stateless, perform no I/O, and are safe to call from
// any number of concurrent callers without synchronization.
package vector

import (
	"fmt"
	"math"

	"github.com/poiesic/affinity/core"
)

// DotProduct computes the dot product of two equal-length vectors.
func DotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Magnitude computes the Euclidean length of a vector.
func Magnitude(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// CosineSimilarity computes dot(a,b) / (‖a‖·‖b‖).
//
// Both vectors must be non-nil and of equal, non-zero length; otherwise
// the call fails with core.ErrInvalidInput. When either magnitude is
// exactly zero the result is 0, not an error, so NaN never propagates
// into ranking.
func CosineSimilarity(a, b []float32) (float32, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: nil vector", core.ErrInvalidInput)
	}
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector", core.ErrInvalidInput)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: vector length mismatch: %d vs %d", core.ErrInvalidInput, len(a), len(b))
	}

	magA := Magnitude(a)
	magB := Magnitude(b)
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return DotProduct(a, b) / (magA * magB), nil
}

// Normalize normalizes a vector to unit length.
// Returns a new vector. A zero vector is returned unchanged since it
// cannot be normalized.
func Normalize(v []float32) []float32 {
	magnitude := Magnitude(v)
	if magnitude == 0 {
		return v
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}
