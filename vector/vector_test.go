package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/poiesic/affinity/core"
)

func TestCosineSimilarity_SelfIsOne(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.6, 0.8},
		{0.1, 0.2, 0.3, 0.4, 0.5},
	}

	for _, v := range vectors {
		got, err := CosineSimilarity(v, v)
		if err != nil {
			t.Fatalf("CosineSimilarity(v, v) error = %v", err)
		}
		if math.Abs(float64(got)-1.0) > 1e-6 {
			t.Errorf("CosineSimilarity(v, v) = %v, want 1.0", got)
		}
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	got, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatalf("CosineSimilarity() error = %v", err)
	}
	if got != 0 {
		t.Errorf("CosineSimilarity(orthogonal) = %v, want 0", got)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	got, err := CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	if err != nil {
		t.Fatalf("CosineSimilarity() error = %v", err)
	}
	if math.Abs(float64(got)+1.0) > 1e-6 {
		t.Errorf("CosineSimilarity(opposite) = %v, want -1.0", got)
	}
}

func TestCosineSimilarity_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
	}{
		{name: "nil a", a: nil, b: []float32{1}},
		{name: "nil b", a: []float32{1}, b: nil},
		{name: "empty a", a: []float32{}, b: []float32{1}},
		{name: "empty b", a: []float32{1}, b: []float32{}},
		{name: "length mismatch", a: []float32{1, 2}, b: []float32{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CosineSimilarity(tt.a, tt.b)
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("CosineSimilarity() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	got, err := CosineSimilarity([]float32{0.5, 0.5}, []float32{0, 0})
	if err != nil {
		t.Fatalf("CosineSimilarity() error = %v", err)
	}
	if got != 0 {
		t.Errorf("CosineSimilarity(v, zero) = %v, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	got := Normalize(v)

	if math.Abs(float64(Magnitude(got))-1.0) > 1e-6 {
		t.Errorf("Magnitude(Normalize(v)) = %v, want 1.0", Magnitude(got))
	}
	if got[0] != 0.6 || got[1] != 0.8 {
		t.Errorf("Normalize([3 4]) = %v, want [0.6 0.8]", got)
	}

	// Input must be unchanged
	if v[0] != 3 || v[1] != 4 {
		t.Errorf("Normalize mutated its input: %v", v)
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	got := Normalize(v)

	// Zero vectors are returned unchanged, never divided by zero.
	for i, val := range got {
		if val != 0 {
			t.Errorf("Normalize(zero)[%d] = %v, want 0", i, val)
		}
	}
}

func TestDotProduct(t *testing.T) {
	got := DotProduct([]float32{1, 2, 3}, []float32{4, 5, 6})
	if got != 32 {
		t.Errorf("DotProduct() = %v, want 32", got)
	}
}

func TestMagnitude(t *testing.T) {
	if got := Magnitude([]float32{3, 4}); got != 5 {
		t.Errorf("Magnitude([3 4]) = %v, want 5", got)
	}
	if got := Magnitude(nil); got != 0 {
		t.Errorf("Magnitude(nil) = %v, want 0", got)
	}
}
