package vector

import (
	"errors"
	"math"
	"testing"
)

func TestNewRejectsBadDim(t *testing.T) {
	if _, err := New("p", nil); err == nil {
		t.Fatal("expected error for empty components")
	}
	big := make([]float64, MaxDim+1)
	if _, err := New("p", big); err == nil {
		t.Fatal("expected error for oversized components")
	}
}

func TestDistancesAndEquality(t *testing.T) {
	a, err := New("a", []float64{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("b", []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}

	d, err := a.L2Dist(b)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-math.Sqrt2) > 1e-9 {
		t.Errorf("l2 dist = %v, want sqrt(2)", d)
	}

	cd, err := a.CosineDist(b)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cd-1) > 1e-9 {
		t.Errorf("cosine dist = %v, want 1", cd)
	}

	same, err := New("a2", []float64{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(same) {
		t.Error("expected componentwise-equal points to be Equal")
	}
	if a.Equal(b) {
		t.Error("expected distinct points to be unequal")
	}
}

func TestCosineDistZeroVector(t *testing.T) {
	zero, err := New("zero", []float64{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	other, err := New("other", []float64{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zero.CosineDist(other); !errors.Is(err, ErrInvalidDim) {
		t.Errorf("expected ErrInvalidDim for zero-norm vector, got %v", err)
	}
}

func TestDimMismatch(t *testing.T) {
	a, _ := New("a", []float64{1, 2, 3})
	b, _ := New("b", []float64{1, 2})
	if _, err := a.L2Dist(b); !errors.Is(err, ErrInvalidDim) {
		t.Errorf("expected ErrInvalidDim, got %v", err)
	}
}
