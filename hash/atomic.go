// Package hash implements the randomized hash family the LSH and
// hypercube indexes amplify: atomic L2 and cosine hashes (C3), and their
// composition into bucket keys (C4).
package hash

import (
	"fmt"

	"github.com/go-ann/neighbors/arith"
	"github.com/go-ann/neighbors/vector"
)

// Window bounds for the L2 atomic hash, and amplification bounds shared by
// every composite variant. Fixed at build time, as the spec requires.
const (
	MinW = 1e-6
	MaxW = 1e6
	MinK = 1
	MaxK = 20
)

// AtomicL2 is h_L2: a single random projection p.v + t, divided by a
// window W and floored.
type AtomicL2 struct {
	v []float64
	t float64
	w float64
}

// NewAtomicL2 draws v with standard-normal components and t uniformly on
// [0, w).
func NewAtomicL2(dim int, w float64, rng *arith.RNG) (*AtomicL2, error) {
	if dim <= 0 || dim > vector.MaxDim {
		return nil, fmt.Errorf("invalid dim %d", dim)
	}
	if w < MinW || w > MaxW {
		return nil, fmt.Errorf("invalid window %v, want [%v,%v]", w, MinW, MaxW)
	}
	v := make([]float64, dim)
	for i := range v {
		v[i] = rng.StdNormal()
	}
	return &AtomicL2{v: v, t: rng.Uniform(0, w), w: w}, nil
}

// Hash computes floor((p.v + t) / w), failing on dimension mismatch or
// overflow when the floored quotient is narrowed to int64.
func (h *AtomicL2) Hash(p vector.Vector) (int64, error) {
	if p.Dim() != len(h.v) {
		return 0, fmt.Errorf("dim mismatch: have %d, want %d", p.Dim(), len(h.v))
	}
	anchor, err := vector.New("", h.v)
	if err != nil {
		return 0, err
	}
	dot, err := p.InnerProduct(anchor)
	if err != nil {
		return 0, err
	}
	return arith.CheckedInt64(arith.FloorDiv(dot+h.t, h.w))
}

// Equal reports whether two atomic L2 hashes share the same random state.
// Identity/naming is ignored, as the spec requires for de-duplication
// during composite construction.
func (h *AtomicL2) Equal(other *AtomicL2) bool {
	if other == nil || len(h.v) != len(other.v) || h.t != other.t || h.w != other.w {
		return false
	}
	for i, c := range h.v {
		if c != other.v[i] {
			return false
		}
	}
	return true
}

// AtomicCosine is h_cos: the sign of a random-hyperplane projection.
type AtomicCosine struct {
	r []float64
}

// NewAtomicCosine draws r with standard-normal components.
func NewAtomicCosine(dim int, rng *arith.RNG) (*AtomicCosine, error) {
	if dim <= 0 || dim > vector.MaxDim {
		return nil, fmt.Errorf("invalid dim %d", dim)
	}
	r := make([]float64, dim)
	for i := range r {
		r[i] = rng.StdNormal()
	}
	return &AtomicCosine{r: r}, nil
}

// Hash returns 1 if p.r >= 0, else 0.
func (h *AtomicCosine) Hash(p vector.Vector) (int, error) {
	if p.Dim() != len(h.r) {
		return 0, fmt.Errorf("dim mismatch: have %d, want %d", p.Dim(), len(h.r))
	}
	anchor, err := vector.New("", h.r)
	if err != nil {
		return 0, err
	}
	dot, err := p.InnerProduct(anchor)
	if err != nil {
		return 0, err
	}
	if dot >= 0 {
		return 1, nil
	}
	return 0, nil
}

// Equal reports whether two atomic cosine hashes share the same random
// hyperplane normal.
func (h *AtomicCosine) Equal(other *AtomicCosine) bool {
	if other == nil || len(h.r) != len(other.r) {
		return false
	}
	for i, c := range h.r {
		if c != other.r[i] {
			return false
		}
	}
	return true
}
