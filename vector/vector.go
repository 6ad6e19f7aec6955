// Package vector defines the collaborator type the hash and index layers
// depend on: an immutable, identity-bearing point in R^dim, plus the
// distance and inner-product operations the rest of the module treats as
// exact (as opposed to the approximate bucket walk that picks candidates).
package vector

import (
	"fmt"
	"math"
)

// MaxDim is the dimensionality ceiling enforced by every constructor in this
// module. Fixed at build time per the spec's note that the source never
// pins one down.
const MaxDim = 1000

// Vector is the external collaborator type required by the hash and index
// layers. Implementations are expected to be immutable after construction.
type Vector interface {
	Dim() int
	InnerProduct(other Vector) (float64, error)
	L2Dist(other Vector) (float64, error)
	CosineDist(other Vector) (float64, error)
	Equal(other Vector) bool
	ID() string
}

// Point is the reference implementation of Vector: a named, ordered,
// fixed-length slice of float64 components.
type Point struct {
	id         string
	components []float64
}

// New builds a Point, rejecting empty or oversized component slices.
func New(id string, components []float64) (*Point, error) {
	if len(components) == 0 || len(components) > MaxDim {
		return nil, fmt.Errorf("%w: dim %d out of [1,%d]", errInvalidDim, len(components), MaxDim)
	}
	cp := make([]float64, len(components))
	copy(cp, components)
	return &Point{id: id, components: cp}, nil
}

var errInvalidDim = fmt.Errorf("invalid dimension")

// Dim returns the number of components.
func (p *Point) Dim() int { return len(p.components) }

// ID returns the point's identifier.
func (p *Point) ID() string { return p.id }

// Components returns a defensive copy of the underlying slice.
func (p *Point) Components() []float64 {
	cp := make([]float64, len(p.components))
	copy(cp, p.components)
	return cp
}

// InnerProduct computes the dot product against other.
func (p *Point) InnerProduct(other Vector) (float64, error) {
	o, err := sameDim(p, other)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, c := range p.components {
		sum += c * o[i]
	}
	return sum, nil
}

// L2Dist computes the Euclidean distance against other.
func (p *Point) L2Dist(other Vector) (float64, error) {
	o, err := sameDim(p, other)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, c := range p.components {
		d := c - o[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// CosineDist computes 1 - cos(angle) against other, in [0, 2]. Fails if
// either vector has zero norm.
func (p *Point) CosineDist(other Vector) (float64, error) {
	o, err := sameDim(p, other)
	if err != nil {
		return 0, err
	}
	var dot, normA, normB float64
	for i, c := range p.components {
		dot += c * o[i]
		normA += c * c
		normB += o[i] * o[i]
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero-norm vector", errInvalidDim)
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}

// Equal reports componentwise equality; ids are not compared.
func (p *Point) Equal(other Vector) bool {
	o, ok := other.(*Point)
	if !ok || o.Dim() != p.Dim() {
		return false
	}
	for i, c := range p.components {
		if c != o.components[i] {
			return false
		}
	}
	return true
}

// sameDim extracts other's raw components, failing if dimensions differ.
// Every Vector in this module is a *Point; a distinct concrete
// implementation would need its own component accessor to participate.
func sameDim(p *Point, other Vector) ([]float64, error) {
	if other.Dim() != p.Dim() {
		return nil, fmt.Errorf("%w: have %d, want %d", errInvalidDim, other.Dim(), p.Dim())
	}
	o, ok := other.(*Point)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported Vector implementation %T", errInvalidDim, other)
	}
	return o.components, nil
}

// ErrInvalidDim is returned, wrapped, whenever two vectors' dimensions
// disagree or an operation needs a non-zero norm it doesn't have.
var ErrInvalidDim = errInvalidDim
