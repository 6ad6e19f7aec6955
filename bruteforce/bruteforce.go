// Package bruteforce is an exact, O(n) nearest-neighbor search used as a
// ground-truth oracle by the lsh test suite, adapted from
// the teacher repo's flat-index brute-force scan (container/heap-based
// top-k, same heap shape, generalized from []float32 to vector.Vector so
// it can exercise the L2 and cosine distances this module defines).
package bruteforce

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"

	"github.com/go-ann/neighbors/vector"
)

// Metric selects which exact distance the index reports.
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
)

// Result pairs an indexed point with its exact distance to the query.
type Result struct {
	Point    vector.Vector
	Distance float64
}

// Index is a brute-force exact index: every query scans every point.
type Index struct {
	mu      sync.RWMutex
	points  []vector.Vector
	dim     int
	metric  Metric
}

// New builds an empty brute-force index for the given metric.
func New(metric Metric) *Index {
	return &Index{metric: metric}
}

// Insert adds a point, checking it against the index's established
// dimension (fixed by the first inserted point).
func (idx *Index) Insert(p vector.Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(idx.points) == 0 {
		idx.dim = p.Dim()
	} else if p.Dim() != idx.dim {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", idx.dim, p.Dim())
	}
	idx.points = append(idx.points, p)
	return nil
}

func (idx *Index) distance(a, b vector.Vector) (float64, error) {
	switch idx.metric {
	case MetricL2:
		return a.L2Dist(b)
	case MetricCosine:
		return a.CosineDist(b)
	default:
		return 0, fmt.Errorf("unknown metric %v", idx.metric)
	}
}

// KNearest returns the k closest indexed points to q, sorted ascending.
func (idx *Index) KNearest(q vector.Vector, k int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	h := &maxHeap{}
	heap.Init(h)
	for _, p := range idx.points {
		d, err := idx.distance(p, q)
		if err != nil {
			return nil, err
		}
		item := Result{Point: p, Distance: d}
		if h.Len() < k {
			heap.Push(h, item)
		} else if item.Distance < (*h)[0].Distance {
			heap.Pop(h)
			heap.Push(h, item)
		}
	}
	out := make([]Result, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Result)
	}
	return out, nil
}

// RadiusNeighbors returns every indexed point within r (strictly less
// than), sorted ascending.
func (idx *Index) RadiusNeighbors(q vector.Vector, r float64) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []Result
	for _, p := range idx.points {
		d, err := idx.distance(p, q)
		if err != nil {
			return nil, err
		}
		if d < r {
			out = append(out, Result{Point: p, Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

type maxHeap []Result

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)         { *h = append(*h, x.(Result)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
