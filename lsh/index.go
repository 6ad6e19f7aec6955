// Package lsh implements the LSH index (C5): L independent hash tables
// under one amplified hash family, searched by bucket lookup and exact
// distance confirmation, bounded by a per-query inspection cap.
package lsh

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/go-ann/neighbors/arith"
	ann "github.com/go-ann/neighbors"
	"github.com/go-ann/neighbors/hash"
	"github.com/go-ann/neighbors/internal/annlog"
	"github.com/go-ann/neighbors/vector"
)

// translateErr maps the hash layer's arith.ErrOverflow to the spec's
// surface ann.ErrArithOverflow, so callers doing errors.Is(err,
// ann.ErrArithOverflow) can detect it through the IndexError wrapper; any
// other error passes through unchanged.
func translateErr(err error) error {
	if errors.Is(err, arith.ErrOverflow) {
		return fmt.Errorf("%w: %v", ann.ErrArithOverflow, err)
	}
	return err
}

// Parameter bounds for the LSH index, fixed at build time.
const (
	MinL = 1
	MaxL = 20
	MinC = 0.0 // exclusive
	MaxC = 1.0

	MinPoints = 1
	MaxPoints = 1_000_000
)

// Metric selects which distance family (and therefore which composite
// hash variant) an Index uses. The spec's symmetry requirement — a query
// must answer identically in shape whether the metric is L2 or cosine —
// is upheld by routing both through the same Fit/RadiusNeighbors/KNearest
// code path and only swapping the hash/distance pair.
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
)

// Config is the LSH index's configuration: table count L, amplification
// k, L2 window W (ignored for MetricCosine), bucket-density coefficient c,
// the distance metric, and the RNG seed.
type Config struct {
	L      int
	K      int
	W      float64
	C      float64
	Metric Metric
	Seed   int64
}

// Result pairs an indexed point with its exact distance to the query.
type Result struct {
	Point    vector.Vector
	Distance float64
}

type entry struct {
	point       vector.Vector
	fingerprint int64
}

type lshTable struct {
	g       *hash.Composite
	buckets [][]entry
}

// Index is the LSH index described in spec §4.3: L tables, fit once,
// queried many times.
type Index struct {
	mu sync.RWMutex

	cfg    Config
	rng    *arith.RNG
	fitted bool

	dim    int
	n      int
	m      int64
	tables []lshTable
}

// New validates cfg and returns an unfitted Index.
func New(cfg Config) (*Index, error) {
	if cfg.L < MinL || cfg.L > MaxL {
		return nil, ann.WrapError("lsh.New", fmt.Errorf("%w: L=%d out of [%d,%d]", ann.ErrInvalidParameters, cfg.L, MinL, MaxL))
	}
	if cfg.K < hash.MinK || cfg.K > hash.MaxK {
		return nil, ann.WrapError("lsh.New", fmt.Errorf("%w: K=%d out of [%d,%d]", ann.ErrInvalidParameters, cfg.K, hash.MinK, hash.MaxK))
	}
	if cfg.C <= MinC || cfg.C > MaxC {
		return nil, ann.WrapError("lsh.New", fmt.Errorf("%w: C=%v out of (%v,%v]", ann.ErrInvalidParameters, cfg.C, MinC, MaxC))
	}
	if cfg.Metric == MetricL2 && (cfg.W < hash.MinW || cfg.W > hash.MaxW) {
		return nil, ann.WrapError("lsh.New", fmt.Errorf("%w: W=%v out of [%v,%v]", ann.ErrInvalidParameters, cfg.W, hash.MinW, hash.MaxW))
	}
	return &Index{cfg: cfg, rng: arith.NewRNG(cfg.Seed)}, nil
}

// Dim returns the fitted dimensionality, or 0 if unfitted.
func (idx *Index) Dim() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// NumPoints returns the number of indexed points, or 0 if unfitted.
func (idx *Index) NumPoints() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.n
}

// inspectionCap is the per-query bound on exact distance computations.
func (idx *Index) inspectionCap() int { return 4 * idx.cfg.L }

// Fit indexes points into L independent tables. Rejects a second fit, an
// empty or oversized collection, and inconsistent dimensions. On any
// mid-fit error all partial state is discarded and the index stays
// unfitted.
func (idx *Index) Fit(points []vector.Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.fitted {
		return ann.WrapError("lsh.Fit", ann.ErrMethodAlreadyUsed)
	}
	n := len(points)
	if n < MinPoints || n > MaxPoints {
		return ann.WrapError("lsh.Fit", fmt.Errorf("%w: n=%d out of [%d,%d]", ann.ErrInvalidPoints, n, MinPoints, MaxPoints))
	}

	dim := points[0].Dim()
	if dim <= 0 || dim > vector.MaxDim {
		return ann.WrapError("lsh.Fit", fmt.Errorf("%w: dim=%d", ann.ErrInvalidDim, dim))
	}
	for _, p := range points {
		if p.Dim() != dim {
			return ann.WrapError("lsh.Fit", fmt.Errorf("%w: inconsistent point dimension", ann.ErrInvalidDim))
		}
	}

	m := int64(math.Floor(idx.cfg.C * float64(n)))
	if m < 1 {
		m = 1
	}

	tables, err := idx.buildTables(dim, m, points)
	if err != nil {
		return ann.WrapError("lsh.Fit", err)
	}

	idx.dim = dim
	idx.n = n
	idx.m = m
	idx.tables = tables
	idx.fitted = true
	annlog.Info("lsh: fitted %d points into %d tables of size %d (dim=%d)", n, idx.cfg.L, tables[0].g.TableSize(), dim)
	return nil
}

func (idx *Index) buildTables(dim int, m int64, points []vector.Vector) ([]lshTable, error) {
	tables := make([]lshTable, 0, idx.cfg.L)
	for l := 0; l < idx.cfg.L; l++ {
		g, err := idx.newComposite(dim, m)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ann.ErrConstructionFailed, err)
		}
		for _, existing := range tables {
			if existing.g.Equal(g) {
				return nil, fmt.Errorf("%w: duplicate composite hash drawn for table", ann.ErrConstructionFailed)
			}
		}
		buckets := make([][]entry, g.TableSize())
		for _, p := range points {
			b, err := g.Bucket(p)
			if err != nil {
				return nil, translateErr(err)
			}
			fp, err := g.Fingerprint(p)
			if err != nil {
				return nil, translateErr(err)
			}
			buckets[b] = append(buckets[b], entry{point: p, fingerprint: fp})
		}
		tables = append(tables, lshTable{g: g, buckets: buckets})
	}
	return tables, nil
}

func (idx *Index) newComposite(dim int, m int64) (*hash.Composite, error) {
	switch idx.cfg.Metric {
	case MetricL2:
		return hash.NewL2LSH(dim, idx.cfg.K, idx.cfg.W, m, idx.rng)
	case MetricCosine:
		return hash.NewCosineLSH(dim, idx.cfg.K, idx.rng)
	default:
		return nil, fmt.Errorf("unknown metric %v", idx.cfg.Metric)
	}
}

func (idx *Index) distance(a, b vector.Vector) (float64, error) {
	switch idx.cfg.Metric {
	case MetricL2:
		return a.L2Dist(b)
	case MetricCosine:
		return a.CosineDist(b)
	default:
		return 0, fmt.Errorf("unknown metric %v", idx.cfg.Metric)
	}
}

// walk scans every table's bucket for q, applying the fingerprint
// short-circuit and the shared inspection cap, invoking visit for each
// candidate whose exact distance was computed. A non-nil error from visit
// stops the walk and is returned to the caller.
func (idx *Index) walk(q vector.Vector, visit func(p vector.Vector, d float64) error) error {
	capLimit := idx.inspectionCap()
	inspected := 0
	seen := make(map[vector.Vector]bool)

	for l := 0; l < len(idx.tables); l++ {
		if inspected >= capLimit {
			break
		}
		t := idx.tables[l]
		qFP, err := t.g.Fingerprint(q)
		if err != nil {
			return translateErr(err)
		}
		b, err := t.g.Bucket(q)
		if err != nil {
			return translateErr(err)
		}
		for _, e := range t.buckets[b] {
			if inspected >= capLimit {
				break
			}
			if e.fingerprint != qFP {
				continue
			}
			if seen[e.point] {
				continue
			}
			d, err := idx.distance(e.point, q)
			if err != nil {
				return err
			}
			inspected++
			seen[e.point] = true
			if err := visit(e.point, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// RadiusNeighbors returns every indexed point whose exact distance to q is
// strictly less than r, deduplicated across tables, up to the shared
// inspection cap.
func (idx *Index) RadiusNeighbors(q vector.Vector, r float64) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.fitted {
		return nil, ann.WrapError("lsh.RadiusNeighbors", ann.ErrMethodUnfitted)
	}
	if r < 0 {
		return nil, ann.WrapError("lsh.RadiusNeighbors", ann.ErrInvalidRadius)
	}
	if q.Dim() != idx.dim {
		return nil, ann.WrapError("lsh.RadiusNeighbors", ann.ErrInvalidDim)
	}

	var out []Result
	err := idx.walk(q, func(p vector.Vector, d float64) error {
		if d < r {
			out = append(out, Result{Point: p, Distance: d})
		}
		return nil
	})
	if err != nil {
		return nil, ann.WrapError("lsh.RadiusNeighbors", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// KNearest returns up to k nearest indexed points to q, sorted ascending
// by distance with ties broken by point id, up to the shared inspection
// cap.
func (idx *Index) KNearest(q vector.Vector, k int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.fitted {
		return nil, ann.WrapError("lsh.KNearest", ann.ErrMethodUnfitted)
	}
	if k <= 0 {
		return nil, ann.WrapError("lsh.KNearest", fmt.Errorf("%w: k=%d", ann.ErrInvalidParameters, k))
	}
	if q.Dim() != idx.dim {
		return nil, ann.WrapError("lsh.KNearest", ann.ErrInvalidDim)
	}

	h := &resultMaxHeap{}
	heap.Init(h)
	err := idx.walk(q, func(p vector.Vector, d float64) error {
		item := Result{Point: p, Distance: d}
		if h.Len() < k {
			heap.Push(h, item)
		} else if less(item, (*h)[0]) {
			heap.Pop(h)
			heap.Push(h, item)
		}
		return nil
	})
	if err != nil {
		return nil, ann.WrapError("lsh.KNearest", err)
	}

	out := make([]Result, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Result)
	}
	return out, nil
}

// TableStats reports one table's bucket-occupancy profile.
type TableStats struct {
	NumBuckets    int
	NonEmpty      int
	MaxBucketSize int
	AvgBucketSize float64
}

// Stats reports per-table bucket-occupancy statistics, grounded in the
// teacher's LSHIndex.Stats() convention, generalized from a single
// count map to one TableStats per table since this index holds L of
// them rather than one.
func (idx *Index) Stats() ([]TableStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.fitted {
		return nil, ann.WrapError("lsh.Stats", ann.ErrMethodUnfitted)
	}
	out := make([]TableStats, len(idx.tables))
	for i, t := range idx.tables {
		st := TableStats{NumBuckets: len(t.buckets)}
		total := 0
		for _, b := range t.buckets {
			if len(b) == 0 {
				continue
			}
			st.NonEmpty++
			total += len(b)
			if len(b) > st.MaxBucketSize {
				st.MaxBucketSize = len(b)
			}
		}
		if st.NonEmpty > 0 {
			st.AvgBucketSize = float64(total) / float64(st.NonEmpty)
		}
		out[i] = st
	}
	return out, nil
}

// PrintStats writes a human-readable bucket-occupancy report to w, one
// line per table, the spec §6 print_stats() diagnostic.
func (idx *Index) PrintStats(w io.Writer) error {
	stats, err := idx.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "lsh index: %d points, %d tables\n", idx.NumPoints(), len(stats))
	for i, st := range stats {
		fmt.Fprintf(w, "  table %d: %d/%d buckets occupied, avg=%.2f max=%d\n",
			i, st.NonEmpty, st.NumBuckets, st.AvgBucketSize, st.MaxBucketSize)
	}
	return nil
}

// less orders two results by distance, breaking ties by point id for
// determinism.
func less(a, b Result) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Point.ID() < b.Point.ID()
}

// resultMaxHeap is a bounded max-heap over Result by distance (ties by id
// descending, so the weakest candidate is always evicted first),
// following the teacher's container/heap-based top-k pattern.
type resultMaxHeap []Result

func (h resultMaxHeap) Len() int { return len(h) }
func (h resultMaxHeap) Less(i, j int) bool {
	return less(h[j], h[i]) // inverted: largest distance first
}
func (h resultMaxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *resultMaxHeap) Push(x any)   { *h = append(*h, x.(Result)) }
func (h *resultMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
