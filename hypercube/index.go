// Package hypercube implements the hypercube index (C6): one 2^k-vertex
// table whose amplified hash is a memoized random bit per sub-hash, probed
// breadth-first by Hamming distance from the query's own vertex.
package hypercube

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
	"sort"
	"sync"

	ann "github.com/go-ann/neighbors"
	"github.com/go-ann/neighbors/arith"
	"github.com/go-ann/neighbors/hash"
	"github.com/go-ann/neighbors/internal/annlog"
	"github.com/go-ann/neighbors/vector"
)

// translateErr maps the hash layer's arith.ErrOverflow to the spec's
// surface ann.ErrArithOverflow, mirroring lsh.translateErr, so callers
// doing errors.Is(err, ann.ErrArithOverflow) can detect it through the
// IndexError wrapper; any other error passes through unchanged.
func translateErr(err error) error {
	if errors.Is(err, arith.ErrOverflow) {
		return fmt.Errorf("%w: %v", ann.ErrArithOverflow, err)
	}
	return err
}

// Parameter bounds for the hypercube index, fixed at build time.
const (
	MinM = 1
	MaxM = 1_000_000

	MinProbes = 1

	MinPoints = 1
	MaxPoints = 1_000_000
)

// Metric selects which distance (and matching sub-hash family) the index
// uses. Per spec §4.4 the choice is fixed per instance: a cosine hypercube
// uses h_cos sub-hashes, a Euclidean one uses h_L2.
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
)

// Config is the hypercube index's configuration.
type Config struct {
	K      int
	M      int // inspection cap per query
	Probes int
	W      float64 // L2 window, ignored for MetricCosine
	Metric Metric
	Seed   int64
}

// Result pairs an indexed point with its exact distance to the query.
type Result struct {
	Point    vector.Vector
	Distance float64
}

// Index is the hypercube index described in spec §4.4.
type Index struct {
	mu sync.RWMutex

	cfg    Config
	rng    *arith.RNG
	fitted bool

	dim     int
	n       int
	g       *hash.Composite
	buckets [][]vector.Vector
}

// New validates cfg, including that Probes does not exceed 2^K, and
// returns an unfitted Index.
func New(cfg Config) (*Index, error) {
	if cfg.K < hash.MinK || cfg.K > hash.MaxK {
		return nil, ann.WrapError("hypercube.New", fmt.Errorf("%w: K=%d out of [%d,%d]", ann.ErrInvalidParameters, cfg.K, hash.MinK, hash.MaxK))
	}
	if cfg.M < MinM || cfg.M > MaxM {
		return nil, ann.WrapError("hypercube.New", fmt.Errorf("%w: M=%d out of [%d,%d]", ann.ErrInvalidParameters, cfg.M, MinM, MaxM))
	}
	maxProbes := int64(1) << uint(cfg.K)
	if cfg.Probes < MinProbes || int64(cfg.Probes) > maxProbes {
		return nil, ann.WrapError("hypercube.New", fmt.Errorf("%w: Probes=%d out of [%d,%d]", ann.ErrInvalidParameters, cfg.Probes, MinProbes, maxProbes))
	}
	if cfg.Metric == MetricL2 && (cfg.W < hash.MinW || cfg.W > hash.MaxW) {
		return nil, ann.WrapError("hypercube.New", fmt.Errorf("%w: W=%v out of [%v,%v]", ann.ErrInvalidParameters, cfg.W, hash.MinW, hash.MaxW))
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

// Fit builds one composite hypercube hash and assigns every point to its
// vertex. On any mid-fit error all partial state is discarded and the
// index stays unfitted.
func (idx *Index) Fit(points []vector.Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.fitted {
		return ann.WrapError("hypercube.Fit", ann.ErrMethodAlreadyUsed)
	}
	n := len(points)
	if n < MinPoints || n > MaxPoints {
		return ann.WrapError("hypercube.Fit", fmt.Errorf("%w: n=%d out of [%d,%d]", ann.ErrInvalidPoints, n, MinPoints, MaxPoints))
	}
	dim := points[0].Dim()
	if dim <= 0 || dim > vector.MaxDim {
		return ann.WrapError("hypercube.Fit", fmt.Errorf("%w: dim=%d", ann.ErrInvalidDim, dim))
	}
	for _, p := range points {
		if p.Dim() != dim {
			return ann.WrapError("hypercube.Fit", fmt.Errorf("%w: inconsistent point dimension", ann.ErrInvalidDim))
		}
	}

	g, err := idx.newComposite(dim)
	if err != nil {
		return ann.WrapError("hypercube.Fit", fmt.Errorf("%w: %v", ann.ErrConstructionFailed, err))
	}

	tableSize := g.TableSize()
	buckets := make([][]vector.Vector, tableSize)
	for _, p := range points {
		b, err := g.Bucket(p)
		if err != nil {
			return ann.WrapError("hypercube.Fit", translateErr(err))
		}
		buckets[b] = append(buckets[b], p)
	}

	idx.dim = dim
	idx.n = n
	idx.g = g
	idx.buckets = buckets
	idx.fitted = true
	annlog.Info("hypercube: fitted %d points into a %d-vertex cube (dim=%d)", n, tableSize, dim)
	return nil
}

func (idx *Index) newComposite(dim int) (*hash.Composite, error) {
	switch idx.cfg.Metric {
	case MetricL2:
		return hash.NewHypercube(dim, idx.cfg.K, idx.cfg.W, idx.rng)
	case MetricCosine:
		return hash.NewCosineHypercube(dim, idx.cfg.K, idx.rng)
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

// walk visits vertices in nondecreasing Hamming distance from q's own
// vertex (ties broken by vertex integer ascending), stopping once probes
// vertices have been visited or m entries have been inspected, whichever
// comes first. visit is called once per inspected point.
func (idx *Index) walk(q vector.Vector, visit func(p vector.Vector, d float64) error) error {
	b0, err := idx.g.Bucket(q)
	if err != nil {
		return translateErr(err)
	}
	order := probeOrder(b0, idx.cfg.K, idx.cfg.Probes)

	inspected := 0
	for _, v := range order {
		if inspected >= idx.cfg.M {
			break
		}
		for _, p := range idx.buckets[v] {
			if inspected >= idx.cfg.M {
				break
			}
			d, err := idx.distance(p, q)
			if err != nil {
				return err
			}
			inspected++
			if err := visit(p, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// probeOrder returns the first `probes` vertices reachable from b0 among
// the 2^k cube vertices, ordered by nondecreasing Hamming distance from
// b0 and, within a distance class, by ascending vertex value. Vertices are
// generated one Hamming shell at a time so a small probe budget never
// pays for enumerating the whole cube.
func probeOrder(b0 int64, k, probes int) []int64 {
	if probes > 1<<uint(k) {
		probes = 1 << uint(k)
	}
	order := make([]int64, 0, probes)
	order = append(order, b0)
	for d := 1; d <= k && len(order) < probes; d++ {
		shell := combosAtDistance(k, d)
		vertices := make([]int64, len(shell))
		for i, mask := range shell {
			vertices[i] = b0 ^ mask
		}
		sort.Slice(vertices, func(i, j int) bool { return vertices[i] < vertices[j] })
		for _, v := range vertices {
			if len(order) >= probes {
				break
			}
			order = append(order, v)
		}
	}
	return order
}

// combosAtDistance enumerates every k-bit mask with exactly d bits set, as
// the set of bit positions to flip from b0 to reach a vertex at Hamming
// distance d.
func combosAtDistance(k, d int) []int64 {
	var masks []int64
	var rec func(start int, mask int64, count int)
	rec = func(start int, mask int64, count int) {
		if count == d {
			masks = append(masks, mask)
			return
		}
		for i := start; i < k; i++ {
			rec(i+1, mask|(1<<uint(i)), count+1)
		}
	}
	rec(0, 0, 0)
	return masks
}

// hammingDistance is exposed for tests that want to assert on the shell
// structure directly.
func hammingDistance(a, b int64) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// RadiusNeighbors returns every inspected point whose exact distance to q
// is strictly less than r.
func (idx *Index) RadiusNeighbors(q vector.Vector, r float64) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.fitted {
		return nil, ann.WrapError("hypercube.RadiusNeighbors", ann.ErrMethodUnfitted)
	}
	if r < 0 {
		return nil, ann.WrapError("hypercube.RadiusNeighbors", ann.ErrInvalidRadius)
	}
	if q.Dim() != idx.dim {
		return nil, ann.WrapError("hypercube.RadiusNeighbors", ann.ErrInvalidDim)
	}

	var out []Result
	err := idx.walk(q, func(p vector.Vector, d float64) error {
		if d < r {
			out = append(out, Result{Point: p, Distance: d})
		}
		return nil
	})
	if err != nil {
		return nil, ann.WrapError("hypercube.RadiusNeighbors", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// Stats reports bucket-occupancy over the cube's vertices, the
// hypercube analogue of lsh.Index.Stats.
type Stats struct {
	NumVertices   int
	NonEmpty      int
	MaxBucketSize int
	AvgBucketSize float64
}

func (idx *Index) stats() (Stats, error) {
	if !idx.fitted {
		return Stats{}, ann.WrapError("hypercube.Stats", ann.ErrMethodUnfitted)
	}
	st := Stats{NumVertices: len(idx.buckets)}
	total := 0
	for _, b := range idx.buckets {
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
	return st, nil
}

// Stats returns the current vertex bucket-occupancy statistics.
func (idx *Index) Stats() (Stats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.stats()
}

// PrintStats writes a human-readable bucket-occupancy report to w, the
// spec §6 print_stats() diagnostic for the hypercube index.
func (idx *Index) PrintStats(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	st, err := idx.stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "hypercube index: %d points, %d vertices (k=%d)\n", idx.n, st.NumVertices, idx.cfg.K)
	fmt.Fprintf(w, "  %d/%d vertices occupied, avg=%.2f max=%d\n",
		st.NonEmpty, st.NumVertices, st.AvgBucketSize, st.MaxBucketSize)
	return nil
}

// Nearest returns the single closest inspected point to q, ties broken by
// point id.
func (idx *Index) Nearest(q vector.Vector) (*Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.fitted {
		return nil, ann.WrapError("hypercube.Nearest", ann.ErrMethodUnfitted)
	}
	if q.Dim() != idx.dim {
		return nil, ann.WrapError("hypercube.Nearest", ann.ErrInvalidDim)
	}

	var best *Result
	err := idx.walk(q, func(p vector.Vector, d float64) error {
		if best == nil || d < best.Distance || (d == best.Distance && p.ID() < best.Point.ID()) {
			best = &Result{Point: p, Distance: d}
		}
		return nil
	})
	if err != nil {
		return nil, ann.WrapError("hypercube.Nearest", err)
	}
	return best, nil
}
