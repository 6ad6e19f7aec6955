package lsh

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	ann "github.com/go-ann/neighbors"
	"github.com/go-ann/neighbors/vector"
)

func mustPoint(t *testing.T, id string, c []float64) vector.Vector {
	t.Helper()
	p, err := vector.New(id, c)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// TestTrivialLSH is spec §8 scenario S1.
func TestTrivialLSH(t *testing.T) {
	idx, err := New(Config{L: 1, K: 1, W: 4, C: 1, Metric: MetricL2, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	points := []vector.Vector{
		mustPoint(t, "a", []float64{1, 0}),
		mustPoint(t, "b", []float64{0, 1}),
		mustPoint(t, "c", []float64{5, 5}),
	}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	q := mustPoint(t, "q", []float64{1, 0})
	res, err := idx.RadiusNeighbors(q, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Point.ID() != "a" {
		t.Errorf("expected only point a within radius 0.5, got %+v", res)
	}
}

// TestSelfMembership is spec §8 scenario S2: every fitted point is its own
// nearest neighbor at distance 0.
func TestSelfMembership(t *testing.T) {
	idx, err := New(Config{L: 3, K: 2, W: 4, C: 1, Metric: MetricL2, Seed: 42})
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(42))
	points := make([]vector.Vector, 100)
	for i := range points {
		c := make([]float64, 10)
		for j := range c {
			c[j] = rng.NormFloat64()
		}
		points[i] = mustPoint(t, fmt.Sprintf("p%d", i), c)
	}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	for _, p := range points {
		res, err := idx.KNearest(p, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(res) != 1 || res[0].Point.ID() != p.ID() || res[0].Distance != 0 {
			t.Errorf("point %s: expected self at distance 0, got %+v", p.ID(), res)
		}
	}
}

func TestRadiusNeighborsInvariants(t *testing.T) {
	idx, err := New(Config{L: 4, K: 2, W: 4, C: 1, Metric: MetricL2, Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	points := []vector.Vector{
		mustPoint(t, "a", []float64{0, 0}),
		mustPoint(t, "b", []float64{1, 1}),
		mustPoint(t, "c", []float64{10, 10}),
	}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	res, err := idx.RadiusNeighbors(points[0], 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res {
		if r.Distance >= 3 {
			t.Errorf("distance %v not < radius 3", r.Distance)
		}
	}
}

func TestKNearestBoundedAndSorted(t *testing.T) {
	idx, err := New(Config{L: 4, K: 2, W: 4, C: 1, Metric: MetricL2, Seed: 4})
	if err != nil {
		t.Fatal(err)
	}
	points := make([]vector.Vector, 20)
	for i := range points {
		points[i] = mustPoint(t, fmt.Sprintf("p%d", i), []float64{float64(i), float64(i) * 2})
	}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	res, err := idx.KNearest(points[0], 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) > 5 {
		t.Errorf("got %d results, want at most 5", len(res))
	}
	seen := map[string]bool{}
	for i, r := range res {
		if seen[r.Point.ID()] {
			t.Errorf("duplicate point %s in results", r.Point.ID())
		}
		seen[r.Point.ID()] = true
		if i > 0 && res[i-1].Distance > r.Distance {
			t.Errorf("results not sorted ascending at index %d", i)
		}
	}
}

func TestRadiusZeroIsEmpty(t *testing.T) {
	idx, err := New(Config{L: 2, K: 2, W: 4, C: 1, Metric: MetricL2, Seed: 5})
	if err != nil {
		t.Fatal(err)
	}
	points := []vector.Vector{mustPoint(t, "a", []float64{0, 0})}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	res, err := idx.RadiusNeighbors(points[0], 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Errorf("expected strict-less-than semantics to exclude self at radius 0, got %+v", res)
	}
}

func TestDimMismatchIsRejected(t *testing.T) {
	idx, err := New(Config{L: 2, K: 2, W: 4, C: 1, Metric: MetricL2, Seed: 6})
	if err != nil {
		t.Fatal(err)
	}
	points := []vector.Vector{mustPoint(t, "a", []float64{0, 0})}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	q := mustPoint(t, "q", []float64{0, 0, 0})
	if _, err := idx.RadiusNeighbors(q, 1); !errors.Is(err, ann.ErrInvalidDim) {
		t.Errorf("expected ErrInvalidDim, got %v", err)
	}
}

func TestSecondFitRejected(t *testing.T) {
	idx, err := New(Config{L: 1, K: 1, W: 4, C: 1, Metric: MetricL2, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	points := []vector.Vector{mustPoint(t, "a", []float64{0, 0})}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	if err := idx.Fit(points); !errors.Is(err, ann.ErrMethodAlreadyUsed) {
		t.Errorf("expected ErrMethodAlreadyUsed, got %v", err)
	}
}

func TestEmptyFitRejected(t *testing.T) {
	idx, err := New(Config{L: 1, K: 1, W: 4, C: 1, Metric: MetricL2, Seed: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Fit(nil); !errors.Is(err, ann.ErrInvalidPoints) {
		t.Errorf("expected ErrInvalidPoints, got %v", err)
	}
}

func TestUnfittedQueryRejected(t *testing.T) {
	idx, err := New(Config{L: 1, K: 1, W: 4, C: 1, Metric: MetricL2, Seed: 9})
	if err != nil {
		t.Fatal(err)
	}
	q := mustPoint(t, "q", []float64{0, 0})
	if _, err := idx.RadiusNeighbors(q, 1); !errors.Is(err, ann.ErrMethodUnfitted) {
		t.Errorf("expected ErrMethodUnfitted, got %v", err)
	}
}

// TestFingerprintShortCircuit is spec §8 scenario S4: two points that
// collide on the bucket but differ on the fingerprint must not both reach
// the exact distance check.
func TestFingerprintShortCircuit(t *testing.T) {
	idx, err := New(Config{L: 1, K: 2, W: 4, C: 1, Metric: MetricL2, Seed: 123})
	if err != nil {
		t.Fatal(err)
	}
	points := make([]vector.Vector, 40)
	for i := range points {
		points[i] = mustPoint(t, fmt.Sprintf("p%d", i), []float64{float64(i % 7), float64(i % 5)})
	}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	// Every point lies within radius 100 of the query, so every inspected
	// candidate is returned. The walk must never inspect more than
	// 4*L = 4 candidates for this configuration, regardless of how many
	// points share q's bucket.
	res, err := idx.RadiusNeighbors(points[0], 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) > idx.inspectionCap() {
		t.Errorf("returned %d results, exceeding inspection cap %d", len(res), idx.inspectionCap())
	}
	// Every inspected candidate must share the query's fingerprint.
	g := idx.tables[0].g
	qFP, err := g.Fingerprint(points[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res {
		fp, err := g.Fingerprint(r.Point)
		if err != nil {
			t.Fatal(err)
		}
		if fp != qFP {
			t.Errorf("point %s reached the distance check with fingerprint %d, query has %d", r.Point.ID(), fp, qFP)
		}
	}
}

func TestPrintStats(t *testing.T) {
	idx, err := New(Config{L: 3, K: 2, W: 4, C: 0.5, Metric: MetricL2, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	points := []vector.Vector{
		mustPoint(t, "a", []float64{0, 0}),
		mustPoint(t, "b", []float64{1, 1}),
	}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	stats, err := idx.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 table stats, got %d", len(stats))
	}
	var buf bytes.Buffer
	if err := idx.PrintStats(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Error("expected PrintStats to write a non-empty report")
	}
}

// TestFitOverflowLeavesIndexUnfitted is spec §8 scenario S6: a tiny window
// and a query whose components saturate the accumulator must surface
// ann.ErrArithOverflow during Fit, with the index reverted to unfitted
// (fatal to the operation that built it, not to the index itself — a
// subsequent Fit with well-behaved points must still succeed).
func TestFitOverflowLeavesIndexUnfitted(t *testing.T) {
	idx, err := New(Config{L: 1, K: 1, W: 1e-6, C: 1, Metric: MetricL2, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	huge := []vector.Vector{mustPoint(t, "huge", []float64{1e30})}
	if err := idx.Fit(huge); !errors.Is(err, ann.ErrArithOverflow) {
		t.Fatalf("expected ErrArithOverflow, got %v", err)
	}
	if idx.NumPoints() != 0 || idx.Dim() != 0 {
		t.Errorf("expected index to remain unfitted after overflow, got NumPoints=%d Dim=%d", idx.NumPoints(), idx.Dim())
	}

	ok := []vector.Vector{mustPoint(t, "a", []float64{1})}
	if err := idx.Fit(ok); err != nil {
		t.Errorf("expected a fresh Fit to succeed after the overflowing one, got %v", err)
	}
}

func TestCosineMetric(t *testing.T) {
	idx, err := New(Config{L: 3, K: 3, C: 1, Metric: MetricCosine, Seed: 11})
	if err != nil {
		t.Fatal(err)
	}
	points := []vector.Vector{
		mustPoint(t, "e0", []float64{1, 0, 0}),
		mustPoint(t, "e1", []float64{0, 1, 0}),
		mustPoint(t, "e2", []float64{0, 0, 1}),
	}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}
	res, err := idx.KNearest(points[0], 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Point.ID() != "e0" {
		t.Errorf("expected e0 as its own nearest neighbor, got %+v", res)
	}
}
