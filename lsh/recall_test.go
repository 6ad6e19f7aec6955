package lsh

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/go-ann/neighbors/bruteforce"
	"github.com/go-ann/neighbors/vector"
)

// TestRecallAgainstBruteForce checks that the LSH index returns a 1-NN
// candidate and that its reported distance is never closer to the query
// than the exact brute-force answer. The approximate answer may be
// farther, since not every true neighbor is found by the bucket walk.
func TestRecallAgainstBruteForce(t *testing.T) {
	idx, err := New(Config{L: 8, K: 4, W: 4, C: 0.5, Metric: MetricL2, Seed: 99})
	if err != nil {
		t.Fatal(err)
	}
	bf := bruteforce.New(bruteforce.MetricL2)

	rng := rand.New(rand.NewSource(99))
	points := make([]vector.Vector, 200)
	for i := range points {
		c := make([]float64, 6)
		for j := range c {
			c[j] = rng.NormFloat64()
		}
		points[i] = mustPoint(t, fmt.Sprintf("p%d", i), c)
		if err := bf.Insert(points[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Fit(points); err != nil {
		t.Fatal(err)
	}

	q := mustPoint(t, "q", []float64{0.1, 0.2, -0.1, 0.3, 0, 0.2})
	approx, err := idx.KNearest(q, 1)
	if err != nil {
		t.Fatal(err)
	}
	exact, err := bf.KNearest(q, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(approx) == 0 {
		t.Fatal("LSH returned no candidates")
	}
	if approx[0].Distance < exact[0].Distance-1e-9 {
		t.Errorf("approximate distance %v is closer than exact %v, impossible", approx[0].Distance, exact[0].Distance)
	}
}
