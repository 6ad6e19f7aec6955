package hash

import (
	"fmt"

	"github.com/go-ann/neighbors/arith"
	"github.com/go-ann/neighbors/vector"
)

// Variant tags which of the three composite hash families a Composite
// belongs to. Equality and hashing between different variants is
// rejected rather than silently compared, the re-expression of the
// original's per-variant "can't compare" cross-case.
type Variant int

const (
	VariantL2LSH Variant = iota
	VariantCosineLSH
	VariantHypercube
)

func (v Variant) String() string {
	switch v {
	case VariantL2LSH:
		return "l2-lsh"
	case VariantCosineLSH:
		return "cosine-lsh"
	case VariantHypercube:
		return "hypercube"
	default:
		return "unknown"
	}
}

// primeP is the large prime used to fold the weighted sum of sub-hash
// outputs before the final mod-tableSize reduction, per the spec.
const primeP int64 = (1 << 32) - 5

// maxDrawAttemptsPerHash bounds the rejection-sampling loop used to
// assemble k distinct sub-hashes; exceeding it means the random draws
// keep colliding and construction gives up rather than looping forever.
const maxDrawAttemptsPerHash = 10

// atomicHash is the common surface both h_L2 and h_cos expose to a
// Composite: a projection to an integer, and an equality test restricted
// to same-type pairs.
type atomicHash interface {
	hashValue(p vector.Vector) (int64, error)
	equalAtomic(other atomicHash) bool
}

func (h *AtomicL2) hashValue(p vector.Vector) (int64, error) { return h.Hash(p) }
func (h *AtomicL2) equalAtomic(other atomicHash) bool {
	o, ok := other.(*AtomicL2)
	return ok && h.Equal(o)
}

func (h *AtomicCosine) hashValue(p vector.Vector) (int64, error) {
	v, err := h.Hash(p)
	return int64(v), err
}
func (h *AtomicCosine) equalAtomic(other atomicHash) bool {
	o, ok := other.(*AtomicCosine)
	return ok && h.Equal(o)
}

// Composite is the amplified hash G: k sub-hashes folded into one bucket
// key, in one of three variants.
type Composite struct {
	variant   Variant
	k         int
	tableSize int64 // M for VariantL2LSH, 2^k for the other variants

	subs []atomicHash
	r    []int64 // VariantL2LSH coefficients R[i]

	// memo holds, per sub-hash index, the frozen integer->bit mapping F[i]
	// used only by VariantHypercube. Mutated lazily at fit/query time;
	// once a key is seen its bit never changes for the life of the index.
	memo   []map[int64]int
	bitRNG *arith.RNG // source for first-sight F[i] draws, VariantHypercube only
}

// NewL2LSH builds G_LSH: k distinct atomic L2 hashes, k nonzero random
// coefficients, and a bucket count of tableSize.
func NewL2LSH(dim, k int, w float64, tableSize int64, rng *arith.RNG) (*Composite, error) {
	if k < MinK || k > MaxK {
		return nil, fmt.Errorf("invalid k %d, want [%d,%d]", k, MinK, MaxK)
	}
	if tableSize < 1 {
		return nil, fmt.Errorf("invalid table size %d", tableSize)
	}
	subs, err := distinctAtomics(k, func() (atomicHash, error) { return NewAtomicL2(dim, w, rng) })
	if err != nil {
		return nil, err
	}
	r := make([]int64, k)
	for i := range r {
		// Nonzero coefficient in [1, 2^29).
		r[i] = 1 + rng.Int63n((1<<29)-1)
	}
	return &Composite{variant: VariantL2LSH, k: k, tableSize: tableSize, subs: subs, r: r}, nil
}

// NewCosineLSH builds G_cos: k distinct atomic cosine hashes, concatenated
// as a k-bit integer.
func NewCosineLSH(dim, k int, rng *arith.RNG) (*Composite, error) {
	if k < MinK || k > MaxK {
		return nil, fmt.Errorf("invalid k %d, want [%d,%d]", k, MinK, MaxK)
	}
	subs, err := distinctAtomics(k, func() (atomicHash, error) { return NewAtomicCosine(dim, rng) })
	if err != nil {
		return nil, err
	}
	return &Composite{variant: VariantCosineLSH, k: k, tableSize: int64(1) << uint(k), subs: subs}, nil
}

// NewHypercube builds a Euclidean G_cube: k distinct atomic L2 hashes,
// each bit-mapped through a lazily populated, per-sub-hash memo table.
func NewHypercube(dim, k int, w float64, rng *arith.RNG) (*Composite, error) {
	return newHypercube(k, rng, func() (atomicHash, error) { return NewAtomicL2(dim, w, rng) })
}

// NewCosineHypercube builds a cosine G_cube: k distinct atomic cosine
// hashes, memo-mapped the same way. Spec §4.4: the hash family must match
// the index's distance metric.
func NewCosineHypercube(dim, k int, rng *arith.RNG) (*Composite, error) {
	return newHypercube(k, rng, func() (atomicHash, error) { return NewAtomicCosine(dim, rng) })
}

func newHypercube(k int, rng *arith.RNG, draw func() (atomicHash, error)) (*Composite, error) {
	if k < MinK || k > MaxK {
		return nil, fmt.Errorf("invalid k %d, want [%d,%d]", k, MinK, MaxK)
	}
	subs, err := distinctAtomics(k, draw)
	if err != nil {
		return nil, err
	}
	memo := make([]map[int64]int, k)
	for i := range memo {
		memo[i] = make(map[int64]int)
	}
	return &Composite{variant: VariantHypercube, k: k, tableSize: int64(1) << uint(k), subs: subs, memo: memo, bitRNG: rng}, nil
}

// distinctAtomics draws k pairwise-distinct sub-hashes via rejection
// sampling, giving up with a construction error after a bounded number of
// colliding attempts.
func distinctAtomics(k int, draw func() (atomicHash, error)) ([]atomicHash, error) {
	subs := make([]atomicHash, 0, k)
	for len(subs) < k {
		var candidate atomicHash
		attempts := 0
		for {
			attempts++
			if attempts > maxDrawAttemptsPerHash*k {
				return nil, fmt.Errorf("construction failed: could not draw %d distinct sub-hashes", k)
			}
			c, err := draw()
			if err != nil {
				return nil, err
			}
			dup := false
			for _, existing := range subs {
				if existing.equalAtomic(c) {
					dup = true
					break
				}
			}
			if !dup {
				candidate = c
				break
			}
		}
		subs = append(subs, candidate)
	}
	return subs, nil
}

// Variant reports which family this composite belongs to.
func (c *Composite) Variant() Variant { return c.variant }

// K reports the amplification factor.
func (c *Composite) K() int { return c.k }

// TableSize reports the number of buckets (M for L2-LSH, 2^k otherwise).
func (c *Composite) TableSize() int64 { return c.tableSize }

// Bucket computes G(p) mod tableSize, in [0, tableSize).
func (c *Composite) Bucket(p vector.Vector) (int64, error) {
	switch c.variant {
	case VariantL2LSH:
		id, err := c.weightedSum(p)
		if err != nil {
			return 0, err
		}
		return arith.Mod(id, c.tableSize), nil
	case VariantCosineLSH:
		return c.concat(p)
	case VariantHypercube:
		return c.memoConcat(p)
	default:
		return 0, fmt.Errorf("unknown variant %v", c.variant)
	}
}

// Fingerprint computes ID(p): the pre-mod weighted sum for VariantL2LSH,
// used to short-circuit candidate expansion; for the other variants it is
// simply the bucket, which already uniquely identifies the vertex.
func (c *Composite) Fingerprint(p vector.Vector) (int64, error) {
	switch c.variant {
	case VariantL2LSH:
		return c.weightedSum(p)
	default:
		return c.Bucket(p)
	}
}

// weightedSum computes (sum R[i]*h_i(p)) mod P using checked arithmetic,
// used both as the fingerprint and, mod tableSize, as the bucket for
// VariantL2LSH.
func (c *Composite) weightedSum(p vector.Vector) (int64, error) {
	var acc int64
	for i, sub := range c.subs {
		hv, err := sub.hashValue(p)
		if err != nil {
			return 0, err
		}
		term, err := arith.CheckedMul(c.r[i], hv)
		if err != nil {
			return 0, err
		}
		acc, err = arith.CheckedAdd(acc, term)
		if err != nil {
			return 0, err
		}
	}
	return arith.Mod(acc, primeP), nil
}

// concat computes sum h_i(p)*2^i for the cosine-LSH variant.
func (c *Composite) concat(p vector.Vector) (int64, error) {
	var acc int64
	for i, sub := range c.subs {
		hv, err := sub.hashValue(p)
		if err != nil {
			return 0, err
		}
		acc |= hv << uint(i)
	}
	return acc, nil
}

// memoConcat computes sum F[i](h_i(p))*2^i, assigning each newly-seen
// h_i(p) value a uniformly random bit on first sight and reusing it
// thereafter.
func (c *Composite) memoConcat(p vector.Vector) (int64, error) {
	var acc int64
	for i, sub := range c.subs {
		hv, err := sub.hashValue(p)
		if err != nil {
			return 0, err
		}
		bit, ok := c.memo[i][hv]
		if !ok {
			bit = c.bitRNG.Intn(2)
			c.memo[i][hv] = bit
		}
		acc |= int64(bit) << uint(i)
	}
	return acc, nil
}

// SubHash exposes the i-th sub-hash's raw output, for callers that need
// individual h_L2/h_cos values without re-deriving them from the bucket.
func (c *Composite) SubHash(p vector.Vector, i int) (int64, error) {
	if i < 0 || i >= c.k {
		return 0, fmt.Errorf("sub-hash index %d out of range [0,%d)", i, c.k)
	}
	return c.subs[i].hashValue(p)
}

// Equal reports whether two composites are the same variant, amplification
// factor, table size (where applicable) and have pairwise-equal sub-hashes
// in order (and, for L2-LSH, equal coefficients). Cross-variant pairs are
// never equal.
func (c *Composite) Equal(other *Composite) bool {
	if other == nil || c.variant != other.variant || c.k != other.k {
		return false
	}
	if c.variant == VariantL2LSH && c.tableSize != other.tableSize {
		return false
	}
	for i := range c.subs {
		if !c.subs[i].equalAtomic(other.subs[i]) {
			return false
		}
	}
	if c.variant == VariantL2LSH {
		for i := range c.r {
			if c.r[i] != other.r[i] {
				return false
			}
		}
	}
	return true
}
