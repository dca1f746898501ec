// Package randx provides the seeded random source shared by every
// generation stage, plus the sampling helpers built on it.
package randx

import (
	"cmp"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Rand is a deterministic random source. Each pipeline stage derives its own
// Rand from the run seed so stages stay replayable in isolation.
type Rand struct {
	*rand.Rand
}

// New returns a PCG-backed source for seed.
func New(seed uint64) *Rand {
	return &Rand{rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Derive returns the source for a named stage of the run seeded with seed.
func Derive(seed uint64, stage string) *Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(stage))
	return New(seed ^ h.Sum64())
}

// Read fills p with random bytes so the source can back uuid generation.
func (r *Rand) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		v := r.Uint64()
		for j := 0; j < 8 && i+j < len(p); j++ {
			p[i+j] = byte(v >> (8 * j))
		}
	}
	return len(p), nil
}

// UUID returns a version 4 uuid drawn from the source.
func (r *Rand) UUID() string {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		// Read never fails.
		panic(err)
	}
	return id.String()
}

// Between returns a uniform integer in [lo, hi]. It returns lo when hi < lo.
func (r *Rand) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// Below returns a uniform integer in [0, n), or 0 when n <= 0.
func (r *Rand) Below(n int) int {
	if n <= 0 {
		return 0
	}
	return r.IntN(n)
}

// Uniform returns a float in [lo, hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// DateBetween returns a uniform day in [from, to], both inclusive.
func (r *Rand) DateBetween(from, to time.Time) time.Time {
	days := int(to.Sub(from).Hours() / 24)
	return from.AddDate(0, 0, r.Between(0, days))
}

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// AlphaNum returns n uppercase alphanumeric characters.
func (r *Rand) AlphaNum(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alnum[r.IntN(len(alnum))]
	}
	return string(b)
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// ExactCounts splits total into per-category counts int(w*total). The
// remainder goes to the category with the largest weight.
func ExactCounts(weights []float64, total int) []int {
	counts := make([]int, len(weights))
	if len(weights) == 0 {
		return counts
	}
	assigned, top := 0, 0
	for i, w := range weights {
		counts[i] = int(w * float64(total))
		assigned += counts[i]
		if w > weights[top] {
			top = i
		}
	}
	counts[top] += total - assigned
	return counts
}

// AssignExact returns total values whose category frequencies follow
// ExactCounts, in random order.
func AssignExact[T any](r *Rand, values []T, weights []float64, total int) []T {
	out := make([]T, 0, total)
	for i, c := range ExactCounts(weights, total) {
		for range c {
			out = append(out, values[i])
		}
	}
	Shuffle(r, out)
	return out
}

// Shuffle permutes xs in place.
func Shuffle[T any](r *Rand, xs []T) {
	r.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
}

// Choice returns a uniform element of xs. xs must not be empty.
func Choice[T any](r *Rand, xs []T) T {
	return xs[r.IntN(len(xs))]
}

// Sample draws k elements of xs with replacement.
func Sample[T any](r *Rand, xs []T, k int) []T {
	out := make([]T, k)
	for i := range out {
		out[i] = xs[r.IntN(len(xs))]
	}
	return out
}

// SampleDistinct draws min(k, len(xs)) elements without replacement,
// returned in their original order.
func SampleDistinct[T any](r *Rand, xs []T, k int) []T {
	if k >= len(xs) {
		return slices.Clone(xs)
	}
	idx := r.Perm(len(xs))[:k]
	slices.Sort(idx)
	out := make([]T, k)
	for i, j := range idx {
		out[i] = xs[j]
	}
	return out
}

// Weights splits a categorical distribution into keys sorted ascending and
// their weights, giving map-backed distributions a deterministic order.
func Weights[K cmp.Ordered](dist map[K]float64) ([]K, []float64) {
	keys := make([]K, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	weights := make([]float64, len(keys))
	for i, k := range keys {
		weights[i] = dist[k]
	}
	return keys, weights
}
