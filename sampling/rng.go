package sampling

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// RNG is the single random generator handle owned by one generation run.
// It is not safe for concurrent use.
type RNG struct {
	seed int64
	src  *rand.PCG
	r    *rand.Rand
}

// New creates an RNG seeded with seed.
func New(seed int64) *RNG {
	src := rand.NewPCG(uint64(seed), uint64(seed))
	return &RNG{
		seed: seed,
		src:  src,
		r:    rand.New(src),
	}
}

// Seed returns the seed the RNG was created with.
func (g *RNG) Seed() int64 {
	return g.seed
}

// Source exposes the underlying source for gonum distributions.
func (g *RNG) Source() rand.Source {
	return g.src
}

// Float64 returns one uniform draw in [0, 1).
func (g *RNG) Float64() float64 {
	return g.r.Float64()
}

// Uniform returns n uniform draws in [0, 1).
func (g *RNG) Uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = g.r.Float64()
	}
	return out
}

// Normal returns n unclamped draws from N(mu, sigma).
func (g *RNG) Normal(mu, sigma float64, n int) []float64 {
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: g.src}
	out := make([]float64, n)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// Perm returns a pseudo-random permutation of [0, n).
func (g *RNG) Perm(n int) []int {
	return g.r.Perm(n)
}

// Shuffle pseudo-randomly reorders idx in place.
func (g *RNG) Shuffle(idx []int) {
	g.r.Shuffle(len(idx), func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})
}
