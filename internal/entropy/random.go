// Package entropy provides the seedable random stream a single simulation run draws from.
// Every stochastic decision in a run goes through one Stream so that a seed fully
// determines the run, and concurrent runs never share generator state.
package entropy

import (
	"math/rand/v2"
	"slices"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// pcgIncrement is the fixed second word of the PCG state.
const pcgIncrement = 0x9e3779b97f4a7c15

// Stream is an explicit random source owned by one simulation run.
// It is not safe for concurrent use.
type Stream struct {
	seed uint64
	rng  *rand.Rand
}

// NewStream creates a stream seeded with seed.
func NewStream(seed uint64) *Stream {
	return &Stream{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, pcgIncrement)),
	}
}

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() uint64 {
	return s.seed
}

// Float returns a random float64 in [0, 1).
func (s *Stream) Float() float64 {
	return s.rng.Float64()
}

// Uniform returns a random float64 in [lo, hi).
func (s *Stream) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// IntBetween returns a random int in [lo, hi], both ends inclusive.
func (s *Stream) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.IntN(hi-lo+1)
}

// Sample picks k distinct indices out of [0, n) and returns them in ascending order.
// When k >= n every index is returned.
func (s *Stream) Sample(n, k int) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	if k <= 0 {
		return nil
	}

	picked := make([]int, k)
	sampleuv.WithoutReplacement(picked, n, s.rng)
	slices.Sort(picked)
	return picked
}

// Beta returns a Beta(alpha, beta) distribution that draws from this stream.
func (s *Stream) Beta(alpha, beta float64) distuv.Beta {
	return distuv.Beta{Alpha: alpha, Beta: beta, Src: s.rng}
}

// Uint64 returns a raw 64-bit draw. Used to seed derived noise fields.
func (s *Stream) Uint64() uint64 {
	return s.rng.Uint64()
}

// Drift is a smooth one-dimensional noise curve in [-1, 1].
type Drift struct {
	noise opensimplex.Noise
}

// NewDrift creates a drift curve from a seed.
func NewDrift(seed int64) *Drift {
	return &Drift{noise: opensimplex.New(seed)}
}

// At samples the curve at x.
func (d *Drift) At(x float64) float64 {
	v := d.noise.Eval2(x, 0)
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
