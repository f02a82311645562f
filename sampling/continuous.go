package sampling

import (
	"math"

	"github.com/periospot/implantgen/pkg/errors"
)

// ClampedNormal is a normal distribution whose draws are clipped to
// [Lo, Hi]. Use math.Inf for an open side.
type ClampedNormal struct {
	Mu    float64
	Sigma float64
	Lo    float64
	Hi    float64
}

// NewClampedNormal validates the parameters and returns the sampler.
func NewClampedNormal(mu, sigma, lo, hi float64) (ClampedNormal, error) {
	c := ClampedNormal{Mu: mu, Sigma: sigma, Lo: lo, Hi: hi}
	if err := c.Validate(); err != nil {
		return ClampedNormal{}, err
	}
	return c, nil
}

// Validate rejects a negative or non-finite sigma, a non-finite mean and an
// inverted clamp interval.
func (c ClampedNormal) Validate() error {
	if math.IsNaN(c.Mu) || math.IsInf(c.Mu, 0) {
		return errors.NewConfigError("sampling.ClampedNormal", "mu", "must be finite", c.Mu)
	}
	if math.IsNaN(c.Sigma) || math.IsInf(c.Sigma, 0) || c.Sigma < 0 {
		return errors.NewConfigError("sampling.ClampedNormal", "sigma", "must be finite and non-negative", c.Sigma)
	}
	if math.IsNaN(c.Lo) || math.IsNaN(c.Hi) || c.Lo > c.Hi {
		return errors.NewConfigError("sampling.ClampedNormal", "bounds", "lower bound must not exceed upper bound",
			[2]float64{c.Lo, c.Hi})
	}
	return nil
}

// Sample draws n values and clips each to [Lo, Hi].
func (c ClampedNormal) Sample(rng *RNG, n int) []float64 {
	out := rng.Normal(c.Mu, c.Sigma, n)
	for i, v := range out {
		out[i] = Clip(v, c.Lo, c.Hi)
	}
	return out
}

// SampleInt draws n values, clips them and truncates toward zero.
func (c ClampedNormal) SampleInt(rng *RNG, n int) []int {
	vals := c.Sample(rng, n)
	out := make([]int, n)
	for i, v := range vals {
		out[i] = int(v)
	}
	return out
}

// Clip limits v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round rounds v to the given number of decimals, ties to even.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*p) / p
}

// Sigmoid is the logistic function 1 / (1 + exp(-z)).
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}
