package sampling

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/periospot/implantgen/pkg/errors"
)

// Bernoulli draws n independent trials with constant success probability p.
func Bernoulli(rng *RNG, p float64, n int) ([]bool, error) {
	if err := validateProbability("p", p); err != nil {
		return nil, err
	}
	dist := distuv.Bernoulli{P: p, Src: rng.Source()}
	out := make([]bool, n)
	for i := range out {
		out[i] = dist.Rand() == 1
	}
	return out, nil
}

// BernoulliEach draws one trial per entry of p. Each trial consumes exactly
// one uniform draw, in order.
func BernoulliEach(rng *RNG, p []float64) ([]bool, error) {
	for _, v := range p {
		if err := validateProbability("p", v); err != nil {
			return nil, err
		}
	}
	out := make([]bool, len(p))
	for i, v := range p {
		out[i] = rng.Float64() < v
	}
	return out, nil
}

// LinearProbability is a dependent probability: a bounded linear function
// of an upstream feature,
//
//	p(x) = clamp(Base + Slope*(x-Center), Lo, Hi)
type LinearProbability struct {
	Base   float64
	Center float64
	Slope  float64
	Lo     float64
	Hi     float64
}

// Validate checks that the clamp interval is a sub-interval of [0, 1].
func (l LinearProbability) Validate() error {
	if err := validateProbability("lo", l.Lo); err != nil {
		return err
	}
	if err := validateProbability("hi", l.Hi); err != nil {
		return err
	}
	if l.Lo > l.Hi {
		return errors.NewConfigError("sampling.LinearProbability", "bounds", "lower bound must not exceed upper bound",
			[2]float64{l.Lo, l.Hi})
	}
	return nil
}

// P evaluates the probability for one upstream value.
func (l LinearProbability) P(x float64) float64 {
	return Clip(l.Base+l.Slope*(x-l.Center), l.Lo, l.Hi)
}

// Sample evaluates P for every upstream value and draws one trial each.
func (l LinearProbability) Sample(rng *RNG, upstream []float64) ([]bool, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	p := make([]float64, len(upstream))
	for i, x := range upstream {
		p[i] = l.P(x)
	}
	return BernoulliEach(rng, p)
}

// ValidateRate rejects rates outside [0, 1].
func ValidateRate(field string, rate float64) error {
	return validateProbability(field, rate)
}

func validateProbability(field string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return errors.NewConfigError("sampling", field, "must be within [0, 1]", p)
	}
	return nil
}
