package sampling

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/periospot/implantgen/pkg/errors"
)

// WeightTolerance is how far a categorical weight table may sum from 1.
const WeightTolerance = 1e-9

// Categorical draws labels from a fixed domain with fixed weights.
type Categorical[T any] struct {
	labels  []T
	weights []float64
}

// NewCategorical validates the weight table. Weights must be non-negative,
// one per label, and sum to 1 within WeightTolerance.
func NewCategorical[T any](labels []T, weights []float64) (*Categorical[T], error) {
	if len(labels) == 0 {
		return nil, errors.NewConfigError("sampling.Categorical", "labels", "must not be empty", len(labels))
	}
	if len(labels) != len(weights) {
		return nil, errors.NewConfigError("sampling.Categorical", "weights", "must have one weight per label", len(weights))
	}
	for _, w := range weights {
		if math.IsNaN(w) || w < 0 {
			return nil, errors.NewConfigError("sampling.Categorical", "weights", "must be non-negative", w)
		}
	}
	if sum := floats.Sum(weights); math.Abs(sum-1) > WeightTolerance {
		return nil, errors.NewConfigError("sampling.Categorical", "weights", "must sum to 1", sum)
	}

	return &Categorical[T]{
		labels:  append([]T(nil), labels...),
		weights: append([]float64(nil), weights...),
	}, nil
}

// Labels returns the domain in declaration order.
func (c *Categorical[T]) Labels() []T {
	return append([]T(nil), c.labels...)
}

// Weights returns the weight table in declaration order.
func (c *Categorical[T]) Weights() []float64 {
	return append([]float64(nil), c.weights...)
}

// Sample draws n labels.
func (c *Categorical[T]) Sample(rng *RNG, n int) []T {
	dist := distuv.NewCategorical(c.weights, rng.Source())
	out := make([]T, n)
	for i := range out {
		out[i] = c.labels[int(dist.Rand())]
	}
	return out
}
