package sampling

import "github.com/periospot/implantgen/pkg/errors"

// Conditional picks the distribution of a downstream feature from a boolean
// upstream feature. Both branches are drawn for every case, true branch
// first, and each case keeps the value from its own branch; the number of
// draws consumed therefore does not depend on the upstream values.
type Conditional struct {
	IfTrue  ClampedNormal
	IfFalse ClampedNormal
}

// Sample returns one value per entry of upstream.
func (c Conditional) Sample(rng *RNG, upstream []bool) ([]float64, error) {
	if err := c.IfTrue.Validate(); err != nil {
		return nil, errors.Wrap(err, "conditional true branch")
	}
	if err := c.IfFalse.Validate(); err != nil {
		return nil, errors.Wrap(err, "conditional false branch")
	}
	n := len(upstream)
	whenTrue := c.IfTrue.Sample(rng, n)
	whenFalse := c.IfFalse.Sample(rng, n)

	out := make([]float64, n)
	for i, u := range upstream {
		if u {
			out[i] = whenTrue[i]
		} else {
			out[i] = whenFalse[i]
		}
	}
	return out, nil
}

// Shift describes a downstream feature whose location moves with upstream
// values: value = N(Mu, Sigma) + Offset(i), clipped to [Lo, Hi] after the
// shift is applied.
type Shift struct {
	Base   ClampedNormal
	Offset func(i int) float64
}

// Sample draws n base values, adds the per-case offset and clips.
func (s Shift) Sample(rng *RNG, n int) ([]float64, error) {
	if err := s.Base.Validate(); err != nil {
		return nil, err
	}
	out := rng.Normal(s.Base.Mu, s.Base.Sigma, n)
	for i := range out {
		if s.Offset != nil {
			out[i] += s.Offset(i)
		}
		out[i] = Clip(out[i], s.Base.Lo, s.Base.Hi)
	}
	return out, nil
}
