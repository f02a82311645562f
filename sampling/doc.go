// Package sampling provides the seeded feature samplers used by the dataset
// generators.
//
// Every sampler draws from an explicitly passed *RNG. Nothing in this package
// touches global random state, so two runs that create their RNG from the
// same seed and request the same draws in the same order produce identical
// values. Draws happen column-wise: a sampler consumes all n values for its
// feature before the next feature is sampled.
//
// Distributions are backed by gonum's stat/distuv:
//
//	rng := sampling.New(42)
//	age, _ := sampling.NewClampedNormal(55, 12, 25, 85)
//	ages := age.SampleInt(rng, 500)
//
//	sex, _ := sampling.NewCategorical([]string{"Male", "Female"}, []float64{0.45, 0.55})
//	sexes := sex.Sample(rng, 500)
package sampling
