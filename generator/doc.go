// Package generator synthesizes the two teaching datasets: a marginal bone
// loss regression table and an implant success classification table.
//
// Both generators follow the same pipeline: feature sampling, outcome
// synthesis, bounding and rounding, missingness injection and tabular
// assembly. All randomness comes from one sampling.RNG created from the
// configured seed, and features are drawn column by column in a fixed
// order, so the same configuration always yields the same tables.
//
//	gen, err := generator.NewBoneLossGenerator(generator.DefaultBoneLossConfig())
//	if err != nil {
//	    return err
//	}
//	out, err := gen.Generate()
//	full := out.Table(generator.BoneLossTable)
package generator
