package generator

import (
	"math"

	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/pkg/errors"
	"github.com/periospot/implantgen/pkg/log"
	"github.com/periospot/implantgen/sampling"
)

// Output table names for the implant success dataset.
const (
	SuccessTable         = "implant_success_data"
	SuccessTrainingTable = "implant_success_data_training"
	SuccessPreviewTable  = "implant_success_data_toy"
)

// Implant success column names that differ from the bone loss dataset.
const (
	ColDiabetesStatus  = "diabetes_status"
	ColImplantSurface  = "implant_surface_mm2"
	ColSuccess         = "success"
	ColSuccessProbTrue = "success_probability_true"
)

var successFeatures = []string{
	ColAge, ColSmokingStatus, ColDiabetesStatus, ColInsertionTorque, ColISQPlacement,
	ColHounsfieldUnits, ColImplantLength, ColImplantDiameter, ColImplantSurface,
}

// SuccessConfig configures the implant success generator. Missingness is
// off by default.
type SuccessConfig struct {
	Cases       int           `mapstructure:"cases"`
	Seed        int64         `mapstructure:"seed"`
	PreviewRows int           `mapstructure:"preview_rows"`
	Missing     []MissingRate `mapstructure:"missing"`
}

// DefaultSuccessConfig returns 500 cases, seed 42, no preview and no
// missing values.
func DefaultSuccessConfig() SuccessConfig {
	return SuccessConfig{Cases: 500, Seed: 42}
}

// Validate rejects non-positive case counts, negative preview sizes and
// malformed missingness entries.
func (c SuccessConfig) Validate() error {
	return validateCommon("generator.Success", c.Cases, c.PreviewRows, c.Missing, successFeatures)
}

// SuccessFactors are the inputs of the noise-free log-odds of success.
type SuccessFactors struct {
	Age             float64
	Smoking         bool
	Diabetes        bool
	InsertionTorque float64
	ISQ             float64
	HounsfieldUnits float64
	Length          float64
}

// SuccessLogit returns the log-odds of implant success before noise:
//
//	0.8(torque-35)/8 + 1.2(isq-65)/10 + 0.5(HU-700)/150 - 0.3(age-55)/12
//	    - 1.5 smoking - 0.8 diabetes + 0.3(length-10.5)/2 + 0.5
func SuccessLogit(f SuccessFactors) float64 {
	z := 0.8*(f.InsertionTorque-35)/8 +
		1.2*(f.ISQ-65)/10 +
		0.5*(f.HounsfieldUnits-700)/150 +
		-0.3*(f.Age-55)/12 +
		0.3*(f.Length-10.5)/2 +
		0.5
	if f.Smoking {
		z -= 1.5
	}
	if f.Diabetes {
		z -= 0.8
	}
	return z
}

// SurfaceArea approximates the implant's lateral surface as a cylinder,
// pi * diameter * length, in mm².
func SurfaceArea(diameter, length float64) float64 {
	return math.Pi * diameter * length
}

// SuccessGenerator produces the implant success dataset.
type SuccessGenerator struct {
	cfg  SuccessConfig
	opts options

	age      sampling.ClampedNormal
	torque   sampling.ClampedNormal
	isq      sampling.Shift
	hu       sampling.ClampedNormal
	length   *sampling.Categorical[float64]
	diameter *sampling.Categorical[float64]
}

const (
	smokingRate      = 0.30
	diabetesRate     = 0.15
	successNoiseStd  = 0.4
	smokerHUShift    = -80
	diabeticHUShift  = -60
	isqTorqueLoading = 0.4
)

// NewSuccessGenerator validates cfg and builds the feature samplers.
func NewSuccessGenerator(cfg SuccessConfig, opts ...Option) (*SuccessGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &SuccessGenerator{
		cfg:    cfg,
		opts:   buildOptions(opts),
		age:    sampling.ClampedNormal{Mu: 55, Sigma: 12, Lo: 25, Hi: 85},
		torque: sampling.ClampedNormal{Mu: 35, Sigma: 8, Lo: 15, Hi: 50},
		hu:     sampling.ClampedNormal{Mu: 700, Sigma: 150, Lo: 250, Hi: 1200},
	}
	g.isq = sampling.Shift{Base: sampling.ClampedNormal{Mu: 50, Sigma: 8, Lo: 45, Hi: 85}}

	for _, c := range []sampling.ClampedNormal{g.age, g.torque, g.hu, g.isq.Base} {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	var err error
	if g.length, err = sampling.NewCategorical([]float64{8, 10, 11.5, 13}, []float64{0.15, 0.35, 0.35, 0.15}); err != nil {
		return nil, errors.Wrap(err, "implant_length_mm")
	}
	if g.diameter, err = implantDiameters(); err != nil {
		return nil, errors.Wrap(err, "implant_diameter_mm")
	}
	return g, nil
}

// Config returns the validated configuration.
func (g *SuccessGenerator) Config() SuccessConfig {
	return g.cfg
}

// Generate runs the pipeline once with a fresh RNG seeded from the config.
// It returns the full table (with the true probability), the training
// table without it and, when PreviewRows > 0, a preview of the full table.
func (g *SuccessGenerator) Generate() (_ *Output, err error) {
	defer errors.Recover(&err, "SuccessGenerator.Generate")
	start := g.opts.clock()
	logger := g.opts.logger.With(
		log.ComponentKey, "generator",
		log.DatasetKey, SuccessTable,
	)

	n := g.cfg.Cases
	rng := sampling.New(g.cfg.Seed)

	age := g.age.Sample(rng, n)
	smoking, err := sampling.Bernoulli(rng, smokingRate, n)
	if err != nil {
		return nil, err
	}
	diabetes, err := sampling.Bernoulli(rng, diabetesRate, n)
	if err != nil {
		return nil, err
	}
	torque := g.torque.Sample(rng, n)

	// isq rises with torque; the clip applies after the torque term is added
	isqModel := g.isq
	isqModel.Offset = func(i int) float64 { return isqTorqueLoading * torque[i] }
	isq, err := isqModel.Sample(rng, n)
	if err != nil {
		return nil, err
	}

	huModel := sampling.Shift{Base: g.hu, Offset: func(i int) float64 {
		return smokerHUShift*indicator(smoking[i]) + diabeticHUShift*indicator(diabetes[i])
	}}
	hu, err := huModel.Sample(rng, n)
	if err != nil {
		return nil, err
	}

	length := g.length.Sample(rng, n)
	diameter := g.diameter.Sample(rng, n)
	surface := make([]float64, n)
	for i := range surface {
		surface[i] = SurfaceArea(diameter[i], length[i])
	}

	noise := rng.Normal(0, successNoiseStd, n)
	prob := make([]float64, n)
	for i := range prob {
		z := SuccessLogit(SuccessFactors{
			Age:             age[i],
			Smoking:         smoking[i],
			Diabetes:        diabetes[i],
			InsertionTorque: torque[i],
			ISQ:             isq[i],
			HounsfieldUnits: hu[i],
			Length:          length[i],
		})
		prob[i] = sampling.Sigmoid(z + noise[i])
	}
	success, err := sampling.BernoulliEach(rng, prob)
	if err != nil {
		return nil, errors.Wrap(err, "success labels")
	}

	huInt := make([]int, n)
	for i, v := range hu {
		huInt[i] = int(math.RoundToEven(v))
	}

	full, err := dataset.New(SuccessTable,
		dataset.StringColumn(ColPatientID, dataset.RoleID, dataset.SequentialIDs("PAT-", n, 4)),
		dataset.FloatColumn(ColAge, dataset.RoleFeature, 1, age),
		dataset.IntColumn(ColSmokingStatus, dataset.RoleFeature, boolsToInts(smoking)),
		dataset.IntColumn(ColDiabetesStatus, dataset.RoleFeature, boolsToInts(diabetes)),
		dataset.FloatColumn(ColInsertionTorque, dataset.RoleFeature, 1, torque),
		dataset.FloatColumn(ColISQPlacement, dataset.RoleFeature, 1, isq),
		dataset.IntColumn(ColHounsfieldUnits, dataset.RoleFeature, huInt),
		dataset.FloatColumn(ColImplantLength, dataset.RoleFeature, -1, length),
		dataset.FloatColumn(ColImplantDiameter, dataset.RoleFeature, -1, diameter),
		dataset.FloatColumn(ColImplantSurface, dataset.RoleFeature, 1, surface),
		dataset.IntColumn(ColSuccess, dataset.RoleOutcome, boolsToInts(success)),
		dataset.FloatColumn(ColSuccessProbTrue, dataset.RoleOutcome, 4, prob),
	)
	if err != nil {
		return nil, errors.Wrap(err, "assemble implant success table")
	}

	missing, err := injectMissing(rng, full, g.cfg.Missing, logger)
	if err != nil {
		return nil, err
	}

	training, err := full.DropColumn(SuccessTrainingTable, ColSuccessProbTrue)
	if err != nil {
		return nil, err
	}
	out := &Output{
		Seed:    g.cfg.Seed,
		Cases:   n,
		Tables:  []*dataset.Table{full, training},
		Missing: missing,
	}
	if g.cfg.PreviewRows > 0 {
		preview, err := full.Preview(SuccessPreviewTable, g.cfg.PreviewRows)
		if err != nil {
			return nil, err
		}
		out.Tables = append(out.Tables, preview)
	}
	out.Duration = g.opts.clock().Sub(start)

	positives := 0
	for _, s := range success {
		if s {
			positives++
		}
	}
	logger.Info("Dataset generated",
		log.SamplesKey, n,
		log.FeaturesKey, len(successFeatures),
		log.RandomSeedKey, g.cfg.Seed,
		log.RateKey, float64(positives)/float64(n),
		log.DurationMsKey, out.Duration.Milliseconds(),
	)
	return out, nil
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func boolsToInts(b []bool) []int {
	out := make([]int, len(b))
	for i, v := range b {
		if v {
			out[i] = 1
		}
	}
	return out
}
