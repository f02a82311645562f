package generator

import (
	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/pkg/errors"
	"github.com/periospot/implantgen/pkg/log"
	"github.com/periospot/implantgen/sampling"
)

// Output table names for the bone loss dataset.
const (
	BoneLossTable        = "implant_bone_loss"
	BoneLossPreviewTable = "implant_bone_loss_toy"
)

// Bone loss column names, in output order.
const (
	ColPatientID       = "patient_id"
	ColAge             = "age"
	ColSex             = "sex"
	ColSmokingStatus   = "smoking_status"
	ColDiabetes        = "diabetes"
	ColHbA1c           = "hba1c"
	ColHounsfieldUnits = "hounsfield_units"
	ColBoneType        = "bone_type"
	ColInsertionTorque = "insertion_torque_ncm"
	ColISQPlacement    = "isq_placement"
	ColImplantLength   = "implant_length_mm"
	ColImplantDiameter = "implant_diameter_mm"
	ColMarginalBone    = "marginal_bone_loss_mm"
)

// Smoking categories.
const (
	SmokingNever   = "Never"
	SmokingFormer  = "Former"
	SmokingCurrent = "Current"
)

// MBL outcome bounds in mm.
const (
	MinBoneLoss = 0.1
	MaxBoneLoss = 3.5
)

var boneLossFeatures = []string{
	ColAge, ColSex, ColSmokingStatus, ColDiabetes, ColHbA1c, ColHounsfieldUnits,
	ColBoneType, ColInsertionTorque, ColISQPlacement, ColImplantLength, ColImplantDiameter,
}

// BoneLossConfig configures the bone loss generator.
type BoneLossConfig struct {
	Cases       int           `mapstructure:"cases"`
	Seed        int64         `mapstructure:"seed"`
	PreviewRows int           `mapstructure:"preview_rows"`
	Missing     []MissingRate `mapstructure:"missing"`
}

// DefaultBoneLossConfig returns 500 cases, seed 42, a 50 row preview and
// missing hba1c (3%) and isq_placement (2%).
func DefaultBoneLossConfig() BoneLossConfig {
	return BoneLossConfig{
		Cases:       500,
		Seed:        42,
		PreviewRows: 50,
		Missing: []MissingRate{
			{Column: ColHbA1c, Rate: 0.03},
			{Column: ColISQPlacement, Rate: 0.02},
		},
	}
}

// Validate rejects non-positive case counts, negative preview sizes and
// malformed missingness entries.
func (c BoneLossConfig) Validate() error {
	return validateCommon("generator.BoneLoss", c.Cases, c.PreviewRows, c.Missing, boneLossFeatures)
}

// BoneLossFactors are the inputs of the deterministic part of the MBL
// outcome.
type BoneLossFactors struct {
	Age             float64
	HounsfieldUnits float64
	InsertionTorque float64
	ISQ             float64
	Smoking         string
	Diabetes        bool
	HbA1c           float64
}

// BoneLossSignal returns the noise-free marginal bone loss in mm:
//
//	0.8 + 0.015(torque-35) - 0.012(isq-68) - 0.0008(HU-450) + 0.005(age-55)
//	    + smoking bonus + diabetes bonus
//
// Current smokers add 0.35 and former smokers 0.10. Diabetics add 0.25 when
// HbA1c exceeds 7.5 and 0.10 otherwise.
func BoneLossSignal(f BoneLossFactors) float64 {
	mbl := 0.8 +
		(f.InsertionTorque-35)*0.015 +
		(f.ISQ-68)*-0.012 +
		(f.HounsfieldUnits-450)*-0.0008 +
		(f.Age-55)*0.005

	switch f.Smoking {
	case SmokingCurrent:
		mbl += 0.35
	case SmokingFormer:
		mbl += 0.10
	}

	if f.Diabetes {
		if f.HbA1c > 7.5 {
			mbl += 0.25
		} else {
			mbl += 0.10
		}
	}
	return mbl
}

// BoneType maps Hounsfield units to the Misch density class using the
// right-closed bins (0,300], (300,500], (500,700], (700,1000]. Values outside
// every bin yield "".
func BoneType(hu int) string {
	switch {
	case hu <= 0 || hu > 1000:
		return ""
	case hu <= 300:
		return "D4 (Very soft)"
	case hu <= 500:
		return "D3 (Soft)"
	case hu <= 700:
		return "D2 (Normal)"
	default:
		return "D1 (Dense)"
	}
}

// BoneLossGenerator produces the marginal bone loss dataset.
type BoneLossGenerator struct {
	cfg  BoneLossConfig
	opts options

	age      sampling.ClampedNormal
	sex      *sampling.Categorical[string]
	smoking  *sampling.Categorical[string]
	diabetes sampling.LinearProbability
	hba1c    sampling.Conditional
	hu       sampling.ClampedNormal
	torque   sampling.ClampedNormal
	isq      sampling.ClampedNormal
	length   *sampling.Categorical[float64]
	diameter *sampling.Categorical[float64]
}

// boneLossNoiseStd is the standard deviation of the per-case MBL noise.
const boneLossNoiseStd = 0.25

// NewBoneLossGenerator validates cfg and builds the feature samplers.
func NewBoneLossGenerator(cfg BoneLossConfig, opts ...Option) (*BoneLossGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &BoneLossGenerator{
		cfg:  cfg,
		opts: buildOptions(opts),
		age:  sampling.ClampedNormal{Mu: 55, Sigma: 12, Lo: 25, Hi: 85},
		diabetes: sampling.LinearProbability{
			Base: 0.15, Center: 40, Slope: 0.003, Lo: 0.05, Hi: 0.40,
		},
		hba1c: sampling.Conditional{
			IfTrue:  sampling.ClampedNormal{Mu: 7.2, Sigma: 0.8, Lo: 5.7, Hi: 10.0},
			IfFalse: sampling.ClampedNormal{Mu: 5.4, Sigma: 0.3, Lo: 4.5, Hi: 5.6},
		},
		hu:     sampling.ClampedNormal{Mu: 450, Sigma: 150, Lo: 150, Hi: 850},
		torque: sampling.ClampedNormal{Mu: 35, Sigma: 10, Lo: 15, Hi: 60},
		isq:    sampling.ClampedNormal{Mu: 68, Sigma: 8, Lo: 45, Hi: 85},
	}

	var err error
	if g.sex, err = sampling.NewCategorical([]string{"Male", "Female"}, []float64{0.45, 0.55}); err != nil {
		return nil, errors.Wrap(err, "sex")
	}
	g.smoking, err = sampling.NewCategorical(
		[]string{SmokingNever, SmokingFormer, SmokingCurrent},
		[]float64{0.55, 0.30, 0.15},
	)
	if err != nil {
		return nil, errors.Wrap(err, "smoking_status")
	}
	if g.length, err = sampling.NewCategorical([]float64{8, 10, 11.5, 13}, []float64{0.15, 0.35, 0.30, 0.20}); err != nil {
		return nil, errors.Wrap(err, "implant_length_mm")
	}
	if g.diameter, err = implantDiameters(); err != nil {
		return nil, errors.Wrap(err, "implant_diameter_mm")
	}

	for _, c := range []sampling.ClampedNormal{g.age, g.hu, g.torque, g.isq, g.hba1c.IfTrue, g.hba1c.IfFalse} {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	if err := g.diabetes.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// implantDiameters is shared by both datasets.
func implantDiameters() (*sampling.Categorical[float64], error) {
	return sampling.NewCategorical([]float64{3.5, 4.0, 4.5, 5.0}, []float64{0.20, 0.40, 0.30, 0.10})
}

// Config returns the validated configuration.
func (g *BoneLossGenerator) Config() BoneLossConfig {
	return g.cfg
}

// Generate runs the pipeline once with a fresh RNG seeded from the config.
// The returned tables are the full dataset and, when PreviewRows > 0, the
// preview.
func (g *BoneLossGenerator) Generate() (_ *Output, err error) {
	defer errors.Recover(&err, "BoneLossGenerator.Generate")
	start := g.opts.clock()
	logger := g.opts.logger.With(
		log.ComponentKey, "generator",
		log.DatasetKey, BoneLossTable,
	)

	n := g.cfg.Cases
	rng := sampling.New(g.cfg.Seed)

	age := g.age.SampleInt(rng, n)
	sex := g.sex.Sample(rng, n)
	smoking := g.smoking.Sample(rng, n)

	ageF := toFloats(age)
	diabetes, err := g.diabetes.Sample(rng, ageF)
	if err != nil {
		return nil, err
	}
	hba1c, err := g.hba1c.Sample(rng, diabetes)
	if err != nil {
		return nil, err
	}

	hu := g.hu.SampleInt(rng, n)
	boneType := make([]string, n)
	for i, v := range hu {
		boneType[i] = BoneType(v)
	}
	torque := g.torque.SampleInt(rng, n)
	isq := g.isq.SampleInt(rng, n)
	length := g.length.Sample(rng, n)
	diameter := g.diameter.Sample(rng, n)

	noise := rng.Normal(0, boneLossNoiseStd, n)
	mbl := make([]float64, n)
	for i := range mbl {
		signal := BoneLossSignal(BoneLossFactors{
			Age:             ageF[i],
			HounsfieldUnits: float64(hu[i]),
			InsertionTorque: float64(torque[i]),
			ISQ:             float64(isq[i]),
			Smoking:         smoking[i],
			Diabetes:        diabetes[i],
			HbA1c:           hba1c[i],
		})
		mbl[i] = sampling.Clip(signal+noise[i], MinBoneLoss, MaxBoneLoss)
	}

	table, err := dataset.New(BoneLossTable,
		dataset.StringColumn(ColPatientID, dataset.RoleID, dataset.SequentialIDs("P", n, 4)),
		dataset.IntColumn(ColAge, dataset.RoleFeature, age),
		dataset.StringColumn(ColSex, dataset.RoleFeature, sex),
		dataset.StringColumn(ColSmokingStatus, dataset.RoleFeature, smoking),
		dataset.BoolColumn(ColDiabetes, dataset.RoleFeature, diabetes),
		dataset.FloatColumn(ColHbA1c, dataset.RoleFeature, 1, hba1c),
		dataset.IntColumn(ColHounsfieldUnits, dataset.RoleFeature, hu),
		dataset.StringColumn(ColBoneType, dataset.RoleFeature, boneType),
		dataset.IntColumn(ColInsertionTorque, dataset.RoleFeature, torque),
		dataset.IntColumn(ColISQPlacement, dataset.RoleFeature, isq),
		dataset.FloatColumn(ColImplantLength, dataset.RoleFeature, -1, length),
		dataset.FloatColumn(ColImplantDiameter, dataset.RoleFeature, -1, diameter),
		dataset.FloatColumn(ColMarginalBone, dataset.RoleOutcome, 2, mbl),
	)
	if err != nil {
		return nil, errors.Wrap(err, "assemble bone loss table")
	}

	missing, err := injectMissing(rng, table, g.cfg.Missing, logger)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Seed:    g.cfg.Seed,
		Cases:   n,
		Tables:  []*dataset.Table{table},
		Missing: missing,
	}
	if g.cfg.PreviewRows > 0 {
		preview, err := table.Preview(BoneLossPreviewTable, g.cfg.PreviewRows)
		if err != nil {
			return nil, err
		}
		out.Tables = append(out.Tables, preview)
	}
	out.Duration = g.opts.clock().Sub(start)

	logger.Info("Dataset generated",
		log.SamplesKey, n,
		log.FeaturesKey, len(boneLossFeatures),
		log.RandomSeedKey, g.cfg.Seed,
		log.DurationMsKey, out.Duration.Milliseconds(),
	)
	return out, nil
}

func toFloats(v []int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
