package analysis

import (
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/core/model"
	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/generator"
	"github.com/periospot/implantgen/linear"
	"github.com/periospot/implantgen/metrics"
	"github.com/periospot/implantgen/model_selection"
	"github.com/periospot/implantgen/pkg/errors"
	"github.com/periospot/implantgen/pkg/log"
)

// Numeric predictors of the bone loss model. Smoking enters as two
// indicators against the "Never" baseline.
var boneLossNumeric = []string{
	generator.ColAge,
	generator.ColDiabetes,
	generator.ColHbA1c,
	generator.ColHounsfieldUnits,
	generator.ColInsertionTorque,
	generator.ColISQPlacement,
	generator.ColImplantLength,
	generator.ColImplantDiameter,
}

var smokingIndicators = []string{generator.SmokingFormer, generator.SmokingCurrent}

// BoneLossFeatures returns the model's feature names in coefficient order.
func BoneLossFeatures() []string {
	out := append([]string(nil), boneLossNumeric...)
	for _, level := range smokingIndicators {
		out = append(out, generator.ColSmokingStatus+"_"+level)
	}
	return out
}

// BoneLossOptions configures AnalyzeBoneLoss.
type BoneLossOptions struct {
	TestSize float64 `mapstructure:"test_size"`
	Seed     int64   `mapstructure:"seed"`
	CVFolds  int     `mapstructure:"cv_folds"` // 0 disables cross-validation
}

// DefaultBoneLossOptions returns an 80/20 split with seed 42 and 5 folds.
func DefaultBoneLossOptions() BoneLossOptions {
	return BoneLossOptions{TestSize: defaultTestSplit, Seed: 42, CVFolds: 5}
}

// BoneLossReport is the diagnostics of the marginal bone loss regression.
type BoneLossReport struct {
	RunID       string                   `json:"run_id,omitempty"`
	Table       string                   `json:"table"`
	Rows        int                      `json:"rows"`
	DroppedRows int                      `json:"dropped_rows"`
	Model       *model.ModelWeights      `json:"model"`
	Train       metrics.RegressionScores `json:"train"`
	Test        metrics.RegressionScores `json:"test"`
	CVR2        []float64                `json:"cv_r2,omitempty"`
	MeanCVR2    float64                  `json:"mean_cv_r2,omitempty"`
}

// WriteJSON writes the report as indented JSON.
func (r *BoneLossReport) WriteJSON(w io.Writer) error {
	return writeJSON(w, r)
}

// AnalyzeBoneLoss fits marginal bone loss by least squares on unscaled
// features, so coefficients read in mm per unit, and scores it on a random
// hold-out split.
func AnalyzeBoneLoss(t *dataset.Table, opts BoneLossOptions, logger log.Logger) (*BoneLossReport, error) {
	if logger == nil {
		logger = log.GetLogger()
	}
	logger = logger.With(log.ComponentKey, "analysis", log.DatasetKey, t.Name())

	X, y, dropped, err := boneLossDesign(t)
	if err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	report := &BoneLossReport{Table: t.Name(), Rows: rows, DroppedRows: dropped}

	split, err := model_selection.TrainTestSplit(rows, nil, opts.TestSize, false, opts.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "split bone loss data")
	}
	XTrain := model_selection.SelectRows(X, split.TrainIndices)
	yTrain := selectVec(y, split.TrainIndices)
	XTest := model_selection.SelectRows(X, split.TestIndices)
	yTest := selectVec(y, split.TestIndices)

	reg := linear.NewLinearRegression()
	if err := reg.Fit(XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "fit linear regression")
	}
	if report.Model, err = reg.ExportWeights(BoneLossFeatures()); err != nil {
		return nil, err
	}
	if report.Train, err = regressionScores(reg, XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "train scores")
	}
	if report.Test, err = regressionScores(reg, XTest, yTest); err != nil {
		return nil, errors.Wrap(err, "test scores")
	}

	if opts.CVFolds > 0 {
		kf, err := model_selection.NewKFold(opts.CVFolds, true, opts.Seed)
		if err != nil {
			return nil, err
		}
		folds, err := kf.Split(rows)
		if err != nil {
			return nil, err
		}
		var sum float64
		for _, f := range folds {
			cvReg := linear.NewLinearRegression()
			if err := cvReg.Fit(model_selection.SelectRows(X, f.TrainIndices), selectVec(y, f.TrainIndices)); err != nil {
				return nil, errors.Wrap(err, "cross-validation fit")
			}
			s, err := regressionScores(cvReg, model_selection.SelectRows(X, f.TestIndices), selectVec(y, f.TestIndices))
			if err != nil {
				return nil, err
			}
			report.CVR2 = append(report.CVR2, s.R2)
			sum += s.R2
		}
		report.MeanCVR2 = sum / float64(len(folds))
	}

	logger.Info("Bone loss model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, rows,
		log.R2ScoreKey, report.Test.R2,
	)
	return report, nil
}

// boneLossDesign builds the design matrix and outcome from complete rows.
func boneLossDesign(t *dataset.Table) (*mat.Dense, *mat.VecDense, int, error) {
	columns := append(append([]string(nil), boneLossNumeric...), generator.ColMarginalBone)
	numeric, kept, _, err := completeMatrix(t, columns)
	if err != nil {
		return nil, nil, 0, err
	}
	smoking, err := t.Column(generator.ColSmokingStatus)
	if err != nil {
		return nil, nil, 0, err
	}

	// 喫煙状況が欠損している行も除外する
	rows := make([]int, 0, len(kept))
	for r, i := range kept {
		if !smoking.IsMissing(i) {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil, nil, 0, errors.Wrapf(errors.ErrEmptyData, "no complete rows in %s", t.Name())
	}

	nNumeric := len(boneLossNumeric)
	X := mat.NewDense(len(rows), nNumeric+len(smokingIndicators), nil)
	y := mat.NewVecDense(len(rows), nil)
	for out, r := range rows {
		for j := 0; j < nNumeric; j++ {
			X.Set(out, j, numeric.At(r, j))
		}
		level := smoking.String(kept[r])
		for k, ind := range smokingIndicators {
			if level == ind {
				X.Set(out, nNumeric+k, 1)
			}
		}
		y.SetVec(out, numeric.At(r, nNumeric))
	}
	return X, y, t.Len() - len(rows), nil
}

func regressionScores(reg *linear.LinearRegression, X mat.Matrix, y *mat.VecDense) (metrics.RegressionScores, error) {
	pred, err := reg.Predict(X)
	if err != nil {
		return metrics.RegressionScores{}, err
	}
	return metrics.EvaluateRegression(y, columnVec(pred, 0))
}
