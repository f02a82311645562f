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
	"github.com/periospot/implantgen/preprocessing"
	"github.com/periospot/implantgen/sampling"
)

// SuccessFeatures are the predictors of the logistic model, in matrix order.
var SuccessFeatures = []string{
	generator.ColInsertionTorque,
	generator.ColISQPlacement,
	generator.ColHounsfieldUnits,
	generator.ColAge,
	generator.ColSmokingStatus,
	generator.ColDiabetesStatus,
	generator.ColImplantLength,
	generator.ColImplantDiameter,
}

// Reference points for the sigmoid table and the confusion matrices.
var (
	sigmoidPoints       = []float64{-5, -2, 0, 2, 5}
	confusionThresholds = []float64{0.3, 0.5, 0.7}
)

const (
	sweepStart       = 0.10
	sweepStop        = 0.90
	sweepStep        = 0.05
	calibrationBins  = 10
	successMaxIter   = 1000
	successCVFolds   = 5
	defaultTestSplit = 0.2
)

// SuccessOptions configures AnalyzeSuccess.
type SuccessOptions struct {
	TestSize float64 `mapstructure:"test_size"`
	Seed     int64   `mapstructure:"seed"`
	C        float64 `mapstructure:"c"`
	CVFolds  int     `mapstructure:"cv_folds"` // 0 disables cross-validation
}

// DefaultSuccessOptions returns a stratified 80/20 split with seed 42, C=1
// and 5-fold cross-validation.
func DefaultSuccessOptions() SuccessOptions {
	return SuccessOptions{TestSize: defaultTestSplit, Seed: 42, C: 1, CVFolds: successCVFolds}
}

// ClassCounts is the label balance of a table.
type ClassCounts struct {
	Failure     int     `json:"failure"`
	Success     int     `json:"success"`
	SuccessRate float64 `json:"success_rate"`
}

// SigmoidPoint is one entry of the logistic reference table.
type SigmoidPoint struct {
	Z float64 `json:"z"`
	P float64 `json:"p"`
}

// ClassifierScores summarises predictions on one split.
type ClassifierScores struct {
	N        int         `json:"n"`
	Accuracy float64     `json:"accuracy"`
	AUC      float64     `json:"auc"`
	LogLoss  float64     `json:"log_loss"`
	ROC      metrics.ROC `json:"roc"`
}

// CrossValidation reports per-fold test AUC.
type CrossValidation struct {
	Folds   int       `json:"folds"`
	AUC     []float64 `json:"auc"`
	MeanAUC float64   `json:"mean_auc"`
}

// SuccessReport is the full diagnostics of the implant success model.
type SuccessReport struct {
	RunID                string                       `json:"run_id,omitempty"`
	Table                string                       `json:"table"`
	Rows                 int                          `json:"rows"`
	DroppedRows          int                          `json:"dropped_rows"`
	ClassCounts          ClassCounts                  `json:"class_counts"`
	Sigmoid              []SigmoidPoint               `json:"sigmoid"`
	Model                *model.ModelWeights          `json:"model"`
	Scaling              []preprocessing.FeatureScale `json:"scaling"`
	OddsRatios           []model.FeatureEffect        `json:"odds_ratios"`
	Train                ClassifierScores             `json:"train"`
	Test                 ClassifierScores             `json:"test"`
	PrecisionRecall      metrics.PR                   `json:"precision_recall"`
	AveragePrecision     float64                      `json:"average_precision"`
	BaselinePositiveRate float64                      `json:"baseline_positive_rate"`
	ThresholdSweep       []metrics.ThresholdScores    `json:"threshold_sweep"`
	ConfusionMatrices    []metrics.ThresholdScores    `json:"confusion_matrices"`
	CrossValidation      *CrossValidation             `json:"cross_validation,omitempty"`
	Calibration          []metrics.CalibrationBin     `json:"calibration,omitempty"`
}

// WriteJSON writes the report as indented JSON.
func (r *SuccessReport) WriteJSON(w io.Writer) error {
	return writeJSON(w, r)
}

// AnalyzeSuccess fits the logistic model on training and evaluates it on a
// stratified hold-out split. When full carries the true probability column
// the report also includes its calibration against the realized labels;
// full may be nil.
func AnalyzeSuccess(training, full *dataset.Table, opts SuccessOptions, logger log.Logger) (*SuccessReport, error) {
	if logger == nil {
		logger = log.GetLogger()
	}
	logger = logger.With(log.ComponentKey, "analysis", log.DatasetKey, training.Name())

	report := &SuccessReport{Table: training.Name()}

	counts, err := classCounts(training)
	if err != nil {
		return nil, err
	}
	report.ClassCounts = counts

	for _, z := range sigmoidPoints {
		report.Sigmoid = append(report.Sigmoid, SigmoidPoint{Z: z, P: sampling.Sigmoid(z)})
	}

	columns := append(append([]string(nil), SuccessFeatures...), generator.ColSuccess)
	data, _, dropped, err := completeMatrix(training, columns)
	if err != nil {
		return nil, err
	}
	X, y := splitXY(data)
	report.Rows, _ = X.Dims()
	report.DroppedRows = dropped

	split, err := model_selection.TrainTestSplit(report.Rows, y, opts.TestSize, true, opts.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "split success data")
	}
	XTrain := model_selection.SelectRows(X, split.TrainIndices)
	XTest := model_selection.SelectRows(X, split.TestIndices)
	yTrain := selectVec(y, split.TrainIndices)
	yTest := selectVec(y, split.TestIndices)

	clf, scaler, err := fitScaledLogistic(XTrain, yTrain, opts, logger)
	if err != nil {
		return nil, err
	}
	weights, err := clf.ExportWeights(SuccessFeatures)
	if err != nil {
		return nil, err
	}
	report.Model = weights
	report.OddsRatios = weights.OddsRatios()
	if report.Scaling, err = scaler.Summary(SuccessFeatures); err != nil {
		return nil, err
	}

	probTrain, err := scaledProba(clf, scaler, XTrain)
	if err != nil {
		return nil, err
	}
	probTest, err := scaledProba(clf, scaler, XTest)
	if err != nil {
		return nil, err
	}

	if report.Train, err = classifierScores(yTrain, probTrain); err != nil {
		return nil, errors.Wrap(err, "train scores")
	}
	if report.Test, err = classifierScores(yTest, probTest); err != nil {
		return nil, errors.Wrap(err, "test scores")
	}

	if report.PrecisionRecall, err = metrics.PRCurve(yTest, probTest); err != nil {
		return nil, err
	}
	if report.AveragePrecision, err = metrics.AveragePrecision(yTest, probTest); err != nil {
		return nil, err
	}
	report.BaselinePositiveRate = mat.Sum(yTest) / float64(yTest.Len())

	if report.ThresholdSweep, err = metrics.ThresholdSweep(yTest, probTest, sweepStart, sweepStop, sweepStep); err != nil {
		return nil, err
	}
	for _, th := range confusionThresholds {
		s, err := metrics.ScoreAtThreshold(yTest, probTest, th)
		if err != nil {
			return nil, err
		}
		report.ConfusionMatrices = append(report.ConfusionMatrices, s)
	}

	if opts.CVFolds > 0 {
		cv, err := crossValidateSuccess(X, y, opts, logger)
		if err != nil {
			return nil, err
		}
		report.CrossValidation = cv
	}

	if full != nil {
		if report.Calibration, err = trueProbabilityCalibration(full); err != nil {
			return nil, err
		}
	}

	logger.Info("Success model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, report.Rows,
		log.AUCKey, report.Test.AUC,
		log.AccuracyKey, report.Test.Accuracy,
	)
	return report, nil
}

func classCounts(t *dataset.Table) (ClassCounts, error) {
	col, err := t.Column(generator.ColSuccess)
	if err != nil {
		return ClassCounts{}, err
	}
	var c ClassCounts
	for i := 0; i < col.Len(); i++ {
		if col.IsMissing(i) {
			continue
		}
		if col.Float(i) == 1 {
			c.Success++
		} else {
			c.Failure++
		}
	}
	if total := c.Success + c.Failure; total > 0 {
		c.SuccessRate = float64(c.Success) / float64(total)
	}
	return c, nil
}

// fitScaledLogistic standardises X on its own statistics and fits the
// classifier on the scaled values.
func fitScaledLogistic(X *mat.Dense, y *mat.VecDense, opts SuccessOptions, logger log.Logger) (*linear.LogisticRegression, *preprocessing.StandardScaler, error) {
	scaler := preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return nil, nil, errors.Wrap(err, "scale features")
	}
	clf := linear.NewLogisticRegression(
		linear.WithC(opts.C),
		linear.WithMaxIter(successMaxIter),
		linear.WithRandomState(opts.Seed),
		linear.WithLogger(logger),
	)
	if err := clf.Fit(scaled, y); err != nil {
		return nil, nil, errors.Wrap(err, "fit logistic regression")
	}
	return clf, scaler, nil
}

func scaledProba(clf *linear.LogisticRegression, scaler *preprocessing.StandardScaler, X mat.Matrix) (*mat.VecDense, error) {
	scaled, err := scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	proba, err := clf.PredictProba(scaled)
	if err != nil {
		return nil, err
	}
	return columnVec(proba, 0), nil
}

func classifierScores(y, prob *mat.VecDense) (ClassifierScores, error) {
	roc, err := metrics.ROCCurve(y, prob)
	if err != nil {
		return ClassifierScores{}, err
	}
	auc, err := metrics.AUC(y, prob)
	if err != nil {
		return ClassifierScores{}, err
	}
	acc, err := metrics.Accuracy(y, metrics.PredictAtThreshold(prob, 0.5))
	if err != nil {
		return ClassifierScores{}, err
	}
	loss, err := metrics.BinaryLogLoss(y, prob)
	if err != nil {
		return ClassifierScores{}, err
	}
	return ClassifierScores{N: y.Len(), Accuracy: acc, AUC: auc, LogLoss: loss, ROC: roc}, nil
}

func crossValidateSuccess(X *mat.Dense, y *mat.VecDense, opts SuccessOptions, logger log.Logger) (*CrossValidation, error) {
	skf, err := model_selection.NewStratifiedKFold(opts.CVFolds, true, opts.Seed)
	if err != nil {
		return nil, err
	}
	folds, err := skf.Split(y)
	if err != nil {
		return nil, errors.Wrap(err, "cross-validation folds")
	}

	cv := &CrossValidation{Folds: len(folds)}
	var sum float64
	for _, f := range folds {
		clf, scaler, err := fitScaledLogistic(model_selection.SelectRows(X, f.TrainIndices), selectVec(y, f.TrainIndices), opts, logger)
		if err != nil {
			return nil, err
		}
		yTest := selectVec(y, f.TestIndices)
		prob, err := scaledProba(clf, scaler, model_selection.SelectRows(X, f.TestIndices))
		if err != nil {
			return nil, err
		}
		auc, err := metrics.AUC(yTest, prob)
		if err != nil {
			return nil, err
		}
		cv.AUC = append(cv.AUC, auc)
		sum += auc
	}
	cv.MeanAUC = sum / float64(len(folds))
	return cv, nil
}

// trueProbabilityCalibration bins the generator's own success probability
// against the labels drawn from it.
func trueProbabilityCalibration(full *dataset.Table) ([]metrics.CalibrationBin, error) {
	data, _, _, err := completeMatrix(full, []string{generator.ColSuccessProbTrue, generator.ColSuccess})
	if err != nil {
		return nil, err
	}
	prob, y := splitXY(data)
	return metrics.CalibrationCurve(y, columnVec(prob, 0), calibrationBins)
}
