package linear

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/core/model"
	"github.com/periospot/implantgen/core/parallel"
	"github.com/periospot/implantgen/pkg/errors"
	"github.com/periospot/implantgen/pkg/log"
)

var (
	_ model.BinaryClassifier = (*LogisticRegression)(nil)
	_ model.WeightExporter   = (*LogisticRegression)(nil)
)

// LogisticRegression is a binary logistic regression classifier. It
// minimises
//
//	C * sum_i logloss(y_i, sigmoid(w.x_i + b)) + 0.5 * ||w||^2
//
// (the intercept is not penalised), matching scikit-learn's L2 objective.
// Labels must be 0 and 1.
type LogisticRegression struct {
	state *model.StateManager

	penalty      string
	c            float64
	fitIntercept bool
	solver       string
	maxIter      int
	tol          float64
	learningRate float64
	randomState  int64
	logger       log.Logger

	coef      []float64
	intercept float64
	nIter     int
}

// NewLogisticRegression creates a classifier with C=1, L2 penalty, Newton
// solver, 100 iterations and tolerance 1e-6.
func NewLogisticRegression(opts ...LogisticOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      PenaltyL2,
		c:            1.0,
		fitIntercept: true,
		solver:       SolverNewton,
		maxIter:      100,
		tol:          1e-6,
		learningRate: 1.0,
		randomState:  42,
		logger:       log.GetLogger(),
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

func (lr *LogisticRegression) validateParams() error {
	if lr.penalty != PenaltyL2 && lr.penalty != PenaltyNone {
		return errors.NewValidationError("penalty", "must be \"l2\" or \"none\"", lr.penalty)
	}
	if lr.penalty == PenaltyL2 && !(lr.c > 0) {
		return errors.NewValidationError("C", "must be positive", lr.c)
	}
	if lr.solver != SolverNewton && lr.solver != SolverGradientDescent {
		return errors.NewValidationError("solver", "must be \"newton\" or \"gd\"", lr.solver)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}
	if !(lr.tol > 0) {
		return errors.NewValidationError("tol", "must be positive", lr.tol)
	}
	return nil
}

// Fit trains the model. A ConvergenceWarning is emitted through
// errors.Warn when the solver stops at maxIter.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}

	labels := make([]float64, nSamples)
	var positives int
	for i := range labels {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return errors.NewValidationError("y", "labels must be 0 or 1", v)
		}
		labels[i] = v
		positives += int(v)
	}
	if positives == 0 || positives == nSamples {
		return errors.NewValueError("LogisticRegression.Fit", "y contains a single class")
	}

	// 先頭列を切片として扱う計画行列
	design := withInterceptColumn(X)
	w := lr.initialWeights(nFeatures + 1)

	var converged bool
	var err error
	if lr.solver == SolverNewton {
		converged, err = lr.newton(design, labels, w)
	} else {
		converged, err = lr.gradientDescent(design, labels, w)
	}
	if err != nil {
		return err
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.nIter,
			"increase max_iter or scale the features"))
	}

	lr.intercept = w[0]
	lr.coef = append([]float64(nil), w[1:]...)
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()

	lr.logger.Debug("Model fitted",
		log.ModelNameKey, "LogisticRegression",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.IterationKey, lr.nIter,
		log.RegularizationKey, lr.c,
	)
	return nil
}

// initialWeights draws small seeded starting weights for the gradient
// descent solver; Newton starts from zero.
func (lr *LogisticRegression) initialWeights(n int) []float64 {
	w := make([]float64, n)
	if lr.solver == SolverGradientDescent {
		rng := rand.New(rand.NewPCG(uint64(lr.randomState), uint64(lr.randomState)))
		for j := 1; j < n; j++ {
			w[j] = rng.NormFloat64() * 0.01
		}
	}
	return w
}

// lambda is the per-weight L2 coefficient after dividing the objective by C.
func (lr *LogisticRegression) lambda() float64 {
	if lr.penalty == PenaltyNone {
		return 0
	}
	return 1 / lr.c
}

// gradient returns X^T (p - y) + lambda * w (intercept unpenalised) and the
// predicted probabilities.
func (lr *LogisticRegression) gradient(design *mat.Dense, labels, w []float64) ([]float64, []float64) {
	nSamples, nCols := design.Dims()
	p := make([]float64, nSamples)
	parallel.ParallelizeWithThreshold(nSamples, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			z := 0.0
			for j := 0; j < nCols; j++ {
				z += design.At(i, j) * w[j]
			}
			p[i] = sigmoid(z)
		}
	})

	grad := make([]float64, nCols)
	for i := 0; i < nSamples; i++ {
		residual := p[i] - labels[i]
		for j := 0; j < nCols; j++ {
			grad[j] += residual * design.At(i, j)
		}
	}
	lambda := lr.lambda()
	for j := 1; j < nCols; j++ {
		grad[j] += lambda * w[j]
	}
	if !lr.fitIntercept {
		grad[0] = 0
	}
	return grad, p
}

func (lr *LogisticRegression) newton(design *mat.Dense, labels, w []float64) (bool, error) {
	nSamples, nCols := design.Dims()
	lambda := lr.lambda()

	for iter := 0; iter < lr.maxIter; iter++ {
		lr.nIter = iter + 1
		grad, p := lr.gradient(design, labels, w)

		// H = X^T diag(p(1-p)) X + lambda * I (切片を除く)
		weighted := mat.NewDense(nSamples, nCols, nil)
		for i := 0; i < nSamples; i++ {
			s := math.Sqrt(p[i] * (1 - p[i]))
			for j := 0; j < nCols; j++ {
				weighted.Set(i, j, design.At(i, j)*s)
			}
		}
		var hess mat.SymDense
		hess.SymOuterK(1, weighted.T())
		for j := 0; j < nCols; j++ {
			ridge := lambda
			if j == 0 {
				ridge = 0
				if !lr.fitIntercept {
					// 切片を固定するため対角を 1 にして更新量を 0 にする
					for k := 0; k < nCols; k++ {
						hess.SetSym(0, k, 0)
					}
					ridge = 1
				}
			}
			// 完全分離でも分解できるよう微小な値を足す
			hess.SetSym(j, j, hess.At(j, j)+ridge+1e-10)
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(&hess); !ok {
			return false, errors.NewModelError("LogisticRegression.Fit", "singular hessian", errors.ErrSingularMatrix)
		}
		var step mat.VecDense
		if err := chol.SolveVecTo(&step, mat.NewVecDense(nCols, grad)); err != nil {
			return false, errors.NewModelError("LogisticRegression.Fit", "singular hessian",
				errors.CombineErrors(errors.ErrSingularMatrix, err))
		}

		maxStep := 0.0
		for j := 0; j < nCols; j++ {
			w[j] -= step.AtVec(j)
			maxStep = math.Max(maxStep, math.Abs(step.AtVec(j)))
		}
		if err := errors.CheckNumericalStability("LogisticRegression.newton", w, iter); err != nil {
			return false, err
		}
		if maxStep < lr.tol || maxAbs(grad) < lr.tol {
			return true, nil
		}
	}
	return false, nil
}

func (lr *LogisticRegression) gradientDescent(design *mat.Dense, labels, w []float64) (bool, error) {
	nSamples, _ := design.Dims()
	for iter := 0; iter < lr.maxIter; iter++ {
		lr.nIter = iter + 1
		grad, _ := lr.gradient(design, labels, w)

		// 平均損失のスケールに揃える
		for j := range grad {
			grad[j] /= float64(nSamples)
		}
		if maxAbs(grad) < lr.tol {
			return true, nil
		}

		rate := lr.learningRate / (1.0 + 0.01*float64(iter))
		for j := range w {
			w[j] -= rate * grad[j]
		}
		if err := errors.CheckNumericalStability("LogisticRegression.gradientDescent", w, iter); err != nil {
			return false, err
		}
	}
	return false, nil
}

// PredictProba returns the probability of the positive class as an
// n_samples x 1 matrix.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if fitted, _ := lr.state.GetDimensions(); nFeatures != fitted {
		return nil, errors.NewDimensionError("LogisticRegression.PredictProba", fitted, nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		z := lr.intercept
		for j := 0; j < nFeatures; j++ {
			z += X.At(i, j) * lr.coef[j]
		}
		probas.Set(i, 0, sigmoid(z))
	}
	return probas, nil
}

// Predict labels a sample 1 when its probability is at least 0.5.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	return lr.PredictWithThreshold(X, 0.5)
}

// PredictWithThreshold labels a sample 1 when its probability is at least
// threshold.
func (lr *LogisticRegression) PredictWithThreshold(X mat.Matrix, threshold float64) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := probas.Dims()
	predictions := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if probas.At(i, 0) >= threshold {
			predictions.Set(i, 0, 1)
		}
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given data.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	nSamples, _ := X.Dims()
	yRows, _ := y.Dims()
	if yRows != nSamples {
		return 0, errors.NewDimensionError("LogisticRegression.Score", nSamples, yRows, 0)
	}
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Coef returns a copy of the fitted coefficients.
func (lr *LogisticRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 {
	return lr.intercept
}

// NIter returns the number of solver iterations of the last fit.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter
}

// IsFitted reports whether Fit has completed.
func (lr *LogisticRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.c,
		"fit_intercept": lr.fitIntercept,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"random_state":  lr.randomState,
	}
}

// ExportWeights returns the fitted coefficients labelled with features.
func (lr *LogisticRegression) ExportWeights(features []string) (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	mw := &model.ModelWeights{
		ModelType:       "LogisticRegression",
		Coefficients:    lr.Coef(),
		Intercept:       lr.intercept,
		Features:        append([]string(nil), features...),
		Hyperparameters: lr.GetParams(),
	}
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return mw, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + errors.StabilizeExp(-z))
	}
	ez := errors.StabilizeExp(z)
	return ez / (1 + ez)
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
