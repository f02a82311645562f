package linear

import "github.com/periospot/implantgen/pkg/log"

// Solver names accepted by WithSolver.
const (
	SolverNewton          = "newton"
	SolverGradientDescent = "gd"
)

// Penalty names accepted by WithPenalty.
const (
	PenaltyL2   = "l2"
	PenaltyNone = "none"
)

// LogisticOption configures LogisticRegression
type LogisticOption func(*LogisticRegression)

// WithPenalty sets the regularization type ("l2" or "none")
func WithPenalty(penalty string) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithC sets the inverse regularization strength
func WithC(c float64) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.c = c
	}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithSolver selects Newton's method or plain gradient descent
func WithSolver(solver string) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.solver = solver
	}
}

// WithMaxIter sets the maximum number of iterations
func WithMaxIter(maxIter int) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithTol sets the tolerance for the stopping criterion
func WithTol(tol float64) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLearningRate sets the base step size of the gradient descent solver
func WithLearningRate(rate float64) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.learningRate = rate
	}
}

// WithRandomState sets the seed for the initial weights
func WithRandomState(seed int64) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// WithLogger sets the logger used for fit summaries
func WithLogger(l log.Logger) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.logger = l
	}
}
