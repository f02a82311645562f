// Standard attribute keys for implantgen log records.
//
// Keys follow a hierarchical naming convention ("data.samples",
// "config.random_seed") so log records can be filtered uniformly across
// generation, fitting and export.

package log

// Operation context.
const (
	// ComponentKey identifies the package performing the operation.
	// Examples: "generator", "analysis", "sink"
	ComponentKey = "ml.component"

	// OperationKey names the operation being performed.
	// Standard values: "generate", "fit", "predict", "evaluate", "write", "export"
	OperationKey = "ml.operation"

	// ModelNameKey identifies the model type.
	// Examples: "LinearRegression", "LogisticRegression", "StandardScaler"
	ModelNameKey = "model.name"

	// RunIDKey carries the identifier of one CLI invocation.
	RunIDKey = "run.id"
)

// Data shape and provenance.
const (
	// DatasetKey names the dataset being generated or consumed.
	// Examples: "implant_bone_loss", "implant_success_data"
	DatasetKey = "data.name"

	// SamplesKey is the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// ColumnKey names a single column.
	ColumnKey = "data.column"

	// MissingKey is the number of cells marked missing.
	MissingKey = "data.missing"

	// PathKey is the destination path or object key of a written artifact.
	PathKey = "data.path"

	// SinkKey names the output backend ("fs", "s3").
	SinkKey = "data.sink"
)

// Configuration and reproducibility.
const (
	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// RegularizationKey records the inverse regularization strength C.
	RegularizationKey = "hyperparams.regularization"

	// IterationKey records the iteration count of an iterative solver.
	IterationKey = "training.iteration"
)

// Results.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy.
	AccuracyKey = "metrics.accuracy"

	// AUCKey records the area under the ROC curve.
	AUCKey = "metrics.roc_auc"

	// R2ScoreKey records R² for regression.
	R2ScoreKey = "metrics.r2_score"

	// RateKey records an observed proportion such as a success or missing rate.
	RateKey = "metrics.rate"
)

// Error context.
const (
	// ErrorKey carries the error value.
	ErrorKey = "error"

	// StacktraceKey contains stack trace information extracted from
	// cockroachdb/errors values.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationGenerate = "generate"
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationEvaluate = "evaluate"
	OperationWrite    = "write"
	OperationExport   = "export"
)
