// Package implantgen generates synthetic dental implant datasets for
// teaching regression and classification, and fits the teaching models on
// them.
//
// Two generators are provided. The bone loss generator produces a
// regression dataset whose outcome, marginal bone loss in millimetres,
// depends on smoking, diabetes, bone density and implant geometry. The
// implant success generator produces a classification dataset whose binary
// outcome is drawn from a logistic model of the same kind of features; the
// true probability is kept in the full table and dropped from the training
// table.
//
// Every run is driven by one seeded generator handle, so a seed and a
// configuration always reproduce the same tables byte for byte.
//
// # Quick Start
//
//	gen, err := generator.NewSuccessGenerator(generator.DefaultSuccessConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := gen.Generate()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := analysis.AnalyzeSuccess(
//	    out.Table(generator.SuccessTrainingTable),
//	    out.Table(generator.SuccessTable),
//	    analysis.DefaultSuccessOptions(),
//	    nil,
//	)
//
// # Packages
//
//   - sampling: seeded generator handle and the distribution primitives
//   - dataset: typed columns, tables, missingness and CSV rendering
//   - generator: the bone loss and implant success generators
//   - linear: LinearRegression and LogisticRegression on gonum/mat
//   - preprocessing: StandardScaler
//   - model_selection: train/test splits and (stratified) k-fold
//   - metrics: regression scores, classification scores, ROC and PR curves, calibration
//   - analysis: JSON reports of the fitted teaching models
//   - core/model, core/parallel: shared model state and row-parallel helpers
//   - pkg/errors, pkg/log: error types and the zerolog-backed logger
//
// The implantgen command (cmd/implantgen) wires these together with viper
// configuration, a filesystem or S3 sink, a SQLite export and a Prometheus
// textfile of run metrics.
package implantgen
