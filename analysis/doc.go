// Package analysis fits the reference models on generated tables and
// reports their numeric diagnostics as JSON.
//
// The success report covers the logistic model on the training table:
// class balance, odds ratios, ROC and precision-recall curves, a threshold
// sweep and calibration of the recorded true probabilities. The bone loss
// report covers an ordinary least squares fit of marginal bone loss.
//
// Rows with a missing feature are dropped before fitting; the number
// dropped is part of each report.
package analysis
