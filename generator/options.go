package generator

import (
	"time"

	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/pkg/errors"
	"github.com/periospot/implantgen/pkg/log"
	"github.com/periospot/implantgen/sampling"
)

// MissingRate designates one feature column for the missingness pass.
// Passes run in declaration order, each consuming one uniform draw per case.
type MissingRate struct {
	Column string  `mapstructure:"column"`
	Rate   float64 `mapstructure:"rate"`
}

// Option configures a generator.
type Option func(*options)

type options struct {
	logger log.Logger
	clock  func() time.Time
}

// WithLogger sets the logger used for run summaries.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock replaces time.Now for duration measurement.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: log.GetLogger(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Output is the result of one generation run.
type Output struct {
	Seed     int64
	Cases    int
	Tables   []*dataset.Table // in write order
	Missing  map[string]int   // newly missing cells per column
	Duration time.Duration
}

// Table returns the output table with the given name, or nil.
func (o *Output) Table(name string) *dataset.Table {
	for _, t := range o.Tables {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func validateCommon(component string, cases, previewRows int, missing []MissingRate, features []string) error {
	if cases <= 0 {
		return errors.NewConfigError(component, "cases", "must be positive", cases)
	}
	if previewRows < 0 {
		return errors.NewConfigError(component, "preview_rows", "must be non-negative", previewRows)
	}
	known := make(map[string]bool, len(features))
	for _, f := range features {
		known[f] = true
	}
	for _, m := range missing {
		if !known[m.Column] {
			return errors.NewConfigError(component, "missing."+m.Column, "not a feature column", m.Column)
		}
		if err := sampling.ValidateRate("missing."+m.Column, m.Rate); err != nil {
			return err
		}
	}
	return nil
}

func injectMissing(rng *sampling.RNG, table *dataset.Table, missing []MissingRate, logger log.Logger) (map[string]int, error) {
	counts := make(map[string]int, len(missing))
	for _, m := range missing {
		n, err := table.InjectMissing(rng, m.Column, m.Rate)
		if err != nil {
			return nil, err
		}
		counts[m.Column] += n
		logger.Debug("Missing values injected",
			log.ColumnKey, m.Column,
			log.RateKey, m.Rate,
			log.MissingKey, n,
		)
	}
	return counts, nil
}
