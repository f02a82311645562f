// Package telemetry records run metrics and writes them in the Prometheus
// textfile format, for pickup by a node exporter textfile collector.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/periospot/implantgen/generator"
	"github.com/periospot/implantgen/pkg/errors"
)

const namespace = "implantgen"

// Recorder collects the metrics of one process run.
type Recorder struct {
	registry *prometheus.Registry
	cases    *prometheus.CounterVec
	missing  *prometheus.CounterVec
	duration *prometheus.GaugeVec
	lastRun  *prometheus.GaugeVec
	now      func() time.Time
}

// NewRecorder builds a Recorder on its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_generated_total",
			Help:      "Synthetic cases generated, by dataset.",
		}, []string{"dataset"}),
		missing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_cells_total",
			Help:      "Cells blanked by the missingness pass, by dataset and column.",
		}, []string{"dataset", "column"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of the last generation run, by dataset.",
		}, []string{"dataset"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run, labelled with its id and seed.",
		}, []string{"run_id", "seed"}),
		now: time.Now,
	}
	r.registry.MustRegister(r.cases, r.missing, r.duration, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveOutput records one generator run under the given dataset label.
func (r *Recorder) ObserveOutput(dataset string, out *generator.Output) {
	r.cases.WithLabelValues(dataset).Add(float64(out.Cases))
	for column, n := range out.Missing {
		r.missing.WithLabelValues(dataset, column).Add(float64(n))
	}
	r.duration.WithLabelValues(dataset).Set(out.Duration.Seconds())
}

// MarkRun stamps the completion time of the run.
func (r *Recorder) MarkRun(runID, seed string) {
	r.lastRun.WithLabelValues(runID, seed).Set(float64(r.now().Unix()))
}

// WriteTextfile writes every metric to path. The file is written to a
// temporary name and renamed, so collectors never read a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return errors.NewConfigError("telemetry", "metrics_textfile", "required", path)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
