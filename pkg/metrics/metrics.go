// Package metrics records run statistics in a Prometheus registry that can be
// written to a node-exporter textfile once the batch finishes.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	rowsLoadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "surveyeval_rows_loaded_total",
			Help: "Total number of survey rows accepted.",
		},
	)

	rowsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "surveyeval_rows_rejected_total",
			Help: "Total number of survey rows rejected as malformed.",
		},
	)

	testsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveyeval_tests_total",
			Help: "Total number of statistical tests computed.",
		},
		[]string{"analysis", "test"},
	)

	analysisDurationSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "surveyeval_analysis_duration_seconds",
			Help: "Wall-clock duration of the last run of each analysis.",
		},
		[]string{"analysis"},
	)

	analysisFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveyeval_analysis_failures_total",
			Help: "Total number of analyses that returned an error.",
		},
		[]string{"analysis"},
	)

	lastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "surveyeval_last_run_timestamp_seconds",
			Help: "Unix time the metrics were last written.",
		},
	)

	registerOnce sync.Once
)

// Register adds the collectors to the package registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		registry.MustRegister(rowsLoadedTotal, rowsRejectedTotal, testsTotal,
			analysisDurationSeconds, analysisFailuresTotal, lastRunTimestamp)
	})
}

// Registry returns the registry holding every collector of this package.
func Registry() *prometheus.Registry {
	Register()
	return registry
}

// Handler exposes the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}

// RecordRows counts accepted and rejected survey rows.
func RecordRows(loaded, rejected int) {
	rowsLoadedTotal.Add(float64(loaded))
	rowsRejectedTotal.Add(float64(rejected))
}

// RecordTest counts one computed statistical test.
func RecordTest(analysis, test string) {
	testsTotal.WithLabelValues(analysis, test).Inc()
}

// ObserveAnalysis records how long an analysis took and whether it failed.
func ObserveAnalysis(analysis string, d time.Duration, err error) {
	analysisDurationSeconds.WithLabelValues(analysis).Set(d.Seconds())
	if err != nil {
		analysisFailuresTotal.WithLabelValues(analysis).Inc()
	}
}

// WriteTextfile writes the registry in text exposition format to path.
func WriteTextfile(path string) error {
	lastRunTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, Registry()); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
