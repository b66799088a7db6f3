package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every retest metric. It is written to a textfile at exit
// when a metrics file is configured.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// plansTotal counts finished plans.
	// Labels: status (ok, degraded, budget_exceeded)
	plansTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retest",
		Name:      "plans_total",
		Help:      "Total regression plans produced",
	}, []string{"status"})

	// planDuration measures end-to-end planning time.
	planDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "retest",
		Name:      "plan_duration_seconds",
		Help:      "Time spent producing a regression plan",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// predictorFallbacks counts tests scored without the predictor.
	// Labels: reason (timeout, error, invalid_response, low_confidence)
	predictorFallbacks = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retest",
		Name:      "predictor_fallbacks_total",
		Help:      "Total predictor calls that fell back to rule-based scoring",
	}, []string{"reason"})

	// corruptRecords counts execution records skipped as corrupt.
	corruptRecords = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "retest",
		Name:      "corrupt_execution_records_total",
		Help:      "Total execution records skipped because they failed validation",
	})

	// recordsAppended counts execution records added to the history.
	recordsAppended = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "retest",
		Name:      "execution_records_appended_total",
		Help:      "Total execution records appended to the history store",
	})
)

// WriteMetrics writes the registry in the Prometheus text format. An empty
// path is a no-op.
func WriteMetrics(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}
