// Package metrics holds the Prometheus collectors for pipeline runs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "sales_etl"

const (
	MetricRuns               = "runs_total"
	MetricRecordsExtracted   = "records_extracted_total"
	MetricSourceFailures     = "source_failures_total"
	MetricRecordsDropped     = "records_dropped_total"
	MetricAnomaliesFlagged   = "anomalies_flagged_total"
	MetricRecordsLoaded      = "records_loaded_total"
	MetricRunDurationSeconds = "run_duration_seconds"
)

// CounterRuns counts finished runs by status.
var CounterRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRuns,
		Help:      "Pipeline runs by final status.",
	},
	[]string{
		"status",
	},
)

var CounterRecordsExtracted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRecordsExtracted,
		Help:      "Raw records produced by each source.",
	},
	[]string{
		"source",
	},
)

var CounterSourceFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricSourceFailures,
		Help:      "Extractions that found their source unavailable.",
	},
	[]string{
		"source",
	},
)

var CounterRecordsDropped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRecordsDropped,
		Help:      "Records dropped for a missing amount.",
	},
)

var CounterAnomaliesFlagged = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricAnomaliesFlagged,
		Help:      "Records flagged as anomalies.",
	},
)

var CounterRecordsLoaded = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRecordsLoaded,
		Help:      "New records committed to the store.",
	},
)

var HistogramRunDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricRunDurationSeconds,
		Help:      "Wall time of completed pipeline runs.",
		Buckets:   prometheus.DefBuckets,
	},
)

func init() {
	prometheus.MustRegister(CounterRuns)
	prometheus.MustRegister(CounterRecordsExtracted)
	prometheus.MustRegister(CounterSourceFailures)
	prometheus.MustRegister(CounterRecordsDropped)
	prometheus.MustRegister(CounterAnomaliesFlagged)
	prometheus.MustRegister(CounterRecordsLoaded)
	prometheus.MustRegister(HistogramRunDuration)
}
