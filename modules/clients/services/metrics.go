package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clients",
		Subsystem: "batch",
		Name:      "operations_total",
		Help:      "Total number of assignment store operations broken down by kind and result.",
	}, []string{"kind", "result"})

	batchDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clients",
		Subsystem: "batch",
		Name:      "duplicates_total",
		Help:      "Total number of duplicate-key conflicts tolerated by the batch executor.",
	})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clients",
		Subsystem: "batch",
		Name:      "duration_seconds",
		Help:      "Duration of assignment saves broken down by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	loaderPages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clients",
		Subsystem: "loader",
		Name:      "pages_total",
		Help:      "Total number of assignment pages read while loading existing state.",
	})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clients",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Total number of imported rows broken down by status.",
	}, []string{"status"})
)

func recordOperation(kind string, err error, duplicate bool) {
	result := "ok"
	switch {
	case duplicate:
		result = "duplicate"
		batchDuplicates.Inc()
	case err != nil:
		result = "error"
	}
	batchOperations.WithLabelValues(kind, result).Inc()
}

func recordSave(outcome string, seconds float64) {
	batchDuration.WithLabelValues(outcome).Observe(seconds)
}

func recordPage() { loaderPages.Inc() }

func recordImportRow(status RowStatus) {
	importRows.WithLabelValues(string(status)).Inc()
}
