package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplierhub_runs_total",
			Help: "Total number of feed runs by terminal status.",
		},
		[]string{"status"},
	)
	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supplierhub_run_duration_seconds",
			Help:    "Histogram of feed run durations.",
			Buckets: []float64{1, 5, 15, 60, 300, 900},
		},
	)
	recordsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supplierhub_records_processed_total",
			Help: "Total number of feed records that entered the diff pipeline.",
		},
	)
	guardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplierhub_guard_rejections_total",
			Help: "Total number of pre-write guard rejections by reason code.",
		},
		[]string{"reason"},
	)
	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplierhub_feed_fetches_total",
			Help: "Total number of feed fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	rateFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplierhub_rate_lookups_total",
			Help: "Total number of currency rate lookups by resolution tier.",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(recordsProcessed)
	prometheus.MustRegister(guardRejections)
	prometheus.MustRegister(fetchesTotal)
	prometheus.MustRegister(rateFallbacks)
}

func RecordRun(status string, duration time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDuration.Observe(duration.Seconds())
}

func AddRecordsProcessed(n int) {
	recordsProcessed.Add(float64(n))
}

func RecordGuardRejection(reason string) {
	guardRejections.WithLabelValues(reason).Inc()
}

func RecordFetch(outcome string) {
	fetchesTotal.WithLabelValues(outcome).Inc()
}

func RecordRateLookup(mode string) {
	rateFallbacks.WithLabelValues(mode).Inc()
}
