package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Entity gauges, sampled by Collector from store.Stats.
	SessionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rqstore_sessions_total",
			Help: "Total number of live sessions",
		},
	)

	InstaqlQueriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rqstore_instaql_queries_total",
			Help: "Total number of live instaql queries by staleness",
		},
		[]string{"stale"},
	)

	DatalogQueriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rqstore_datalog_queries_total",
			Help: "Total number of cached datalog queries",
		},
	)

	SubscriptionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rqstore_subscriptions_total",
			Help: "Total number of subscription edges",
		},
	)

	// Transaction and invalidation counters/histograms.
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rqstore_transactions_total",
			Help: "Total number of committed transactions by tag",
		},
		[]string{"tag"},
	)

	TransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rqstore_transaction_duration_seconds",
			Help:    "Transaction commit latency in seconds by tag",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tag"},
	)

	InvalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rqstore_invalidations_total",
			Help: "Total number of mark_stale_topics invocations",
		},
	)

	InvalidationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rqstore_invalidation_duration_seconds",
			Help:    "mark_stale_topics latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SessionsAffectedPerInvalidation = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rqstore_invalidation_sessions_affected",
			Help:    "Number of sessions returned per mark_stale_topics call",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 500},
		},
	)

	OrphanDatalogQueriesSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rqstore_orphan_datalog_queries_swept_total",
			Help: "Total number of datalog queries retracted by the orphan sweep",
		},
	)

	SocketSendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rqstore_socket_send_errors_total",
			Help: "Total number of send_event failures by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsTotal,
		InstaqlQueriesTotal,
		DatalogQueriesTotal,
		SubscriptionsTotal,
		TransactionsTotal,
		TransactionDuration,
		InvalidationsTotal,
		InvalidationDuration,
		SessionsAffectedPerInvalidation,
		OrphanDatalogQueriesSweptTotal,
		SocketSendErrorsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
