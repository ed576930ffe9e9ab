package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartSyncMetrics records reconciliation calls against the remote cart table.
type CartSyncMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCartSyncMetrics registers the cart sync metrics on the provided registerer.
// A nil registerer yields a recorder that drops every observation.
func NewCartSyncMetrics(reg prometheus.Registerer) *CartSyncMetrics {
	if reg == nil {
		return &CartSyncMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_total",
		Help: "Cart reconciliation calls by operation and outcome.",
	}, []string{"op", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of cart reconciliation calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(total, duration)
	return &CartSyncMetrics{total: total, duration: duration}
}

// Observe counts one call and records how long it took.
func (c *CartSyncMetrics) Observe(op, outcome string, took time.Duration) {
	if c == nil || c.total == nil {
		return
	}
	c.total.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(normalizeLabel(op)).Observe(took.Seconds())
}

// OrderMetrics counts order submissions by terminal state.
type OrderMetrics struct {
	submissions *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_submissions_total",
		Help: "Order submissions by terminal state.",
	}, []string{"state"})
	reg.MustRegister(submissions)
	return &OrderMetrics{submissions: submissions}
}

func (o *OrderMetrics) IncSubmission(state string) {
	if o == nil || o.submissions == nil {
		return
	}
	o.submissions.WithLabelValues(normalizeLabel(state)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
