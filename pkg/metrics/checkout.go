package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes recorded on checkout_attempts_total.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeTimeout  = "timeout"
	OutcomeCanceled = "canceled"
)

// CheckoutMetrics records payment submissions and how long processing took.
type CheckoutMetrics struct {
	attempts   *prometheus.CounterVec
	processing prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout submissions by outcome.",
	}, []string{"outcome"})
	processing := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_processing_seconds",
		Help:    "Time spent in the processing step of checkout.",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 10, 20, 30, 60},
	})
	reg.MustRegister(attempts, processing)
	return &CheckoutMetrics{
		attempts:   attempts,
		processing: processing,
	}
}

// Observe records one finished processing step.
func (c *CheckoutMetrics) Observe(outcome string, duration time.Duration) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
	c.processing.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
