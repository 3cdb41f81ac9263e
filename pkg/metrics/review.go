package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReviewMetrics counts admin review decisions.
type ReviewMetrics struct {
	decisions *prometheus.CounterVec
}

// NewReviewMetrics registers review_decisions_total on the provided registerer.
func NewReviewMetrics(reg prometheus.Registerer) *ReviewMetrics {
	if reg == nil {
		return &ReviewMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_decisions_total",
		Help: "Admin review decisions by decision and outcome.",
	}, []string{"decision", "outcome"})
	reg.MustRegister(decisions)
	return &ReviewMetrics{decisions: decisions}
}

// IncDecision increments the counter for a decision/outcome pair.
func (r *ReviewMetrics) IncDecision(decision, outcome string) {
	if r == nil || r.decisions == nil {
		return
	}
	r.decisions.WithLabelValues(normalizeLabel(decision), normalizeLabel(outcome)).Inc()
}
