package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)
	metrics.Observe(OutcomeSuccess, 250*time.Millisecond)
	metrics.Observe(OutcomeFailed, time.Second)
	metrics.Observe(OutcomeSuccess, 2*time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_attempts_total", map[string]string{"outcome": OutcomeSuccess}); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 2 {
		t.Fatalf("expected success=2, got %f", got)
	}

	mf := findMetricFamily(mfs, "checkout_processing_seconds")
	if mf == nil {
		t.Fatal("histogram not exported")
	}
	if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 3 {
		t.Fatalf("expected 3 samples, got %d", count)
	}
}

func TestReviewMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewReviewMetrics(reg)
	metrics.IncDecision("approve", "ok")
	metrics.IncDecision("reject", "")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "review_decisions_total", map[string]string{"decision": "reject", "outcome": "unknown"}); err != nil {
		t.Fatalf("fetch reject: %v", err)
	} else if got != 1 {
		t.Fatalf("expected reject=1, got %f", got)
	}
}

func TestOutboxMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewOutboxMetrics(reg)
	metrics.IncPublished("order.completed")
	metrics.IncFailed("order.completed")
	metrics.IncDeadLetter("order.failed")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_dead_letter_total", map[string]string{"event_type": "order.failed"}); err != nil {
		t.Fatalf("fetch dlq: %v", err)
	} else if got != 1 {
		t.Fatalf("expected dlq=1, got %f", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var checkout *CheckoutMetrics
	checkout.Observe(OutcomeSuccess, time.Second)
	NewCheckoutMetrics(nil).Observe(OutcomeFailed, time.Second)

	var review *ReviewMetrics
	review.IncDecision("approve", "ok")

	var outbox *OutboxMetrics
	outbox.IncPublished("x")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if value, ok := want[pair.GetName()]; ok && value == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
