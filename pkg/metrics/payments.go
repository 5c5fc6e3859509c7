package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records reconciliation and webhook outcomes.
type PaymentMetrics struct {
	reconcileDuration *prometheus.HistogramVec
	reconcileOutcome  *prometheus.CounterVec
	webhookReceived   *prometheus.CounterVec
	webhookRejected   *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	reconcileDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_reconcile_duration_seconds",
		Help:    "Time spent waiting for a payment outcome in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	reconcileOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_outcome",
		Help: "Payment reconciliation results by outcome.",
	}, []string{"method", "outcome"})
	webhookReceived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_received",
		Help: "Gateway webhook events accepted for processing.",
	}, []string{"event_type"})
	webhookRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_rejected",
		Help: "Gateway webhook events rejected before processing.",
	}, []string{"reason"})
	reg.MustRegister(reconcileDuration, reconcileOutcome, webhookReceived, webhookRejected)
	return &PaymentMetrics{
		reconcileDuration: reconcileDuration,
		reconcileOutcome:  reconcileOutcome,
		webhookReceived:   webhookReceived,
		webhookRejected:   webhookRejected,
	}
}

// ObserveReconcile records the wait duration and outcome of one
// reconciliation attempt.
func (p *PaymentMetrics) ObserveReconcile(method, outcome string, duration time.Duration) {
	if p == nil || p.reconcileDuration == nil {
		return
	}
	p.reconcileDuration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
	p.reconcileOutcome.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// IncWebhookReceived counts an accepted webhook event.
func (p *PaymentMetrics) IncWebhookReceived(eventType string) {
	if p == nil || p.webhookReceived == nil {
		return
	}
	p.webhookReceived.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncWebhookRejected counts a rejected webhook event.
func (p *PaymentMetrics) IncWebhookRejected(reason string) {
	if p == nil || p.webhookRejected == nil {
		return
	}
	p.webhookRejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
