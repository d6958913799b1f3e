package metrics

import "github.com/prometheus/client_golang/prometheus"

// SettlementMetrics counts settlement pipeline activity.
type SettlementMetrics struct {
	ordersCreated  prometheus.Counter
	payouts        *prometheus.CounterVec
	pendingPayouts *prometheus.CounterVec
	reversals      *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
}

// NewSettlementMetrics registers settlement counters on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created from payment confirmations.",
	})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_total",
		Help: "Payouts dispatched, by rail.",
	}, []string{"rail"})
	pendingPayouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pending_payouts_total",
		Help: "Payout shares parked as pending, by reason.",
	}, []string{"reason"})
	reversals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_reversals_total",
		Help: "Payout reversals executed, by trigger.",
	}, []string{"trigger"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Payment webhook events handled, by type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(ordersCreated, payouts, pendingPayouts, reversals, webhookEvents)
	return &SettlementMetrics{
		ordersCreated:  ordersCreated,
		payouts:        payouts,
		pendingPayouts: pendingPayouts,
		reversals:      reversals,
		webhookEvents:  webhookEvents,
	}
}

// IncOrderCreated counts one settled order.
func (s *SettlementMetrics) IncOrderCreated() {
	if s == nil || s.ordersCreated == nil {
		return
	}
	s.ordersCreated.Inc()
}

// IncPayout counts one dispatched payout on the given rail.
func (s *SettlementMetrics) IncPayout(rail string) {
	if s == nil || s.payouts == nil {
		return
	}
	s.payouts.WithLabelValues(normalizeLabel(rail)).Inc()
}

// IncPendingPayout counts one payout share parked as pending.
func (s *SettlementMetrics) IncPendingPayout(reason string) {
	if s == nil || s.pendingPayouts == nil {
		return
	}
	s.pendingPayouts.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncReversal counts one executed payout reversal.
func (s *SettlementMetrics) IncReversal(trigger string) {
	if s == nil || s.reversals == nil {
		return
	}
	s.reversals.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// IncWebhookEvent counts one handled webhook event.
func (s *SettlementMetrics) IncWebhookEvent(eventType, outcome string) {
	if s == nil || s.webhookEvents == nil {
		return
	}
	s.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
