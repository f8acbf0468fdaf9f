package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Moderation outcomes recorded per transition request.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// ModerationMetrics counts moderation transitions and exposes the pending backlog.
type ModerationMetrics struct {
	transitions *prometheus.CounterVec
	stale       *prometheus.GaugeVec
}

func NewModerationMetrics(reg prometheus.Registerer) *ModerationMetrics {
	if reg == nil {
		return &ModerationMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moderation_transitions_total",
		Help:      "Moderation transition requests by resource, target state and outcome.",
	}, []string{"resource", "target", "outcome"})
	stale := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "moderation_stale_pending",
		Help:      "Items waiting in pending longer than the configured threshold.",
	}, []string{"resource"})
	reg.MustRegister(transitions, stale)
	return &ModerationMetrics{transitions: transitions, stale: stale}
}

// RecordTransition increments the transition counter.
func (m *ModerationMetrics) RecordTransition(resource, target, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(resource), normalizeLabel(target), normalizeLabel(outcome)).Inc()
}

// SetStalePending publishes the stale backlog size for resource.
func (m *ModerationMetrics) SetStalePending(resource string, count int64) {
	if m == nil || m.stale == nil {
		return
	}
	m.stale.WithLabelValues(normalizeLabel(resource)).Set(float64(count))
}
