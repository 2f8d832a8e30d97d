package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the auth counters. A nil *Metrics records nothing.
type Metrics struct {
	operations  *prometheus.CounterVec
	validations *prometheus.CounterVec
	collisions  prometheus.Counter
}

// NewMetrics registers the auth counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partsbin",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Auth operations by name and outcome.",
		}, []string{"op", "outcome"}),
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partsbin",
			Subsystem: "auth",
			Name:      "validations_total",
			Help:      "Credential validations by the verifier that accepted them (none when rejected).",
		}, []string{"via"}),
		collisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "partsbin",
			Subsystem: "session",
			Name:      "token_collisions_total",
			Help:      "Session token unique-constraint collisions retried by Create.",
		}),
	}
}

func (m *Metrics) op(name, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) validated(via Via) {
	if m == nil {
		return
	}
	label := string(via)
	if label == "" {
		label = "none"
	}
	m.validations.WithLabelValues(label).Inc()
}

// SessionCollision is suitable for session.WithCollisionHook.
func (m *Metrics) SessionCollision(int) {
	if m == nil {
		return
	}
	m.collisions.Inc()
}
