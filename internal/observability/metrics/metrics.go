package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
	ResultError   = "error"

	ConsumeApplied  = "applied"
	ConsumeExceeded = "limit_exceeded"
	ConsumeDenied   = "not_granted"
	ConsumeError    = "error"

	ActivationCreated = "created"
	ActivationChanged = "changed"
	ActivationFailed  = "failed"
)

var Module = fx.Module("metrics",
	fx.Provide(func() prometheus.Registerer { return prometheus.DefaultRegisterer }),
	fx.Provide(New),
)

// Metrics holds the entitlement decision counters. A nil *Metrics records
// nothing.
type Metrics struct {
	checks         *prometheus.CounterVec
	consumes       *prometheus.CounterVec
	activations    *prometheus.CounterVec
	providerEvents *prometheus.CounterVec
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entitlement_checks_total",
			Help: "Entitlement decisions by module, feature, kind and result.",
		}, []string{"module", "feature", "kind", "result"}),
		consumes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entitlement_consume_total",
			Help: "Consume attempts by module, feature and result.",
		}, []string{"module", "feature", "result"}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_activations_total",
			Help: "Subscription activations by module and outcome.",
		}, []string{"module", "outcome"}),
		providerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_provider_events_total",
			Help: "Billing provider events by module and status.",
		}, []string{"module", "status"}),
	}

	for _, c := range []prometheus.Collector{m.checks, m.consumes, m.activations, m.providerEvents} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if reg == nil {
		return nil
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

func (m *Metrics) RecordCheck(module, feature, kind, result string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(label(module), label(feature), label(kind), result).Inc()
}

func (m *Metrics) RecordConsume(module, feature, result string) {
	if m == nil {
		return
	}
	m.consumes.WithLabelValues(label(module), label(feature), result).Inc()
}

func (m *Metrics) RecordActivation(module, outcome string) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(label(module), outcome).Inc()
}

func (m *Metrics) RecordProviderEvent(module, status string) {
	if m == nil {
		return
	}
	m.providerEvents.WithLabelValues(label(module), label(status)).Inc()
}

func label(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
