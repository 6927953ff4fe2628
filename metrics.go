package membership

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the membership core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	guardChecks   *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	mail          *prometheus.CounterVec
	mutations     *prometheus.CounterVec
	invariantHits prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics registers the collectors against registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultMetricsOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		guardChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "guard_checks_total",
			Help:      "Guard evaluations by outcome.",
		}, []string{"result"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "token_operations_total",
			Help:      "Token issue and verify operations by purpose and outcome.",
		}, []string{"purpose", "result"}),
		mail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "mail_dispatch_total",
			Help:      "Outgoing mail hand offs by outcome.",
		}, []string{"result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "mutations_total",
			Help:      "Membership and credential mutations by operation.",
		}, []string{"operation"}),
		invariantHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "invariant_violations_total",
			Help:      "Detected single active membership violations.",
		}),
	}

	registerer.MustRegister(m.guardChecks, m.tokens, m.mail, m.mutations, m.invariantHits)
	return m
}

func (m *Metrics) guardResult(allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.guardChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) tokenResult(purpose, result string) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(purpose, result).Inc()
}

func (m *Metrics) mailResult(result string) {
	if m == nil {
		return
	}
	m.mail.WithLabelValues(result).Inc()
}

func (m *Metrics) mutation(operation string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation).Inc()
}

func (m *Metrics) invariantViolation() {
	if m == nil {
		return
	}
	m.invariantHits.Inc()
}
