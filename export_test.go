package membership

import (
	"context"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// SetBeforeRevokesHook installs a hook between the grant and revoke passes
// of a sync
func SetBeforeRevokesHook(m Memberships, hook func(ctx context.Context) error) {
	m.(*memberships).beforeRevokes = hook
}

func (m *Metrics) GuardChecks(result string) float64 {
	return testutil.ToFloat64(m.guardChecks.WithLabelValues(result))
}

func (m *Metrics) TokenOperations(purpose, result string) float64 {
	return testutil.ToFloat64(m.tokens.WithLabelValues(purpose, result))
}

func (m *Metrics) MailDispatch(result string) float64 {
	return testutil.ToFloat64(m.mail.WithLabelValues(result))
}

func (m *Metrics) Mutations(operation string) float64 {
	return testutil.ToFloat64(m.mutations.WithLabelValues(operation))
}

func (m *Metrics) InvariantViolations() float64 {
	return testutil.ToFloat64(m.invariantHits)
}
