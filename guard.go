package membership

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Requirement is satisfied when the member holds any of its tags
type Requirement struct {
	anyOf []string
}

// RequireAny builds an OR requirement. A requirement without tags is never
// satisfied.
func RequireAny(tags ...string) Requirement {
	return Requirement{anyOf: slices.Clone(tags)}
}

// Tags returns the tags of the requirement
func (r Requirement) Tags() []string {
	return slices.Clone(r.anyOf)
}

// SatisfiedBy reports whether set intersects the requirement
func (r Requirement) SatisfiedBy(set CapabilitySet) bool {
	return set.HasAny(r.anyOf...)
}

func (r Requirement) String() string {
	return "any(" + strings.Join(r.anyOf, ", ") + ")"
}

// Authorizer answers capability questions against the membership store.
// It holds no state between checks.
type Authorizer struct {
	reader  CapabilityReader
	clock   Clock
	logger  Logger
	metrics *Metrics
}

// AuthorizerOption configures an Authorizer
type AuthorizerOption func(*Authorizer)

func WithAuthorizerClock(clock Clock) AuthorizerOption {
	return func(a *Authorizer) {
		a.clock = clock
	}
}

func WithAuthorizerLogger(logger Logger) AuthorizerOption {
	return func(a *Authorizer) {
		a.logger = normalizeLogger(logger)
	}
}

func WithAuthorizerMetrics(metrics *Metrics) AuthorizerOption {
	return func(a *Authorizer) {
		a.metrics = metrics
	}
}

func NewAuthorizer(reader CapabilityReader, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		reader: reader,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// HasAny reports whether the member currently holds any of tags
func (a *Authorizer) HasAny(ctx context.Context, memberID uuid.UUID, tags ...string) (bool, error) {
	return a.HasAnyAt(ctx, memberID, a.clock.now(), tags...)
}

// HasAnyAt reports whether the member holds any of tags at at
func (a *Authorizer) HasAnyAt(ctx context.Context, memberID uuid.UUID, at time.Time, tags ...string) (bool, error) {
	if memberID == uuid.Nil || len(tags) == 0 {
		return false, nil
	}

	set, err := a.reader.ActiveCapabilities(ctx, memberID, at)
	if err != nil {
		return false, err
	}
	return set.HasAny(tags...), nil
}

// Authorize checks every requirement against one fresh read of the
// member's capabilities. It returns ErrUnauthorized naming the first
// requirement that failed.
func (a *Authorizer) Authorize(ctx context.Context, memberID uuid.UUID, reqs ...Requirement) error {
	if memberID == uuid.Nil {
		a.metrics.guardResult(false)
		return withMetadata(ErrUnauthorized, map[string]any{
			"reason": "anonymous",
		})
	}

	if len(reqs) == 0 {
		a.metrics.guardResult(true)
		return nil
	}

	set, err := a.reader.ActiveCapabilities(ctx, memberID, a.clock.now())
	if err != nil {
		return err
	}

	for _, req := range reqs {
		if !req.SatisfiedBy(set) {
			a.metrics.guardResult(false)
			a.logger.Debug("member %s denied, requires %s", memberID, req)
			return withMetadata(ErrUnauthorized, map[string]any{
				"member_id":   memberID.String(),
				"requirement": req.Tags(),
			})
		}
	}

	a.metrics.guardResult(true)
	return nil
}

// Guard binds requirements to the authorizer
func (a *Authorizer) Guard(reqs ...Requirement) *Guard {
	return &Guard{authz: a, reqs: slices.Clone(reqs)}
}

// Guard is a stack of requirements that must all hold
type Guard struct {
	authz *Authorizer
	reqs  []Requirement
}

// And returns a new guard with reqs stacked on top of g
func (g *Guard) And(reqs ...Requirement) *Guard {
	out := &Guard{authz: g.authz}
	out.reqs = append(slices.Clone(g.reqs), reqs...)
	return out
}

// Requirements returns the stacked requirements
func (g *Guard) Requirements() []Requirement {
	return slices.Clone(g.reqs)
}

// Check evaluates the guard for memberID
func (g *Guard) Check(ctx context.Context, memberID uuid.UUID) error {
	return g.authz.Authorize(ctx, memberID, g.reqs...)
}

// CheckContext evaluates the guard for the member stored in ctx
func (g *Guard) CheckContext(ctx context.Context) error {
	memberID, _ := MemberFromContext(ctx)
	return g.Check(ctx, memberID)
}
