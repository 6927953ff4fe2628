package membership_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-membership"
)

type countingReader struct {
	sets  map[uuid.UUID][]string
	calls int
	err   error
}

func (c *countingReader) ActiveCapabilities(_ context.Context, memberID uuid.UUID, _ time.Time) (membership.CapabilitySet, error) {
	c.calls++
	if c.err != nil {
		return membership.CapabilitySet{}, c.err
	}
	return membership.NewCapabilitySet(c.sets[memberID]...), nil
}

func TestRequirement(t *testing.T) {
	req := membership.RequireAny("Webmaster", "Ordförande")

	assert.Equal(t, "any(Webmaster, Ordförande)", req.String())
	assert.True(t, req.SatisfiedBy(membership.NewCapabilitySet("Ordförande", "Aktiv")))
	assert.False(t, req.SatisfiedBy(membership.NewCapabilitySet("Aktiv")))
	assert.False(t, membership.RequireAny().SatisfiedBy(membership.NewCapabilitySet("Aktiv")))
}

func TestAuthorizer_Authorize(t *testing.T) {
	board := uuid.New()
	singer := uuid.New()
	reader := &countingReader{sets: map[uuid.UUID][]string{
		board:  {"Aktiv", "Ordförande"},
		singer: {"Aktiv", "Tenor 1"},
	}}

	tests := []struct {
		name     string
		memberID uuid.UUID
		reqs     []membership.Requirement
		allowed  bool
	}{
		{
			name:     "single requirement",
			memberID: board,
			reqs:     []membership.Requirement{membership.RequireAny("Webmaster", "Ordförande")},
			allowed:  true,
		},
		{
			name:     "stacked requirements all hold",
			memberID: board,
			reqs: []membership.Requirement{
				membership.RequireAny("Aktiv"),
				membership.RequireAny("Webmaster", "Ordförande"),
			},
			allowed: true,
		},
		{
			name:     "one stacked requirement fails",
			memberID: singer,
			reqs: []membership.Requirement{
				membership.RequireAny("Aktiv"),
				membership.RequireAny("Webmaster", "Ordförande"),
			},
			allowed: false,
		},
		{
			name:     "no requirements",
			memberID: singer,
			allowed:  true,
		},
		{
			name:     "empty requirement",
			memberID: board,
			reqs:     []membership.Requirement{membership.RequireAny()},
			allowed:  false,
		},
		{
			name:     "unknown member",
			memberID: uuid.New(),
			reqs:     []membership.Requirement{membership.RequireAny("Aktiv")},
			allowed:  false,
		},
	}

	authz := membership.NewAuthorizer(reader)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authz.Authorize(context.Background(), tt.memberID, tt.reqs...)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, membership.TextCodeUnauthorized, membership.TextCode(err))
		})
	}
}

func TestAuthorizer_AnonymousIsDenied(t *testing.T) {
	reader := &countingReader{}
	metrics := membership.NewMetrics(prometheus.NewRegistry())
	authz := membership.NewAuthorizer(reader, membership.WithAuthorizerMetrics(metrics))

	err := authz.Authorize(context.Background(), uuid.Nil, membership.RequireAny("Aktiv"))
	assert.Equal(t, membership.TextCodeUnauthorized, membership.TextCode(err))

	ok, err := authz.HasAny(context.Background(), uuid.Nil, "Aktiv")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Zero(t, reader.calls)
	assert.Equal(t, float64(1), metrics.GuardChecks("denied"))
}

func TestAuthorizer_ReadsOncePerCheck(t *testing.T) {
	member := uuid.New()
	reader := &countingReader{sets: map[uuid.UUID][]string{member: {"Aktiv", "Webmaster"}}}
	authz := membership.NewAuthorizer(reader)

	err := authz.Authorize(context.Background(), member,
		membership.RequireAny("Aktiv"),
		membership.RequireAny("Webmaster"),
		membership.RequireAny("Webmaster", "Ordförande"),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.calls)
}

func TestAuthorizer_ReaderErrorIsReturned(t *testing.T) {
	boom := errors.New("db down")
	authz := membership.NewAuthorizer(&countingReader{err: boom})

	err := authz.Authorize(context.Background(), uuid.New(), membership.RequireAny("Aktiv"))
	assert.ErrorIs(t, err, boom)

	_, err = authz.HasAny(context.Background(), uuid.New(), "Aktiv")
	assert.ErrorIs(t, err, boom)
}

func TestAuthorizer_HasAny(t *testing.T) {
	member := uuid.New()
	reader := &countingReader{sets: map[uuid.UUID][]string{member: {"Bas 2"}}}
	authz := membership.NewAuthorizer(reader)

	ok, err := authz.HasAny(context.Background(), member, "Bas 1", "Bas 2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = authz.HasAny(context.Background(), member, "Tenor 1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = authz.HasAny(context.Background(), member)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuard_Composition(t *testing.T) {
	member := uuid.New()
	reader := &countingReader{sets: map[uuid.UUID][]string{member: {"Aktiv"}}}
	authz := membership.NewAuthorizer(reader)

	base := authz.Guard(membership.RequireAny("Aktiv"))
	admin := base.And(membership.RequireAny("Webmaster"))

	assert.Len(t, base.Requirements(), 1)
	assert.Len(t, admin.Requirements(), 2)

	assert.NoError(t, base.Check(context.Background(), member))
	assert.Equal(t, membership.TextCodeUnauthorized, membership.TextCode(admin.Check(context.Background(), member)))

	ctx := membership.WithMemberContext(context.Background(), member)
	assert.NoError(t, base.CheckContext(ctx))
	assert.Error(t, base.CheckContext(context.Background()))
}

func TestGuard_AgainstStore(t *testing.T) {
	env := newTestEnv(t)
	env.tags(t, "Webmaster", "Aktiv")
	m := env.member(t, "guarded@example.com")

	authz := membership.NewAuthorizer(env.repo.Memberships(),
		membership.WithAuthorizerClock(env.clock.Now),
		membership.WithAuthorizerMetrics(env.metrics),
	)
	guard := authz.Guard(membership.RequireAny("Webmaster"))

	assert.Error(t, guard.Check(env.ctx, m.ID))

	_, err := env.repo.Memberships().Grant(env.ctx, m.ID, "Webmaster", time.Time{})
	require.NoError(t, err)
	assert.NoError(t, guard.Check(env.ctx, m.ID))

	env.clock.Advance(time.Hour)
	_, err = env.repo.Memberships().Revoke(env.ctx, m.ID, "Webmaster", time.Time{})
	require.NoError(t, err)
	assert.Error(t, guard.Check(env.ctx, m.ID))

	assert.Equal(t, float64(1), env.metrics.GuardChecks("allowed"))
	assert.Equal(t, float64(2), env.metrics.GuardChecks("denied"))
}
