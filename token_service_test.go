package membership_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-membership"
)

func newTokenService(t *testing.T, clock *fakeClock, opts ...membership.TokenOption) *membership.TokenService {
	t.Helper()
	opts = append([]membership.TokenOption{membership.WithTokenClock(clock.Now)}, opts...)
	ts, err := membership.NewTokenService([]byte("test-secret-key"), opts...)
	require.NoError(t, err)
	return ts
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	_, err := membership.NewTokenService(nil)
	assert.Error(t, err)

	_, err = membership.NewTokenServiceFromConfig(testConfig{})
	assert.Error(t, err)

	ts, err := membership.NewTokenServiceFromConfig(newTestConfig())
	require.NoError(t, err)
	assert.NotNil(t, ts)
}

func TestTokenService_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	ts := newTokenService(t, clock)

	payload := map[string]any{"member_id": "abc", "n": 3}
	token, err := ts.Issue("custom", payload)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	verified, err := ts.Verify(token, "custom", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "custom", verified.Purpose)
	assert.NotEmpty(t, verified.ID)
	assert.True(t, verified.IssuedAt.Equal(epoch))

	var out map[string]any
	require.NoError(t, verified.Decode(&out))
	assert.Equal(t, "abc", out["member_id"])
	assert.Equal(t, float64(3), out["n"])
}

func TestTokenService_TokensAreUnique(t *testing.T) {
	ts := newTokenService(t, newFakeClock())

	a, err := ts.Issue("custom", "same")
	require.NoError(t, err)
	b, err := ts.Issue("custom", "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenService_Expiry(t *testing.T) {
	clock := newFakeClock()
	ts := newTokenService(t, clock)
	memberID := uuid.New()

	// issued 1000s ago against a 900s max age
	clock.Set(epoch.Add(-1000 * time.Second))
	token, err := ts.IssueEmailVerification(memberID, "new@example.com")
	require.NoError(t, err)
	clock.Set(epoch)

	_, err = ts.VerifyEmailVerification(token)
	require.Error(t, err)
	assert.Equal(t, membership.TextCodeTokenExpired, membership.TextCode(err))
	assert.True(t, membership.IsTokenError(err))
}

func TestTokenService_ExpiryBoundary(t *testing.T) {
	clock := newFakeClock()
	ts := newTokenService(t, clock)

	token, err := ts.Issue("custom", "x")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = ts.Verify(token, "custom", time.Hour)
	assert.NoError(t, err)

	clock.Advance(time.Microsecond)
	_, err = ts.Verify(token, "custom", time.Hour)
	assert.Equal(t, membership.TextCodeTokenExpired, membership.TextCode(err))
}

func TestTokenService_TamperedAnywhere(t *testing.T) {
	ts := newTokenService(t, newFakeClock())

	token, err := ts.IssueRecoverKey(uuid.New())
	require.NoError(t, err)

	for i := range len(token) {
		replacement := "A"
		if token[i] == 'A' {
			replacement = "B"
		}
		tampered := token[:i] + replacement + token[i+1:]

		_, err := ts.Verify(tampered, membership.PurposeRecoverKey, membership.RecoverKeyMaxAge)
		require.Errorf(t, err, "tampered at %d", i)
		assert.Equalf(t, membership.TextCodeTokenTampered, membership.TextCode(err), "tampered at %d", i)
	}
}

func TestTokenService_Malformed(t *testing.T) {
	ts := newTokenService(t, newFakeClock())

	for _, token := range []string{"", "abc", "a.b.c", strings.Repeat(".", 5)} {
		_, err := ts.Verify(token, "custom", time.Hour)
		assert.Equal(t, membership.TextCodeTokenTampered, membership.TextCode(err))
	}
}

func TestTokenService_PurposeMismatch(t *testing.T) {
	ts := newTokenService(t, newFakeClock())
	memberID := uuid.New()

	token, err := ts.IssueEmailVerification(memberID, "new@example.com")
	require.NoError(t, err)

	_, _, err = ts.PeekRecoverKey(token)
	require.Error(t, err)
	assert.Equal(t, membership.TextCodeTokenTampered, membership.TextCode(err))
}

func TestTokenService_DifferentSecret(t *testing.T) {
	clock := newFakeClock()
	ts := newTokenService(t, clock)
	other, err := membership.NewTokenService([]byte("another-secret"), membership.WithTokenClock(clock.Now))
	require.NoError(t, err)

	token, err := ts.Issue("custom", "x")
	require.NoError(t, err)

	_, err = other.Verify(token, "custom", time.Hour)
	assert.Equal(t, membership.TextCodeTokenTampered, membership.TextCode(err))
}

func TestTokenService_Staleness(t *testing.T) {
	clock := newFakeClock()
	metrics := membership.NewMetrics(prometheus.NewRegistry())
	ts := newTokenService(t, clock, membership.WithTokenMetrics(metrics))
	memberID := uuid.New()

	token, err := ts.IssueRecoverKey(memberID)
	require.NoError(t, err)

	// a password change at the same instant does not invalidate the link
	payload, err := ts.VerifyRecoverKey(token, epoch)
	require.NoError(t, err)
	assert.Equal(t, memberID, payload.MemberID)

	clock.Advance(time.Second)
	_, err = ts.VerifyRecoverKey(token, epoch.Add(time.Microsecond))
	require.Error(t, err)
	assert.Equal(t, membership.TextCodeTokenStale, membership.TextCode(err))

	assert.Equal(t, float64(1), metrics.TokenOperations(membership.PurposeRecoverKey, "issued"))
	assert.Equal(t, float64(1), metrics.TokenOperations(membership.PurposeRecoverKey, "valid"))
	assert.Equal(t, float64(1), metrics.TokenOperations(membership.PurposeRecoverKey, "stale"))
}

func TestTokenService_PeekRecoverKey(t *testing.T) {
	ts := newTokenService(t, newFakeClock())
	memberID := uuid.New()

	token, err := ts.IssueRecoverKey(memberID)
	require.NoError(t, err)

	payload, verified, err := ts.PeekRecoverKey(token)
	require.NoError(t, err)
	assert.Equal(t, memberID, payload.MemberID)
	assert.Equal(t, membership.PurposeRecoverKey, verified.Purpose)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(verified.Payload, &raw))
	assert.Equal(t, memberID.String(), raw["member_id"])
}

func TestVerifiedToken_DecodeBadPayload(t *testing.T) {
	verified := &membership.VerifiedToken{Purpose: "custom", Payload: json.RawMessage(`"not an object"`)}

	var out membership.RecoverKeyPayload
	err := verified.Decode(&out)
	assert.Equal(t, membership.TextCodeTokenTampered, membership.TextCode(err))
}
