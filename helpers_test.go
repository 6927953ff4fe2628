package membership_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-membership"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type capturingSink struct {
	mu     sync.Mutex
	events []membership.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt membership.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Types() []membership.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]membership.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}

type testEnv struct {
	ctx     context.Context
	db      *bun.DB
	clock   *fakeClock
	metrics *membership.Metrics
	sink    *capturingSink
	repo    membership.RepositoryManager
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	db, err := membership.OpenDB(ctx, membership.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = membership.Migrate(ctx, db)
	require.NoError(t, err)

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		ctx:     context.Background(),
		db:      newTestDB(t),
		clock:   newFakeClock(),
		metrics: membership.NewMetrics(prometheus.NewRegistry()),
		sink:    &capturingSink{},
	}

	env.repo = membership.NewRepositoryManager(env.db,
		membership.WithClock(env.clock.Now),
		membership.WithMetrics(env.metrics),
		membership.WithActivitySink(env.sink),
		membership.WithLogger(membership.NewZapLogger(nil)),
		membership.WithPasswordHashCost(bcrypt.MinCost),
	)
	env.repo.MustValidate()

	return env
}

func (e *testEnv) tags(t *testing.T, names ...string) {
	t.Helper()
	_, err := e.repo.Tags().EnsureTags(e.ctx, names...)
	require.NoError(t, err)
}

func (e *testEnv) member(t *testing.T, email string) *membership.Member {
	t.Helper()
	hash, err := membership.HashPasswordWithCost("password123", bcrypt.MinCost)
	require.NoError(t, err)

	m, err := e.repo.Members().Register(e.ctx, &membership.Member{
		FirstName:    "Test",
		LastName:     email,
		Email:        email,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return m
}

func (e *testEnv) active(t *testing.T, memberID uuid.UUID) []string {
	t.Helper()
	set, err := e.repo.Memberships().ActiveCapabilities(e.ctx, memberID, e.clock.Now())
	require.NoError(t, err)
	return set.Names()
}

type testConfig struct {
	secret  string
	baseURL string
}

func (c testConfig) GetSecretKey() string { return c.secret }
func (c testConfig) GetBaseURL() string   { return c.baseURL }

func newTestConfig() testConfig {
	return testConfig{secret: "test-secret-key", baseURL: "https://portal.example.com"}
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []membership.Message
	err      error
}

func (r *recordingMailer) Send(_ context.Context, msg membership.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingMailer) Messages() []membership.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]membership.Message(nil), r.messages...)
}
