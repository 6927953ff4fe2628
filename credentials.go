package membership

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/go-membership"

// Credentials owns password hashing, verification and the
// password_changed_at fingerprint reset tokens are checked against.
type Credentials interface {
	SetPassword(ctx context.Context, memberID uuid.UUID, plaintext string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, plaintext string) error
	VerifyPassword(ctx context.Context, memberID uuid.UUID, plaintext string) (bool, error)
	PasswordChangedAt(ctx context.Context, memberID uuid.UUID) (time.Time, error)
	PasswordChangedAtTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID) (time.Time, error)
	Authenticate(ctx context.Context, email, password string) (*Member, error)
}

type credentials struct {
	db       *bun.DB
	members  Members
	clock    Clock
	hashCost int
	logger   Logger
	tracer   trace.Tracer
	metrics  *Metrics
	activity ActivitySink
}

var _ Credentials = (*credentials)(nil)

// CredentialsOption configures the credential store
type CredentialsOption func(*credentials)

func WithCredentialsClock(clock Clock) CredentialsOption {
	return func(c *credentials) {
		c.clock = clock
	}
}

// WithHashCost overrides the bcrypt cost, tests use bcrypt.MinCost
func WithHashCost(cost int) CredentialsOption {
	return func(c *credentials) {
		if cost > 0 {
			c.hashCost = cost
		}
	}
}

func WithCredentialsLogger(logger Logger) CredentialsOption {
	return func(c *credentials) {
		c.logger = normalizeLogger(logger)
	}
}

func WithCredentialsTracer(tracer trace.Tracer) CredentialsOption {
	return func(c *credentials) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func WithCredentialsMetrics(metrics *Metrics) CredentialsOption {
	return func(c *credentials) {
		c.metrics = metrics
	}
}

func WithCredentialsActivitySink(sink ActivitySink) CredentialsOption {
	return func(c *credentials) {
		c.activity = normalizeActivitySink(sink)
	}
}

func NewCredentialStore(db *bun.DB, members Members, opts ...CredentialsOption) Credentials {
	c := &credentials{
		db:       db,
		members:  members,
		hashCost: DefaultHashCost,
		logger:   defLogger{},
		tracer:   otel.Tracer(tracerName),
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.members == nil {
		c.members = NewMembersRepository(db, WithMembersClock(c.clock))
	}
	return c
}

func (c *credentials) SetPassword(ctx context.Context, memberID uuid.UUID, plaintext string) error {
	return c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return c.SetPasswordTx(ctx, tx, memberID, plaintext)
	})
}

// SetPasswordTx stores a new hash and moves password_changed_at forward in
// the same statement. password_changed_at never goes backwards.
func (c *credentials) SetPasswordTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, plaintext string) error {
	ctx, span := c.tracer.Start(ctx, "credentials.SetPassword")
	defer span.End()

	if plaintext == "" {
		return ErrEmptyPassword
	}

	hash, err := HashPasswordWithCost(plaintext, c.hashCost)
	if err != nil {
		return err
	}

	member, err := lockMember(ctx, tx, memberID.String())
	if err != nil {
		return err
	}

	changedAt := c.clock.now()
	if member.PasswordChangedAt.After(changedAt) {
		changedAt = utc(member.PasswordChangedAt)
	}

	_, err = tx.NewUpdate().
		Model((*Member)(nil)).
		Set("password_hash = ?", hash).
		Set("password_changed_at = ?", changedAt).
		Set("updated_at = ?", changedAt).
		Where("id = ?", memberID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	c.metrics.mutation("set_password")
	c.logger.Debug("password changed for member %s", memberID)

	recordActivity(ctx, c.activity, c.logger, ActivityEvent{
		EventType:  ActivityEventPasswordChanged,
		Actor:      ActorRef{ID: memberID.String(), Type: "member"},
		MemberID:   memberID.String(),
		OccurredAt: changedAt,
	})

	return nil
}

// VerifyPassword reports whether plaintext matches. A wrong password is
// false with a nil error; only an unknown member is an error.
func (c *credentials) VerifyPassword(ctx context.Context, memberID uuid.UUID, plaintext string) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "credentials.VerifyPassword")
	defer span.End()

	member, err := c.members.GetMemberTx(ctx, c.db, memberID)
	if err != nil {
		return false, err
	}

	return checkPassword(plaintext, member.PasswordHash), nil
}

func (c *credentials) PasswordChangedAt(ctx context.Context, memberID uuid.UUID) (time.Time, error) {
	member, err := c.members.GetMemberTx(ctx, c.db, memberID)
	if err != nil {
		return time.Time{}, err
	}
	return utc(member.PasswordChangedAt), nil
}

// PasswordChangedAtTx reads the freshness floor under the member row lock,
// so a check followed by SetPasswordTx in the same tx cannot interleave
// with another writer.
func (c *credentials) PasswordChangedAtTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID) (time.Time, error) {
	member, err := lockMember(ctx, tx, memberID.String())
	if err != nil {
		return time.Time{}, err
	}
	return utc(member.PasswordChangedAt), nil
}

// Authenticate resolves a member by email and password. Unknown
// addresses and wrong passwords both return ErrMismatchedHashAndPassword.
func (c *credentials) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	ctx, span := c.tracer.Start(ctx, "credentials.Authenticate")
	defer span.End()

	member, err := c.members.GetByEmailTx(ctx, c.db, email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, err
	}

	if !checkPassword(password, member.PasswordHash) {
		return nil, ErrMismatchedHashAndPassword
	}

	return member, nil
}

func checkPassword(plaintext, hash string) bool {
	if plaintext == "" || hash == "" {
		return false
	}
	return ComparePasswordAndHash(plaintext, hash) == nil
}
