package membership

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

// RepositoryManager exposes all stores over a single database
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Members() Members
	Tags() Tags
	Memberships() Memberships
	Credentials() Credentials
}

type mngr struct {
	db          *bun.DB
	members     Members
	tags        Tags
	memberships Memberships
	credentials Credentials
}

type managerOptions struct {
	clock    Clock
	hashCost int
	logger   Logger
	tracer   trace.Tracer
	metrics  *Metrics
	activity ActivitySink
}

// ManagerOption configures every store the manager builds
type ManagerOption func(*managerOptions)

func WithClock(clock Clock) ManagerOption {
	return func(o *managerOptions) {
		o.clock = clock
	}
}

func WithLogger(logger Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(o *managerOptions) {
		o.tracer = tracer
	}
}

func WithMetrics(metrics *Metrics) ManagerOption {
	return func(o *managerOptions) {
		o.metrics = metrics
	}
}

func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(o *managerOptions) {
		o.activity = sink
	}
}

func WithPasswordHashCost(cost int) ManagerOption {
	return func(o *managerOptions) {
		o.hashCost = cost
	}
}

func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	o := &managerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	members := NewMembersRepository(db, WithMembersClock(o.clock))
	tags := NewTagsRepository(db, WithTagsClock(o.clock))

	return &mngr{
		db:      db,
		members: members,
		tags:    tags,
		memberships: NewMembershipsRepository(db, tags,
			WithMembershipsClock(o.clock),
			WithMembershipsLogger(o.logger),
			WithMembershipsTracer(o.tracer),
			WithMembershipsMetrics(o.metrics),
			WithMembershipsActivitySink(o.activity),
		),
		credentials: NewCredentialStore(db, members,
			WithCredentialsClock(o.clock),
			WithHashCost(o.hashCost),
			WithCredentialsLogger(o.logger),
			WithCredentialsTracer(o.tracer),
			WithCredentialsMetrics(o.metrics),
			WithCredentialsActivitySink(o.activity),
		),
	}
}

func (m mngr) Validate() error {
	if m.members == nil {
		return errors.New("repository members should be initialized")
	}

	if m.tags == nil {
		return errors.New("repository tags should be initialized")
	}

	if m.memberships == nil {
		return errors.New("repository memberships should be initialized")
	}

	if m.credentials == nil {
		return errors.New("credential store should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Members() Members {
	return m.members
}

func (m mngr) Tags() Tags {
	return m.tags
}

func (m mngr) Memberships() Memberships {
	return m.memberships
}

func (m mngr) Credentials() Credentials {
	return m.credentials
}
