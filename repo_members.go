package membership

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is used to parse phone numbers without a country prefix
const DefaultPhoneRegion = "SE"

// Members stores identities and their credential fields
type Members interface {
	repository.Repository[*Member]

	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	GetMemberTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Member, error)
	Register(ctx context.Context, record *Member) (*Member, error)
	RegisterTx(ctx context.Context, tx bun.IDB, record *Member) (*Member, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	UpdateEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID, email string) error
	ListMembers(ctx context.Context) ([]*Member, error)
	DeleteMember(ctx context.Context, id uuid.UUID) error
}

type members struct {
	repository.Repository[*Member]
	db          *bun.DB
	clock       Clock
	phoneRegion string
}

var _ Members = (*members)(nil)

// MembersOption configures the members repository
type MembersOption func(*members)

// WithMembersClock sets the clock used for timestamps
func WithMembersClock(clock Clock) MembersOption {
	return func(m *members) {
		m.clock = clock
	}
}

// WithPhoneRegion sets the default region used to normalize phone numbers
func WithPhoneRegion(region string) MembersOption {
	return func(m *members) {
		if region != "" {
			m.phoneRegion = region
		}
	}
}

func NewMembersRepository(db *bun.DB, opts ...MembersOption) Members {
	repo := repository.NewRepository[*Member](db, repository.ModelHandlers[*Member]{
		NewRecord: func() *Member { return &Member{} },
		GetID: func(m *Member) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *Member, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	m := &members{
		Repository:  repo,
		db:          db,
		phoneRegion: DefaultPhoneRegion,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (a *members) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	return a.GetMemberTx(ctx, a.db, id)
}

func (a *members) GetMemberTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Member, error) {
	record := &Member{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, withMetadata(ErrNotFound, map[string]any{
				"member_id": id.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

func (a *members) GetByEmail(ctx context.Context, email string) (*Member, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *members) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Member, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, withMetadata(ErrNotFound, map[string]any{
			"email": email,
		})
	}

	record := &Member{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, withMetadata(ErrNotFound, map[string]any{
				"email": email,
			})
		}
		return nil, err
	}
	return record, nil
}

func (a *members) Register(ctx context.Context, record *Member) (*Member, error) {
	return a.RegisterTx(ctx, a.db, record)
}

// RegisterTx inserts a new member. The caller provides the password hash.
func (a *members) RegisterTx(ctx context.Context, tx bun.IDB, record *Member) (*Member, error) {
	a.prepareMemberDefaults(record)

	if record.Email != "" {
		if _, err := a.GetByEmailTx(ctx, tx, record.Email); err == nil {
			return nil, withMetadata(ErrEmailInUse, map[string]any{
				"email": record.Email,
			})
		} else if !IsNotFound(err) {
			return nil, err
		}
	}

	created, err := a.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, withMetadata(ErrEmailInUse, map[string]any{
				"email": record.Email,
			})
		}
		return nil, err
	}
	return created, nil
}

func (a *members) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return a.UpdateEmailTx(ctx, a.db, id, email)
}

func (a *members) UpdateEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID, email string) error {
	email = NormalizeEmail(email)
	now := a.clock.now()

	res, err := tx.NewUpdate().
		Model((*Member)(nil)).
		Set("email = ?", email).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return withMetadata(ErrEmailInUse, map[string]any{
				"email": email,
			})
		}
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return withMetadata(ErrNotFound, map[string]any{
			"member_id": id.String(),
		})
	}
	return nil
}

func (a *members) ListMembers(ctx context.Context) ([]*Member, error) {
	var records []*Member
	err := a.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.last_name ASC, ?TableAlias.first_name ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

// DeleteMember removes the member, memberships cascade
func (a *members) DeleteMember(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*Member)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return withMetadata(ErrNotFound, map[string]any{
			"member_id": id.String(),
		})
	}
	return nil
}

func (a *members) prepareMemberDefaults(record *Member) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = NormalizeEmail(record.Email)
	record.Phone = NormalizePhone(record.Phone, a.phoneRegion)
	record.FirstName = strings.TrimSpace(record.FirstName)
	record.LastName = strings.TrimSpace(record.LastName)

	now := a.clock.now()
	if record.PasswordChangedAt.IsZero() {
		record.PasswordChangedAt = now
	}
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}

// NormalizeEmail trims and lower cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone formats phone as E.164 when it parses, otherwise it
// returns the trimmed input unchanged.
func NormalizePhone(phone, region string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(phone, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return phone
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
