package membership

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Memberships owns the time windowed member to tag rows. Every mutation
// runs in a transaction that first locks the member row.
type Memberships interface {
	CapabilityReader

	Grant(ctx context.Context, memberID uuid.UUID, tag string, at time.Time) (*MemberTag, error)
	GrantTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, tag string, at time.Time) (*MemberTag, error)
	Revoke(ctx context.Context, memberID uuid.UUID, tag string, at time.Time) (*MemberTag, error)
	RevokeTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, tag string, at time.Time) (*MemberTag, error)
	ActiveCapabilitiesTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, at time.Time) (CapabilitySet, error)
	SyncCapabilities(ctx context.Context, memberID uuid.UUID, desired []string, at time.Time) (*SyncResult, error)
	SyncCapabilitiesTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, desired []string, at time.Time) (*SyncResult, error)
	History(ctx context.Context, memberID uuid.UUID) ([]*MemberTag, error)
	Holders(ctx context.Context, tag string, at time.Time) ([]*Member, error)
}

// SyncResult lists what a sync changed, both sorted by name
type SyncResult struct {
	Granted []string `json:"granted"`
	Revoked []string `json:"revoked"`
}

// Changed reports whether the sync granted or revoked anything
func (r *SyncResult) Changed() bool {
	return r != nil && (len(r.Granted) > 0 || len(r.Revoked) > 0)
}

type memberships struct {
	db       *bun.DB
	tags     Tags
	clock    Clock
	logger   Logger
	tracer   trace.Tracer
	metrics  *Metrics
	activity ActivitySink

	// beforeRevokes runs between the grant and revoke passes of a sync
	beforeRevokes func(ctx context.Context) error
}

var _ Memberships = (*memberships)(nil)

// MembershipsOption configures the membership store
type MembershipsOption func(*memberships)

func WithMembershipsClock(clock Clock) MembershipsOption {
	return func(m *memberships) {
		m.clock = clock
	}
}

func WithMembershipsLogger(logger Logger) MembershipsOption {
	return func(m *memberships) {
		m.logger = normalizeLogger(logger)
	}
}

func WithMembershipsTracer(tracer trace.Tracer) MembershipsOption {
	return func(m *memberships) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

func WithMembershipsMetrics(metrics *Metrics) MembershipsOption {
	return func(m *memberships) {
		m.metrics = metrics
	}
}

func WithMembershipsActivitySink(sink ActivitySink) MembershipsOption {
	return func(m *memberships) {
		m.activity = normalizeActivitySink(sink)
	}
}

func NewMembershipsRepository(db *bun.DB, tags Tags, opts ...MembershipsOption) Memberships {
	m := &memberships{
		db:       db,
		tags:     tags,
		logger:   defLogger{},
		tracer:   otel.Tracer(tracerName),
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.tags == nil {
		m.tags = NewTagsRepository(db, WithTagsClock(m.clock))
	}
	return m
}

func (s *memberships) at(t time.Time) time.Time {
	if t.IsZero() {
		return s.clock.now()
	}
	return utc(t)
}

func (s *memberships) Grant(ctx context.Context, memberID uuid.UUID, tag string, at time.Time) (*MemberTag, error) {
	var out *MemberTag
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = s.GrantTx(ctx, tx, memberID, tag, at)
		return err
	})
	return out, err
}

// GrantTx opens a window for tag starting at at. It is a no-op when the
// pair is already active at at. An open window that starts after at is
// closed at its own start and replaced, so the pair is active at at once
// GrantTx returns. Ended rows are never reopened.
func (s *memberships) GrantTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, tag string, at time.Time) (*MemberTag, error) {
	at = s.at(at)

	ctx, span := s.tracer.Start(ctx, "memberships.Grant", trace.WithAttributes(
		attribute.String("member_id", memberID.String()),
		attribute.String("tag", tag),
	))
	defer span.End()

	if _, err := lockMember(ctx, tx, memberID.String()); err != nil {
		return nil, s.fail(span, err)
	}

	record, err := s.tags.GetByNameTx(ctx, tx, tag)
	if err != nil {
		return nil, s.fail(span, err)
	}

	rows, err := s.pairRowsTx(ctx, tx, memberID, record.ID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	var open []*MemberTag
	for _, row := range rows {
		if row.IsActiveAt(at) {
			return row, nil
		}
		if row.End == nil {
			open = append(open, row)
		}
	}

	if len(open) > 1 {
		return nil, s.fail(span, s.invariantViolation(memberID, tag, len(open)))
	}

	var pending *MemberTag
	if len(open) == 1 {
		pending = open[0]
	}

	for _, row := range rows {
		if row == pending {
			continue
		}
		if !at.After(row.Start) {
			return nil, s.fail(span, withMetadata(ErrMembershipOverlap, map[string]any{
				"member_id": memberID.String(),
				"tag":       tag,
				"at":        at,
				"start":     row.Start,
			}))
		}
	}

	if pending != nil {
		// zero width, keeps the row in history without ever being active
		end := pending.Start
		pending.End = &end
		if _, err := tx.NewUpdate().
			Model(pending).
			Column("end_at").
			WherePK().
			Exec(ctx); err != nil {
			return nil, s.fail(span, err)
		}
		s.logger.Debug("closed pending %q window for member %s starting %s", tag, memberID, end.Format(time.RFC3339Nano))
	}

	row := &MemberTag{
		ID:       uuid.New(),
		MemberID: memberID,
		TagID:    record.ID,
		Tag:      record,
		Start:    at,
	}

	if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, s.fail(span, s.invariantViolation(memberID, tag, 2))
		}
		return nil, s.fail(span, err)
	}

	s.metrics.mutation("grant")
	s.logger.Debug("granted %q to member %s at %s", tag, memberID, at.Format(time.RFC3339Nano))

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventTagGranted,
		Actor:      ActorRef{ID: memberID.String(), Type: "member"},
		MemberID:   memberID.String(),
		Tag:        tag,
		OccurredAt: at,
	})

	return row, nil
}

func (s *memberships) Revoke(ctx context.Context, memberID uuid.UUID, tag string, at time.Time) (*MemberTag, error) {
	var out *MemberTag
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = s.RevokeTx(ctx, tx, memberID, tag, at)
		return err
	})
	return out, err
}

// RevokeTx ends the open window active at at. Ended windows are never
// rewritten: a revoke dated inside one returns ErrNotActive.
func (s *memberships) RevokeTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, tag string, at time.Time) (*MemberTag, error) {
	at = s.at(at)

	ctx, span := s.tracer.Start(ctx, "memberships.Revoke", trace.WithAttributes(
		attribute.String("member_id", memberID.String()),
		attribute.String("tag", tag),
	))
	defer span.End()

	if _, err := lockMember(ctx, tx, memberID.String()); err != nil {
		return nil, s.fail(span, err)
	}

	record, err := s.tags.GetByNameTx(ctx, tx, tag)
	if err != nil {
		return nil, s.fail(span, err)
	}

	rows, err := s.pairRowsTx(ctx, tx, memberID, record.ID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	var active []*MemberTag
	for _, row := range rows {
		if row.End == nil && !at.Before(row.Start) {
			active = append(active, row)
		}
	}

	switch len(active) {
	case 0:
		return nil, s.fail(span, withMetadata(ErrNotActive, map[string]any{
			"member_id": memberID.String(),
			"tag":       tag,
			"at":        at,
		}))
	case 1:
	default:
		return nil, s.fail(span, s.invariantViolation(memberID, tag, len(active)))
	}

	row := active[0]
	row.End = &at
	row.Tag = record

	if _, err := tx.NewUpdate().
		Model(row).
		Column("end_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, s.fail(span, err)
	}

	s.metrics.mutation("revoke")
	s.logger.Debug("revoked %q from member %s at %s", tag, memberID, at.Format(time.RFC3339Nano))

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventTagRevoked,
		Actor:      ActorRef{ID: memberID.String(), Type: "member"},
		MemberID:   memberID.String(),
		Tag:        tag,
		OccurredAt: at,
	})

	return row, nil
}

// ActiveCapabilities is computed from the stored windows on every call.
// An unknown member holds nothing.
func (s *memberships) ActiveCapabilities(ctx context.Context, memberID uuid.UUID, at time.Time) (CapabilitySet, error) {
	return s.ActiveCapabilitiesTx(ctx, s.db, memberID, at)
}

func (s *memberships) ActiveCapabilitiesTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, at time.Time) (CapabilitySet, error) {
	at = s.at(at)

	ctx, span := s.tracer.Start(ctx, "memberships.ActiveCapabilities")
	defer span.End()

	rows, err := s.memberRowsTx(ctx, tx, memberID)
	if err != nil {
		return CapabilitySet{}, s.fail(span, err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.IsActiveAt(at) {
			names = append(names, row.TagName())
		}
	}

	return NewCapabilitySet(names...), nil
}

func (s *memberships) SyncCapabilities(ctx context.Context, memberID uuid.UUID, desired []string, at time.Time) (*SyncResult, error) {
	var out *SyncResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = s.SyncCapabilitiesTx(ctx, tx, memberID, desired, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SyncCapabilitiesTx grants what is missing and revokes what is extra.
// Callers must run it inside a transaction so a failure rolls back both
// passes.
func (s *memberships) SyncCapabilitiesTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID, desired []string, at time.Time) (*SyncResult, error) {
	at = s.at(at)

	ctx, span := s.tracer.Start(ctx, "memberships.SyncCapabilities")
	defer span.End()

	if _, err := lockMember(ctx, tx, memberID.String()); err != nil {
		return nil, s.fail(span, err)
	}

	current, err := s.ActiveCapabilitiesTx(ctx, tx, memberID, at)
	if err != nil {
		return nil, s.fail(span, err)
	}

	grant, revoke := current.Diff(NewCapabilitySet(desired...))
	result := &SyncResult{}

	for _, name := range grant {
		if _, err := s.GrantTx(ctx, tx, memberID, name, at); err != nil {
			return nil, s.fail(span, err)
		}
		result.Granted = append(result.Granted, name)
	}

	if s.beforeRevokes != nil {
		if err := s.beforeRevokes(ctx); err != nil {
			return nil, s.fail(span, err)
		}
	}

	for _, name := range revoke {
		if _, err := s.RevokeTx(ctx, tx, memberID, name, at); err != nil {
			return nil, s.fail(span, err)
		}
		result.Revoked = append(result.Revoked, name)
	}

	if result.Changed() {
		s.metrics.mutation("sync")
	}

	return result, nil
}

// History returns every window of the member, oldest first
func (s *memberships) History(ctx context.Context, memberID uuid.UUID) ([]*MemberTag, error) {
	ctx, span := s.tracer.Start(ctx, "memberships.History")
	defer span.End()

	rows, err := s.memberRowsTx(ctx, s.db, memberID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return rows, nil
}

// Holders returns the members holding tag at at, ordered by name
func (s *memberships) Holders(ctx context.Context, tag string, at time.Time) ([]*Member, error) {
	at = s.at(at)

	ctx, span := s.tracer.Start(ctx, "memberships.Holders", trace.WithAttributes(
		attribute.String("tag", tag),
	))
	defer span.End()

	record, err := s.tags.GetByNameTx(ctx, s.db, tag)
	if err != nil {
		return nil, s.fail(span, err)
	}

	var rows []*MemberTag
	if err := s.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.tag_id = ?", record.ID).
		Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, s.fail(span, err)
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if row.IsActiveAt(at) {
			ids = append(ids, row.MemberID)
		}
	}

	if len(ids) == 0 {
		return []*Member{}, nil
	}

	var out []*Member
	if err := s.db.NewSelect().
		Model(&out).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		OrderExpr("?TableAlias.last_name ASC, ?TableAlias.first_name ASC").
		Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, s.fail(span, err)
	}

	return out, nil
}

func (s *memberships) pairRowsTx(ctx context.Context, tx bun.IDB, memberID, tagID uuid.UUID) ([]*MemberTag, error) {
	var rows []*MemberTag
	err := tx.NewSelect().
		Model(&rows).
		Where("?TableAlias.member_id = ?", memberID).
		Where("?TableAlias.tag_id = ?", tagID).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	sortWindows(rows)
	return rows, nil
}

func (s *memberships) memberRowsTx(ctx context.Context, tx bun.IDB, memberID uuid.UUID) ([]*MemberTag, error) {
	var rows []*MemberTag
	err := tx.NewSelect().
		Model(&rows).
		Relation("Tag").
		Where("?TableAlias.member_id = ?", memberID).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	sortWindows(rows)
	return rows, nil
}

func (s *memberships) invariantViolation(memberID uuid.UUID, tag string, active int) error {
	s.metrics.invariantViolation()
	s.logger.Error("member %s holds %d active windows for tag %q", memberID, active, tag)
	return withMetadata(ErrInvariantViolation, map[string]any{
		"member_id": memberID.String(),
		"tag":       tag,
		"active":    active,
	})
}

func (s *memberships) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func sortWindows(rows []*MemberTag) {
	slices.SortStableFunc(rows, func(a, b *MemberTag) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if a.TagName() < b.TagName() {
			return -1
		}
		if a.TagName() > b.TagName() {
			return 1
		}
		return 0
	})
}
