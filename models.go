package membership

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Member is the identity and its credential record
type Member struct {
	bun.BaseModel     `bun:"table:members,alias:mbr"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email             string     `bun:"email,nullzero,unique" json:"email,omitempty"`
	FirstName         string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName          string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone             string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash      string     `bun:"password_hash,notnull" json:"-"`
	PasswordChangedAt time.Time  `bun:"password_changed_at,notnull" json:"password_changed_at"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// FullName renders the member the way the portal lists them
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// Tag is a named capability. Tags are flat: no hierarchy, no ordering.
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:tag"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// MemberTag is a time windowed membership of a member in a tag.
// Rows are append only: a row is created by a grant and only ever
// mutated once, when a revoke sets End.
type MemberTag struct {
	bun.BaseModel `bun:"table:member_tags,alias:mt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	MemberID      uuid.UUID  `bun:"member_id,notnull,type:uuid" json:"member_id"`
	TagID         uuid.UUID  `bun:"tag_id,notnull,type:uuid" json:"tag_id"`
	Tag           *Tag       `bun:"rel:belongs-to,join:tag_id=id" json:"tag,omitempty"`
	Start         time.Time  `bun:"start_at,notnull" json:"start"`
	End           *time.Time `bun:"end_at,nullzero" json:"end,omitempty"`
}

// IsActiveAt reports start <= t < end. A nil End is open ended.
func (m *MemberTag) IsActiveAt(t time.Time) bool {
	if m == nil {
		return false
	}
	if m.Start.After(t) {
		return false
	}
	return m.End == nil || t.Before(*m.End)
}

// IsEnded reports whether a revoke has closed the row
func (m *MemberTag) IsEnded() bool {
	return m != nil && m.End != nil
}

// TagName returns the related tag name when loaded
func (m *MemberTag) TagName() string {
	if m == nil || m.Tag == nil {
		return ""
	}
	return m.Tag.Name
}

// DefaultTags is the standard catalog the portal is bootstrapped with
func DefaultTags() []string {
	return []string{
		"Webmaster",
		"Aktiv",
		"Sopran 1",
		"Sopran 2",
		"Alt 1",
		"Alt 2",
		"Tenor 1",
		"Tenor 2",
		"Bas 1",
		"Bas 2",
		"Sånggrupp 1",
		"Sånggrupp 2",
		"Sånggrupp 3",
		"Ordförande",
		"Vice ordförande",
		"Sekreterare",
		"PRoletär",
		"Kassör",
		"Qlubbmästare",
		"Notfisqual",
	}
}
