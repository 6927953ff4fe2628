package membership

import (
	"context"

	"github.com/google/uuid"
)

var memberCtxKey = &contextKey{"member"}

type contextKey struct {
	name string
}

// WithMemberContext sets the resolved member id in the given context
func WithMemberContext(ctx context.Context, memberID uuid.UUID) context.Context {
	return context.WithValue(ctx, memberCtxKey, memberID)
}

// MemberFromContext finds the member id in the context
func MemberFromContext(ctx context.Context) (uuid.UUID, bool) {
	raw, ok := ctx.Value(memberCtxKey).(uuid.UUID)
	if !ok || raw == uuid.Nil {
		return uuid.Nil, false
	}
	return raw, true
}
