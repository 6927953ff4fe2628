package membership_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-membership"
)

func TestMemberFromContext(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name   string
		ctx    context.Context
		wantID uuid.UUID
		wantOK bool
	}{
		{
			name:   "member present",
			ctx:    membership.WithMemberContext(context.Background(), id),
			wantID: id,
			wantOK: true,
		},
		{
			name: "empty context",
			ctx:  context.Background(),
		},
		{
			name: "nil id is anonymous",
			ctx:  membership.WithMemberContext(context.Background(), uuid.Nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := membership.MemberFromContext(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got)
		})
	}
}
