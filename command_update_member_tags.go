package membership

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UpdateMemberTagsMessage struct {
	MemberID uuid.UUID `json:"member_id"`
	// Tags is the complete desired set
	Tags       []string  `json:"tags"`
	At         time.Time `json:"at,omitempty"`
	OnResponse func(result *SyncResult)
}

func (e UpdateMemberTagsMessage) Type() string { return "member.tags.update" }

// UpdateMemberTagsHandler applies an admin's tag selection in one
// transaction
type UpdateMemberTagsHandler struct {
	repo RepositoryManager
}

var _ command.Commander[UpdateMemberTagsMessage] = (*UpdateMemberTagsHandler)(nil)

func NewUpdateMemberTagsHandler(repo RepositoryManager) *UpdateMemberTagsHandler {
	return &UpdateMemberTagsHandler{repo: repo}
}

func (h *UpdateMemberTagsHandler) Execute(ctx context.Context, event UpdateMemberTagsMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during member tags update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateMemberTagsHandler) execute(ctx context.Context, event UpdateMemberTagsMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var result *SyncResult
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		result, err = h.repo.Memberships().SyncCapabilitiesTx(ctx, tx, event.MemberID, event.Tags, event.At)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update member tags")
	}

	if event.OnResponse != nil {
		event.OnResponse(result)
	}
	return nil
}
