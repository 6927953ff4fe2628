package membership

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type ValidatePasswordResetMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *ValidatePasswordResetResponse)
}

func (p ValidatePasswordResetMessage) Type() string { return "member.password_reset.validate" }

type ValidatePasswordResetResponse struct {
	MemberID uuid.UUID
	IssuedAt time.Time
}

// ValidatePasswordResetHandler checks a reset link before the new
// password form is shown
type ValidatePasswordResetHandler struct {
	repo   RepositoryManager
	tokens *TokenService
}

var _ command.Commander[ValidatePasswordResetMessage] = (*ValidatePasswordResetHandler)(nil)

func NewValidatePasswordResetHandler(repo RepositoryManager, tokens *TokenService) *ValidatePasswordResetHandler {
	return &ValidatePasswordResetHandler{
		repo:   repo,
		tokens: tokens,
	}
}

func (h *ValidatePasswordResetHandler) Execute(ctx context.Context, event ValidatePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset validation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ValidatePasswordResetHandler) execute(ctx context.Context, event ValidatePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	payload, verified, err := h.tokens.PeekRecoverKey(event.Token)
	if err != nil {
		return err
	}

	changedAt, err := h.repo.Credentials().PasswordChangedAt(ctx, payload.MemberID)
	if err != nil {
		if IsNotFound(err) {
			// the member is gone, treat the link as broken
			return withMetadata(ErrTokenTampered, map[string]any{
				"purpose": PurposeRecoverKey,
			})
		}
		return err
	}

	if _, err := h.tokens.VerifyRecoverKey(event.Token, changedAt); err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&ValidatePasswordResetResponse{
			MemberID: payload.MemberID,
			IssuedAt: verified.IssuedAt,
		})
	}

	return nil
}
