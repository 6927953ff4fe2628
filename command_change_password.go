package membership

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type ChangePasswordMessage struct {
	MemberID        uuid.UUID `json:"member_id"`
	CurrentPassword string    `json:"current_password"`
	NewPassword     string    `json:"new_password"`
	ConfirmPassword string    `json:"confirm_password"`
}

func (p ChangePasswordMessage) Type() string { return "member.password.change" }

func (p ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MemberID, validation.By(requireMemberID)),
		validation.Field(&p.CurrentPassword, validation.Required),
		validation.Field(&p.NewPassword, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(&p.ConfirmPassword, validation.Required, validation.By(ValidateStringEquals(p.NewPassword))),
	)
}

// ChangePasswordHandler lets a signed in member replace their password
type ChangePasswordHandler struct {
	repo RepositoryManager
}

var _ command.Commander[ChangePasswordMessage] = (*ChangePasswordHandler)(nil)

func NewChangePasswordHandler(repo RepositoryManager) *ChangePasswordHandler {
	return &ChangePasswordHandler{repo: repo}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password change")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	ok, err := h.repo.Credentials().VerifyPassword(ctx, event.MemberID, event.CurrentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMismatchedHashAndPassword
	}

	return h.repo.Credentials().SetPassword(ctx, event.MemberID, event.NewPassword)
}
