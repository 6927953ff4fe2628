package membership

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RequestEmailVerificationMessage struct {
	MemberID uuid.UUID `json:"member_id"`
	Email    string    `json:"email"`
}

func (e RequestEmailVerificationMessage) Type() string { return "member.email.verification_request" }

func (e RequestEmailVerificationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.MemberID, validation.By(requireMemberID)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

// RequestEmailVerificationHandler mails a verify-email link to the new
// address. The address is only stored once the link is followed.
type RequestEmailVerificationHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	composer *MailComposer
	postman  *Postman
	logger   Logger
}

var _ command.Commander[RequestEmailVerificationMessage] = (*RequestEmailVerificationHandler)(nil)

func NewRequestEmailVerificationHandler(repo RepositoryManager, tokens *TokenService, composer *MailComposer, postman *Postman) *RequestEmailVerificationHandler {
	return &RequestEmailVerificationHandler{
		repo:     repo,
		tokens:   tokens,
		composer: composer,
		postman:  postman,
		logger:   defLogger{},
	}
}

func (h *RequestEmailVerificationHandler) WithLogger(logger Logger) *RequestEmailVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RequestEmailVerificationHandler) Execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestEmailVerificationHandler) execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email verification request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)

	member, err := h.repo.Members().GetMember(ctx, event.MemberID)
	if err != nil {
		return err
	}

	owner, err := h.repo.Members().GetByEmail(ctx, email)
	switch {
	case err == nil && owner.ID != member.ID:
		return withMetadata(ErrEmailInUse, map[string]any{"email": email})
	case err != nil && !IsNotFound(err):
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email address")
	}

	token, err := h.tokens.IssueEmailVerification(member.ID, email)
	if err != nil {
		return err
	}

	msg, err := h.composer.VerifyEmail(email, member.FirstName, token)
	if err != nil {
		return err
	}

	dispatch(h.postman, h.logger, msg)

	return nil
}

type ConfirmEmailVerificationMessage struct {
	Token      string `json:"token"`
	OnResponse func(member *Member)
}

func (e ConfirmEmailVerificationMessage) Type() string { return "member.email.verification_confirm" }

// ConfirmEmailVerificationHandler stores the address carried by a valid
// verify-email token
type ConfirmEmailVerificationHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	activity ActivitySink
	logger   Logger
}

var _ command.Commander[ConfirmEmailVerificationMessage] = (*ConfirmEmailVerificationHandler)(nil)

func NewConfirmEmailVerificationHandler(repo RepositoryManager, tokens *TokenService) *ConfirmEmailVerificationHandler {
	return &ConfirmEmailVerificationHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *ConfirmEmailVerificationHandler) WithActivitySink(sink ActivitySink) *ConfirmEmailVerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ConfirmEmailVerificationHandler) WithLogger(logger Logger) *ConfirmEmailVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmEmailVerificationHandler) Execute(ctx context.Context, event ConfirmEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailVerificationHandler) execute(ctx context.Context, event ConfirmEmailVerificationMessage) error {
	payload, err := h.tokens.VerifyEmailVerification(event.Token)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var member *Member
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Members().UpdateEmailTx(ctx, tx, payload.MemberID, payload.Email); err != nil {
			return err
		}
		member, err = h.repo.Members().GetMemberTx(ctx, tx, payload.MemberID)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm email address")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		Actor:     ActorRef{ID: member.ID.String(), Type: "member"},
		MemberID:  member.ID.String(),
		Metadata: map[string]any{
			"email": payload.Email,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(member)
	}

	return nil
}

// dispatch queues msg on the postman and returns at once. Delivery
// failures are logged by the postman and never reach the caller.
func dispatch(postman *Postman, logger Logger, msg Message) {
	if postman == nil {
		normalizeLogger(logger).Warn("no postman configured, %q to %s not sent", msg.Subject, msg.To)
		return
	}
	postman.Post(msg)
}

func requireMemberID(value any) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return errors.New("member id is required")
	}
	return nil
}
