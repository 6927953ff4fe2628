package membership

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Member email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "member.password_reset.initialize" }

func (p InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

// InitializePasswordResetResponse does not reveal whether the address is
// registered. Sent is only meant for logs and tests.
type InitializePasswordResetResponse struct {
	Email string
	Sent  bool
}

// InitializePasswordResetHandler mails a recover-key link. Unknown
// addresses succeed without sending anything.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	composer *MailComposer
	postman  *Postman
	activity ActivitySink
	logger   Logger
}

var _ command.Commander[InitializePasswordResetMessage] = (*InitializePasswordResetHandler)(nil)

func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *TokenService, composer *MailComposer, postman *Postman) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		composer: composer,
		postman:  postman,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{Email: NormalizeEmail(event.Email)}

	member, err := h.repo.Members().GetByEmail(ctx, resp.Email)
	if err != nil {
		if !IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve member for password reset")
		}
		h.logger.Debug("password reset requested for unknown address")
		h.respond(event, resp)
		return nil
	}

	token, err := h.tokens.IssueRecoverKey(member.ID)
	if err != nil {
		return err
	}

	msg, err := h.composer.RecoverKey(member.Email, member.FirstName, token)
	if err != nil {
		return err
	}

	dispatch(h.postman, h.logger, msg)
	resp.Sent = true

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor:     ActorRef{ID: member.ID.String(), Type: "member"},
		MemberID:  member.ID.String(),
	})

	h.respond(event, resp)
	return nil
}

func (h *InitializePasswordResetHandler) respond(event InitializePasswordResetMessage, resp *InitializePasswordResetResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
