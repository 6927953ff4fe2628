package membership

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// MinPasswordLength is the caller side password policy
const MinPasswordLength = 8

type RegisterMemberMessage struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone_number"`
	Password  string   `json:"password"`
	Tags      []string `json:"tags"`
	// UseHashid derives the member id from the email address
	UseHashid  bool
	OnResponse func(member *Member)
}

func (e RegisterMemberMessage) Type() string { return "member.register" }

// Validate will validate the message
func (e RegisterMemberMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.LastName, validation.Length(0, 200)),
		validation.Field(&e.Email, validation.Length(0, 254), is.Email),
		validation.Field(&e.Password, validation.Length(MinPasswordLength, 100)),
	)
}

type RegisterMemberHandler struct {
	repo     RepositoryManager
	hashCost int
	activity ActivitySink
	logger   Logger
}

var _ command.Commander[RegisterMemberMessage] = (*RegisterMemberHandler)(nil)

func NewRegisterMemberHandler(repo RepositoryManager) *RegisterMemberHandler {
	return &RegisterMemberHandler{
		repo:     repo,
		hashCost: DefaultHashCost,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithHashCost overrides the bcrypt cost used for the initial password
func (h *RegisterMemberHandler) WithHashCost(cost int) *RegisterMemberHandler {
	if cost > 0 {
		h.hashCost = cost
	}
	return h
}

func (h *RegisterMemberHandler) WithActivitySink(sink ActivitySink) *RegisterMemberHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterMemberHandler) WithLogger(logger Logger) *RegisterMemberHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterMemberHandler) Execute(ctx context.Context, event RegisterMemberMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during member registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterMemberHandler) execute(ctx context.Context, event RegisterMemberMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid member registration")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	password := event.Password
	if password == "" {
		// placeholder credential, unusable until the member resets it
		generated, err := GenerateRandomPassword(DefaultRandomPasswordLength)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate password")
		}
		password = generated
	}

	hash, err := HashPasswordWithCost(password, h.hashCost)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	member := &Member{
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		Email:        event.Email,
		Phone:        event.Phone,
		PasswordHash: hash,
	}

	if event.UseHashid && event.Email != "" {
		if id, err := hashid.NewUUID(NormalizeEmail(event.Email)); err == nil {
			member.ID = id
		}
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Members().RegisterTx(ctx, tx, member)
		if err != nil {
			return err
		}
		member = created

		for _, tag := range event.Tags {
			if _, err := h.repo.Memberships().GrantTx(ctx, tx, member.ID, tag, time.Time{}); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "member registration transaction failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventMemberRegistered,
		Actor:     ActorRef{ID: member.ID.String(), Type: "member"},
		MemberID:  member.ID.String(),
		Metadata: map[string]any{
			"tags": event.Tags,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(member)
	}

	return nil
}
