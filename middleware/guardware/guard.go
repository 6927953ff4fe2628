package guardware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/goliatone/go-membership"
)

// ErrMissingMember is returned when no member identity is attached to the request
var ErrMissingMember = errors.New("missing member identity")

// MemberResolver extracts the current member from the request
type MemberResolver func(c *fiber.Ctx) (uuid.UUID, bool)

type Config struct {
	// Guard is required
	Guard *membership.Guard
	// Filter skips the middleware when it returns true
	Filter func(c *fiber.Ctx) bool
	// ContextKey is the Locals key read by the default resolver
	ContextKey string
	// MemberResolver overrides how the member id is found
	MemberResolver MemberResolver
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
}

// New returns a middleware that lets the request through only when the
// resolved member satisfies every requirement of the guard. The member id
// is propagated to the user context for downstream handlers.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		memberID, ok := cfg.MemberResolver(c)
		if !ok || memberID == uuid.Nil {
			return cfg.ErrorHandler(c, ErrMissingMember)
		}

		ctx := membership.WithMemberContext(c.UserContext(), memberID)
		if err := cfg.Guard.Check(ctx, memberID); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.SetUserContext(ctx)
		return cfg.SuccessHandler(c)
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Guard == nil {
		panic("MEMBERSHIP: guard middleware configuration: Guard is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "member_id"
	}

	if cfg.MemberResolver == nil {
		cfg.MemberResolver = localsResolver(cfg.ContextKey)
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return cfg
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrMissingMember):
		return c.Status(fiber.StatusUnauthorized).SendString("Authentication required")
	case membership.TextCode(err) == membership.TextCodeUnauthorized:
		return c.Status(fiber.StatusForbidden).SendString("Forbidden")
	default:
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}
}

// localsResolver reads the member id from Locals, falling back to the
// user context
func localsResolver(key string) MemberResolver {
	return func(c *fiber.Ctx) (uuid.UUID, bool) {
		switch v := c.Locals(key).(type) {
		case uuid.UUID:
			return v, v != uuid.Nil
		case string:
			id, err := uuid.Parse(v)
			if err == nil {
				return id, id != uuid.Nil
			}
		}
		return membership.MemberFromContext(c.UserContext())
	}
}
