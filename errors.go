package membership

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeNotActive          = "MEMBERSHIP_NOT_ACTIVE"
	TextCodeMembershipOverlap  = "MEMBERSHIP_OVERLAP"
	TextCodeInvariantViolation = "MEMBERSHIP_INVARIANT_VIOLATION"
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeTokenTampered      = "TOKEN_TAMPERED"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenStale         = "TOKEN_STALE"
	TextCodeMailDelivery       = "MAIL_DELIVERY_FAILED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeEmailInUse         = "EMAIL_IN_USE"
	TextCodeTagInUse           = "TAG_IN_USE"
)

// ErrNotFound is returned for unknown members or tags
var ErrNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNotActive is returned when revoking a tag the member does not currently hold
var ErrNotActive = goerrors.New("membership is not active", goerrors.CategoryConflict).
	WithTextCode(TextCodeNotActive).
	WithCode(goerrors.CodeConflict)

// ErrMembershipOverlap is returned when a back-dated grant would overlap recorded history
var ErrMembershipOverlap = goerrors.New("membership window overlaps existing history", goerrors.CategoryConflict).
	WithTextCode(TextCodeMembershipOverlap).
	WithCode(goerrors.CodeConflict)

// ErrInvariantViolation signals more than one active membership row for a
// member/tag pair. This is data corruption and is never repaired silently.
var ErrInvariantViolation = goerrors.New("membership invariant violated", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvariantViolation).
	WithCode(goerrors.CodeInternal)

// ErrUnauthorized is returned by guards when a requirement is not met
var ErrUnauthorized = goerrors.New("not authorized", goerrors.CategoryAuthz).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeForbidden)

// ErrTokenTampered covers malformed tokens and signature mismatches
var ErrTokenTampered = goerrors.New("token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenTampered).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned when a token is older than its max age
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenStale is returned when a token predates the freshness floor,
// e.g. a reset link issued before the last password change
var ErrTokenStale = goerrors.New("token is no longer valid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenStale).
	WithCode(goerrors.CodeBadRequest)

// ErrMailDeliveryFailed is logged when the mail collaborator fails
var ErrMailDeliveryFailed = goerrors.New("mail delivery failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeMailDelivery)

// ErrEmptyPassword is returned when hashing an empty password
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when credentials do not match
var ErrMismatchedHashAndPassword = goerrors.New("email or password is incorrect", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailInUse is returned when an address already belongs to another member
var ErrEmailInUse = goerrors.New("email address is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(goerrors.CodeConflict)

// ErrTagInUse is returned when deleting a tag that memberships still reference
var ErrTagInUse = goerrors.New("tag is referenced by memberships", goerrors.CategoryConflict).
	WithTextCode(TextCodeTagInUse).
	WithCode(goerrors.CodeConflict)

// IsTokenError reports whether err is one of the recoverable token
// failures. Callers should ask the user to restart the flow.
func IsTokenError(err error) bool {
	switch TextCode(err) {
	case TextCodeTokenTampered, TextCodeTokenExpired, TextCodeTokenStale:
		return true
	}
	return false
}

// TextCode returns the text code of the first rich error in the chain
func TextCode(err error) string {
	var richErr *goerrors.Error
	if err != nil && errors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// IsNotFound reports whether err is ErrNotFound
func IsNotFound(err error) bool {
	return TextCode(err) == TextCodeNotFound || goerrors.IsNotFound(err)
}

// withMetadata returns a copy of base that still matches base with errors.Is
func withMetadata(base *goerrors.Error, metadata map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(metadata)
}

// wrapAs returns a copy of base that carries cause in its metadata
func wrapAs(base *goerrors.Error, cause error, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if cause != nil {
		metadata["cause"] = cause.Error()
	}
	return withMetadata(base, metadata)
}

// MailDeliveryError wraps a mailer failure for logging
func MailDeliveryError(cause error, msg Message) error {
	return wrapAs(ErrMailDeliveryFailed, cause, map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
	})
}
