package membership

import (
	"time"

	"github.com/google/uuid"
)

// Token purposes used by the email flows
const (
	PurposeVerifyEmail = "verify-email"
	PurposeRecoverKey  = "recover-key"
)

// Max ages of the two purposes
const (
	VerifyEmailMaxAge = 900 * time.Second
	RecoverKeyMaxAge  = 3600 * time.Second
)

// VerifyEmailPayload proves the member asked to use Email
type VerifyEmailPayload struct {
	MemberID uuid.UUID `json:"member_id"`
	Email    string    `json:"email"`
}

// RecoverKeyPayload proves the member asked to reset their password
type RecoverKeyPayload struct {
	MemberID uuid.UUID `json:"member_id"`
}

// IssueEmailVerification signs a verify-email token for the new address
func (ts *TokenService) IssueEmailVerification(memberID uuid.UUID, email string) (string, error) {
	return ts.Issue(PurposeVerifyEmail, VerifyEmailPayload{
		MemberID: memberID,
		Email:    NormalizeEmail(email),
	})
}

// VerifyEmailVerification checks a verify-email token. There is no
// freshness floor: an email change has no prior fingerprint.
func (ts *TokenService) VerifyEmailVerification(token string) (*VerifyEmailPayload, error) {
	verified, err := ts.Verify(token, PurposeVerifyEmail, VerifyEmailMaxAge)
	if err != nil {
		return nil, err
	}

	payload := &VerifyEmailPayload{}
	if err := verified.Decode(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// IssueRecoverKey signs a recover-key token
func (ts *TokenService) IssueRecoverKey(memberID uuid.UUID) (string, error) {
	return ts.Issue(PurposeRecoverKey, RecoverKeyPayload{MemberID: memberID})
}

// PeekRecoverKey verifies signature and age only, so the caller can find
// the member whose password_changed_at is the freshness floor.
func (ts *TokenService) PeekRecoverKey(token string) (*RecoverKeyPayload, *VerifiedToken, error) {
	verified, err := ts.Verify(token, PurposeRecoverKey, RecoverKeyMaxAge)
	if err != nil {
		return nil, nil, err
	}

	payload := &RecoverKeyPayload{}
	if err := verified.Decode(payload); err != nil {
		return nil, nil, err
	}
	return payload, verified, nil
}

// VerifyRecoverKey checks a recover-key token against the member's
// password_changed_at
func (ts *TokenService) VerifyRecoverKey(token string, passwordChangedAt time.Time) (*RecoverKeyPayload, error) {
	verified, err := ts.VerifyFreshAgainst(token, PurposeRecoverKey, RecoverKeyMaxAge, passwordChangedAt)
	if err != nil {
		return nil, err
	}

	payload := &RecoverKeyPayload{}
	if err := verified.Decode(payload); err != nil {
		return nil, err
	}
	return payload, nil
}
