package membership

import (
	"crypto/sha256"
	"encoding/json"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const tokenKeyInfoPrefix = "go-membership/token/"

// tokenClaims is the signed body. iat_us keeps microsecond precision so a
// token and a password change in the same second still order correctly.
type tokenClaims struct {
	Purpose       string          `json:"pur"`
	IssuedAtMicro int64           `json:"iat_us"`
	Data          json.RawMessage `json:"dat,omitempty"`
	jwt.RegisteredClaims
}

// VerifiedToken is the outcome of a successful verification
type VerifiedToken struct {
	ID       string
	Purpose  string
	Payload  json.RawMessage
	IssuedAt time.Time
}

// Decode unmarshals the payload into out
func (v *VerifiedToken) Decode(out any) error {
	if err := json.Unmarshal(v.Payload, out); err != nil {
		return wrapAs(ErrTokenTampered, err, map[string]any{
			"purpose": v.Purpose,
		})
	}
	return nil
}

// TokenService issues and verifies stateless purpose scoped tokens.
// Nothing is stored: validity is the signature, the age and, for
// revocable purposes, a freshness floor supplied by the caller.
type TokenService struct {
	secret  []byte
	clock   Clock
	logger  Logger
	metrics *Metrics
}

// TokenOption configures the TokenService
type TokenOption func(*TokenService)

func WithTokenClock(clock Clock) TokenOption {
	return func(ts *TokenService) {
		ts.clock = clock
	}
}

func WithTokenLogger(logger Logger) TokenOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

func WithTokenMetrics(metrics *Metrics) TokenOption {
	return func(ts *TokenService) {
		ts.metrics = metrics
	}
}

// NewTokenService creates a TokenService signing with secret
func NewTokenService(secret []byte, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, goerrors.New("token secret must not be empty", goerrors.CategoryValidation).
			WithTextCode("TOKEN_SECRET_REQUIRED")
	}

	ts := &TokenService{
		secret: append([]byte(nil), secret...),
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts, nil
}

// NewTokenServiceFromConfig uses Config.GetSecretKey as the secret
func NewTokenServiceFromConfig(cfg Config, opts ...TokenOption) (*TokenService, error) {
	if cfg == nil {
		return nil, goerrors.New("config is required", goerrors.CategoryBadInput)
	}
	return NewTokenService([]byte(cfg.GetSecretKey()), opts...)
}

// Issue signs payload for purpose
func (ts *TokenService) Issue(purpose string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "token payload must be JSON serializable")
	}

	key, err := ts.purposeKey(purpose)
	if err != nil {
		return "", err
	}

	now := ts.clock.now()
	claims := &tokenClaims{
		Purpose:       purpose,
		IssuedAtMicro: now.UnixMicro(),
		Data:          data,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	ts.metrics.tokenResult(purpose, "issued")
	return signed, nil
}

// Verify checks signature and age. Any decoding or signature problem is
// ErrTokenTampered, an age above maxAge is ErrTokenExpired.
func (ts *TokenService) Verify(token, purpose string, maxAge time.Duration) (*VerifiedToken, error) {
	verified, err := ts.verify(token, purpose, maxAge)
	ts.observe(purpose, err)
	return verified, err
}

// VerifyFreshAgainst is Verify plus ErrTokenStale when the token was
// issued before floor
func (ts *TokenService) VerifyFreshAgainst(token, purpose string, maxAge time.Duration, floor time.Time) (*VerifiedToken, error) {
	verified, err := ts.verify(token, purpose, maxAge)
	if err == nil && verified.IssuedAt.Before(utc(floor)) {
		err = withMetadata(ErrTokenStale, map[string]any{
			"purpose":   purpose,
			"issued_at": verified.IssuedAt,
			"floor":     utc(floor),
		})
		verified = nil
	}
	ts.observe(purpose, err)
	return verified, err
}

func (ts *TokenService) verify(token, purpose string, maxAge time.Duration) (*VerifiedToken, error) {
	key, err := ts.purposeKey(purpose)
	if err != nil {
		return nil, err
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || parsed == nil || !parsed.Valid {
		return nil, wrapAs(ErrTokenTampered, err, map[string]any{
			"purpose": purpose,
		})
	}

	if claims.Purpose != purpose || claims.IssuedAtMicro == 0 {
		return nil, withMetadata(ErrTokenTampered, map[string]any{
			"purpose": purpose,
		})
	}

	issuedAt := time.UnixMicro(claims.IssuedAtMicro).UTC()
	if age := ts.clock.now().Sub(issuedAt); age > maxAge {
		return nil, withMetadata(ErrTokenExpired, map[string]any{
			"purpose":   purpose,
			"issued_at": issuedAt,
			"max_age":   maxAge.String(),
		})
	}

	return &VerifiedToken{
		ID:       claims.ID,
		Purpose:  claims.Purpose,
		Payload:  claims.Data,
		IssuedAt: issuedAt,
	}, nil
}

// purposeKey derives the HMAC key for purpose, so a signature made for
// one purpose never verifies under another
func (ts *TokenService) purposeKey(purpose string) ([]byte, error) {
	if purpose == "" {
		return nil, goerrors.New("token purpose is required", goerrors.CategoryBadInput)
	}

	key := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, ts.secret, nil, []byte(tokenKeyInfoPrefix+purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive token key")
	}
	return key, nil
}

func (ts *TokenService) observe(purpose string, err error) {
	switch {
	case err == nil:
		ts.metrics.tokenResult(purpose, "valid")
	case TextCode(err) == TextCodeTokenExpired:
		ts.metrics.tokenResult(purpose, "expired")
	case TextCode(err) == TextCodeTokenStale:
		ts.metrics.tokenResult(purpose, "stale")
	default:
		ts.metrics.tokenResult(purpose, "tampered")
		ts.logger.Debug("rejected %s token: %v", purpose, err)
	}
}
