// Package token issues and verifies the HS256 bearer and refresh tokens.
// Tokens are never persisted; everything needed to verify one is in its claims.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/middleware/requesttime"
)

// Class distinguishes access tokens from refresh tokens via the typ claim.
type Class string

const (
	ClassAccess  Class = "access"
	ClassRefresh Class = "refresh"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultClockSkew  = 60 * time.Second
)

// Verification failures. Each is returned wrapped in a CodeInvalidToken domain
// error; use errors.Is to tell them apart.
var (
	ErrMalformed       = errors.New("token malformed")
	ErrSignature       = errors.New("token signature invalid")
	ErrExpired         = errors.New("token expired")
	ErrNotYetValid     = errors.New("token not yet valid")
	ErrSubjectMismatch = errors.New("token subject mismatch")
	ErrWrongClass      = errors.New("token class mismatch")
)

// Claims is the wire payload. Refresh tokens carry no role.
type Claims struct {
	Role string `json:"role,omitempty"`
	Type Class  `json:"typ"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token with the values callers report back.
type Issued struct {
	Token     string
	Class     Class
	JTI       string
	ExpiresAt time.Time
}

type Issuer struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	skew       time.Duration
	clock      requesttime.Clock
}

type Option func(*Issuer)

func WithAccessTTL(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.accessTTL = d
		}
	}
}

func WithRefreshTTL(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.refreshTTL = d
		}
	}
}

// WithClockSkew sets the leeway applied to both exp and iat.
func WithClockSkew(d time.Duration) Option {
	return func(i *Issuer) {
		if d >= 0 {
			i.skew = d
		}
	}
}

func WithClock(c requesttime.Clock) Option {
	return func(i *Issuer) {
		if c != nil {
			i.clock = c
		}
	}
}

func New(signingKey []byte, opts ...Option) (*Issuer, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("token signing key is required")
	}
	i := &Issuer{
		signingKey: signingKey,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		skew:       DefaultClockSkew,
		clock:      requesttime.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueAccessToken signs an access token for subject carrying role.
func (i *Issuer) IssueAccessToken(ctx context.Context, subject, role string) (*Issued, error) {
	return i.issue(ctx, subject, role, ClassAccess, i.accessTTL)
}

// IssueRefreshToken signs a refresh token for subject. It has no role claim.
func (i *Issuer) IssueRefreshToken(ctx context.Context, subject string) (*Issued, error) {
	return i.issue(ctx, subject, "", ClassRefresh, i.refreshTTL)
}

func (i *Issuer) issue(ctx context.Context, subject, role string, class Class, ttl time.Duration) (*Issued, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "token subject cannot be empty")
	}
	now := i.clock(ctx)
	exp := now.Add(ttl)
	jti := uuid.NewString()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		Type: class,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}).SignedString(i.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return &Issued{Token: signed, Class: class, JTI: jti, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Verify checks signature, expiry (with skew on both sides), class and,
// when expectedSubject is non-empty, the subject.
func (i *Issuer) Verify(ctx context.Context, raw, expectedSubject string, class Class) (*Claims, error) {
	now := i.clock(ctx)
	claims := new(Claims)

	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(i.skew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, invalid(classify(err))
	}

	if claims.Type != class {
		return nil, invalid(ErrWrongClass)
	}
	if claims.Subject == "" {
		return nil, invalid(ErrMalformed)
	}
	if expectedSubject != "" && claims.Subject != expectedSubject {
		return nil, invalid(ErrSubjectMismatch)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	default:
		return ErrMalformed
	}
}

func invalid(cause error) error {
	return &dErrors.Error{Code: dErrors.CodeInvalidToken, Message: "invalid token", Err: cause}
}

// Reason names the verification failure for metrics and logs.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrSignature):
		return "signature"
	case errors.Is(err, ErrSubjectMismatch):
		return "subject_mismatch"
	case errors.Is(err, ErrWrongClass):
		return "wrong_class"
	case errors.Is(err, ErrNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "other"
	}
}
