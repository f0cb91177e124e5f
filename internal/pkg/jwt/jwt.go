package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSigningMethod is returned when the token is not HS512 signed.
	ErrInvalidSigningMethod = errors.New("invalid JWT signing method")

	// ErrSigningKeyTooShort is returned when the HS512 signing key is less than 64 bytes.
	ErrSigningKeyTooShort = errors.New("HS512 signing key must be at least 64 bytes (512 bits)")

	// ErrTokenExpired is returned when the token has expired.
	ErrTokenExpired = errors.New("JWT token has expired")

	// ErrInvalidToken is returned when the token is malformed, forged, or of the wrong kind.
	ErrInvalidToken = errors.New("invalid token")
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// JWT issues and verifies typed tokens.
type JWT interface {
	// Issue creates a signed token of the given kind for the user.
	Issue(kind Kind, uid int64, username string) (string, error)
	// Verify parses and validates a token and checks that it is of the given kind.
	Verify(tokenStr string, kind Kind) (Claims, error)
}

type clocker interface {
	Now() time.Time
}

type generator interface {
	Generate() string
}

type jwtContextKey struct{}

// Config defines the inputs for building a JWT implementation.
type Config struct {
	Secret     []byte
	Issuer     string
	Audiences  []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      clocker
	UUID       generator
}

// Claims wraps the registered claims with the login payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"user_id,string"`
	Username string `json:"username"`
	Kind     Kind   `json:"typ"`
}

// GetAuth returns the claims stored in the context, if any.
func GetAuth(ctx context.Context) *Claims {
	clm, ok := ctx.Value(jwtContextKey{}).(Claims)
	if !ok {
		return nil
	}

	return &clm
}

// SetAuth stores claims in the context.
func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, jwtContextKey{}, clm)
}
