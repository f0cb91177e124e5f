package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	libJWT "github.com/golang-jwt/jwt/v5"
)

const minHS512SecretLen = 64

// Symmetric is the HS512 implementation of JWT. Access and refresh tokens
// share the secret and are told apart by the typ claim.
type Symmetric struct {
	secret    []byte
	issuer    string
	audiences []string
	lifetimes map[Kind]time.Duration
	clock     clocker
	uuid      generator
	parser    *libJWT.Parser
}

// NewHS512 rejects secrets shorter than the 512 bit digest.
func NewHS512(cfg Config) (*Symmetric, error) {
	if len(cfg.Secret) < minHS512SecretLen {
		return nil, ErrSigningKeyTooShort
	}

	s := &Symmetric{
		secret:    cfg.Secret,
		issuer:    cfg.Issuer,
		audiences: cfg.Audiences,
		lifetimes: map[Kind]time.Duration{KindAccess: cfg.AccessTTL, KindRefresh: cfg.RefreshTTL},
		clock:     cfg.Clock,
		uuid:      cfg.UUID,
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	s.parser = libJWT.NewParser(
		libJWT.WithValidMethods([]string{libJWT.SigningMethodHS512.Alg()}),
		libJWT.WithIssuer(s.issuer),
		libJWT.WithAudience(s.audiences...),
		libJWT.WithIssuedAt(),
		libJWT.WithExpirationRequired(),
		libJWT.WithTimeFunc(s.clock.Now),
	)

	return s, nil
}

func (s *Symmetric) Issue(kind Kind, uid int64, username string) (string, error) {
	lifetime, ok := s.lifetimes[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidToken, kind)
	}

	issuedAt := libJWT.NewNumericDate(s.clock.Now())
	claims := Claims{
		RegisteredClaims: libJWT.RegisteredClaims{
			ID:        s.uuid.Generate(),
			Subject:   strconv.FormatInt(uid, 10),
			Issuer:    s.issuer,
			Audience:  s.audiences,
			IssuedAt:  issuedAt,
			NotBefore: issuedAt,
			ExpiresAt: libJWT.NewNumericDate(issuedAt.Add(lifetime)),
		},
		UserID:   uid,
		Username: username,
		Kind:     kind,
	}

	return libJWT.NewWithClaims(libJWT.SigningMethodHS512, claims).SignedString(s.secret)
}

func (s *Symmetric) Verify(tokenStr string, kind Kind) (Claims, error) {
	var claims Claims
	if _, err := s.parser.ParseWithClaims(tokenStr, &claims, s.key); err != nil {
		if errors.Is(err, libJWT.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}

	// A refresh token must never pass as an access token, and vice versa.
	if claims.Kind != kind {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

func (s *Symmetric) key(t *libJWT.Token) (any, error) {
	if _, ok := t.Method.(*libJWT.SigningMethodHMAC); !ok {
		return nil, ErrInvalidSigningMethod
	}
	return s.secret, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
