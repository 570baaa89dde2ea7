package session

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
)

// Credentials is a resolved external identity: the opaque principal plus
// the bearer token that proves it to the remote services.
type Credentials struct {
	Principal string
	Token     string
	ExpiresAt time.Time
}

// CredentialSource resolves the external identity at login time.
type CredentialSource interface {
	Resolve(ctx context.Context) (Credentials, error)
}

// ParseToken extracts the principal and expiry from a bearer token. The
// signature is not verified locally; the services are authoritative and
// reject forged tokens with an unauthenticated error. An already expired
// token fails here so login never leaves the process.
func ParseToken(raw string, now time.Time) (Credentials, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credentials{}, apperrors.E(apperrors.KindUnauthenticated, "session token is required")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Credentials{}, apperrors.E(apperrors.KindUnauthenticated, "session token is malformed")
	}
	principal, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(principal) == "" {
		return Credentials{}, apperrors.E(apperrors.KindUnauthenticated, "session token carries no principal")
	}
	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	if !expiresAt.IsZero() && now.After(expiresAt) {
		return Credentials{}, apperrors.E(apperrors.KindUnauthenticated, "session token is expired")
	}
	return Credentials{
		Principal: strings.TrimSpace(principal),
		Token:     raw,
		ExpiresAt: expiresAt,
	}, nil
}

// StaticTokenSource resolves credentials from a fixed bearer token, the
// shape used when the token is issued out-of-band and supplied via
// configuration.
type StaticTokenSource struct {
	TokenValue string

	now func() time.Time
}

// NewStaticTokenSource builds a credential source around one token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{TokenValue: token, now: time.Now}
}

// Resolve parses the configured token.
func (s *StaticTokenSource) Resolve(context.Context) (Credentials, error) {
	if s == nil {
		return Credentials{}, apperrors.E(apperrors.KindUnauthenticated, "no credential source configured")
	}
	now := s.now
	if now == nil {
		now = time.Now
	}
	return ParseToken(s.TokenValue, now())
}
