package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestParseTokenExtractsPrincipalAndExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	exp := now.Add(time.Hour)
	raw := signedToken(t, jwt.MapClaims{"sub": "p1", "exp": exp.Unix()})

	creds, err := ParseToken(raw, now)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if creds.Principal != "p1" {
		t.Fatalf("principal = %q, want p1", creds.Principal)
	}
	if !creds.ExpiresAt.Equal(time.Unix(exp.Unix(), 0)) {
		t.Fatalf("expires_at = %v, want %v", creds.ExpiresAt, exp)
	}
	if creds.Token != raw {
		t.Fatal("expected raw token preserved")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	raw := signedToken(t, jwt.MapClaims{"sub": "p1", "exp": now.Add(-time.Minute).Unix()})

	_, err := ParseToken(raw, now)
	if !apperrors.IsKind(err, apperrors.KindUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestParseTokenRejectsMissingPrincipal(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	_, err := ParseToken(raw, time.Now())
	if !apperrors.IsKind(err, apperrors.KindUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-token"} {
		if _, err := ParseToken(raw, time.Now()); !apperrors.IsKind(err, apperrors.KindUnauthenticated) {
			t.Fatalf("token %q: expected unauthenticated, got %v", raw, err)
		}
	}
}

func TestParseTokenWithoutExpiryIsAccepted(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"sub": "p1"})

	creds, err := ParseToken(raw, time.Now())
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if !creds.ExpiresAt.IsZero() {
		t.Fatalf("expires_at = %v, want zero", creds.ExpiresAt)
	}
}

func TestStaticTokenSourceResolves(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"sub": "p1"})
	source := NewStaticTokenSource(raw)

	creds, err := source.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds.Principal != "p1" {
		t.Fatalf("principal = %q, want p1", creds.Principal)
	}
}
