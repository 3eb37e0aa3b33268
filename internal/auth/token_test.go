package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/model"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T) (*TokenManager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m, err := NewTokenManager(config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenSecret: "refresh-secret",
		RefreshTokenExpiry: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	return m.WithClock(clock.Now), clock
}

func testUser() *model.User {
	return &model.User{ID: "user-1", Email: "b@x.com", Username: "bob", FullName: "Bob"}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m, clock := newTestManager(t)

	token, exp, err := m.IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	if want := clock.now.Add(15 * time.Minute); !exp.Equal(want) {
		t.Fatalf("expiry = %v, want %v", exp, want)
	}

	clock.now = clock.now.Add(time.Minute)
	claims, err := m.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "b@x.com" || claims.Username != "bob" || claims.FullName != "Bob" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)

	token, _, err := m.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("IssueRefreshToken() error = %v", err)
	}
	claims, err := m.VerifyRefreshToken(token)
	if err != nil {
		t.Fatalf("VerifyRefreshToken() error = %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
}

func TestVerifyFailureKinds(t *testing.T) {
	m, clock := newTestManager(t)

	access, _, err := m.IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	refresh, _, err := m.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("IssueRefreshToken() error = %v", err)
	}

	other, err := NewTokenManager(config.AuthConfig{
		AccessTokenSecret:  "another-access",
		AccessTokenExpiry:  time.Minute,
		RefreshTokenSecret: "another-refresh",
		RefreshTokenExpiry: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	foreign, _, err := other.WithClock(clock.Now).IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	parts := strings.Split(access, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name   string
		verify func() error
		want   error
	}{
		{
			name:   "wrong-secret",
			verify: func() error { _, err := m.VerifyAccessToken(foreign); return err },
			want:   ErrTokenInvalidSignature,
		},
		{
			name:   "refresh-token-as-access",
			verify: func() error { _, err := m.VerifyAccessToken(refresh); return err },
			want:   ErrTokenInvalidSignature,
		},
		{
			name:   "access-token-as-refresh",
			verify: func() error { _, err := m.VerifyRefreshToken(access); return err },
			want:   ErrTokenInvalidSignature,
		},
		{
			name:   "tampered-signature",
			verify: func() error { _, err := m.VerifyAccessToken(tampered); return err },
			want:   ErrTokenInvalidSignature,
		},
		{
			name:   "alg-none",
			verify: func() error { _, err := m.VerifyAccessToken(noneToken); return err },
			want:   ErrTokenInvalidSignature,
		},
		{
			name:   "garbage",
			verify: func() error { _, err := m.VerifyAccessToken("not-a-jwt"); return err },
			want:   ErrTokenMalformed,
		},
		{
			name:   "empty",
			verify: func() error { _, err := m.VerifyRefreshToken(""); return err },
			want:   ErrTokenMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.verify()
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	m, clock := newTestManager(t)

	access, _, err := m.IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	refresh, _, err := m.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("IssueRefreshToken() error = %v", err)
	}

	clock.now = clock.now.Add(16 * time.Minute)
	if _, err := m.VerifyAccessToken(access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("access error = %v, want ErrTokenExpired", err)
	}
	if _, err := m.VerifyRefreshToken(refresh); err != nil {
		t.Fatalf("refresh token should still be valid: %v", err)
	}

	clock.now = clock.now.Add(24 * time.Hour)
	if _, err := m.VerifyRefreshToken(refresh); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("refresh error = %v, want ErrTokenExpired", err)
	}
}

func TestIssuedTokensDiffer(t *testing.T) {
	m, _ := newTestManager(t)

	first, err := m.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	second, err := m.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	if first.AccessToken == "" || first.RefreshToken == "" || first.AccessToken == first.RefreshToken {
		t.Fatalf("expected two distinct non-empty tokens: %+v", first)
	}
	if first.RefreshToken == second.RefreshToken || first.AccessToken == second.AccessToken {
		t.Fatal("tokens issued at the same instant must still differ")
	}
}

func TestNewTokenManagerValidation(t *testing.T) {
	valid := config.AuthConfig{
		AccessTokenSecret:  "a",
		AccessTokenExpiry:  time.Minute,
		RefreshTokenSecret: "r",
		RefreshTokenExpiry: time.Hour,
	}

	tests := []struct {
		name   string
		mutate func(*config.AuthConfig)
	}{
		{name: "missing-access-secret", mutate: func(c *config.AuthConfig) { c.AccessTokenSecret = "" }},
		{name: "missing-refresh-secret", mutate: func(c *config.AuthConfig) { c.RefreshTokenSecret = "" }},
		{name: "shared-secret", mutate: func(c *config.AuthConfig) { c.RefreshTokenSecret = c.AccessTokenSecret }},
		{name: "zero-access-expiry", mutate: func(c *config.AuthConfig) { c.AccessTokenExpiry = 0 }},
		{name: "negative-refresh-expiry", mutate: func(c *config.AuthConfig) { c.RefreshTokenExpiry = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewTokenManager(cfg); !errors.Is(err, ErrMisconfigured) {
				t.Fatalf("error = %v, want ErrMisconfigured", err)
			}
		})
	}
}
