package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/model"
)

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrMisconfigured         = errors.New("auth config invalid")
)

// AccessClaims - identity carried by an access token
type AccessClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
	jwt.RegisteredClaims
}

// RefreshClaims - refresh tokens only carry the subject
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access and refresh tokens.
// Each kind has its own secret.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	if cfg.AccessTokenSecret == "" {
		return nil, fmt.Errorf("%w: ACCESS_TOKEN_SECRET is required", ErrMisconfigured)
	}
	if cfg.RefreshTokenSecret == "" {
		return nil, fmt.Errorf("%w: REFRESH_TOKEN_SECRET is required", ErrMisconfigured)
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, fmt.Errorf("%w: access and refresh token secrets must differ", ErrMisconfigured)
	}
	if cfg.AccessTokenExpiry <= 0 {
		return nil, fmt.Errorf("%w: invalid ACCESS_TOKEN_EXPIRY", ErrMisconfigured)
	}
	if cfg.RefreshTokenExpiry <= 0 {
		return nil, fmt.Errorf("%w: invalid REFRESH_TOKEN_EXPIRY", ErrMisconfigured)
	}

	return &TokenManager{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenExpiry,
		refreshTTL:    cfg.RefreshTokenExpiry,
		now:           time.Now,
	}, nil
}

// WithClock replaces the time source used for issuing and verifying.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func (m *TokenManager) IssueAccessToken(user *model.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, errors.New("user id must be provided")
	}
	claims := &AccessClaims{
		Email:            user.Email,
		Username:         user.Username,
		FullName:         user.FullName,
		RegisteredClaims: m.registeredClaims(user.ID, m.accessTTL),
	}
	return m.sign(claims, m.accessSecret)
}

func (m *TokenManager) IssueRefreshToken(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id must be provided")
	}
	claims := &RefreshClaims{
		RegisteredClaims: m.registeredClaims(userID, m.refreshTTL),
	}
	return m.sign(claims, m.refreshSecret)
}

// IssuePair mints a fresh access and refresh token for user.
func (m *TokenManager) IssuePair(user *model.User) (model.TokenPair, error) {
	accessToken, accessExp, err := m.IssueAccessToken(user)
	if err != nil {
		return model.TokenPair{}, err
	}
	refreshToken, refreshExp, err := m.IssueRefreshToken(user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}
	return model.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *TokenManager) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.Verify(tokenStr, m.accessSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *TokenManager) VerifyRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.Verify(tokenStr, m.refreshSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Verify checks signature and expiry of tokenStr against secret and fills claims.
// Failures map onto ErrTokenMalformed, ErrTokenExpired or ErrTokenInvalidSignature.
func (m *TokenManager) Verify(tokenStr string, secret []byte, claims jwt.Claims) error {
	if tokenStr == "" {
		return ErrTokenMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return classifyTokenError(err)
	}
	if !token.Valid {
		return ErrTokenMalformed
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return ErrTokenMalformed
	}
	return nil
}

func (m *TokenManager) registeredClaims(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *TokenManager) sign(claims jwt.Claims, secret []byte) (string, time.Time, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", time.Time{}, errors.New("token expiry missing")
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp.Time, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
