package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/model"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByIdentifier(ctx context.Context, username, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetPublicUser(ctx context.Context, userID string) (*model.PublicUser, error)
	SetRefreshToken(ctx context.Context, userID string, token *string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateUserFields(ctx context.Context, userID string, update model.UserUpdate) (*model.PublicUser, error)
}

type MediaStore interface {
	Store(ctx context.Context, upload model.MediaUpload) (*model.MediaRef, error)
	Delete(ctx context.Context, id string) error
}

type CookieConfig struct {
	Path          string
	Domain        string
	Secure        bool
	SameSite      http.SameSite
	AccessMaxAge  int
	RefreshMaxAge int
}

type AuthService struct {
	users     UserRepository
	media     MediaStore
	tokens    *auth.TokenManager
	passwords *auth.PasswordHasher
	cookieCfg CookieConfig
}

// Session - result of a successful login
type Session struct {
	User   *model.PublicUser
	Tokens model.TokenPair
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

func NewAuthService(users UserRepository, media MediaStore, tokens *auth.TokenManager, passwords *auth.PasswordHasher, secureCookies bool) *AuthService {
	return &AuthService{
		users:     users,
		media:     media,
		tokens:    tokens,
		passwords: passwords,
		cookieCfg: CookieConfig{
			Path:          "/",
			Secure:        secureCookies,
			SameSite:      http.SameSiteLaxMode,
			AccessMaxAge:  int(tokens.AccessTTL().Seconds()),
			RefreshMaxAge: int(tokens.RefreshTTL().Seconds()),
		},
	}
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

// Tokens exposes the verifier used by the request-authentication middleware.
func (s *AuthService) Tokens() *auth.TokenManager {
	return s.tokens
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (session *Session, err error) {
	defer func() { observe("login", err) }()

	username := normalizeIdentifier(in.Username)
	email := normalizeIdentifier(in.Email)
	if in.Password == "" || (username == "" && email == "") {
		return nil, newError(KindMissingField, "username or email, with password is required", nil)
	}

	user, err := s.users.GetUserByIdentifier(ctx, username, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, newError(KindNotFound, "user does not exist", err)
		}
		return nil, newError(KindPersistenceFailure, "failed to look up user", err)
	}

	if !s.passwords.Verify(in.Password, user.PasswordHash) {
		return nil, newError(KindInvalidCredentials, "invalid user credentials", nil)
	}

	tokens, err := s.issueAndStore(ctx, user)
	if err != nil {
		return nil, err
	}

	public, err := s.users.GetPublicUser(ctx, user.ID)
	if err != nil {
		return nil, newError(KindPersistenceFailure, "failed to load logged-in user", err)
	}

	log.Info().Str("user_id", user.ID).Msg("user logged in")
	return &Session{User: public, Tokens: tokens}, nil
}

// Refresh exchanges the stored refresh token for a new pair and rotates it.
// A token that verifies but no longer matches the stored value is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (tokens *model.TokenPair, err error) {
	defer func() { observe("refresh", err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, newError(KindMissingToken, "refresh token is required", nil)
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, newError(KindInvalidToken, "refresh token expired", err)
		}
		return nil, newError(KindInvalidToken, "invalid refresh token", err)
	}

	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, newError(KindUserNotFound, "invalid refresh token", err)
		}
		return nil, newError(KindPersistenceFailure, "failed to look up user", err)
	}

	if user.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(refreshToken)) != 1 {
		log.Warn().Str("user_id", user.ID).Msg("refresh token does not match stored token")
		return nil, newError(KindTokenMismatch, "refresh token is expired or used", nil)
	}

	pair, err := s.issueAndStore(ctx, user)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// Logout clears the stored refresh token of an already authenticated user.
func (s *AuthService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { observe("logout", err) }()

	if err := s.users.SetRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return newError(KindUserNotFound, "user does not exist", err)
		}
		return newError(KindPersistenceFailure, "failed to clear refresh token", err)
	}
	log.Info().Str("user_id", userID).Msg("user logged out")
	return nil
}

// ChangePassword replaces the password hash. Issued tokens stay valid.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { observe("change_password", err) }()

	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return newError(KindMissingField, "old and new password are required", nil)
	}
	if err := s.passwords.Validate(newPassword); err != nil {
		return passwordError(err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return newError(KindUserNotFound, "user does not exist", err)
		}
		return newError(KindPersistenceFailure, "failed to look up user", err)
	}

	if !s.passwords.Verify(oldPassword, user.PasswordHash) {
		return newError(KindInvalidCredentials, "old password is incorrect", nil)
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return passwordError(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return newError(KindPersistenceFailure, "failed to update password", err)
	}
	return nil
}

func (s *AuthService) issueAndStore(ctx context.Context, user *model.User) (model.TokenPair, error) {
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return model.TokenPair{}, newError(KindPersistenceFailure, "failed to generate access and refresh token", err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return model.TokenPair{}, newError(KindUserNotFound, "user does not exist", err)
		}
		return model.TokenPair{}, newError(KindPersistenceFailure, "failed to store refresh token", err)
	}
	return pair, nil
}

func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
