package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type fakeMediaStore struct {
	mu        sync.Mutex
	seq       int
	stored    map[string]bool
	deleted   []string
	failStore bool
	failOnNth int
	failDel   bool
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{stored: make(map[string]bool)}
}

func (f *fakeMediaStore) Store(_ context.Context, upload model.MediaUpload) (*model.MediaRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if f.failStore || (f.failOnNth > 0 && f.seq == f.failOnNth) {
		return nil, errors.New("media host unavailable")
	}
	id := fmt.Sprintf("media-%d-%s", f.seq, upload.Filename)
	f.stored[id] = true
	return &model.MediaRef{URL: "https://media.example.com/" + id, ID: id}, nil
}

func (f *fakeMediaStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.failDel {
		return errors.New("media host unavailable")
	}
	delete(f.stored, id)
	return nil
}

type failingCreateRepo struct {
	*db.MemoryUsers
	err error
}

func (r *failingCreateRepo) CreateUser(context.Context, *model.User) (*model.User, error) {
	return nil, r.err
}

type testEnv struct {
	svc    *AuthService
	users  *db.MemoryUsers
	media  *fakeMediaStore
	tokens *auth.TokenManager
	clock  *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	users := db.NewMemoryUsers()
	return newTestEnvWith(t, users, users)
}

func newTestEnvWith(t *testing.T, repo UserRepository, users *db.MemoryUsers) *testEnv {
	t.Helper()
	now := time.Now()
	clock := &now
	tokens, err := auth.NewTokenManager(config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenSecret: "refresh-secret",
		RefreshTokenExpiry: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	tokens.WithClock(func() time.Time { return *clock })
	media := newFakeMediaStore()
	svc := NewAuthService(repo, media, tokens, auth.NewPasswordHasher(bcrypt.MinCost), false)
	return &testEnv{svc: svc, users: users, media: media, tokens: tokens, clock: clock}
}

func avatarUpload() *model.MediaUpload {
	return &model.MediaUpload{Filename: "avatar.png", ContentType: "image/png", Body: strings.NewReader("png")}
}

func (e *testEnv) registerBob(t *testing.T) *model.PublicUser {
	t.Helper()
	user, err := e.svc.Register(context.Background(), RegisterInput{
		FullName: "Bob",
		Username: "bob",
		Email:    "b@x.com",
		Password: "pw1",
		Avatar:   avatarUpload(),
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return user
}

func (e *testEnv) loginBob(t *testing.T) *Session {
	t.Helper()
	session, err := e.svc.Login(context.Background(), LoginInput{Username: "bob", Password: "pw1"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return session
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	user := env.registerBob(t)
	if user.Username != "bob" || user.Email != "b@x.com" || user.FullName != "Bob" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if !strings.HasPrefix(user.Avatar.URL, "https://media.example.com/") {
		t.Fatalf("avatar url = %q", user.Avatar.URL)
	}
	if user.CoverImage != nil {
		t.Fatalf("expected no cover image, got %+v", user.CoverImage)
	}

	raw, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{"password", "refreshToken"} {
		if strings.Contains(string(raw), field) {
			t.Fatalf("sanitized user leaks %q: %s", field, raw)
		}
	}

	stored, err := env.users.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if stored.PasswordHash == "pw1" || bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw1")) != nil {
		t.Fatal("stored password is not a bcrypt hash of the plaintext")
	}
}

func TestRegisterNormalizesIdentifiers(t *testing.T) {
	env := newTestEnv(t)
	user, err := env.svc.Register(context.Background(), RegisterInput{
		FullName: " Bob ",
		Username: "  BoB ",
		Email:    "B@X.com ",
		Password: "pw1",
		Avatar:   avatarUpload(),
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Username != "bob" || user.Email != "b@x.com" || user.FullName != "Bob" {
		t.Fatalf("identifiers not normalized: %+v", user)
	}
}

func TestRegisterFailures(t *testing.T) {
	env := newTestEnv(t)
	env.registerBob(t)

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{
			name: "duplicate-username",
			in:   RegisterInput{FullName: "Bob", Username: "BOB", Email: "other@x.com", Password: "pw", Avatar: avatarUpload()},
			want: ErrConflict,
		},
		{
			name: "duplicate-email",
			in:   RegisterInput{FullName: "Bob", Username: "bobby", Email: "b@x.com", Password: "pw", Avatar: avatarUpload()},
			want: ErrConflict,
		},
		{
			name: "blank-field",
			in:   RegisterInput{FullName: "  ", Username: "amy", Email: "a@x.com", Password: "pw", Avatar: avatarUpload()},
			want: ErrMissingField,
		},
		{
			name: "invalid-email",
			in:   RegisterInput{FullName: "Amy", Username: "amy", Email: "not-an-email", Password: "pw", Avatar: avatarUpload()},
			want: ErrMissingField,
		},
		{
			name: "missing-avatar",
			in:   RegisterInput{FullName: "Amy", Username: "amy", Email: "a@x.com", Password: "pw"},
			want: ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Register(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}

	_, err := env.svc.Register(context.Background(), tests[0].in)
	if StatusOf(err) != 409 {
		t.Fatalf("conflict status = %d, want 409", StatusOf(err))
	}
}

func TestRegisterMediaFailure(t *testing.T) {
	env := newTestEnv(t)
	env.media.failStore = true

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName: "Bob", Username: "bob", Email: "b@x.com", Password: "pw1", Avatar: avatarUpload(),
	})
	if !errors.Is(err, ErrUpstreamMediaFailure) {
		t.Fatalf("error = %v, want UpstreamMediaFailure", err)
	}
}

func TestRegisterCoverFailureDeletesAvatar(t *testing.T) {
	env := newTestEnv(t)
	env.media.failOnNth = 2

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName: "Bob", Username: "bob", Email: "b@x.com", Password: "pw1",
		Avatar:     avatarUpload(),
		CoverImage: &model.MediaUpload{Filename: "cover.png", Body: strings.NewReader("png")},
	})
	if !errors.Is(err, ErrUpstreamMediaFailure) {
		t.Fatalf("error = %v, want UpstreamMediaFailure", err)
	}
	if len(env.media.stored) != 0 {
		t.Fatalf("expected uploaded avatar to be deleted, still stored: %v", env.media.stored)
	}
}

func TestRegisterCreateFailureDeletesUploads(t *testing.T) {
	users := db.NewMemoryUsers()
	repo := &failingCreateRepo{MemoryUsers: users, err: errors.New("connection reset")}
	env := newTestEnvWith(t, repo, users)

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName: "Bob", Username: "bob", Email: "b@x.com", Password: "pw1",
		Avatar:     avatarUpload(),
		CoverImage: &model.MediaUpload{Filename: "cover.png", Body: strings.NewReader("png")},
	})
	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("error = %v, want PersistenceFailure", err)
	}
	if len(env.media.deleted) != 2 || len(env.media.stored) != 0 {
		t.Fatalf("expected both uploads deleted, deleted=%v stored=%v", env.media.deleted, env.media.stored)
	}
}

func TestRegisterCreateFailureSwallowsDeleteErrors(t *testing.T) {
	users := db.NewMemoryUsers()
	repo := &failingCreateRepo{MemoryUsers: users, err: db.ErrConflict}
	env := newTestEnvWith(t, repo, users)
	env.media.failDel = true

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName: "Bob", Username: "bob", Email: "b@x.com", Password: "pw1", Avatar: avatarUpload(),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want Conflict", err)
	}
	if len(env.media.deleted) != 1 {
		t.Fatalf("expected a delete attempt, got %v", env.media.deleted)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	registered := env.registerBob(t)

	for _, in := range []LoginInput{
		{Username: "bob", Password: "pw1"},
		{Email: "B@x.com", Password: "pw1"},
	} {
		session, err := env.svc.Login(context.Background(), in)
		if err != nil {
			t.Fatalf("Login(%+v) error = %v", in, err)
		}
		if session.User.ID != registered.ID {
			t.Fatalf("logged in as %q, want %q", session.User.ID, registered.ID)
		}
		if session.Tokens.AccessToken == "" || session.Tokens.RefreshToken == "" || session.Tokens.AccessToken == session.Tokens.RefreshToken {
			t.Fatalf("expected two distinct tokens: %+v", session.Tokens)
		}

		raw, _ := json.Marshal(session.User)
		if strings.Contains(string(raw), "password") || strings.Contains(string(raw), "refreshToken") {
			t.Fatalf("sanitized user leaks credentials: %s", raw)
		}

		stored, _ := env.users.GetUserByID(context.Background(), registered.ID)
		if stored.RefreshToken == nil || *stored.RefreshToken != session.Tokens.RefreshToken {
			t.Fatal("refresh token was not persisted on the user record")
		}
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.registerBob(t)

	tests := []struct {
		name   string
		in     LoginInput
		want   error
		status int
	}{
		{name: "wrong-password", in: LoginInput{Username: "bob", Password: "nope"}, want: ErrInvalidCredentials, status: 401},
		{name: "unknown-user", in: LoginInput{Username: "alice", Password: "pw1"}, want: ErrNotFound, status: 404},
		{name: "missing-password", in: LoginInput{Username: "bob"}, want: ErrMissingField, status: 400},
		{name: "missing-identifier", in: LoginInput{Password: "pw1"}, want: ErrMissingField, status: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Login(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if got := StatusOf(err); got != tt.status {
				t.Fatalf("status = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	env.registerBob(t)
	session := env.loginBob(t)

	rotated, err := env.svc.Refresh(context.Background(), session.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if rotated.RefreshToken == session.Tokens.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	if _, err := env.svc.Refresh(context.Background(), session.Tokens.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("reusing rotated token error = %v, want TokenMismatch", err)
	}

	again, err := env.svc.Refresh(context.Background(), rotated.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() with new token error = %v", err)
	}
	if again.AccessToken == "" || again.RefreshToken == "" {
		t.Fatalf("expected tokens, got %+v", again)
	}
}

func TestRefreshFailures(t *testing.T) {
	env := newTestEnv(t)
	env.registerBob(t)
	session := env.loginBob(t)

	orphan, _, err := env.tokens.IssueRefreshToken("00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("IssueRefreshToken() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "missing", token: "  ", want: ErrMissingToken},
		{name: "garbage", token: "abc.def.ghi", want: ErrInvalidToken},
		{name: "access-token", token: session.Tokens.AccessToken, want: ErrInvalidToken},
		{name: "unknown-subject", token: orphan, want: ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Refresh(context.Background(), tt.token)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRefreshExpired(t *testing.T) {
	env := newTestEnv(t)
	env.registerBob(t)
	session := env.loginBob(t)

	*env.clock = env.clock.Add(25 * time.Hour)

	_, err := env.svc.Refresh(context.Background(), session.Tokens.RefreshToken)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("error = %v, want InvalidToken", err)
	}
	if !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("expected cause to be ErrTokenExpired, got %v", err)
	}
}

func TestLogoutClearsRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerBob(t)
	session := env.loginBob(t)

	if err := env.svc.Logout(context.Background(), user.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	stored, _ := env.users.GetUserByID(context.Background(), user.ID)
	if stored.RefreshToken != nil {
		t.Fatal("expected stored refresh token to be cleared")
	}

	if _, err := env.svc.Refresh(context.Background(), session.Tokens.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("refresh after logout error = %v, want TokenMismatch", err)
	}

	if err := env.svc.Logout(context.Background(), user.ID); err != nil {
		t.Fatalf("second Logout() error = %v", err)
	}
	if err := env.svc.Logout(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Logout(missing) error = %v, want UserNotFound", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerBob(t)
	session := env.loginBob(t)

	if err := env.svc.ChangePassword(context.Background(), user.ID, "wrong", "pw2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want InvalidCredentials", err)
	}
	if err := env.svc.ChangePassword(context.Background(), user.ID, "pw1", ""); !errors.Is(err, ErrMissingField) {
		t.Fatalf("error = %v, want MissingField", err)
	}
	if err := env.svc.ChangePassword(context.Background(), user.ID, "pw1", "pw2"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, err := env.svc.Login(context.Background(), LoginInput{Username: "bob", Password: "pw1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := env.svc.Login(context.Background(), LoginInput{Username: "bob", Password: "pw2"}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	if _, err := env.tokens.VerifyAccessToken(session.Tokens.AccessToken); err != nil {
		t.Fatalf("existing access token should stay valid: %v", err)
	}
}

func TestRegisterRejectsLongPasswordBeforeUpload(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName: "Bob", Username: "bob", Email: "b@x.com",
		Password: strings.Repeat("p", auth.MaxPasswordBytes+8),
		Avatar:   avatarUpload(),
	})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("error = %v, want MissingField", err)
	}
	if got := StatusOf(err); got != 400 {
		t.Fatalf("status = %d, want 400", got)
	}
	if env.media.seq != 0 || len(env.media.deleted) != 0 {
		t.Fatalf("expected no media traffic, stored=%d deleted=%v", env.media.seq, env.media.deleted)
	}
}

func TestChangePasswordRejectsInvalidNewPassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerBob(t)

	tests := []struct {
		name        string
		newPassword string
	}{
		{name: "too-long", newPassword: strings.Repeat("p", auth.MaxPasswordBytes+8)},
		{name: "blank", newPassword: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.svc.ChangePassword(context.Background(), user.ID, "pw1", tt.newPassword)
			if !errors.Is(err, ErrMissingField) {
				t.Fatalf("error = %v, want MissingField", err)
			}
			if got := StatusOf(err); got != 400 {
				t.Fatalf("status = %d, want 400", got)
			}
		})
	}

	if _, err := env.svc.Login(context.Background(), LoginInput{Username: "bob", Password: "pw1"}); err != nil {
		t.Fatalf("original password should still work: %v", err)
	}
}
