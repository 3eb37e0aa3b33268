package db

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vidtube/backend/internal/model"
)

// MemoryUsers is an in-memory user store for tests and local development (STORE_DRIVER=memory).
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]model.User
	now   func() time.Time
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		users: make(map[string]model.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryUsers) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return nil, ErrConflict
		}
	}

	now := m.now()
	created := cloneUser(*user)
	created.ID = uuid.NewString()
	created.RefreshToken = nil
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.WatchHistory == nil {
		created.WatchHistory = []string{}
	}
	m.users[created.ID] = created

	out := cloneUser(created)
	return &out, nil
}

func (m *MemoryUsers) GetUserByIdentifier(_ context.Context, username, email string) (*model.User, error) {
	if username == "" && email == "" {
		return nil, ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *model.User
	for _, user := range m.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			if found == nil || user.CreatedAt.Before(found.CreatedAt) {
				u := cloneUser(user)
				found = &u
			}
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *MemoryUsers) GetUserByID(_ context.Context, userID string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneUser(user)
	return &out, nil
}

func (m *MemoryUsers) GetPublicUser(_ context.Context, userID string) (*model.PublicUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneUser(user)
	return out.Public(), nil
}

func (m *MemoryUsers) SetRefreshToken(_ context.Context, userID string, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	if token == nil {
		user.RefreshToken = nil
	} else {
		t := *token
		user.RefreshToken = &t
	}
	user.UpdatedAt = m.now()
	m.users[userID] = user
	return nil
}

func (m *MemoryUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = m.now()
	m.users[userID] = user
	return nil
}

func (m *MemoryUsers) UpdateUserFields(_ context.Context, userID string, update model.UserUpdate) (*model.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Email != nil {
		for id, other := range m.users {
			if id != userID && other.Email == *update.Email {
				return nil, ErrConflict
			}
		}
		user.Email = *update.Email
	}
	if update.FullName != nil {
		user.FullName = *update.FullName
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}
	if update.CoverImage != nil {
		cover := *update.CoverImage
		user.CoverImage = &cover
	}
	user.UpdatedAt = m.now()
	m.users[userID] = user

	out := cloneUser(user)
	return out.Public(), nil
}

func cloneUser(u model.User) model.User {
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		u.RefreshToken = &t
	}
	if u.CoverImage != nil {
		c := *u.CoverImage
		u.CoverImage = &c
	}
	if u.WatchHistory != nil {
		u.WatchHistory = append([]string(nil), u.WatchHistory...)
	}
	return u
}
