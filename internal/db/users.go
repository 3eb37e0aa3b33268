package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vidtube/backend/internal/model"
)

const publicUserColumns = `
	id::text, username, email, full_name, avatar_url, avatar_id,
	cover_image_url, cover_image_id, watch_history, created_at, updated_at
`

const userColumns = publicUserColumns + `, password_hash, refresh_token`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	var coverURL, coverID *string
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.Avatar.URL,
		&user.Avatar.ID,
		&coverURL,
		&coverID,
		&user.WatchHistory,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.PasswordHash,
		&user.RefreshToken,
	)
	if err != nil {
		return nil, err
	}
	user.CoverImage = mediaRef(coverURL, coverID)
	return &user, nil
}

func scanPublicUser(row pgx.Row) (*model.PublicUser, error) {
	var user model.PublicUser
	var coverURL, coverID *string
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.Avatar.URL,
		&user.Avatar.ID,
		&coverURL,
		&coverID,
		&user.WatchHistory,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.CoverImage = mediaRef(coverURL, coverID)
	if user.WatchHistory == nil {
		user.WatchHistory = []string{}
	}
	return &user, nil
}

func mediaRef(url, id *string) *model.MediaRef {
	if url == nil || *url == "" {
		return nil
	}
	ref := &model.MediaRef{URL: *url}
	if id != nil {
		ref.ID = *id
	}
	return ref
}

// CreateUser inserts user with a fresh id. Duplicate username or email yields ErrConflict.
func (db *Postgres) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	var coverURL, coverID *string
	if user.CoverImage != nil {
		coverURL, coverID = &user.CoverImage.URL, &user.CoverImage.ID
	}
	watchHistory := user.WatchHistory
	if watchHistory == nil {
		watchHistory = []string{}
	}

	query := `
		INSERT INTO users (
			id, username, email, full_name, avatar_url, avatar_id,
			cover_image_url, cover_image_id, watch_history, password_hash,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING ` + userColumns
	created, err := scanUser(db.Pool.QueryRow(ctx, query,
		uuid.NewString(),
		user.Username,
		user.Email,
		user.FullName,
		user.Avatar.URL,
		user.Avatar.ID,
		coverURL,
		coverID,
		watchHistory,
		user.PasswordHash,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

// GetUserByIdentifier matches on username or email, whichever is non-empty.
func (db *Postgres) GetUserByIdentifier(ctx context.Context, username, email string) (*model.User, error) {
	if username == "" && email == "" {
		return nil, ErrNotFound
	}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		ORDER BY created_at
		LIMIT 1
	`
	user, err := scanUser(db.Pool.QueryRow(ctx, query, username, email))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user by identifier: %w", err)
	}
	return user, nil
}

func (db *Postgres) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrNotFound
	}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(db.Pool.QueryRow(ctx, query, userID))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user by id: %w", err)
	}
	return user, nil
}

// GetPublicUser reads the projection without password hash and refresh token.
func (db *Postgres) GetPublicUser(ctx context.Context, userID string) (*model.PublicUser, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrNotFound
	}
	query := `
		SELECT ` + publicUserColumns + `
		FROM users
		WHERE id = $1
	`
	user, err := scanPublicUser(db.Pool.QueryRow(ctx, query, userID))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select public user: %w", err)
	}
	return user, nil
}

// SetRefreshToken overwrites the stored refresh token; nil clears it.
func (db *Postgres) SetRefreshToken(ctx context.Context, userID string, token *string) error {
	return db.execUserUpdate(ctx, `
		UPDATE users
		SET refresh_token = $2, updated_at = NOW()
		WHERE id = $1
	`, userID, token)
}

func (db *Postgres) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return db.execUserUpdate(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, userID, passwordHash)
}

// UpdateUserFields applies the non-nil fields of update and returns the public projection.
func (db *Postgres) UpdateUserFields(ctx context.Context, userID string, update model.UserUpdate) (*model.PublicUser, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrNotFound
	}

	var avatarURL, avatarID, coverURL, coverID *string
	if update.Avatar != nil {
		avatarURL, avatarID = &update.Avatar.URL, &update.Avatar.ID
	}
	if update.CoverImage != nil {
		coverURL, coverID = &update.CoverImage.URL, &update.CoverImage.ID
	}

	query := `
		UPDATE users
		SET full_name       = COALESCE($2, full_name),
		    email           = COALESCE($3, email),
		    avatar_url      = COALESCE($4, avatar_url),
		    avatar_id       = COALESCE($5, avatar_id),
		    cover_image_url = COALESCE($6, cover_image_url),
		    cover_image_id  = COALESCE($7, cover_image_id),
		    updated_at      = $8
		WHERE id = $1
		RETURNING ` + publicUserColumns
	user, err := scanPublicUser(db.Pool.QueryRow(ctx, query,
		userID,
		update.FullName,
		update.Email,
		avatarURL,
		avatarID,
		coverURL,
		coverID,
		time.Now().UTC(),
	))
	if err != nil {
		switch {
		case IsNoRows(err):
			return nil, ErrNotFound
		case isUniqueViolation(err):
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (db *Postgres) execUserUpdate(ctx context.Context, query, userID string, arg any) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrNotFound
	}
	tag, err := db.Pool.Exec(ctx, query, userID, arg)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
