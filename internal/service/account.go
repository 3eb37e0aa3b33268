package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/model"
)

type RegisterInput struct {
	FullName   string
	Username   string
	Email      string
	Password   string
	Avatar     *model.MediaUpload
	CoverImage *model.MediaUpload
}

// Register creates an account with an uploaded avatar and optional cover image.
// Uploads are removed again when the user record cannot be created.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user *model.PublicUser, err error) {
	defer func() { observe("register", err) }()

	fullName := strings.TrimSpace(in.FullName)
	username := normalizeIdentifier(in.Username)
	email := normalizeIdentifier(in.Email)
	if fullName == "" || username == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, newError(KindMissingField, "all fields are required", nil)
	}
	if !validEmail(email) {
		return nil, newError(KindMissingField, "a valid email is required", nil)
	}
	if err := s.passwords.Validate(in.Password); err != nil {
		return nil, passwordError(err)
	}

	existing, err := s.users.GetUserByIdentifier(ctx, username, email)
	switch {
	case err == nil && existing != nil:
		return nil, newError(KindConflict, "user already exists with this username or email", nil)
	case err != nil && !errors.Is(err, db.ErrNotFound):
		return nil, newError(KindPersistenceFailure, "failed to check existing users", err)
	}

	if in.Avatar == nil || in.Avatar.Body == nil {
		return nil, newError(KindMissingField, "avatar file is missing", nil)
	}

	avatar, err := s.media.Store(ctx, *in.Avatar)
	if err != nil {
		log.Error().Err(err).Msg("failed uploading avatar")
		return nil, newError(KindUpstreamMediaFailure, "failed uploading avatar file", err)
	}
	log.Info().Str("media_id", avatar.ID).Msg("uploaded avatar")

	var cover *model.MediaRef
	if in.CoverImage != nil && in.CoverImage.Body != nil {
		cover, err = s.media.Store(ctx, *in.CoverImage)
		if err != nil {
			log.Error().Err(err).Msg("failed uploading cover image")
			s.discardMedia(ctx, avatar)
			return nil, newError(KindUpstreamMediaFailure, "failed uploading cover image file", err)
		}
		log.Info().Str("media_id", cover.ID).Msg("uploaded cover image")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		s.discardMedia(ctx, avatar, cover)
		return nil, passwordError(err)
	}

	created, err := s.users.CreateUser(ctx, &model.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		Avatar:       *avatar,
		CoverImage:   cover,
		PasswordHash: hash,
	})
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("user creation failed, deleting uploaded media")
		s.discardMedia(ctx, avatar, cover)
		if errors.Is(err, db.ErrConflict) {
			return nil, newError(KindConflict, "user already exists with this username or email", err)
		}
		return nil, newError(KindPersistenceFailure, "something went wrong while registering the user, uploaded images were deleted", err)
	}

	public, err := s.users.GetPublicUser(ctx, created.ID)
	if err != nil {
		return nil, newError(KindPersistenceFailure, "something went wrong while registering the user", err)
	}
	return public, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (user *model.PublicUser, err error) {
	defer func() { observe("current_user", err) }()

	user, err = s.users.GetPublicUser(ctx, userID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return user, nil
}

func (s *AuthService) UpdateAccount(ctx context.Context, userID, fullName, email string) (user *model.PublicUser, err error) {
	defer func() { observe("update_account", err) }()

	fullName = strings.TrimSpace(fullName)
	email = normalizeIdentifier(email)
	if fullName == "" || email == "" {
		return nil, newError(KindMissingField, "fullname and email are required", nil)
	}
	if !validEmail(email) {
		return nil, newError(KindMissingField, "a valid email is required", nil)
	}

	user, err = s.users.UpdateUserFields(ctx, userID, model.UserUpdate{FullName: &fullName, Email: &email})
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, newError(KindConflict, "email is already in use", err)
		}
		return nil, s.lookupError(err)
	}
	return user, nil
}

func (s *AuthService) UpdateAvatar(ctx context.Context, userID string, upload *model.MediaUpload) (user *model.PublicUser, err error) {
	defer func() { observe("update_avatar", err) }()

	if upload == nil || upload.Body == nil {
		return nil, newError(KindMissingField, "avatar file is missing", nil)
	}
	return s.replaceMedia(ctx, userID, *upload, func(ref *model.MediaRef) model.UserUpdate {
		return model.UserUpdate{Avatar: ref}
	}, func(u *model.User) *model.MediaRef {
		return &u.Avatar
	})
}

func (s *AuthService) UpdateCoverImage(ctx context.Context, userID string, upload *model.MediaUpload) (user *model.PublicUser, err error) {
	defer func() { observe("update_cover_image", err) }()

	if upload == nil || upload.Body == nil {
		return nil, newError(KindMissingField, "cover image file is missing", nil)
	}
	return s.replaceMedia(ctx, userID, *upload, func(ref *model.MediaRef) model.UserUpdate {
		return model.UserUpdate{CoverImage: ref}
	}, func(u *model.User) *model.MediaRef {
		return u.CoverImage
	})
}

// replaceMedia uploads the new file, points the user at it and then drops the previous file.
func (s *AuthService) replaceMedia(
	ctx context.Context,
	userID string,
	upload model.MediaUpload,
	update func(*model.MediaRef) model.UserUpdate,
	current func(*model.User) *model.MediaRef,
) (*model.PublicUser, error) {
	existing, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	var previous *model.MediaRef
	if ref := current(existing); ref != nil {
		copied := *ref
		previous = &copied
	}

	ref, err := s.media.Store(ctx, upload)
	if err != nil {
		return nil, newError(KindUpstreamMediaFailure, "error while uploading file", err)
	}

	user, err := s.users.UpdateUserFields(ctx, userID, update(ref))
	if err != nil {
		s.discardMedia(ctx, ref)
		return nil, s.lookupError(err)
	}

	if previous != nil && previous.ID != ref.ID {
		s.discardMedia(ctx, previous)
	}
	return user, nil
}

// discardMedia is best-effort cleanup; failures are logged and swallowed.
func (s *AuthService) discardMedia(ctx context.Context, refs ...*model.MediaRef) {
	for _, ref := range refs {
		if ref == nil || ref.ID == "" {
			continue
		}
		if err := s.media.Delete(ctx, ref.ID); err != nil {
			log.Warn().Err(err).Str("media_id", ref.ID).Msg("failed to delete media")
			continue
		}
		log.Info().Str("media_id", ref.ID).Msg("deleted media")
	}
}

func (s *AuthService) lookupError(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return newError(KindUserNotFound, "user does not exist", err)
	}
	return newError(KindPersistenceFailure, "failed to access user record", err)
}

// passwordError maps a rejected password to MissingField and anything else to PersistenceFailure.
func passwordError(err error) error {
	switch {
	case errors.Is(err, auth.ErrPasswordTooLong):
		return newError(KindMissingField, fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes), err)
	case errors.Is(err, auth.ErrEmptyPassword):
		return newError(KindMissingField, "password is required", err)
	}
	return newError(KindPersistenceFailure, "failed to secure password", err)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
