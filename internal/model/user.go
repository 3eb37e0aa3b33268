package model

import (
	"io"
	"time"
)

// MediaRef - hosted media location plus the id needed to delete it
type MediaRef struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// MediaUpload - file handed to the media store
type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// User - full account record as stored
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullname"`
	Avatar       MediaRef  `json:"avatar"`
	CoverImage   *MediaRef `json:"coverImage,omitempty"`
	WatchHistory []string  `json:"watchHistory"`
	PasswordHash string    `json:"-"`
	RefreshToken *string   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public drops the credential fields.
func (u *User) Public() *PublicUser {
	history := u.WatchHistory
	if history == nil {
		history = []string{}
	}
	return &PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Avatar:       u.Avatar,
		CoverImage:   u.CoverImage,
		WatchHistory: history,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// PublicUser - sanitized projection returned to clients
type PublicUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullname"`
	Avatar       MediaRef  `json:"avatar"`
	CoverImage   *MediaRef `json:"coverImage,omitempty"`
	WatchHistory []string  `json:"watchHistory"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserUpdate - partial profile update; nil fields are left untouched
type UserUpdate struct {
	FullName   *string
	Email      *string
	Avatar     *MediaRef
	CoverImage *MediaRef
}
