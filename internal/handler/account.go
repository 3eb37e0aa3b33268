package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vidtube/backend/internal/model"
	"github.com/vidtube/backend/internal/service"
)

type AccountHandler struct {
	svc *service.AuthService
}

func NewAccountHandler(svc *service.AuthService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// Register godoc
// @Summary Register a new user
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Param fullname formData string true "Full name"
// @Param username formData string true "Username"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param avatar formData file true "Avatar image"
// @Param coverImage formData file false "Cover image"
// @Success 201 {object} model.APIResponse{data=model.PublicUser}
// @Failure 400 {object} model.APIError
// @Failure 409 {object} model.APIError
// @Failure 413 {object} model.APIError
// @Failure 500 {object} model.APIError
// @Router /api/v1/users/register [post]
func (h *AccountHandler) Register(c *gin.Context) {
	avatar, closeAvatar, err := formUpload(c, "avatar")
	if err != nil {
		writeUploadError(c, err)
		return
	}
	defer closeAvatar()

	cover, closeCover, err := formUpload(c, "coverImage")
	if err != nil {
		writeUploadError(c, err)
		return
	}
	defer closeCover()

	user, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		FullName:   c.PostForm("fullname"),
		Username:   c.PostForm("username"),
		Email:      c.PostForm("email"),
		Password:   c.PostForm("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewAPIResponse(http.StatusCreated, user, "User registered successfully"))
}

// CurrentUser godoc
// @Summary Get current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.APIResponse{data=model.PublicUser}
// @Failure 401 {object} model.APIError
// @Router /api/v1/users/current-user [get]
func (h *AccountHandler) CurrentUser(c *gin.Context) {
	authUser := GetAuthUser(c)
	if authUser == nil {
		writeUnauthorized(c, "unauthorized")
		return
	}

	user, err := h.svc.CurrentUser(c.Request.Context(), authUser.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewAPIResponse(http.StatusOK, user, "User fetched successfully"))
}

// UpdateAccount godoc
// @Summary Update full name and email
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.UpdateAccountRequest true "New account details"
// @Success 200 {object} model.APIResponse{data=model.PublicUser}
// @Failure 400 {object} model.APIError
// @Failure 401 {object} model.APIError
// @Failure 409 {object} model.APIError
// @Router /api/v1/users/update-account [patch]
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	authUser := GetAuthUser(c)
	if authUser == nil {
		writeUnauthorized(c, "unauthorized")
		return
	}

	var req model.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewAPIError(http.StatusBadRequest, "invalid request"))
		return
	}

	user, err := h.svc.UpdateAccount(c.Request.Context(), authUser.ID, req.FullName, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewAPIResponse(http.StatusOK, user, "Account details updated successfully"))
}

// UpdateAvatar godoc
// @Summary Replace avatar image
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Avatar image"
// @Success 200 {object} model.APIResponse{data=model.PublicUser}
// @Failure 400 {object} model.APIError
// @Failure 401 {object} model.APIError
// @Failure 500 {object} model.APIError
// @Router /api/v1/users/avatar [patch]
func (h *AccountHandler) UpdateAvatar(c *gin.Context) {
	h.replaceMedia(c, "avatar", h.svc.UpdateAvatar, "Avatar image updated successfully")
}

// UpdateCoverImage godoc
// @Summary Replace cover image
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param coverImage formData file true "Cover image"
// @Success 200 {object} model.APIResponse{data=model.PublicUser}
// @Failure 400 {object} model.APIError
// @Failure 401 {object} model.APIError
// @Failure 500 {object} model.APIError
// @Router /api/v1/users/cover-image [patch]
func (h *AccountHandler) UpdateCoverImage(c *gin.Context) {
	h.replaceMedia(c, "coverImage", h.svc.UpdateCoverImage, "Cover image updated successfully")
}

type mediaUpdateFunc func(ctx context.Context, userID string, upload *model.MediaUpload) (*model.PublicUser, error)

func (h *AccountHandler) replaceMedia(c *gin.Context, field string, update mediaUpdateFunc, message string) {
	authUser := GetAuthUser(c)
	if authUser == nil {
		writeUnauthorized(c, "unauthorized")
		return
	}

	upload, closeUpload, err := formUpload(c, field)
	if err != nil {
		writeUploadError(c, err)
		return
	}
	defer closeUpload()

	user, err := update(c.Request.Context(), authUser.ID, upload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewAPIResponse(http.StatusOK, user, message))
}

// formUpload opens the named multipart file. A missing file yields a nil upload.
func formUpload(c *gin.Context, field string) (*model.MediaUpload, func(), error) {
	noop := func() {}

	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, err
	}
	return &model.MediaUpload{
		Filename:    header.Filename,
		ContentType: contentType(header),
		Size:        header.Size,
		Body:        file,
	}, func() { _ = file.Close() }, nil
}

func contentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func writeUploadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
			model.NewAPIError(http.StatusRequestEntityTooLarge, "upload exceeds the size limit"))
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, model.NewAPIError(http.StatusBadRequest, "invalid multipart form"))
}
