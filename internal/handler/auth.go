package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vidtube/backend/internal/model"
	"github.com/vidtube/backend/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login godoc
// @Summary Login
// @Description Accepts username or email with password. Sets accessToken and refreshToken cookies.
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Credentials"
// @Success 200 {object} model.APIResponse{data=model.LoginResponse}
// @Failure 400 {object} model.APIError
// @Failure 401 {object} model.APIError
// @Failure 404 {object} model.APIError
// @Failure 500 {object} model.APIError
// @Router /api/v1/users/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewAPIError(http.StatusBadRequest, "invalid request"))
		return
	}

	session, err := h.svc.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.setTokenCookies(c, session.Tokens)
	c.JSON(http.StatusOK, model.NewAPIResponse(http.StatusOK, model.LoginResponse{
		User:         session.User,
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	}, "User logged in successfully"))
}

// Refresh godoc
// @Summary Refresh access token
// @Description Reads the refreshToken cookie, or refreshToken from the JSON body. Rotates the stored refresh token.
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.RefreshRequest false "Refresh token when no cookie is sent"
// @Success 200 {object} model.APIResponse{data=model.RefreshResponse}
// @Failure 401 {object} model.APIError
// @Failure 500 {object} model.APIError
// @Router /api/v1/users/refresh-token [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(service.RefreshCookieName)
	if token == "" && c.Request.ContentLength != 0 {
		var req model.RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}

	pair, err := h.svc.Refresh(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}

	h.setTokenCookies(c, *pair)
	c.JSON(http.StatusOK, model.NewAPIResponse(http.StatusOK, model.RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "Access token refreshed"))
}

// Logout godoc
// @Summary Logout
// @Description Clears the stored refresh token and both auth cookies.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.APIResponse
// @Failure 401 {object} model.APIError
// @Router /api/v1/users/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeUnauthorized(c, "unauthorized")
		return
	}

	if err := h.svc.Logout(c.Request.Context(), user.ID); err != nil {
		writeError(c, err)
		return
	}

	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, model.NewAPIResponse(http.StatusOK, gin.H{}, "User logged out"))
}

// ChangePassword godoc
// @Summary Change password
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ChangePasswordRequest true "Old and new password"
// @Success 200 {object} model.APIResponse
// @Failure 400 {object} model.APIError
// @Failure 401 {object} model.APIError
// @Failure 500 {object} model.APIError
// @Router /api/v1/users/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeUnauthorized(c, "unauthorized")
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewAPIError(http.StatusBadRequest, "invalid request"))
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewAPIResponse(http.StatusOK, gin.H{}, "Password changed successfully"))
}

func (h *AuthHandler) setTokenCookies(c *gin.Context, pair model.TokenPair) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(service.AccessCookieName, pair.AccessToken, cfg.AccessMaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(service.RefreshCookieName, pair.RefreshToken, cfg.RefreshMaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(service.AccessCookieName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(service.RefreshCookieName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
}
