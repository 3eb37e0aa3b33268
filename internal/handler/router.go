package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vidtube/backend/internal/service"
)

type RouterOptions struct {
	Service        *service.AuthService
	DB             Pinger
	AllowedOrigins []string
	MaxUploadBytes int64
	// MediaDir is served at /media when uploads are kept on local disk.
	MediaDir string
}

func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), CORSMiddleware(opts.AllowedOrigins, true))
	if opts.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = opts.MaxUploadBytes
	}

	if opts.MediaDir != "" {
		r.Static("/media", opts.MediaDir)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/openapi.json", OpenAPIDoc)

	api := r.Group("/api/v1")
	api.GET("/healthcheck", NewHealthHandler(opts.DB).Healthcheck)

	authHandler := NewAuthHandler(opts.Service)
	accountHandler := NewAccountHandler(opts.Service)

	users := api.Group("/users")
	users.Use(BodyLimit(opts.MaxUploadBytes))
	users.POST("/register", accountHandler.Register)
	users.POST("/login", authHandler.Login)
	users.POST("/refresh-token", authHandler.Refresh)

	secured := users.Group("")
	secured.Use(AuthMiddleware(opts.Service))
	secured.POST("/logout", authHandler.Logout)
	secured.POST("/change-password", authHandler.ChangePassword)
	secured.GET("/current-user", accountHandler.CurrentUser)
	secured.PATCH("/update-account", accountHandler.UpdateAccount)
	secured.PATCH("/avatar", accountHandler.UpdateAvatar)
	secured.PATCH("/cover-image", accountHandler.UpdateCoverImage)

	return r
}
