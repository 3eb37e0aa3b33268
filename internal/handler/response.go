package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/vidtube/backend/internal/model"
	"github.com/vidtube/backend/internal/service"
)

// writeError renders a service error with the status of its kind.
func writeError(c *gin.Context, err error) {
	status := service.StatusOf(err)
	message := http.StatusText(status)

	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		message = svcErr.Message
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, model.NewAPIError(status, message))
}

func writeUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, model.NewAPIError(http.StatusUnauthorized, message))
}
