package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/vidtube/backend/internal/model"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

// NewHealthHandler takes a nil pinger when the store has no backing database.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthcheck godoc
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} model.APIResponse{data=model.HealthResponse}
// @Failure 503 {object} model.APIError
// @Router /api/v1/healthcheck [get]
func (h *HealthHandler) Healthcheck(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("healthcheck: database ping failed")
			c.JSON(http.StatusServiceUnavailable, model.NewAPIError(http.StatusServiceUnavailable, "database unavailable"))
			return
		}
	}
	c.JSON(http.StatusOK, model.NewAPIResponse(http.StatusOK, model.HealthResponse{Status: "ok"}, "Health check passed"))
}
