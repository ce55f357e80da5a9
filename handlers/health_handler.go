package handlers

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"

	"github.com/curodigital/whatsapp-billing-relay/pkg/redis"
)

type HealthHandler struct {
	db          *sqlx.DB
	redisClient *redis.Client
}

func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redisClient: redisClient}
}

// Health godoc
// @Summary Health check
// @Description Reports service, database and cache health
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()

	status := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	httpStatus := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		status["status"] = "unhealthy"
		status["database"] = "down"
		httpStatus = http.StatusServiceUnavailable
	} else {
		status["database"] = "up"
	}

	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx); err != nil {
			status["cache"] = "down"
		} else {
			status["cache"] = "up"
		}
	} else {
		status["cache"] = "disabled"
	}

	return c.JSON(httpStatus, status)
}
