package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"invoice-service/pkg/logger"
)

// HealthCheck handles the health check endpoint
func (h *Handler) HealthCheck(c echo.Context) error {
	status := http.StatusOK
	body := echo.Map{
		"status":   "healthy",
		"service":  h.ServiceName,
		"database": "up",
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.Store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logger.FromContext(c).Warn("Database ping failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "down"
	}

	return c.JSON(status, body)
}
