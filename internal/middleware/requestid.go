package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"invoice-service/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(requestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.New().String()
				c.Request().Header.Set(requestIDHeader, requestID)
			}

			c.Response().Header().Set(requestIDHeader, requestID)

			logger.Set(c, logger.GetLogger().With(zap.String("request_id", requestID)))

			return next(c)
		}
	}
}
