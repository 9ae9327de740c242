package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"invoice-service/pkg/jwtutil"
	"invoice-service/pkg/logger"
)

// Context keys set by AuthMiddleware
const (
	OrganizationIDKey   = "organization_id"
	EmailKey            = "email"
	OrganizationNameKey = "organization_name"
)

// AuthMiddleware verifies the bearer token and stores the organization claims in the context
func AuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "No token, authorization denied"})
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				log.Warn("Invalid authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid authorization header format"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Token is not valid"})
			}

			c.Set(OrganizationIDKey, claims.OrganizationID)
			c.Set(EmailKey, claims.Email)
			c.Set(OrganizationNameKey, claims.OrganizationName)

			logger.Set(c, log.With(zap.Uint("organization_id", claims.OrganizationID)))

			return next(c)
		}
	}
}

// OrganizationID returns the authenticated organization, if any.
func OrganizationID(c echo.Context) (uint, bool) {
	id, ok := c.Get(OrganizationIDKey).(uint)
	return id, ok && id != 0
}
