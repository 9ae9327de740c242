package logger

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey int

const (
	// loggerKey is the key used to store the logger in the context
	loggerKey contextKey = iota
)

// echoKey is where request-scoped loggers live in the echo context.
const echoKey = "logger"

// WithLogger returns a copy of the context with the logger included
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromCtx retrieves the logger from a plain context, for code running outside a request.
func FromCtx(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return GetLogger()
}

// FromContext retrieves the logger from the echo context
func FromContext(c echo.Context) *zap.Logger {
	// Try to extract from Echo context first
	if l, ok := c.Get(echoKey).(*zap.Logger); ok {
		return l
	}

	// Then try to extract from Go context
	if l, ok := c.Request().Context().Value(loggerKey).(*zap.Logger); ok {
		return l
	}

	return GetLogger()
}

// Set stores a request-scoped logger in the echo context.
func Set(c echo.Context, l *zap.Logger) {
	c.Set(echoKey, l)
}
