package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"invoice-service/internal/apperror"
	"invoice-service/internal/handler"
	"invoice-service/internal/metrics"
	"invoice-service/internal/middleware"
	"invoice-service/pkg/jwtutil"
	"invoice-service/pkg/logger"
)

// NewRouter wires middleware and routes onto a new echo instance.
func NewRouter(h *handler.Handler, jwtUtil *jwtutil.JWTUtil, m *metrics.Metrics, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(m.Middleware())

	// Public routes that don't require authentication
	e.GET("/health", h.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))

	api := e.Group("/api")
	auth := middleware.AuthMiddleware(jwtUtil)

	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", h.Register)
	authRoutes.POST("/login", h.Login)
	authRoutes.GET("/me", h.Me, auth)
	authRoutes.PATCH("/profile", h.UpdateProfile, auth)

	templates := api.Group("/templates", auth)
	templates.POST("", h.CreateTemplate)
	templates.GET("", h.ListTemplates)
	templates.GET("/:id", h.GetTemplate)
	templates.PUT("/:id", h.UpdateTemplate)
	templates.DELETE("/:id", h.DeleteTemplate)

	invoices := api.Group("/invoices")
	invoices.POST("", h.CreateInvoice, auth)
	invoices.GET("", h.ListInvoices, auth)
	invoices.GET("/stats", h.InvoiceStats, auth)
	invoices.GET("/:id", h.GetInvoice)
	invoices.GET("/:id/pdf", h.DownloadInvoicePDF, auth)

	payments := api.Group("/payment")
	payments.POST("/orders", h.CreatePaymentOrder, auth)
	payments.POST("/verify", h.VerifyPayment)

	return e
}

// errorHandler renders errors that escape the handlers in the same
// {"error": ...} shape the handlers use.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Server Error"

	var he *echo.HTTPError
	var ae *apperror.Error
	switch {
	case errors.As(err, &ae):
		status = ae.Kind.Status()
		message = ae.Message
	case errors.As(err, &he):
		status = he.Code
		if s, ok := he.Message.(string); ok {
			message = s
		} else {
			message = http.StatusText(he.Code)
		}
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(c).Error("Unhandled error", zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, echo.Map{"error": message})
}
