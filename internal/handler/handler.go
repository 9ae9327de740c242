package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"invoice-service/internal/apperror"
	"invoice-service/internal/metrics"
	"invoice-service/internal/middleware"
	"invoice-service/internal/model"
	"invoice-service/internal/payment"
	"invoice-service/internal/store"
	"invoice-service/pkg/jwtutil"
	"invoice-service/pkg/logger"
)

// Renderer produces invoice PDFs.
type Renderer interface {
	Render(inv *model.Invoice) ([]byte, error)
}

// Notifier queues invoice emails.
type Notifier interface {
	Enqueue(inv *model.Invoice) bool
}

// Deps are the collaborators the handlers need.
type Deps struct {
	ServiceName string
	Store       *store.Store
	JWT         *jwtutil.JWTUtil
	Payments    *payment.Service
	Renderer    Renderer
	Notifier    Notifier
	Metrics     *metrics.Metrics
}

// Handler serves the HTTP API.
type Handler struct {
	Deps
}

func New(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

// respondError writes err with the status of its kind. Unclassified errors
// are logged and reported as a generic server error.
func respondError(c echo.Context, err error) error {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		if ae.Kind == apperror.Internal || ae.Kind == apperror.Upstream {
			logger.FromContext(c).Error(ae.Message, zap.Error(err))
		}
		body := echo.Map{"error": ae.Message}
		if len(ae.Details) > 0 {
			body["details"] = ae.Details
		}
		return c.JSON(ae.Kind.Status(), body)
	}

	logger.FromContext(c).Error("Request failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server Error"})
}

// parseID reads a positive numeric path parameter. Anything else is reported
// as not found, same as an unknown id.
func parseID(c echo.Context, notFound string) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, apperror.NewNotFound(notFound)
	}
	return uint(id), nil
}

// organizationID is the authenticated caller set by the auth middleware.
func organizationID(c echo.Context) (uint, error) {
	id, ok := middleware.OrganizationID(c)
	if !ok {
		return 0, apperror.NewUnauthorized("Authentication required")
	}
	return id, nil
}

// lookupErr maps store misses to a not-found error with message.
func lookupErr(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NewNotFound(message)
	}
	return err
}
