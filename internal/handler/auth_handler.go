package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"invoice-service/internal/apperror"
	"invoice-service/internal/model"
	"invoice-service/internal/store"
	"invoice-service/internal/validation"
	"invoice-service/pkg/logger"
)

const minPasswordLength = 6

// RegisterRequest creates an organization account
type RegisterRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	CompanyAddress   string `json:"company_address"`
	CompanyEmail     string `json:"company_email"`
	CompanyPhone     string `json:"company_phone"`
}

// LoginRequest exchanges credentials for a token
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileRequest updates the organization profile. Absent fields are kept.
type ProfileRequest struct {
	OrganizationName *string `json:"organization_name"`
	CompanyAddress   *string `json:"company_address"`
	CompanyEmail     *string `json:"company_email"`
	CompanyPhone     *string `json:"company_phone"`
}

func (h *Handler) authResponse(c echo.Context, status int, org *model.Organization) error {
	token, err := h.JWT.GenerateToken(org.ID, org.Email, org.OrganizationName)
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.Internal, "Failed to issue token", err))
	}
	return c.JSON(status, echo.Map{
		"token": token,
		"user":  org,
	})
}

// Register creates an organization and returns a token for it
func (h *Handler) Register(c echo.Context) error {
	log := logger.FromContext(c)

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse registration request", zap.Error(err))
		h.Metrics.RecordAuth("register", "invalid_request")
		return respondError(c, apperror.NewValidation("Invalid request body"))
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	v := validation.Violations{}
	validation.Required("organization_name", req.OrganizationName, v)
	validation.Required("email", req.Email, v)
	validation.Email("email", req.Email, v)
	validation.MinLength("password", req.Password, minPasswordLength, v)
	validation.Email("company_email", req.CompanyEmail, v)
	if err := v.Err("Invalid registration data"); err != nil {
		h.Metrics.RecordAuth("register", "invalid_request")
		return respondError(c, err)
	}

	defer h.Metrics.TrackDBOperation("insert")(time.Now())

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.Internal, "Registration failed", err))
	}

	org := &model.Organization{
		OrganizationName: strings.TrimSpace(req.OrganizationName),
		Email:            req.Email,
		Password:         string(hashed),
		CompanyAddress:   strings.TrimSpace(req.CompanyAddress),
		CompanyEmail:     strings.TrimSpace(req.CompanyEmail),
		CompanyPhone:     strings.TrimSpace(req.CompanyPhone),
	}
	if err := h.Store.CreateOrganization(c.Request().Context(), org); err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Info("Registration for existing email", zap.String("email", req.Email))
			h.Metrics.RecordAuth("register", "conflict")
			return respondError(c, apperror.NewConflict("User already exists"))
		}
		return respondError(c, err)
	}

	h.Metrics.RecordAuth("register", "success")
	log.Info("Organization registered", zap.Uint("organization_id", org.ID), zap.String("email", org.Email))
	return h.authResponse(c, http.StatusCreated, org)
}

// Login checks credentials and returns a token
func (h *Handler) Login(c echo.Context) error {
	log := logger.FromContext(c)

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		h.Metrics.RecordAuth("login", "invalid_request")
		return respondError(c, apperror.NewValidation("Invalid request body"))
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		h.Metrics.RecordAuth("login", "invalid_request")
		return respondError(c, apperror.NewValidation("Email and password are required"))
	}

	org, err := h.Store.OrganizationByEmail(c.Request().Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return respondError(c, err)
	}
	if org == nil || bcrypt.CompareHashAndPassword([]byte(org.Password), []byte(req.Password)) != nil {
		log.Info("Invalid login attempt", zap.String("email", req.Email))
		h.Metrics.RecordAuth("login", "failure")
		return respondError(c, apperror.NewUnauthorized("Invalid credentials"))
	}

	h.Metrics.RecordAuth("login", "success")
	log.Info("Organization logged in", zap.Uint("organization_id", org.ID))
	return h.authResponse(c, http.StatusOK, org)
}

// Me returns the authenticated organization
func (h *Handler) Me(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	org, err := h.Store.OrganizationByID(c.Request().Context(), orgID)
	if err != nil {
		return respondError(c, lookupErr(err, "Organization not found"))
	}
	return c.JSON(http.StatusOK, org)
}

// UpdateProfile changes the company details used on new invoices
func (h *Handler) UpdateProfile(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidation("Invalid request body"))
	}

	v := validation.Violations{}
	if req.OrganizationName != nil {
		validation.Required("organization_name", *req.OrganizationName, v)
	}
	if req.CompanyEmail != nil {
		validation.Email("company_email", *req.CompanyEmail, v)
	}
	if err := v.Err("Invalid profile data"); err != nil {
		return respondError(c, err)
	}

	org, err := h.Store.UpdateProfile(c.Request().Context(), orgID, store.ProfileUpdate{
		OrganizationName: trimmed(req.OrganizationName),
		CompanyAddress:   trimmed(req.CompanyAddress),
		CompanyEmail:     trimmed(req.CompanyEmail),
		CompanyPhone:     trimmed(req.CompanyPhone),
	})
	if err != nil {
		return respondError(c, lookupErr(err, "Organization not found"))
	}

	logger.FromContext(c).Info("Organization profile updated")
	return c.JSON(http.StatusOK, org)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
