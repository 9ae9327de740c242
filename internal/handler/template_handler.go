package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"invoice-service/internal/apperror"
	"invoice-service/internal/model"
	"invoice-service/internal/store"
	"invoice-service/pkg/logger"
)

// TemplateRequest creates or partially updates a template
type TemplateRequest struct {
	Name        *string         `json:"name"`
	ExtraFields json.RawMessage `json:"extra_fields"`
}

const defaultFieldType = "text"

// decodeExtraFields validates the extra_fields payload. present is false when
// the key was absent or null.
func decodeExtraFields(raw json.RawMessage) (fields []model.ExtraField, present bool, err error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, true, apperror.NewValidation("extra_fields must be an array")
	}

	seen := map[string]bool{}
	for i := range fields {
		f := &fields[i]
		f.ID = strings.TrimSpace(f.ID)
		f.Label = strings.TrimSpace(f.Label)
		f.Type = strings.TrimSpace(f.Type)
		if f.ID == "" || f.Label == "" {
			return nil, true, apperror.NewValidation("Each extra field must have an id and label").
				WithDetails(map[string]any{"index": i})
		}
		if seen[f.ID] {
			return nil, true, apperror.NewValidation(fmt.Sprintf("Duplicate extra field id %q", f.ID))
		}
		seen[f.ID] = true
		if f.Type == "" {
			f.Type = defaultFieldType
		}
	}
	if fields == nil {
		fields = []model.ExtraField{}
	}
	return fields, true, nil
}

// ownedTemplate loads a template and checks it belongs to orgID.
func (h *Handler) ownedTemplate(c echo.Context, orgID uint) (*model.Template, error) {
	id, err := parseID(c, "Template not found")
	if err != nil {
		return nil, err
	}
	t, err := h.Store.TemplateByID(c.Request().Context(), id)
	if err != nil {
		return nil, lookupErr(err, "Template not found")
	}
	if t.OrganizationID != orgID {
		logger.FromContext(c).Warn("Template access denied", zap.Uint("template_id", id))
		return nil, apperror.NewForbidden("Not authorized to access this template")
	}
	return t, nil
}

// CreateTemplate stores a new template for the caller
func (h *Handler) CreateTemplate(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req TemplateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidation("Invalid request body"))
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return respondError(c, apperror.NewValidation("Template name is required"))
	}
	fields, _, err := decodeExtraFields(req.ExtraFields)
	if err != nil {
		return respondError(c, err)
	}
	if fields == nil {
		fields = []model.ExtraField{}
	}

	t := &model.Template{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(*req.Name),
		ExtraFields:    fields,
	}
	if err := h.Store.CreateTemplate(c.Request().Context(), t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return respondError(c, apperror.NewConflict("A template with this name already exists"))
		}
		return respondError(c, err)
	}

	logger.FromContext(c).Info("Template created", zap.Uint("template_id", t.ID), zap.String("name", t.Name))
	return c.JSON(http.StatusCreated, t)
}

// ListTemplates returns the caller's templates by name
func (h *Handler) ListTemplates(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	templates, err := h.Store.ListTemplates(c.Request().Context(), orgID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, templates)
}

// GetTemplate returns one of the caller's templates
func (h *Handler) GetTemplate(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	t, err := h.ownedTemplate(c, orgID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// UpdateTemplate changes the name and/or extra fields. An empty
// extra_fields list clears them.
func (h *Handler) UpdateTemplate(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	t, err := h.ownedTemplate(c, orgID)
	if err != nil {
		return respondError(c, err)
	}

	var req TemplateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidation("Invalid request body"))
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return respondError(c, apperror.NewValidation("Template name cannot be empty"))
		}
		t.Name = name
	}
	fields, present, err := decodeExtraFields(req.ExtraFields)
	if err != nil {
		return respondError(c, err)
	}
	if present {
		t.ExtraFields = fields
	}
	if t.ExtraFields == nil {
		t.ExtraFields = []model.ExtraField{}
	}

	if err := h.Store.SaveTemplate(c.Request().Context(), t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return respondError(c, apperror.NewConflict("A template with this name already exists"))
		}
		return respondError(c, err)
	}

	logger.FromContext(c).Info("Template updated", zap.Uint("template_id", t.ID))
	return c.JSON(http.StatusOK, t)
}

// DeleteTemplate removes one of the caller's templates
func (h *Handler) DeleteTemplate(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	t, err := h.ownedTemplate(c, orgID)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Store.DeleteTemplate(c.Request().Context(), t.ID); err != nil {
		return respondError(c, lookupErr(err, "Template not found"))
	}

	logger.FromContext(c).Info("Template deleted", zap.Uint("template_id", t.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Template removed"})
}
