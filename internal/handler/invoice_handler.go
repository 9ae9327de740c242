package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"invoice-service/internal/apperror"
	"invoice-service/internal/billing"
	"invoice-service/internal/model"
	"invoice-service/internal/store"
	"invoice-service/internal/validation"
	"invoice-service/pkg/logger"
)

// InvoiceRequest creates an invoice. Company fields left empty are filled
// from the organization profile.
type InvoiceRequest struct {
	ClientName     string             `json:"client_name"`
	ClientAddress  string             `json:"client_address"`
	ClientEmail    string             `json:"client_email"`
	CompanyName    string             `json:"company_name"`
	CompanyAddress string             `json:"company_address"`
	CompanyEmail   string             `json:"company_email"`
	CompanyPhone   string             `json:"company_phone"`
	IssueDate      string             `json:"issue_date"`
	DueDate        string             `json:"due_date"`
	LineItems      []billing.LineItem `json:"line_items"`
	TaxRate        billing.Amount     `json:"tax_rate"`
	Notes          string             `json:"notes"`
	TemplateID     *uint              `json:"template_id"`
	// TemplateData is either an object of field id to value (order kept) or
	// a list of {key, value} pairs.
	TemplateData json.RawMessage `json:"template_data"`
}

// Pagination describes a page of a listing
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// StatsResponse is the dashboard summary
type StatsResponse struct {
	PaidInvoicesCount int64       `json:"paid_invoices_count"`
	DueInvoicesCount  int64       `json:"due_invoices_count"`
	TotalRevenue      json.Number `json:"total_revenue"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// decodeTemplateData accepts an object or a list of pairs and returns the
// values in submission order.
func decodeTemplateData(raw json.RawMessage) ([]model.TemplateValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []model.TemplateValue{}, nil
	}

	if raw[0] == '[' {
		values := []model.TemplateValue{}
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, apperror.NewValidation("template_data must be an object or a list of key/value pairs")
		}
		return values, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, apperror.NewValidation("template_data must be an object or a list of key/value pairs")
	}
	values := []model.TemplateValue{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, apperror.NewValidation("Malformed template_data")
		}
		key, _ := tok.(string)

		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, apperror.NewValidation("Malformed template_data")
		}
		values = append(values, model.TemplateValue{Key: key, Value: stringify(v)})
	}
	return values, nil
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// CreateInvoice computes totals, assigns the next number and queues the email
func (h *Handler) CreateInvoice(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req InvoiceRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid invoice request", zap.Error(err))
		return respondError(c, apperror.NewValidation("Invalid request body"))
	}

	v := validation.Violations{}
	validation.Required("client_name", req.ClientName, v)
	validation.Required("client_email", req.ClientEmail, v)
	validation.Email("client_email", req.ClientEmail, v)
	validation.Email("company_email", req.CompanyEmail, v)
	if len(req.LineItems) == 0 {
		v["line_items"] = "required"
	}

	issueDate := time.Now().UTC()
	if req.IssueDate != "" {
		d, ok := parseDate(req.IssueDate)
		if !ok {
			v["issue_date"] = "invalid_date"
		}
		issueDate = d
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		d, ok := parseDate(req.DueDate)
		if !ok {
			v["due_date"] = "invalid_date"
		}
		dueDate = &d
	}
	if err := v.Err("Please provide client name, client email and line items"); err != nil {
		return respondError(c, err)
	}

	templateData, err := decodeTemplateData(req.TemplateData)
	if err != nil {
		return respondError(c, err)
	}
	if req.TemplateID != nil {
		if err := h.checkTemplateData(c, orgID, *req.TemplateID, templateData); err != nil {
			return respondError(c, err)
		}
	}

	org, err := h.Store.OrganizationByID(ctx, orgID)
	if err != nil {
		return respondError(c, lookupErr(err, "Organization not found"))
	}

	items := make([]billing.LineItem, len(req.LineItems))
	for i, li := range req.LineItems {
		li.Description = strings.TrimSpace(li.Description)
		items[i] = li
	}
	taxRate := billing.NormalizeTaxRate(req.TaxRate)
	totals := billing.ComputeTotals(items, taxRate)
	if totals.Exceeded() {
		return respondError(c, apperror.NewValidation("Invoice total is too large").
			WithDetails(map[string]any{"total_amount": "too_large"}))
	}

	inv := &model.Invoice{
		OrganizationID: orgID,
		ClientName:     strings.TrimSpace(req.ClientName),
		ClientAddress:  strings.TrimSpace(req.ClientAddress),
		ClientEmail:    strings.TrimSpace(req.ClientEmail),
		CompanyName:    firstNonEmpty(req.CompanyName, org.OrganizationName),
		CompanyAddress: firstNonEmpty(req.CompanyAddress, org.CompanyAddress),
		CompanyEmail:   firstNonEmpty(req.CompanyEmail, org.CompanyEmail),
		CompanyPhone:   firstNonEmpty(req.CompanyPhone, org.CompanyPhone),
		IssueDate:      issueDate,
		DueDate:        dueDate,
		LineItems:      items,
		TaxRate:        taxRate,
		SubTotal:       totals.SubTotal,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		Notes:          req.Notes,
		TemplateID:     req.TemplateID,
		TemplateData:   templateData,
		PaymentStatus:  model.PaymentPending,
	}

	start := time.Now()
	err = h.Store.CreateInvoice(ctx, inv)
	h.Metrics.TrackDBOperation("insert_invoice")(start)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return respondError(c, apperror.Wrap(apperror.Conflict, "Could not assign an invoice number, please retry", err))
		}
		return respondError(c, err)
	}
	h.Metrics.RecordInvoiceCreated()

	log.Info("Invoice created",
		zap.Uint("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total", inv.Total.Format()))

	if h.Notifier != nil && !h.Notifier.Enqueue(inv) {
		log.Warn("Invoice email not queued", zap.Uint("invoice_id", inv.ID))
	}

	return c.JSON(http.StatusCreated, inv)
}

// checkTemplateData requires the template to belong to the caller and every
// submitted key to be one of its extra fields.
func (h *Handler) checkTemplateData(c echo.Context, orgID, templateID uint, values []model.TemplateValue) error {
	t, err := h.Store.TemplateByID(c.Request().Context(), templateID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && t.OrganizationID != orgID) {
		return apperror.NewValidation("Unknown template").WithDetails(map[string]any{"template_id": templateID})
	}
	if err != nil {
		return err
	}

	unknown := []string{}
	for _, v := range values {
		if !t.HasField(v.Key) {
			unknown = append(unknown, v.Key)
		}
	}
	if len(unknown) > 0 {
		return apperror.NewValidation("template_data has fields the template does not define").
			WithDetails(map[string]any{"unknown_fields": unknown})
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// ListInvoices returns the caller's invoices, newest first
func (h *Handler) ListInvoices(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	start := time.Now()
	res, err := h.Store.ListInvoices(c.Request().Context(), orgID, store.InvoiceFilter{
		ClientName: c.QueryParam("client_name"),
		Page:       page,
		Limit:      limit,
	})
	h.Metrics.TrackDBOperation("list_invoices")(start)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"invoices": res.Invoices,
		"pagination": Pagination{
			Page:       res.Page,
			Limit:      res.Limit,
			Total:      res.Total,
			TotalPages: int(math.Ceil(float64(res.Total) / float64(res.Limit))),
		},
	})
}

// GetInvoice returns an invoice by id. It is public so clients can open the
// payment page from the emailed link.
func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := parseID(c, "Invoice not found")
	if err != nil {
		return respondError(c, err)
	}

	inv, err := h.Store.InvoiceByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, lookupErr(err, "Invoice not found"))
	}
	return c.JSON(http.StatusOK, inv)
}

// DownloadInvoicePDF renders one of the caller's invoices
func (h *Handler) DownloadInvoicePDF(c echo.Context) error {
	log := logger.FromContext(c)

	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseID(c, "Invoice not found")
	if err != nil {
		return respondError(c, err)
	}

	inv, err := h.Store.InvoiceByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, lookupErr(err, "Invoice not found"))
	}
	if inv.OrganizationID != orgID {
		log.Warn("Invoice PDF access denied", zap.Uint("invoice_id", id))
		return respondError(c, apperror.NewForbidden("Not authorized to access this invoice"))
	}

	pdf, err := h.Renderer.Render(inv)
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.Internal, "Failed to generate PDF", err))
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "invoice-"+inv.InvoiceNumber+".pdf"))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// InvoiceStats summarises paid and due invoices for the caller
func (h *Handler) InvoiceStats(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	st, err := h.Store.Stats(c.Request().Context(), orgID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, StatsResponse{
		PaidInvoicesCount: st.PaidCount,
		DueInvoicesCount:  st.DueCount,
		TotalRevenue:      json.Number(st.TotalRevenue.Format()),
	})
}
