package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"invoice-service/internal/apperror"
	"invoice-service/internal/billing"
	"invoice-service/internal/model"
	"invoice-service/internal/payment"
)

// OrderRequest opens a gateway order. When InvoiceID is set the amount and
// receipt default to the invoice's total and receipt tag.
type OrderRequest struct {
	Amount    billing.Amount `json:"amount"`
	Currency  string         `json:"currency"`
	Receipt   string         `json:"receipt"`
	InvoiceID *uint          `json:"invoice_id"`
}

// CreatePaymentOrder creates a gateway order for a checkout
func (h *Handler) CreatePaymentOrder(c echo.Context) error {
	orgID, err := organizationID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req OrderRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidation("Invalid request body"))
	}

	if req.InvoiceID != nil {
		inv, err := h.Store.InvoiceByID(c.Request().Context(), *req.InvoiceID)
		if err != nil {
			return respondError(c, lookupErr(err, "Invoice not found"))
		}
		if inv.OrganizationID != orgID {
			return respondError(c, apperror.NewForbidden("Not authorized to access this invoice"))
		}
		if inv.PaymentStatus == model.PaymentPaid {
			return respondError(c, apperror.NewConflict("Invoice is already paid"))
		}
		if req.Amount.IsZero() {
			req.Amount = inv.Total
		}
		if req.Receipt == "" {
			req.Receipt = payment.ReceiptForInvoice(inv.ID)
		}
	}

	order, err := h.Payments.CreateOrder(c.Request().Context(), req.Amount, req.Currency, req.Receipt)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// VerifyPayment checks the signed checkout callback and marks the invoice paid
func (h *Handler) VerifyPayment(c echo.Context) error {
	var req payment.VerifyRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidation("Invalid request body"))
	}

	res, err := h.Payments.Verify(c.Request().Context(), req)
	if errors.Is(err, payment.ErrInvalidSignature) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"status":  payment.StatusFailure,
			"message": payment.ErrInvalidSignature.Message,
		})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
