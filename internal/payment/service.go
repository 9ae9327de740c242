// Package payment bridges invoices and the online payment gateway.
package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"invoice-service/internal/apperror"
	"invoice-service/internal/billing"
	"invoice-service/internal/metrics"
	"invoice-service/internal/store"
)

// ErrInvalidSignature is returned when a callback signature does not match.
var ErrInvalidSignature = apperror.NewValidation("Invalid signature")

// ErrNotConfigured is returned when no gateway credentials are set.
var ErrNotConfigured = apperror.New(apperror.Internal, "Payment gateway not configured")

// Verification outcomes. Everything past a valid signature reports success.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	MsgUpdated     = "Payment verified and invoice updated."
	MsgNoReceipt   = "Payment verified, but error linking to invoice."
	MsgNotUpdated  = "Payment verified, but failed to update invoice record."
	MsgUnparseable = "Payment verified, but could not extract invoice ID from receipt."
)

// metric labels
const (
	resultLinked           = "linked"
	resultUnlinked         = "unlinked"
	resultInvalidSignature = "invalid_signature"
)

// InvoiceStore is the persistence the bridge needs.
type InvoiceStore interface {
	MarkPaid(ctx context.Context, id uint, rec store.PaymentRecord) error
}

// VerifyRequest is the signed callback posted after checkout.
type VerifyRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// VerifyResult describes a verified payment. InvoiceID is nil when the
// payment could not be tied to an invoice.
type VerifyResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	InvoiceID *uint  `json:"invoice_id,omitempty"`
}

// Service creates gateway orders and verifies payment callbacks.
type Service struct {
	gateway  Gateway
	store    InvoiceStore
	secret   string
	currency string
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewService wires the bridge. gateway may be nil when credentials are not
// configured; every call then fails with ErrNotConfigured.
func NewService(gateway Gateway, st InvoiceStore, secret, defaultCurrency string, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.L()
	}
	return &Service{
		gateway:  gateway,
		store:    st,
		secret:   secret,
		currency: strings.ToUpper(defaultCurrency),
		now:      time.Now,
		log:      log,
		metrics:  m,
	}
}

// CreateOrder opens a gateway order for amount (major units).
func (s *Service) CreateOrder(ctx context.Context, amount billing.Amount, currency, receipt string) (*Order, error) {
	if s.gateway == nil {
		return nil, ErrNotConfigured
	}
	minor, ok := ToMinorUnits(amount)
	if !ok {
		return nil, apperror.NewValidation("Amount is out of range")
	}
	if minor <= 0 {
		return nil, apperror.NewValidation("Amount must be greater than zero")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.currency
	}
	if len(currency) != 3 {
		return nil, apperror.NewValidation("Currency must be a 3 letter ISO code")
	}
	if len(receipt) > 40 {
		return nil, apperror.NewValidation("Receipt must be at most 40 characters")
	}

	order, err := s.gateway.CreateOrder(ctx, OrderRequest{Amount: minor, Currency: currency, Receipt: receipt})
	if err != nil {
		s.log.Error("Failed to create gateway order", zap.String("receipt", receipt), zap.Error(err))
		return nil, apperror.Wrap(apperror.Upstream, "Failed to create payment order", err)
	}

	s.log.Info("Gateway order created",
		zap.String("order_id", order.ID),
		zap.Int64("amount", order.Amount),
		zap.String("receipt", order.Receipt))
	return order, nil
}

// Verify checks the callback signature and, when it matches, marks the
// invoice named by the order's receipt as paid. A valid signature always
// yields a success result even if the invoice cannot be linked; those cases
// are logged for reconciliation. Store failures are returned as errors so the
// caller can retry.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, apperror.NewValidation("Missing required parameters for verification")
	}
	if s.gateway == nil || s.secret == "" {
		return nil, ErrNotConfigured
	}

	log := s.log.With(zap.String("order_id", req.OrderID), zap.String("payment_id", req.PaymentID))

	if !VerifySignature(s.secret, req.OrderID, req.PaymentID, req.Signature) {
		log.Warn("Payment signature mismatch")
		s.metrics.RecordPaymentVerification(resultInvalidSignature)
		return nil, ErrInvalidSignature
	}

	result := &VerifyResult{Status: StatusSuccess, OrderID: req.OrderID, PaymentID: req.PaymentID}

	order, err := s.gateway.FetchOrder(ctx, req.OrderID)
	if err != nil {
		log.Error("Failed to fetch gateway order", zap.Error(err))
		return nil, apperror.Wrap(apperror.Upstream, "Failed to fetch payment order", err)
	}
	if order == nil || order.Receipt == "" {
		log.Error("Verified payment has no receipt on its order")
		s.metrics.RecordPaymentVerification(resultUnlinked)
		result.Message = MsgNoReceipt
		return result, nil
	}

	rawID, ok := ParseReceipt(order.Receipt)
	if !ok {
		log.Error("Could not parse invoice id from receipt", zap.String("receipt", order.Receipt))
		s.metrics.RecordPaymentVerification(resultUnlinked)
		result.Message = MsgUnparseable
		return result, nil
	}

	id, err := strconv.ParseUint(rawID, 10, 0)
	if err == nil {
		err = s.store.MarkPaid(ctx, uint(id), store.PaymentRecord{
			OrderID:   req.OrderID,
			PaymentID: req.PaymentID,
			Signature: req.Signature,
			PaidAt:    s.now(),
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrConflict) {
			// the callback can be replayed once the database is back
			log.Error("Failed to mark invoice paid", zap.String("invoice_id", rawID), zap.Error(err))
			return nil, apperror.Wrap(apperror.Internal, "Failed to update invoice payment", err)
		}
	}
	if err != nil {
		log.Error("Verified payment does not resolve to a payable invoice",
			zap.String("invoice_id", rawID),
			zap.Error(err))
		s.metrics.RecordPaymentVerification(resultUnlinked)
		result.Message = MsgNotUpdated
		return result, nil
	}

	invoiceID := uint(id)
	log.Info("Invoice marked as paid", zap.Uint("invoice_id", invoiceID))
	s.metrics.RecordPaymentVerification(resultLinked)
	result.Message = MsgUpdated
	result.InvoiceID = &invoiceID
	return result, nil
}
