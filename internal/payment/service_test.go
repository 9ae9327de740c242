package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"invoice-service/internal/apperror"
	"invoice-service/internal/billing"
	"invoice-service/internal/store"
)

type fakeGateway struct {
	orders   map[string]*Order
	created  []OrderRequest
	fetchErr error
}

func (g *fakeGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	g.created = append(g.created, req)
	return &Order{ID: "order_new", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, id string) (*Order, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	if o, ok := g.orders[id]; ok {
		return o, nil
	}
	return nil, errors.New("BAD_REQUEST_ERROR: order not found")
}

type fakeStore struct {
	invoices map[uint]bool
	paid     map[uint]store.PaymentRecord
	err      error
}

func (s *fakeStore) MarkPaid(_ context.Context, id uint, rec store.PaymentRecord) error {
	if s.err != nil {
		return s.err
	}
	if !s.invoices[id] {
		return store.ErrNotFound
	}
	s.paid[id] = rec
	return nil
}

const secret = "rzp_secret"

func newService(g *fakeGateway) (*Service, *fakeStore) {
	st := &fakeStore{invoices: map[uint]bool{5: true}, paid: map[uint]store.PaymentRecord{}}
	svc := NewService(g, st, secret, "inr", zap.NewNop(), nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC) }
	return svc, st
}

func signed(orderID, paymentID string) VerifyRequest {
	return VerifyRequest{OrderID: orderID, PaymentID: paymentID, Signature: Signature(secret, orderID, paymentID)}
}

func TestCreateOrder(t *testing.T) {
	g := &fakeGateway{}
	svc, _ := newService(g)

	order, err := svc.CreateOrder(context.Background(), billing.NewAmount(27.5), "", ReceiptForInvoice(5))
	require.NoError(t, err)
	require.EqualValues(t, 2750, order.Amount)
	require.Equal(t, "INR", order.Currency)
	require.Equal(t, "receipt_invoice_5", g.created[0].Receipt)

	_, err = svc.CreateOrder(context.Background(), billing.Amount{}, "INR", "r")
	require.Equal(t, apperror.Validation, apperror.KindOf(err))

	_, err = svc.CreateOrder(context.Background(), billing.NewAmount(1), "RUPEES", "r")
	require.Equal(t, apperror.Validation, apperror.KindOf(err))

	// past int64 once converted to minor units
	huge := billing.Amount{Decimal: decimal.RequireFromString("100000000000000000")}
	_, err = svc.CreateOrder(context.Background(), huge, "INR", "r")
	require.Equal(t, apperror.Validation, apperror.KindOf(err))
	require.ErrorContains(t, err, "out of range")
	require.Len(t, g.created, 1)
}

func TestCreateOrderNotConfigured(t *testing.T) {
	svc := NewService(nil, &fakeStore{}, "", "INR", zap.NewNop(), nil)
	_, err := svc.CreateOrder(context.Background(), billing.NewAmount(1), "", "r")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestVerify(t *testing.T) {
	g := &fakeGateway{orders: map[string]*Order{
		"order_linked":   {ID: "order_linked", Receipt: "receipt_invoice_5"},
		"order_missing":  {ID: "order_missing", Receipt: "receipt_invoice_99"},
		"order_garbage":  {ID: "order_garbage", Receipt: "foo_invoice_5"},
		"order_nonnum":   {ID: "order_nonnum", Receipt: "receipt_invoice_abc"},
		"order_noreceip": {ID: "order_noreceip"},
	}}

	t.Run("tampered signature fails closed", func(t *testing.T) {
		svc, st := newService(g)
		req := signed("order_linked", "pay_1")
		req.Signature = Signature(secret, "order_linked", "pay_2")

		res, err := svc.Verify(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidSignature)
		require.Nil(t, res)
		require.Empty(t, st.paid)
	})

	t.Run("missing parameters", func(t *testing.T) {
		svc, _ := newService(g)
		_, err := svc.Verify(context.Background(), VerifyRequest{OrderID: "order_linked"})
		require.Equal(t, apperror.Validation, apperror.KindOf(err))
	})

	t.Run("links invoice", func(t *testing.T) {
		svc, st := newService(g)
		res, err := svc.Verify(context.Background(), signed("order_linked", "pay_1"))
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Status)
		require.Equal(t, MsgUpdated, res.Message)
		require.NotNil(t, res.InvoiceID)
		require.EqualValues(t, 5, *res.InvoiceID)
		require.Equal(t, "pay_1", st.paid[5].PaymentID)
		require.Equal(t, "order_linked", st.paid[5].OrderID)
	})

	unlinked := map[string]string{
		"order_missing":  MsgNotUpdated,
		"order_nonnum":   MsgNotUpdated,
		"order_garbage":  MsgUnparseable,
		"order_noreceip": MsgNoReceipt,
	}
	for orderID, msg := range unlinked {
		t.Run(orderID, func(t *testing.T) {
			svc, st := newService(g)
			res, err := svc.Verify(context.Background(), signed(orderID, "pay_1"))
			require.NoError(t, err)
			require.Equal(t, StatusSuccess, res.Status)
			require.Equal(t, msg, res.Message)
			require.Nil(t, res.InvoiceID)
			require.Empty(t, st.paid)
		})
	}

	t.Run("failed invoice conflict is reported unlinked", func(t *testing.T) {
		svc, st := newService(g)
		st.err = fmt.Errorf("invoice 5 is Failed: %w", store.ErrConflict)
		res, err := svc.Verify(context.Background(), signed("order_linked", "pay_1"))
		require.NoError(t, err)
		require.Equal(t, MsgNotUpdated, res.Message)
		require.Nil(t, res.InvoiceID)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		svc, st := newService(g)
		st.err = errors.New("connection reset by peer")
		res, err := svc.Verify(context.Background(), signed("order_linked", "pay_1"))
		require.Nil(t, res)
		require.Equal(t, apperror.Internal, apperror.KindOf(err))
		require.ErrorContains(t, err, "connection reset by peer")
	})

	t.Run("gateway failure", func(t *testing.T) {
		svc, _ := newService(&fakeGateway{fetchErr: errors.New("timeout")})
		_, err := svc.Verify(context.Background(), signed("order_linked", "pay_1"))
		require.Equal(t, apperror.Upstream, apperror.KindOf(err))
	})
}

func TestOrderFromMap(t *testing.T) {
	o := orderFromMap(map[string]interface{}{
		"id":       "order_9",
		"amount":   float64(2750),
		"currency": "INR",
		"receipt":  "receipt_invoice_9",
		"status":   "created",
	})
	require.Equal(t, &Order{ID: "order_9", Amount: 2750, Currency: "INR", Receipt: "receipt_invoice_9", Status: "created"}, o)
}
