package payment

import (
	"context"
	"fmt"
	"math"

	razorpay "github.com/razorpay/razorpay-go"
)

// OrderRequest asks the gateway to open an order. Amount is in minor units.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
}

// Order is the gateway's view of a payment order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Gateway is the payment provider the service talks to.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
}

// RazorpayGateway implements Gateway with the Razorpay orders API.
// The SDK does not take a context, so ctx is not propagated to the HTTP call.
type RazorpayGateway struct {
	client *razorpay.Client
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{client: razorpay.NewClient(keyID, keySecret)}
}

func (g *RazorpayGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	body, err := g.client.Order.Create(map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	return orderFromMap(body), nil
}

func (g *RazorpayGateway) FetchOrder(_ context.Context, orderID string) (*Order, error) {
	body, err := g.client.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch order %s: %w", orderID, err)
	}
	return orderFromMap(body), nil
}

// orderFromMap reads the fields we use from the SDK's decoded JSON.
func orderFromMap(body map[string]interface{}) *Order {
	o := &Order{}
	o.ID, _ = body["id"].(string)
	o.Currency, _ = body["currency"].(string)
	o.Receipt, _ = body["receipt"].(string)
	o.Status, _ = body["status"].(string)
	switch v := body["amount"].(type) {
	case float64:
		o.Amount = int64(math.Round(v))
	case int64:
		o.Amount = v
	case int:
		o.Amount = int64(v)
	}
	return o
}
