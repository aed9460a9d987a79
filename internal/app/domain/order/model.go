// Package order defines the order model and its status state machine.
package order

import "time"

// Status is the lifecycle state of an order. Transitions are strictly
// forward: pending_payment -> paid -> delivered.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusDelivered      Status = "delivered"
)

// LineItem is one ordered product with the unit price captured at order time.
// Later catalog price changes never alter persisted orders.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// ShippingAddress is the destination recorded with an order.
type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentResult holds metadata returned by the external payment provider.
type PaymentResult struct {
	ProviderID string `json:"provider_id"`
	Status     string `json:"status"`
	Email      string `json:"email"`
}

// Order represents a placed order. All price fields are computed server-side
// from the captured line-item prices; client-submitted totals are advisory.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []LineItem      `json:"items"`
	Shipping        ShippingAddress `json:"shipping"`
	PaymentMethod   string          `json:"payment_method"`
	ItemsPrice      float64         `json:"items_price"`
	TaxPrice        float64         `json:"tax_price"`
	ShippingPrice   float64         `json:"shipping_price"`
	TotalPrice      float64         `json:"total_price"`
	Status          Status          `json:"status"`
	PaymentResult   PaymentResult   `json:"payment_result"`
	PaidAt          time.Time       `json:"paid_at"`
	DeliveredAt     time.Time       `json:"delivered_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
