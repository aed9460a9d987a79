// Package orders implements order placement, pricing, and the order
// lifecycle state machine.
package orders

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopstack/storefront/internal/app/domain/order"
	"github.com/shopstack/storefront/internal/app/services/auth"
	"github.com/shopstack/storefront/internal/app/storage"
	apperrors "github.com/shopstack/storefront/internal/errors"
	"github.com/shopstack/storefront/pkg/logger"
)

// PricingPolicy controls the server-side tax and shipping computation.
type PricingPolicy struct {
	TaxRate           float64 `yaml:"tax_rate"`
	ShippingFlat      float64 `yaml:"shipping_flat"`
	FreeShippingAbove float64 `yaml:"free_shipping_above"`
}

// DefaultPricingPolicy is used when no policy is configured.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{TaxRate: 0.15, ShippingFlat: 10.00, FreeShippingAbove: 100.00}
}

// Service manages orders.
type Service struct {
	orders   storage.OrderStore
	products storage.ProductStore
	pricing  PricingPolicy
	log      *logger.Logger
}

// New creates the orders service. A nil logger defaults to a component logger
// and a zero pricing policy defaults to DefaultPricingPolicy.
func New(orders storage.OrderStore, products storage.ProductStore, pricing PricingPolicy, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	if pricing == (PricingPolicy{}) {
		pricing = DefaultPricingPolicy()
	}
	return &Service{orders: orders, products: products, pricing: pricing, log: log}
}

// ItemInput is one requested line item. Only the product reference and
// quantity are taken from the client; prices come from the catalog. The
// remaining fields are cart echoes the storefront client sends along and are
// accepted but never read.
type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`

	Name      string  `json:"name,omitempty"`
	Image     string  `json:"image,omitempty"`
	UnitPrice float64 `json:"price,omitempty"`
}

// PlaceOrderInput is the payload for placing an order. The price fields are
// client-computed cart totals, accepted but never read; every price is
// recomputed server-side.
type PlaceOrderInput struct {
	Items         []ItemInput           `json:"items"`
	Shipping      order.ShippingAddress `json:"shipping"`
	PaymentMethod string                `json:"payment_method"`

	ItemsPrice    float64 `json:"items_price,omitempty"`
	TaxPrice      float64 `json:"tax_price,omitempty"`
	ShippingPrice float64 `json:"shipping_price,omitempty"`
	TotalPrice    float64 `json:"total_price,omitempty"`
}

// PlaceOrder validates the request, recomputes all prices from the current
// catalog, and atomically reserves stock while inserting the order. The
// client never supplies prices.
func (s *Service) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (order.Order, error) {
	if len(in.Items) == 0 {
		return order.Order{}, apperrors.Validation("order must contain at least one item")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return order.Order{}, apperrors.Validation("payment_method is required")
	}
	if strings.TrimSpace(in.Shipping.Address) == "" || strings.TrimSpace(in.Shipping.City) == "" {
		return order.Order{}, apperrors.Validation("shipping address is incomplete")
	}

	seen := make(map[string]bool, len(in.Items))
	items := make([]order.LineItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" {
			return order.Order{}, apperrors.Validation("item product_id is required")
		}
		if it.Quantity <= 0 {
			return order.Order{}, apperrors.Validation("item quantity must be positive")
		}
		if seen[it.ProductID] {
			return order.Order{}, apperrors.Validation("duplicate product in order")
		}
		seen[it.ProductID] = true

		p, err := s.products.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return order.Order{}, apperrors.NotFound("product not found: " + it.ProductID)
			}
			return order.Order{}, apperrors.Internal(err)
		}
		items = append(items, order.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
		})
	}

	o := order.Order{
		UserID:        userID,
		Items:         items,
		Shipping:      in.Shipping,
		PaymentMethod: in.PaymentMethod,
		Status:        order.StatusPendingPayment,
	}
	s.price(&o)

	placed, err := s.orders.PlaceOrder(ctx, o)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return order.Order{}, apperrors.NotFound("product not found")
		case errors.Is(err, storage.ErrInsufficientStock):
			return order.Order{}, apperrors.Conflict("insufficient stock")
		default:
			return order.Order{}, apperrors.Internal(err)
		}
	}

	s.log.WithFields(map[string]interface{}{
		"order_id": placed.ID,
		"user_id":  userID,
		"total":    placed.TotalPrice,
	}).Info("order placed")
	return placed, nil
}

// price fills in the computed price fields from the captured line items.
func (s *Service) price(o *order.Order) {
	var items float64
	for _, it := range o.Items {
		items += it.UnitPrice * float64(it.Quantity)
	}
	o.ItemsPrice = round2(items)
	o.TaxPrice = round2(o.ItemsPrice * s.pricing.TaxRate)
	if o.ItemsPrice > s.pricing.FreeShippingAbove {
		o.ShippingPrice = 0
	} else {
		o.ShippingPrice = s.pricing.ShippingFlat
	}
	o.TotalPrice = round2(o.ItemsPrice + o.TaxPrice + o.ShippingPrice)
}

// GetOrder returns an order visible to the caller. Non-admins only see their
// own orders; a foreign order reads as not found rather than forbidden so
// order IDs are not probeable.
func (s *Service) GetOrder(ctx context.Context, caller auth.Identity, orderID string) (order.Order, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return order.Order{}, apperrors.NotFound("order not found")
		}
		return order.Order{}, apperrors.Internal(err)
	}
	if !caller.IsAdmin && o.UserID != caller.UserID {
		return order.Order{}, apperrors.NotFound("order not found")
	}
	return o, nil
}

// PaymentInput is the provider confirmation attached when marking an order paid.
type PaymentInput struct {
	ProviderID string `json:"provider_id"`
	Status     string `json:"status"`
	Email      string `json:"email"`
}

// MarkPaid transitions an order from pending_payment to paid and records the
// payment result. Repeating the call with the same provider reference is a
// no-op; a different reference on an already paid order is a conflict.
func (s *Service) MarkPaid(ctx context.Context, caller auth.Identity, orderID string, in PaymentInput) (order.Order, error) {
	o, err := s.GetOrder(ctx, caller, orderID)
	if err != nil {
		return order.Order{}, err
	}

	switch o.Status {
	case order.StatusPendingPayment:
		// proceed
	case order.StatusPaid, order.StatusDelivered:
		if o.PaymentResult.ProviderID == in.ProviderID {
			return o, nil
		}
		return order.Order{}, apperrors.Conflict("order already paid with a different payment reference")
	default:
		return order.Order{}, apperrors.Conflict("order cannot be paid in status " + string(o.Status))
	}

	if strings.TrimSpace(in.ProviderID) == "" {
		return order.Order{}, apperrors.Validation("payment provider_id is required")
	}

	o.Status = order.StatusPaid
	o.PaymentResult = order.PaymentResult{ProviderID: in.ProviderID, Status: in.Status, Email: in.Email}
	o.PaidAt = nowUTC()

	updated, err := s.orders.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, apperrors.Internal(err)
	}
	s.log.WithField("order_id", orderID).Info("order paid")
	return updated, nil
}

// MarkDelivered transitions a paid order to delivered. Admin only; the
// handler enforces the role.
func (s *Service) MarkDelivered(ctx context.Context, caller auth.Identity, orderID string) (order.Order, error) {
	o, err := s.GetOrder(ctx, caller, orderID)
	if err != nil {
		return order.Order{}, err
	}

	switch o.Status {
	case order.StatusPaid:
		// proceed
	case order.StatusDelivered:
		return o, nil
	default:
		return order.Order{}, apperrors.Conflict("order must be paid before delivery")
	}

	o.Status = order.StatusDelivered
	o.DeliveredAt = nowUTC()

	updated, err := s.orders.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, apperrors.Internal(err)
	}
	s.log.WithField("order_id", orderID).Info("order delivered")
	return updated, nil
}

// ListMyOrders returns the caller's own orders.
func (s *Service) ListMyOrders(ctx context.Context, userID string) ([]order.Order, error) {
	result, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return result, nil
}

// ListOrders returns all orders. Admin only; the handler enforces the role.
func (s *Service) ListOrders(ctx context.Context) ([]order.Order, error) {
	result, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return result, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
