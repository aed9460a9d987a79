package orders

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/shopstack/storefront/internal/app/domain/catalog"
	"github.com/shopstack/storefront/internal/app/domain/order"
	"github.com/shopstack/storefront/internal/app/services/auth"
	"github.com/shopstack/storefront/internal/app/storage/memory"
	apperrors "github.com/shopstack/storefront/internal/errors"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, PricingPolicy{}, nil), store
}

func seedProduct(t *testing.T, store *memory.Store, name string, price float64, stock int) catalog.Product {
	t.Helper()
	p, err := store.CreateProduct(context.Background(), catalog.Product{Name: name, Price: price, CountInStock: stock})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func TestPlaceOrderComputesPrices(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, store, "Widget", 19.99, 10)

	placed, err := svc.PlaceOrder(ctx, "user-1", PlaceOrderInput{
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 2}},
		Shipping:      order.ShippingAddress{Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		PaymentMethod: "paypal",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if placed.ItemsPrice != 39.98 {
		t.Fatalf("expected items price 39.98, got %v", placed.ItemsPrice)
	}
	if placed.TaxPrice != 6.00 {
		t.Fatalf("expected tax 6.00, got %v", placed.TaxPrice)
	}
	if placed.ShippingPrice != 10.00 {
		t.Fatalf("expected shipping 10.00, got %v", placed.ShippingPrice)
	}
	if placed.TotalPrice != 55.98 {
		t.Fatalf("expected total 55.98, got %v", placed.TotalPrice)
	}
	if placed.Status != order.StatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", placed.Status)
	}
	if placed.Items[0].UnitPrice != 19.99 {
		t.Fatalf("expected captured unit price, got %v", placed.Items[0].UnitPrice)
	}

	got, err := store.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.CountInStock != 8 {
		t.Fatalf("expected stock 8, got %d", got.CountInStock)
	}
}

func TestPlaceOrderIgnoresClientPrices(t *testing.T) {
	svc, store := newTestService(t)
	p := seedProduct(t, store, "Widget", 19.99, 10)

	placed, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderInput{
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 2, Name: "Cheap Widget", UnitPrice: 0.01}},
		Shipping:      order.ShippingAddress{Address: "1 Main St", City: "Springfield"},
		PaymentMethod: "paypal",
		ItemsPrice:    0.02,
		TaxPrice:      0,
		ShippingPrice: 0,
		TotalPrice:    0.02,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if placed.Items[0].UnitPrice != 19.99 {
		t.Fatalf("unit price must come from the catalog, got %v", placed.Items[0].UnitPrice)
	}
	if placed.Items[0].Name != "Widget" {
		t.Fatalf("item name must come from the catalog, got %q", placed.Items[0].Name)
	}
	if placed.TotalPrice != 55.98 {
		t.Fatalf("total must be recomputed server-side, got %v", placed.TotalPrice)
	}
}

func TestPlaceOrderFreeShipping(t *testing.T) {
	svc, store := newTestService(t)
	p := seedProduct(t, store, "Widget", 60, 10)

	placed, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderInput{
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 2}},
		Shipping:      order.ShippingAddress{Address: "1 Main St", City: "Springfield"},
		PaymentMethod: "paypal",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if placed.ShippingPrice != 0 {
		t.Fatalf("expected free shipping above threshold, got %v", placed.ShippingPrice)
	}
}

func TestPlaceOrderCapturedPriceSurvivesCatalogChange(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, store, "Widget", 19.99, 10)

	placed, err := svc.PlaceOrder(ctx, "user-1", PlaceOrderInput{
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 1}},
		Shipping:      order.ShippingAddress{Address: "1 Main St", City: "Springfield"},
		PaymentMethod: "paypal",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	p.Price = 99.99
	if _, err := store.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("update product: %v", err)
	}

	got, err := svc.GetOrder(ctx, auth.Identity{UserID: "user-1"}, placed.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Items[0].UnitPrice != 19.99 {
		t.Fatalf("captured price changed: %v", got.Items[0].UnitPrice)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	svc, store := newTestService(t)
	p := seedProduct(t, store, "Widget", 10, 5)
	shipping := order.ShippingAddress{Address: "1 Main St", City: "Springfield"}

	tests := []struct {
		name  string
		input PlaceOrderInput
	}{
		{"empty items", PlaceOrderInput{Shipping: shipping, PaymentMethod: "paypal"}},
		{"zero quantity", PlaceOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 0}}, Shipping: shipping, PaymentMethod: "paypal"}},
		{"negative quantity", PlaceOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: -1}}, Shipping: shipping, PaymentMethod: "paypal"}},
		{"duplicate product", PlaceOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}, {ProductID: p.ID, Quantity: 1}}, Shipping: shipping, PaymentMethod: "paypal"}},
		{"missing payment method", PlaceOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}, Shipping: shipping}},
		{"missing shipping", PlaceOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}, PaymentMethod: "paypal"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(context.Background(), "user-1", tc.input)
			svcErr := apperrors.GetServiceError(err)
			if svcErr == nil || svcErr.HTTPStatus != http.StatusBadRequest {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderInput{
		Items:         []ItemInput{{ProductID: "ghost", Quantity: 1}},
		Shipping:      order.ShippingAddress{Address: "1 Main St", City: "Springfield"},
		PaymentMethod: "paypal",
	})
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, store, "Widget", 10, 1)

	_, err := svc.PlaceOrder(ctx, "user-1", PlaceOrderInput{
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 2}},
		Shipping:      order.ShippingAddress{Address: "1 Main St", City: "Springfield"},
		PaymentMethod: "paypal",
	})
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := store.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.CountInStock != 1 {
		t.Fatalf("stock must be untouched after failed placement, got %d", got.CountInStock)
	}
}

func TestPlaceOrderRejectionLeavesOtherStockUntouched(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	ok := seedProduct(t, store, "Plenty", 10, 5)
	scarce := seedProduct(t, store, "Scarce", 10, 0)

	_, err := svc.PlaceOrder(ctx, "user-1", PlaceOrderInput{
		Items: []ItemInput{
			{ProductID: ok.ID, Quantity: 1},
			{ProductID: scarce.ID, Quantity: 1},
		},
		Shipping:      order.ShippingAddress{Address: "1 Main St", City: "Springfield"},
		PaymentMethod: "paypal",
	})
	if err == nil {
		t.Fatal("expected failure")
	}

	got, err := store.GetProduct(ctx, ok.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.CountInStock != 5 {
		t.Fatalf("partial decrement leaked: stock %d", got.CountInStock)
	}
}

func TestConcurrentPlacementNeverOversells(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, store, "Widget", 10, 5)

	const workers = 20
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, "user-1", PlaceOrderInput{
				Items:         []ItemInput{{ProductID: p.ID, Quantity: 1}},
				Shipping:      order.ShippingAddress{Address: "1 Main St", City: "Springfield"},
				PaymentMethod: "paypal",
			})
			if err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 5 {
		t.Fatalf("expected exactly 5 successful placements, got %d", count)
	}

	got, err := store.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.CountInStock != 0 {
		t.Fatalf("expected stock 0, got %d", got.CountInStock)
	}
}

func placeTestOrder(t *testing.T, svc *Service, store *memory.Store, userID string) order.Order {
	t.Helper()
	p := seedProduct(t, store, "Widget", 10, 5)
	placed, err := svc.PlaceOrder(context.Background(), userID, PlaceOrderInput{
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 1}},
		Shipping:      order.ShippingAddress{Address: "1 Main St", City: "Springfield"},
		PaymentMethod: "paypal",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return placed
}

func TestMarkPaidTransitions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	caller := auth.Identity{UserID: "user-1"}
	placed := placeTestOrder(t, svc, store, "user-1")

	paid, err := svc.MarkPaid(ctx, caller, placed.ID, PaymentInput{ProviderID: "pp-1", Status: "COMPLETED", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != order.StatusPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}
	if paid.PaidAt.IsZero() {
		t.Fatal("expected paid_at to be set")
	}

	// Same provider reference repeats as a no-op.
	again, err := svc.MarkPaid(ctx, caller, placed.ID, PaymentInput{ProviderID: "pp-1"})
	if err != nil {
		t.Fatalf("repeat mark paid: %v", err)
	}
	if !again.PaidAt.Equal(paid.PaidAt) {
		t.Fatal("idempotent repeat must not change paid_at")
	}

	// A different reference conflicts.
	_, err = svc.MarkPaid(ctx, caller, placed.ID, PaymentInput{ProviderID: "pp-2"})
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMarkDeliveredRequiresPaid(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	admin := auth.Identity{UserID: "admin-1", IsAdmin: true}
	placed := placeTestOrder(t, svc, store, "user-1")

	_, err := svc.MarkDelivered(ctx, admin, placed.ID)
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected conflict for unpaid order, got %v", err)
	}

	if _, err := svc.MarkPaid(ctx, auth.Identity{UserID: "user-1"}, placed.ID, PaymentInput{ProviderID: "pp-1"}); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	delivered, err := svc.MarkDelivered(ctx, admin, placed.ID)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if delivered.Status != order.StatusDelivered || delivered.DeliveredAt.IsZero() {
		t.Fatalf("unexpected delivered order: %+v", delivered)
	}

	// Delivered repeats as a no-op.
	if _, err := svc.MarkDelivered(ctx, admin, placed.ID); err != nil {
		t.Fatalf("repeat mark delivered: %v", err)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	placed := placeTestOrder(t, svc, store, "user-1")

	if _, err := svc.GetOrder(ctx, auth.Identity{UserID: "user-1"}, placed.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.GetOrder(ctx, auth.Identity{UserID: "admin-1", IsAdmin: true}, placed.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}

	_, err := svc.GetOrder(ctx, auth.Identity{UserID: "user-2"}, placed.ID)
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusNotFound {
		t.Fatalf("foreign order must read as not found, got %v", err)
	}
}

func TestListMyOrders(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	placeTestOrder(t, svc, store, "user-1")
	placeTestOrder(t, svc, store, "user-1")
	placeTestOrder(t, svc, store, "user-2")

	mine, err := svc.ListMyOrders(ctx, "user-1")
	if err != nil {
		t.Fatalf("list my orders: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(mine))
	}

	all, err := svc.ListOrders(ctx)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(all))
	}
}
