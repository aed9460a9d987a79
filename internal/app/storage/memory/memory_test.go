package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopstack/storefront/internal/app/domain/catalog"
	"github.com/shopstack/storefront/internal/app/domain/order"
	"github.com/shopstack/storefront/internal/app/domain/user"
	"github.com/shopstack/storefront/internal/app/storage"
)

func TestUserEmailUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, user.User{Name: "Ada", Email: "ada@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := s.CreateUser(ctx, user.User{Name: "Imposter", Email: "ADA@example.com"})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for same email ignoring case, got %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "Ada@Example.com")
	if err != nil {
		t.Fatalf("lookup by email: %v", err)
	}
	if got.Name != "Ada" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUpdateUserRekeysEmailIndex(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, user.User{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	u.Email = "lovelace@example.com"
	if _, err := s.UpdateUser(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := s.GetUserByEmail(ctx, "ada@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("old email must be freed, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "lovelace@example.com"); err != nil {
		t.Fatalf("new email lookup: %v", err)
	}
}

func TestProductIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, catalog.Product{Name: "Widget", Price: 10, CountInStock: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mutating a returned copy must not leak into the store.
	created.Name = "Hacked"
	created.Reviews = append(created.Reviews, catalog.Review{ID: "r1", Rating: 1})

	got, err := s.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Widget" || len(got.Reviews) != 0 {
		t.Fatalf("store state was mutated through a returned copy: %+v", got)
	}
}

func TestPlaceOrderAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()

	inStock, err := s.CreateProduct(ctx, catalog.Product{Name: "Plenty", Price: 10, CountInStock: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	outOfStock, err := s.CreateProduct(ctx, catalog.Product{Name: "Gone", Price: 10, CountInStock: 0})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.PlaceOrder(ctx, order.Order{
		UserID: "u1",
		Items: []order.LineItem{
			{ProductID: inStock.ID, Quantity: 1, UnitPrice: 10},
			{ProductID: outOfStock.ID, Quantity: 1, UnitPrice: 10},
		},
	})
	if !errors.Is(err, storage.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	got, err := s.GetProduct(ctx, inStock.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CountInStock != 3 {
		t.Fatalf("stock must be untouched after rejection, got %d", got.CountInStock)
	}

	_, err = s.PlaceOrder(ctx, order.Order{
		UserID: "u1",
		Items:  []order.LineItem{{ProductID: "ghost", Quantity: 1}},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestUpdateOrderPreservesOwnership(t *testing.T) {
	s := New()
	ctx := context.Background()

	p, err := s.CreateProduct(ctx, catalog.Product{Name: "Widget", Price: 10, CountInStock: 5})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	placed, err := s.PlaceOrder(ctx, order.Order{
		UserID: "u1",
		Items:  []order.LineItem{{ProductID: p.ID, Quantity: 1, UnitPrice: 10}},
		Status: order.StatusPendingPayment,
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	placed.UserID = "attacker"
	placed.Status = order.StatusPaid
	updated, err := s.UpdateOrder(ctx, placed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UserID != "u1" {
		t.Fatalf("owner must be immutable, got %q", updated.UserID)
	}
	if updated.Status != order.StatusPaid {
		t.Fatalf("status update lost: %q", updated.Status)
	}
}
