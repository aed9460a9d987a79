// Package storage defines the persistence interfaces shared by the memory
// and postgres implementations.
package storage

import (
	"context"
	"errors"

	"github.com/shopstack/storefront/internal/app/domain/catalog"
	"github.com/shopstack/storefront/internal/app/domain/order"
	"github.com/shopstack/storefront/internal/app/domain/user"
)

// Sentinel errors returned by every store implementation so callers can
// branch without knowing the backend.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// UserStore persists account records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ProductStore persists catalog products and their reviews.
type ProductStore interface {
	CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	ListProducts(ctx context.Context, keyword string, page, perPage int) (catalog.Page, error)
	DeleteProduct(ctx context.Context, id string) error
}

// OrderStore persists orders. PlaceOrder decrements stock for every line item
// and inserts the order as one atomic operation: either all stock is reserved
// and the order exists, or nothing changed. Concurrent placements against the
// same product serialize on the stock check-and-decrement, so stock never
// goes negative.
type OrderStore interface {
	PlaceOrder(ctx context.Context, o order.Order) (order.Order, error)
	UpdateOrder(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error)
	ListOrders(ctx context.Context) ([]order.Order, error)
}
