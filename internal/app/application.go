// Package app wires the storefront services to their storage backends.
package app

import (
	"time"

	"github.com/shopstack/storefront/internal/app/services/auth"
	"github.com/shopstack/storefront/internal/app/services/catalog"
	"github.com/shopstack/storefront/internal/app/services/orders"
	"github.com/shopstack/storefront/internal/app/storage"
	"github.com/shopstack/storefront/internal/app/storage/memory"
	"github.com/shopstack/storefront/pkg/logger"
)

// Stores selects the persistence backends. Nil fields default to a shared
// in-memory store, which is what tests and local development use.
type Stores struct {
	Users    storage.UserStore
	Products storage.ProductStore
	Orders   storage.OrderStore
}

// Options configures the application.
type Options struct {
	Stores    Stores
	JWTSecret string
	TokenTTL  time.Duration
	Pricing   orders.PricingPolicy
	Logger    *logger.Logger
}

// Application bundles the storefront services behind one constructor.
type Application struct {
	Auth    *auth.Service
	Catalog *catalog.Service
	Orders  *orders.Service
	Tokens  *auth.TokenIssuer
}

// New creates an Application from the given options.
func New(opts Options) *Application {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("app")
	}

	stores := opts.Stores
	if stores.Users == nil || stores.Products == nil || stores.Orders == nil {
		mem := memory.New()
		if stores.Users == nil {
			stores.Users = mem
		}
		if stores.Products == nil {
			stores.Products = mem
		}
		if stores.Orders == nil {
			stores.Orders = mem
		}
	}

	tokens := auth.NewTokenIssuer(opts.JWTSecret, opts.TokenTTL)

	return &Application{
		Auth:    auth.New(stores.Users, tokens, log.WithField("service", "auth")),
		Catalog: catalog.New(stores.Products, log.WithField("service", "catalog")),
		Orders:  orders.New(stores.Orders, stores.Products, opts.Pricing, log.WithField("service", "orders")),
		Tokens:  tokens,
	}
}
