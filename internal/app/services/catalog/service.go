// Package catalog implements product browsing, management, and reviews.
package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shopstack/storefront/internal/app/domain/catalog"
	"github.com/shopstack/storefront/internal/app/domain/user"
	"github.com/shopstack/storefront/internal/app/storage"
	apperrors "github.com/shopstack/storefront/internal/errors"
	"github.com/shopstack/storefront/pkg/logger"
)

// DefaultPageSize is the product listing page size when the client does not
// ask for one.
const DefaultPageSize = 10

// Service manages the product catalog.
type Service struct {
	products storage.ProductStore
	log      *logger.Logger
}

// New creates the catalog service. A nil logger defaults to a component logger.
func New(products storage.ProductStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{products: products, log: log}
}

// ListProducts returns one page of products, optionally filtered by a
// case-insensitive keyword match on the name.
func (s *Service) ListProducts(ctx context.Context, keyword string, page, perPage int) (catalog.Page, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	result, err := s.products.ListProducts(ctx, strings.TrimSpace(keyword), page, perPage)
	if err != nil {
		return catalog.Page{}, apperrors.Internal(err)
	}
	return result, nil
}

// GetProduct returns a single product with its reviews.
func (s *Service) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return catalog.Product{}, apperrors.NotFound("product not found")
		}
		return catalog.Product{}, apperrors.Internal(err)
	}
	return p, nil
}

// ProductInput is the payload for creating or updating a product.
type ProductInput struct {
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	Brand        string  `json:"brand"`
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	CountInStock int     `json:"count_in_stock"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.Validation("name is required")
	}
	if in.Price < 0 {
		return apperrors.Validation("price must not be negative")
	}
	if in.CountInStock < 0 {
		return apperrors.Validation("count_in_stock must not be negative")
	}
	return nil
}

// CreateProduct adds a product to the catalog.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (catalog.Product, error) {
	if err := in.validate(); err != nil {
		return catalog.Product{}, err
	}
	created, err := s.products.CreateProduct(ctx, catalog.Product{
		Name:         strings.TrimSpace(in.Name),
		Image:        in.Image,
		Brand:        in.Brand,
		Category:     in.Category,
		Description:  in.Description,
		Price:        in.Price,
		CountInStock: in.CountInStock,
	})
	if err != nil {
		return catalog.Product{}, apperrors.Internal(err)
	}
	s.log.WithField("product_id", created.ID).Info("product created")
	return created, nil
}

// UpdateProduct replaces the editable fields of a product. Reviews and the
// derived rating are preserved.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (catalog.Product, error) {
	if err := in.validate(); err != nil {
		return catalog.Product{}, err
	}
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Image = in.Image
	p.Brand = in.Brand
	p.Category = in.Category
	p.Description = in.Description
	p.Price = in.Price
	p.CountInStock = in.CountInStock

	updated, err := s.products.UpdateProduct(ctx, p)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return catalog.Product{}, apperrors.NotFound("product not found")
		}
		return catalog.Product{}, apperrors.Internal(err)
	}
	return updated, nil
}

// DeleteProduct removes a product from the catalog.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("product not found")
		}
		return apperrors.Internal(err)
	}
	s.log.WithField("product_id", id).Info("product deleted")
	return nil
}

// ReviewInput is the payload for posting a review.
type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// AddReview attaches a review from the given user to a product. A user may
// review each product at most once.
func (s *Service) AddReview(ctx context.Context, productID string, reviewer user.User, in ReviewInput) (catalog.Product, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return catalog.Product{}, apperrors.Validation("rating must be between 1 and 5")
	}

	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return catalog.Product{}, err
	}

	for _, r := range p.Reviews {
		if r.UserID == reviewer.ID {
			return catalog.Product{}, apperrors.Conflict("product already reviewed")
		}
	}

	p.Reviews = append(p.Reviews, catalog.Review{
		ID:        uuid.NewString(),
		UserID:    reviewer.ID,
		Name:      reviewer.Name,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: time.Now().UTC(),
	})

	updated, err := s.products.UpdateProduct(ctx, p)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return catalog.Product{}, apperrors.NotFound("product not found")
		}
		return catalog.Product{}, apperrors.Internal(err)
	}
	return updated, nil
}

// TopProducts returns up to limit products ordered by rating.
func (s *Service) TopProducts(ctx context.Context, limit int) ([]catalog.Product, error) {
	if limit <= 0 {
		limit = 3
	}
	page, err := s.products.ListProducts(ctx, "", 1, 1000)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	products := page.Products
	sort.SliceStable(products, func(i, j int) bool { return products[i].Rating > products[j].Rating })
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}
