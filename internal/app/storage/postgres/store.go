package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/shopstack/storefront/internal/app/domain/catalog"
	"github.com/shopstack/storefront/internal/app/domain/order"
	"github.com/shopstack/storefront/internal/app/domain/user"
	"github.com/shopstack/storefront/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_users (id, name, email, password_hash, is_admin, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE store_users
		SET name = $2, email = lower($3), password_hash = $4, is_admin = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.IsAdmin, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, is_admin, created_at, updated_at
		FROM store_users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, is_admin, created_at, updated_at
		FROM store_users
		WHERE email = lower($1)
	`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, is_admin, created_at, updated_at
		FROM store_users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM store_users WHERE id = $1
	`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- ProductStore -----------------------------------------------------------

func (s *Store) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.RecomputeRating()

	reviewsJSON, err := json.Marshal(p.Reviews)
	if err != nil {
		return catalog.Product{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO store_products (id, name, image, brand, category, description, price, count_in_stock, reviews, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.Name, p.Image, p.Brand, p.Category, p.Description, p.Price, p.CountInStock, reviewsJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return catalog.Product{}, mapError(err)
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	existing, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		return catalog.Product{}, err
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	p.RecomputeRating()

	reviewsJSON, err := json.Marshal(p.Reviews)
	if err != nil {
		return catalog.Product{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE store_products
		SET name = $2, image = $3, brand = $4, category = $5, description = $6, price = $7, count_in_stock = $8, reviews = $9, updated_at = $10
		WHERE id = $1
	`, p.ID, p.Name, p.Image, p.Brand, p.Category, p.Description, p.Price, p.CountInStock, reviewsJSON, p.UpdatedAt)
	if err != nil {
		return catalog.Product{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return catalog.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, image, brand, category, description, price, count_in_stock, reviews, created_at, updated_at
		FROM store_products
		WHERE id = $1
	`, id)

	var (
		p          catalog.Product
		reviewsRaw []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Image, &p.Brand, &p.Category, &p.Description, &p.Price, &p.CountInStock, &reviewsRaw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return catalog.Product{}, mapError(err)
	}
	if len(reviewsRaw) > 0 {
		_ = json.Unmarshal(reviewsRaw, &p.Reviews)
	}
	p.RecomputeRating()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, keyword string, page, perPage int) (catalog.Page, error) {
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM store_products
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
	`, keyword).Scan(&total); err != nil {
		return catalog.Page{}, mapError(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, image, brand, category, description, price, count_in_stock, reviews, created_at, updated_at
		FROM store_products
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`, keyword, perPage, (page-1)*perPage)
	if err != nil {
		return catalog.Page{}, mapError(err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var (
			p          catalog.Product
			reviewsRaw []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Image, &p.Brand, &p.Category, &p.Description, &p.Price, &p.CountInStock, &reviewsRaw, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return catalog.Page{}, err
		}
		if len(reviewsRaw) > 0 {
			_ = json.Unmarshal(reviewsRaw, &p.Reviews)
		}
		p.RecomputeRating()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return catalog.Page{}, err
	}

	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	return catalog.Page{Products: products, Page: page, Pages: pages, Total: total}, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM store_products WHERE id = $1
	`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- OrderStore -------------------------------------------------------------

// PlaceOrder reserves stock and inserts the order inside one transaction.
// Each product row is locked with SELECT ... FOR UPDATE so concurrent
// placements serialize on the check-and-decrement and stock cannot go
// negative. Any failure rolls the whole transaction back.
func (s *Store) PlaceOrder(ctx context.Context, o order.Order) (order.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer tx.Rollback()

	for _, item := range o.Items {
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT count_in_stock FROM store_products WHERE id = $1 FOR UPDATE
		`, item.ProductID).Scan(&stock)
		if err != nil {
			return order.Order{}, mapError(err)
		}
		if stock < item.Quantity {
			return order.Order{}, storage.ErrInsufficientStock
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE store_products SET count_in_stock = count_in_stock - $2, updated_at = $3 WHERE id = $1
		`, item.ProductID, item.Quantity, now); err != nil {
			return order.Order{}, mapError(err)
		}
	}

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return order.Order{}, err
	}
	shippingJSON, err := json.Marshal(o.Shipping)
	if err != nil {
		return order.Order{}, err
	}
	paymentJSON, err := json.Marshal(o.PaymentResult)
	if err != nil {
		return order.Order{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO store_orders (id, user_id, items, shipping, payment_method, items_price, tax_price, shipping_price, total_price, status, payment_result, paid_at, delivered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, o.ID, o.UserID, itemsJSON, shippingJSON, o.PaymentMethod, o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice, o.Status, paymentJSON, toNullTime(o.PaidAt), toNullTime(o.DeliveredAt), o.CreatedAt, o.UpdatedAt); err != nil {
		return order.Order{}, mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, fmt.Errorf("commit order: %w", err)
	}
	return o, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	existing, err := s.GetOrder(ctx, o.ID)
	if err != nil {
		return order.Order{}, err
	}

	o.UserID = existing.UserID
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = time.Now().UTC()

	paymentJSON, err := json.Marshal(o.PaymentResult)
	if err != nil {
		return order.Order{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE store_orders
		SET status = $2, payment_result = $3, paid_at = $4, delivered_at = $5, updated_at = $6
		WHERE id = $1
	`, o.ID, o.Status, paymentJSON, toNullTime(o.PaidAt), toNullTime(o.DeliveredAt), o.UpdatedAt)
	if err != nil {
		return order.Order{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return order.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, items, shipping, payment_method, items_price, tax_price, shipping_price, total_price, status, payment_result, paid_at, delivered_at, created_at, updated_at
		FROM store_orders
		WHERE id = $1
	`, id)
	return scanOrder(row.Scan)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return s.listOrders(ctx, `
		SELECT id, user_id, items, shipping, payment_method, items_price, tax_price, shipping_price, total_price, status, payment_result, paid_at, delivered_at, created_at, updated_at
		FROM store_orders
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
}

func (s *Store) ListOrders(ctx context.Context) ([]order.Order, error) {
	return s.listOrders(ctx, `
		SELECT id, user_id, items, shipping, payment_method, items_price, tax_price, shipping_price, total_price, status, payment_result, paid_at, delivered_at, created_at, updated_at
		FROM store_orders
		ORDER BY created_at
	`)
}

func (s *Store) listOrders(ctx context.Context, query string, args ...interface{}) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanOrder(scan func(...interface{}) error) (order.Order, error) {
	var (
		o           order.Order
		itemsRaw    []byte
		shippingRaw []byte
		paymentRaw  []byte
		paidAt      sql.NullTime
		deliveredAt sql.NullTime
	)
	if err := scan(&o.ID, &o.UserID, &itemsRaw, &shippingRaw, &o.PaymentMethod, &o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice, &o.Status, &paymentRaw, &paidAt, &deliveredAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return order.Order{}, mapError(err)
	}
	if len(itemsRaw) > 0 {
		_ = json.Unmarshal(itemsRaw, &o.Items)
	}
	if len(shippingRaw) > 0 {
		_ = json.Unmarshal(shippingRaw, &o.Shipping)
	}
	if len(paymentRaw) > 0 {
		_ = json.Unmarshal(paymentRaw, &o.PaymentResult)
	}
	if paidAt.Valid {
		o.PaidAt = paidAt.Time.UTC()
	}
	if deliveredAt.Valid {
		o.DeliveredAt = deliveredAt.Time.UTC()
	}
	return o, nil
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
