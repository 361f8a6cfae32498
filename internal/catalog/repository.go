package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/shopgate/internal/infrastructure/database"
)

// Repository defines catalog persistence.
type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id string) error
	PlaceOrder(ctx context.Context, username, productID string, quantity int) (*Order, error)
	ListOrders(ctx context.Context, username string) ([]Order, error)
}

// SQLiteRepository implements Repository on the shopgate database.
type SQLiteRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLiteRepository creates a catalog repository on db.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const productColumns = "id, name, description, price_cents, stock, created_at, updated_at"

// ListProducts returns all products ordered by name.
func (r *SQLiteRepository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

// GetProduct returns one product or ErrProductNotFound.
func (r *SQLiteRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	return scanProduct(row)
}

// CreateProduct inserts p, generating its ID and timestamps.
func (r *SQLiteRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = "prd-" + uuid.NewString()
	}
	now := r.timestamp()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price_cents, stock, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.PriceCents, p.Stock,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating product: %w", err)
	}
	return nil
}

// UpdateProduct replaces the mutable fields of an existing product.
func (r *SQLiteRepository) UpdateProduct(ctx context.Context, p *Product) error {
	now := r.timestamp()

	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price_cents = ?, stock = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, p.PriceCents, p.Stock, now.Format(time.RFC3339), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating product: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrProductNotFound
	}
	p.UpdatedAt = now
	return nil
}

// DeleteProduct removes a product. Products with orders are kept and
// ErrProductInUse is returned.
func (r *SQLiteRepository) DeleteProduct(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrProductInUse
		}
		return fmt.Errorf("deleting product: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

// PlaceOrder records an order and decrements stock in one transaction.
func (r *SQLiteRepository) PlaceOrder(ctx context.Context, username, productID string, quantity int) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var price int64
	var stock int
	err = tx.QueryRowContext(ctx, "SELECT price_cents, stock FROM products WHERE id = ?", productID).Scan(&price, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("reading product: %w", err)
	}
	if stock < quantity {
		return nil, ErrInsufficientStock
	}

	now := r.timestamp()
	if _, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ?",
		quantity, now.Format(time.RFC3339), productID,
	); err != nil {
		return nil, fmt.Errorf("decrementing stock: %w", err)
	}

	order := &Order{
		ID:         "ord-" + uuid.NewString(),
		Username:   username,
		ProductID:  productID,
		Quantity:   quantity,
		TotalCents: price * int64(quantity),
		CreatedAt:  now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, username, product_id, quantity, total_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.Username, order.ProductID, order.Quantity, order.TotalCents,
		now.Format(time.RFC3339),
	); err != nil {
		return nil, fmt.Errorf("inserting order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing order: %w", err)
	}
	return order, nil
}

// ListOrders returns username's orders, newest first.
func (r *SQLiteRepository) ListOrders(ctx context.Context, username string) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, product_id, quantity, total_cents, created_at
		 FROM orders WHERE username = ? ORDER BY created_at DESC, id ASC`, username)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var o Order
		var createdAt string
		if err := rows.Scan(&o.ID, &o.Username, &o.ProductID, &o.Quantity, &o.TotalCents, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return orders, nil
}

func (r *SQLiteRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Second)
}

// scanner is satisfied by sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*Product, error) {
	var p Product
	var createdAt, updatedAt string
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Stock, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scanning product: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &p, nil
}
