// Package catalog stores the storefront's products and orders.
package catalog

import (
	"errors"
	"time"
)

// Product is an item for sale. Prices are integer cents.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Order is a purchase of one product by one user.
type Order struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductInUse      = errors.New("product has orders and cannot be deleted")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)
