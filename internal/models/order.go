// ABOUTME: Order and product models returned by the storefront API
// ABOUTME: Prices use decimal to match the server's string encoding

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a placed order line
type Order struct {
	ID             int64           `json:"id"`
	ProductID      int64           `json:"product"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	PaymentStatus  string          `json:"payment_status"`
	DeliveryStatus string          `json:"delivery_status"`
	IsCancelled    bool            `json:"is_cancelled"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Product is a catalog entry as returned by search
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Slug  string          `json:"slug,omitempty"`
	Price decimal.Decimal `json:"price"`
}
