// ABOUTME: Cart models for the device-local cart and the server cart
// ABOUTME: Local lines are keyed by product and canonical attributes

package models

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LocalCartLine is a cart entry held on the device before authentication
type LocalCartLine struct {
	ProductID  int64             `json:"productId"`
	VariantID  *int64            `json:"variantId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Quantity   int               `json:"quantity"`
	Name       string            `json:"name,omitempty"`
	Price      decimal.Decimal   `json:"price"`
	AddedAt    time.Time         `json:"addedAt"`
}

// Key identifies a line by product and its selected attributes
func (l LocalCartLine) Key() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(l.ProductID, 10))
	if l.VariantID != nil {
		b.WriteString("#")
		b.WriteString(strconv.FormatInt(*l.VariantID, 10))
	}

	names := make([]string, 0, len(l.Attributes))
	for name := range l.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString("|")
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(l.Attributes[name])
	}
	return b.String()
}

// LineTotal is price times quantity
func (l LocalCartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// RemoteCartLine is a line on the server cart
type RemoteCartLine struct {
	ItemID      int64             `json:"id"`
	ProductID   int64             `json:"product"`
	ProductName string            `json:"product_name"`
	VariantID   *int64            `json:"variant"`
	Attributes  map[string]string `json:"variant_info"`
	Quantity    int               `json:"quantity"`
	LineTotal   decimal.Decimal   `json:"line_total"`
}

// RemoteCart is the server-authoritative cart
type RemoteCart struct {
	ID         int64            `json:"id"`
	UserID     int64            `json:"user"`
	Lines      []RemoteCartLine `json:"items"`
	TotalItems int              `json:"total_items"`
	Total      decimal.Decimal  `json:"subtotal"`
}
