package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []OrderLineItem `json:"items,omitempty"`
}

// OrderLineItem is the product, quantity and price captured from one cart line at
// checkout. Price is the cart line total, not the live product price.
type OrderLineItem struct {
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
