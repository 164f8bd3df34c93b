package models

import "github.com/shopspring/decimal"

// CartLine is one product entry of a user's shopping cart. UnitPrice is copied from
// the product when the line is written, so later price changes do not affect it.
type CartLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Cart struct {
	UserID int64           `json:"user_id"`
	Lines  []CartLine      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// NewCart builds a cart and sums its line totals.
func NewCart(userID int64, lines []CartLine) Cart {
	if lines == nil {
		lines = []CartLine{}
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return Cart{UserID: userID, Lines: lines, Total: total}
}
