package models

import (
	"strconv"
	"time"
)

// OrderPlaced is published once a checkout has committed.
type OrderPlaced struct {
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []OrderLineItem `json:"items"`
}

func (OrderPlaced) Type() string { return "OrderPlaced" }

// Key keeps all events of one order on the same partition.
func (e OrderPlaced) Key() string { return strconv.FormatInt(e.OrderID, 10) }
