package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	models "github.com/Ptunda/easy-shop/model"
)

const (
	insertOrder    = `INSERT INTO orders (user_id, order_date) VALUES (?, ?)`
	insertLineItem = `INSERT INTO order_line_items (order_id, product_id, quantity, price) VALUES (?, ?, ?, ?)`
	selectOrder    = `SELECT order_id, user_id, order_date FROM orders WHERE order_id = ?`
	selectItems    = `SELECT order_id, product_id, quantity, price FROM order_line_items WHERE order_id = ? ORDER BY product_id`
)

type orderTx struct {
	q sqlx.ExtContext
	d dialect
}

func (o orderTx) Create(ctx context.Context, userID int64, createdAt time.Time) (int64, error) {
	id, err := o.d.insertID(ctx, o.q, insertOrder, "order_id", userID, createdAt)
	if err != nil {
		return 0, errors.Wrap(err, "insert order")
	}
	return id, nil
}

type lineItemTx struct {
	q sqlx.ExtContext
	d dialect
}

func (l lineItemTx) Create(ctx context.Context, orderID, productID int64, quantity int, price decimal.Decimal) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if _, err := l.q.ExecContext(ctx, l.d.rebind(insertLineItem), orderID, productID, quantity, price); err != nil {
		return errors.Wrapf(err, "insert line item for product %d", productID)
	}
	return nil
}

// GetOrder returns an order header with its line items.
func (s *SQLStore) GetOrder(ctx context.Context, orderID int64) (models.Order, error) {
	var row OrderRow
	err := s.db.GetContext(ctx, &row, s.d.rebind(selectOrder), orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, errors.Wrapf(ErrNotFound, "order %d", orderID)
	}
	if err != nil {
		return models.Order{}, errors.Wrap(err, "select order")
	}

	var items []LineItemRow
	if err := s.db.SelectContext(ctx, &items, s.d.rebind(selectItems), orderID); err != nil {
		return models.Order{}, errors.Wrap(err, "select line items")
	}
	return row.Order(items), nil
}
