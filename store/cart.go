package store

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	models "github.com/Ptunda/easy-shop/model"
)

const (
	selectCartLines  = `SELECT product_id, quantity, unit_price FROM shopping_cart WHERE user_id = ? ORDER BY product_id`
	deleteCartLines  = `DELETE FROM shopping_cart WHERE user_id = ?`
	deleteListedRows = `DELETE FROM shopping_cart WHERE user_id = ? AND product_id IN (?)`

	// the unit price is copied from products when the line is first inserted;
	// later adds only bump the quantity.
	insertCartLine = `INSERT INTO shopping_cart (user_id, product_id, quantity, unit_price)
		SELECT ?, product_id, 1, price FROM products WHERE product_id = ?`
	updateCartLine = `UPDATE shopping_cart SET quantity = ? WHERE user_id = ? AND product_id = ?`
	deleteCartLine = `DELETE FROM shopping_cart WHERE user_id = ? AND product_id = ?`
)

// cartTx is the transaction-bound CartStore used by checkout.
type cartTx struct {
	q sqlx.ExtContext
	d dialect

	// product ids returned by ListLines, per user
	listed map[int64][]int64
}

// ListLines locks the user's cart rows until the transaction ends, so a
// concurrent checkout of the same cart waits and then sees it empty.
func (c *cartTx) ListLines(ctx context.Context, userID int64) ([]models.CartLine, error) {
	var rows []CartLineRow
	if err := sqlx.SelectContext(ctx, c.q, &rows, c.d.rebind(selectCartLines+" FOR UPDATE"), userID); err != nil {
		return nil, errors.Wrap(err, "select cart lines")
	}
	lines, err := cartLines(rows)
	if err != nil {
		return nil, err
	}

	if c.listed == nil {
		c.listed = make(map[int64][]int64)
	}
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	c.listed[userID] = ids
	return lines, nil
}

// Clear deletes the rows ListLines locked in this transaction. Row locks do not
// stop another session from inserting a new product for the user, and that
// line was never ordered, so it stays. Without a prior ListLines the whole cart
// is deleted.
func (c *cartTx) Clear(ctx context.Context, userID int64) error {
	ids, ok := c.listed[userID]
	if !ok {
		if _, err := c.q.ExecContext(ctx, c.d.rebind(deleteCartLines), userID); err != nil {
			return errors.Wrap(err, "delete cart lines")
		}
		return nil
	}
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(deleteListedRows, userID, ids)
	if err != nil {
		return errors.Wrap(err, "build cart delete")
	}
	if _, err := c.q.ExecContext(ctx, c.d.rebind(query), args...); err != nil {
		return errors.Wrap(err, "delete cart lines")
	}
	return nil
}

func (s *SQLStore) GetCart(ctx context.Context, userID int64) ([]models.CartLine, error) {
	var rows []CartLineRow
	if err := s.db.SelectContext(ctx, &rows, s.d.rebind(selectCartLines), userID); err != nil {
		return nil, errors.Wrap(err, "select cart lines")
	}
	return cartLines(rows)
}

// AddProduct adds one unit of a product to the cart. It returns ErrNotFound when
// the product does not exist.
func (s *SQLStore) AddProduct(ctx context.Context, userID, productID int64) error {
	unlock := s.lockForUser(userID)
	defer unlock()

	res, err := s.db.ExecContext(ctx, s.d.rebind(insertCartLine+s.d.upsert), userID, productID)
	if err != nil {
		return errors.Wrap(err, "upsert cart line")
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return errors.Wrapf(ErrNotFound, "product %d", productID)
	}
	return nil
}

// SetQuantity replaces the quantity of a line already in the cart. Zero removes
// the line.
func (s *SQLStore) SetQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}

	unlock := s.lockForUser(userID)
	defer unlock()

	query, args := updateCartLine, []any{quantity, userID, productID}
	if quantity == 0 {
		query, args = deleteCartLine, []any{userID, productID}
	}
	res, err := s.db.ExecContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return errors.Wrap(err, "update cart line")
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return errors.Wrapf(ErrNotFound, "product %d not in cart", productID)
	}
	return nil
}

func (s *SQLStore) ClearCart(ctx context.Context, userID int64) error {
	unlock := s.lockForUser(userID)
	defer unlock()

	c := &cartTx{q: s.db, d: s.d}
	return c.Clear(ctx, userID)
}
