package store

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	models "github.com/Ptunda/easy-shop/model"
)

const productColumns = `product_id, name, price, category_id, description, color, image_url, featured`

func (s *SQLStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []CategoryRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT category_id, name, description FROM categories ORDER BY category_id`); err != nil {
		return nil, errors.Wrap(err, "select categories")
	}
	out := make([]models.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Category())
	}
	return out, nil
}

func (s *SQLStore) GetCategory(ctx context.Context, id int64) (models.Category, error) {
	var row CategoryRow
	err := s.db.GetContext(ctx, &row, s.d.rebind(`SELECT category_id, name, description FROM categories WHERE category_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Category{}, errors.Wrapf(ErrNotFound, "category %d", id)
	}
	if err != nil {
		return models.Category{}, errors.Wrap(err, "select category")
	}
	return row.Category(), nil
}

func (s *SQLStore) CreateCategory(ctx context.Context, c models.Category) (int64, error) {
	id, err := s.d.insertID(ctx, s.db, `INSERT INTO categories (name, description) VALUES (?, ?)`, "category_id", c.Name, c.Description)
	if err != nil {
		return 0, errors.Wrap(err, "insert category")
	}
	return id, nil
}

func (s *SQLStore) UpdateCategory(ctx context.Context, c models.Category) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind(`UPDATE categories SET name = ?, description = ? WHERE category_id = ?`), c.Name, c.Description, c.ID)
	if err != nil {
		return errors.Wrap(err, "update category")
	}
	return mustAffect(res, "category", c.ID)
}

func (s *SQLStore) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind(`DELETE FROM categories WHERE category_id = ?`), id)
	if isForeignKeyViolation(err) {
		return errors.Wrapf(ErrConflict, "category %d has products", id)
	}
	if err != nil {
		return errors.Wrap(err, "delete category")
	}
	return mustAffect(res, "category", id)
}

// isForeignKeyViolation reports a delete blocked by a referencing row:
// SQLSTATE 23503 on postgres, error 1451 on mysql.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1451
	}
	return false
}

func (s *SQLStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	var rows []ProductRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+productColumns+` FROM products ORDER BY product_id`); err != nil {
		return nil, errors.Wrap(err, "select products")
	}
	out := make([]models.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Product())
	}
	return out, nil
}

func (s *SQLStore) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	var row ProductRow
	err := s.db.GetContext(ctx, &row, s.d.rebind(`SELECT `+productColumns+` FROM products WHERE product_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, errors.Wrapf(ErrNotFound, "product %d", id)
	}
	if err != nil {
		return models.Product{}, errors.Wrap(err, "select product")
	}
	return row.Product(), nil
}

func (s *SQLStore) CreateProduct(ctx context.Context, p models.Product) (int64, error) {
	id, err := s.d.insertID(ctx, s.db,
		`INSERT INTO products (name, price, category_id, description, color, image_url, featured) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"product_id",
		p.Name, p.Price, p.CategoryID, p.Description, p.Color, p.ImageURL, p.Featured,
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert product")
	}
	return id, nil
}

// UpdatePrice sets the live price of a product. Lines already in carts keep the
// price they were added with.
func (s *SQLStore) UpdatePrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	if price.IsNegative() {
		return errors.New("price cannot be negative")
	}
	res, err := s.db.ExecContext(ctx, s.d.rebind(`UPDATE products SET price = ? WHERE product_id = ?`), price, productID)
	if err != nil {
		return errors.Wrap(err, "update price")
	}
	return mustAffect(res, "product", productID)
}

func mustAffect(res sql.Result, what string, id int64) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if ra == 0 {
		return errors.Wrapf(ErrNotFound, "%s %d", what, id)
	}
	return nil
}
