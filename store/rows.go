package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	models "github.com/Ptunda/easy-shop/model"
)

// ErrMalformedRow is returned when a stored row breaks a model invariant.
var ErrMalformedRow = errors.New("malformed row")

// CartLineRow, OrderRow etc are plain structs scanned from the database. Their
// mapping methods are pure so they can be tested without a live store.
type CartLineRow struct {
	ProductID int64           `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

func (r CartLineRow) CartLine() (models.CartLine, error) {
	if r.ProductID <= 0 {
		return models.CartLine{}, errors.Wrapf(ErrMalformedRow, "cart line product_id %d", r.ProductID)
	}
	if r.Quantity <= 0 {
		return models.CartLine{}, errors.Wrapf(ErrMalformedRow, "cart line for product %d has quantity %d", r.ProductID, r.Quantity)
	}
	if r.UnitPrice.IsNegative() {
		return models.CartLine{}, errors.Wrapf(ErrMalformedRow, "cart line for product %d has price %s", r.ProductID, r.UnitPrice)
	}
	return models.CartLine{
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		LineTotal: r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity))),
	}, nil
}

func cartLines(rows []CartLineRow) ([]models.CartLine, error) {
	out := make([]models.CartLine, 0, len(rows))
	for _, r := range rows {
		l, err := r.CartLine()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

type OrderRow struct {
	ID        int64     `db:"order_id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"order_date"`
}

func (r OrderRow) Order(items []LineItemRow) models.Order {
	o := models.Order{
		ID:        r.ID,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		Items:     make([]models.OrderLineItem, 0, len(items)),
	}
	for _, it := range items {
		o.Items = append(o.Items, it.LineItem())
	}
	return o
}

type LineItemRow struct {
	OrderID   int64           `db:"order_id"`
	ProductID int64           `db:"product_id"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
}

func (r LineItemRow) LineItem() models.OrderLineItem {
	return models.OrderLineItem{
		OrderID:   r.OrderID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Price:     r.Price,
	}
}

type CategoryRow struct {
	ID          int64          `db:"category_id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
}

func (r CategoryRow) Category() models.Category {
	return models.Category{ID: r.ID, Name: r.Name, Description: r.Description.String}
}

type ProductRow struct {
	ID          int64           `db:"product_id"`
	Name        string          `db:"name"`
	Price       decimal.Decimal `db:"price"`
	CategoryID  int64           `db:"category_id"`
	Description sql.NullString  `db:"description"`
	Color       sql.NullString  `db:"color"`
	ImageURL    sql.NullString  `db:"image_url"`
	Featured    bool            `db:"featured"`
}

func (r ProductRow) Product() models.Product {
	return models.Product{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		CategoryID:  r.CategoryID,
		Description: r.Description.String,
		Color:       r.Color.String,
		ImageURL:    r.ImageURL.String,
		Featured:    r.Featured,
	}
}
