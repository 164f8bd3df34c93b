package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	models "github.com/Ptunda/easy-shop/model"
)

// CartStore is the part of the cart the checkout workflow needs. ListLines is a
// locking read when it runs inside Atomically.
type CartStore interface {
	ListLines(ctx context.Context, userID int64) ([]models.CartLine, error)
	Clear(ctx context.Context, userID int64) error
}

type OrderStore interface {
	Create(ctx context.Context, userID int64, createdAt time.Time) (int64, error)
}

type LineItemStore interface {
	Create(ctx context.Context, orderID, productID int64, quantity int, price decimal.Decimal) error
}

// TxStores are bound to one transaction; they must not be used after the
// Atomically callback returns.
type TxStores struct {
	Carts     CartStore
	Orders    OrderStore
	LineItems LineItemStore
}

// Transactor runs fn in a single transactional scope, serialized per user. Any
// error returned by fn rolls back every write made through TxStores.
type Transactor interface {
	Atomically(ctx context.Context, userID int64, fn func(TxStores) error) error
}

type CartRepository interface {
	GetCart(ctx context.Context, userID int64) ([]models.CartLine, error)
	AddProduct(ctx context.Context, userID, productID int64) error
	SetQuantity(ctx context.Context, userID, productID int64, quantity int) error
	ClearCart(ctx context.Context, userID int64) error
}

type CatalogStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id int64) (models.Category, error)
	CreateCategory(ctx context.Context, c models.Category) (int64, error)
	UpdateCategory(ctx context.Context, c models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (int64, error)
	UpdatePrice(ctx context.Context, productID int64, price decimal.Decimal) error
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID int64) (models.Order, error)
}

type Store interface {
	Transactor
	CartRepository
	CatalogStore
	OrderReader

	Close() error
}
