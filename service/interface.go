package service

import (
	"context"

	"github.com/shopspring/decimal"

	models "github.com/Ptunda/easy-shop/model"
)

type ServiceInterface interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id int64) (models.Category, error)
	CreateCategory(ctx context.Context, c models.Category) (int64, error)
	UpdateCategory(ctx context.Context, c models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (int64, error)
	UpdatePrice(ctx context.Context, productID int64, price decimal.Decimal) error

	GetCart(ctx context.Context, userID int64) (models.Cart, error)
	AddToCart(ctx context.Context, userID, productID int64) error
	SetCartQuantity(ctx context.Context, userID, productID int64, quantity int) error
	ClearCart(ctx context.Context, userID int64) error

	Checkout(ctx context.Context, userID int64) (int64, error)
	GetOrder(ctx context.Context, userID, orderID int64) (models.Order, error)
}
