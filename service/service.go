package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Ptunda/easy-shop/cache"
	models "github.com/Ptunda/easy-shop/model"
	"github.com/Ptunda/easy-shop/store"
)

type Service struct {
	*CheckoutService

	store store.Store
	sfg   singleflight.Group
}

func NewService(s store.Store, opts ...CheckoutOption) *Service {
	return &Service{
		CheckoutService: NewCheckoutService(s, opts...),
		store:           s,
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (models.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, c models.Category) (int64, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return 0, errors.Wrap(ErrInvalidInput, "name required")
	}
	return s.store.CreateCategory(ctx, c)
}

func (s *Service) UpdateCategory(ctx context.Context, c models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return errors.Wrap(ErrInvalidInput, "name required")
	}
	return s.store.UpdateCategory(ctx, c)
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.DeleteCategory(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, p models.Product) (int64, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return 0, errors.Wrap(ErrInvalidInput, "name required")
	}
	if p.Price.IsNegative() {
		return 0, errors.Wrap(ErrInvalidInput, "price must be >= 0")
	}
	if p.CategoryID <= 0 {
		return 0, errors.Wrap(ErrInvalidInput, "category_id required")
	}
	return s.store.CreateProduct(ctx, p)
}

// UpdatePrice changes the live product price. Lines already in carts keep the
// price they were added with.
func (s *Service) UpdatePrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	if price.IsNegative() {
		return errors.Wrap(ErrInvalidInput, "price must be >= 0")
	}
	return s.store.UpdatePrice(ctx, productID, price)
}

// GetCart serves the cart from cache when possible. Concurrent misses for the
// same user share one database read.
func (s *Service) GetCart(ctx context.Context, userID int64) (models.Cart, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		cached, err := s.carts.Get(ctx, userID)
		if err == nil {
			return *cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.WithFields(log.Fields{"userID": userID}).WithError(err).Warn("Cart cache read failed")
		}

		// the version must be read before the store so an invalidation that
		// lands in between rejects the fill
		version, verr := s.carts.Version(ctx, userID)
		lines, err := s.store.GetCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		cart := models.NewCart(userID, lines)
		if verr != nil {
			log.WithFields(log.Fields{"userID": userID}).WithError(verr).Warn("Cart cache version read failed")
			return cart, nil
		}
		switch err := s.carts.Set(ctx, userID, version, &cart); {
		case errors.Is(err, cache.ErrStaleVersion):
			log.WithFields(log.Fields{"userID": userID}).Debug("Skipped stale cart cache fill")
		case err != nil:
			log.WithFields(log.Fields{"userID": userID}).WithError(err).Warn("Cart cache write failed")
		}
		return cart, nil
	})
	if err != nil {
		return models.Cart{}, err
	}
	return v.(models.Cart), nil
}

func (s *Service) AddToCart(ctx context.Context, userID, productID int64) error {
	if err := s.store.AddProduct(ctx, userID, productID); err != nil {
		return err
	}
	s.invalidateCart(ctx, userID)
	return nil
}

// SetCartQuantity replaces the quantity of a cart line; zero removes it.
func (s *Service) SetCartQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if err := s.store.SetQuantity(ctx, userID, productID, quantity); err != nil {
		return err
	}
	s.invalidateCart(ctx, userID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	if err := s.store.ClearCart(ctx, userID); err != nil {
		return err
	}
	s.invalidateCart(ctx, userID)
	return nil
}

// GetOrder returns the order only to the user who placed it; anyone else gets
// store.ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, userID, orderID int64) (models.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if o.UserID != userID {
		return models.Order{}, errors.Wrapf(store.ErrNotFound, "order %d", orderID)
	}
	return o, nil
}

func (s *Service) invalidateCart(ctx context.Context, userID int64) {
	if err := s.carts.Delete(context.WithoutCancel(ctx), userID); err != nil {
		log.WithFields(log.Fields{"userID": userID}).WithError(err).Warn("Failed to invalidate cart cache")
	}
}

var _ ServiceInterface = (*Service)(nil)
