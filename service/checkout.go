package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Ptunda/easy-shop/cache"
	models "github.com/Ptunda/easy-shop/model"
	"github.com/Ptunda/easy-shop/store"
)

// Checkout outcomes passed to CheckoutObserver.
const (
	ResultPlaced    = "placed"
	ResultEmptyCart = "empty_cart"
	ResultFailed    = "failed"
)

type Event interface {
	Type() string
}

type EventDispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

type CheckoutObserver interface {
	ObserveCheckout(result string, elapsed time.Duration)
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, Event) error { return nil }

type nopObserver struct{}

func (nopObserver) ObserveCheckout(string, time.Duration) {}

const postCommitTimeout = 5 * time.Second

// CheckoutService turns a user's cart into an order.
type CheckoutService struct {
	tx         store.Transactor
	carts      cache.CartCache
	dispatcher EventDispatcher
	observer   CheckoutObserver
	now        func() time.Time
}

type CheckoutOption func(*CheckoutService)

func WithCartCache(c cache.CartCache) CheckoutOption {
	return func(s *CheckoutService) { s.carts = c }
}

func WithDispatcher(d EventDispatcher) CheckoutOption {
	return func(s *CheckoutService) { s.dispatcher = d }
}

func WithObserver(o CheckoutObserver) CheckoutOption {
	return func(s *CheckoutService) { s.observer = o }
}

func WithClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

func NewCheckoutService(tx store.Transactor, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		tx:         tx,
		carts:      cache.Nop{},
		dispatcher: nopDispatcher{},
		observer:   nopObserver{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout reads the cart of userID, writes one order with a line item per cart
// line and clears the cart, all in one transaction. It returns ErrEmptyCart when
// there is nothing to order, and an error matching ErrCheckoutFailed when any
// store step fails; in both cases nothing is persisted.
//
// Once started, a checkout is not interrupted by cancellation of ctx.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64) (int64, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	var placed models.OrderPlaced
	err := s.tx.Atomically(ctx, userID, func(st store.TxStores) error {
		lines, err := st.Carts.ListLines(ctx, userID)
		if err != nil {
			return checkoutFailed(StepListCart, err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}
		if err := validateLines(lines); err != nil {
			return checkoutFailed(StepValidateCart, err)
		}

		createdAt := s.now().UTC()
		orderID, err := st.Orders.Create(ctx, userID, createdAt)
		if err != nil {
			return checkoutFailed(StepCreateOrder, err)
		}

		items := make([]models.OrderLineItem, 0, len(lines))
		for _, l := range lines {
			if err := st.LineItems.Create(ctx, orderID, l.ProductID, l.Quantity, l.LineTotal); err != nil {
				return checkoutFailed(StepCreateLineItem, err)
			}
			items = append(items, models.OrderLineItem{
				OrderID:   orderID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Price:     l.LineTotal,
			})
		}

		if err := st.Carts.Clear(ctx, userID); err != nil {
			return checkoutFailed(StepClearCart, err)
		}

		placed = models.OrderPlaced{OrderID: orderID, UserID: userID, CreatedAt: createdAt, Items: items}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyCart):
		s.observer.ObserveCheckout(ResultEmptyCart, time.Since(start))
		return 0, ErrEmptyCart
	case errors.Is(err, ErrCheckoutFailed):
		s.fail(userID, err, start)
		return 0, err
	default:
		// begin or commit
		err = checkoutFailed(StepTransaction, err)
		s.fail(userID, err, start)
		return 0, err
	}

	s.observer.ObserveCheckout(ResultPlaced, time.Since(start))
	log.WithFields(log.Fields{
		"userID":  userID,
		"orderID": placed.OrderID,
		"lines":   len(placed.Items),
	}).Info("Order placed")

	s.afterCommit(ctx, placed)
	return placed.OrderID, nil
}

func (s *CheckoutService) fail(userID int64, err error, start time.Time) {
	s.observer.ObserveCheckout(ResultFailed, time.Since(start))
	log.WithFields(log.Fields{"userID": userID}).WithError(err).Error("Checkout failed")
}

// afterCommit runs once the order is durable. Its failures are logged only: the
// order exists and the caller must see success.
func (s *CheckoutService) afterCommit(ctx context.Context, placed models.OrderPlaced) {
	ctx, cancel := context.WithTimeout(ctx, postCommitTimeout)
	defer cancel()

	if err := s.carts.Delete(ctx, placed.UserID); err != nil {
		log.WithFields(log.Fields{"userID": placed.UserID}).WithError(err).Warn("Failed to invalidate cart cache")
	}
	if err := s.dispatcher.Dispatch(ctx, placed); err != nil {
		log.WithFields(log.Fields{"orderID": placed.OrderID}).WithError(err).Warn("Failed to publish order event")
	}
}

func validateLines(lines []models.CartLine) error {
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 {
			return errors.Wrapf(ErrInvalidCartLine, "product id %d", l.ProductID)
		}
		if l.Quantity <= 0 {
			return errors.Wrapf(ErrInvalidCartLine, "product %d: quantity %d", l.ProductID, l.Quantity)
		}
		if l.LineTotal.IsNegative() {
			return errors.Wrapf(ErrInvalidCartLine, "product %d: negative total %s", l.ProductID, l.LineTotal)
		}
		if _, dup := seen[l.ProductID]; dup {
			return errors.Wrapf(ErrInvalidCartLine, "product %d listed twice", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}
