package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ptunda/easy-shop/cache"
	models "github.com/Ptunda/easy-shop/model"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type spyCache struct {
	cache.Nop
	mu      sync.Mutex
	deleted []int64
	err     error
}

func (c *spyCache) Delete(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, userID)
	return c.err
}

type checkoutFixture struct {
	store      *memStore
	svc        *CheckoutService
	dispatcher *recordingDispatcher
	observer   *recordingObserver
	cache      *spyCache
}

func newCheckoutFixture(firstOrderID int64) *checkoutFixture {
	f := &checkoutFixture{
		store:      newMemStore(firstOrderID),
		dispatcher: &recordingDispatcher{},
		observer:   &recordingObserver{},
		cache:      &spyCache{},
	}
	f.svc = NewCheckoutService(f.store,
		WithCartCache(f.cache),
		WithDispatcher(f.dispatcher),
		WithObserver(f.observer),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func TestCheckout_PlacesOrderForUser42(t *testing.T) {
	f := newCheckoutFixture(1001)
	f.store.seedCart(42, priced(5, 2, "9.99"))

	orderID, err := f.svc.Checkout(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), orderID)

	st := f.store.snapshot()
	require.Len(t, st.orders, 1)
	assert.Equal(t, models.Order{ID: 1001, UserID: 42, CreatedAt: fixedNow}, st.orders[1001])

	require.Len(t, st.items, 1)
	item := st.items[0]
	assert.Equal(t, int64(1001), item.OrderID)
	assert.Equal(t, int64(5), item.ProductID)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("19.98")), "price %s", item.Price)

	assert.Empty(t, st.carts[42])
	assert.Equal(t, []string{"list", "order", "item", "clear"}, f.store.calls)

	assert.Equal(t, []int64{42}, f.cache.deleted)
	assert.Equal(t, []string{ResultPlaced}, f.observer.results)
	require.Len(t, f.dispatcher.events, 1)
	placed, ok := f.dispatcher.events[0].(models.OrderPlaced)
	require.True(t, ok)
	assert.Equal(t, int64(1001), placed.OrderID)
	assert.Equal(t, int64(42), placed.UserID)
	assert.Len(t, placed.Items, 1)
}

func TestCheckout_EmptyCartForUser7(t *testing.T) {
	f := newCheckoutFixture(1)
	f.store.seedCart(42, priced(1, 1, "1.00"))
	before := f.store.snapshot()

	orderID, err := f.svc.Checkout(context.Background(), 7)
	assert.Equal(t, ErrEmptyCart, err)
	assert.False(t, errors.Is(err, ErrCheckoutFailed))
	assert.Zero(t, orderID)

	assert.Equal(t, before, f.store.snapshot())
	assert.Equal(t, []string{"list"}, f.store.calls)
	assert.Empty(t, f.dispatcher.events)
	assert.Empty(t, f.cache.deleted)
	assert.Equal(t, []string{ResultEmptyCart}, f.observer.results)
}

func TestCheckout_LineItemsCopyCart(t *testing.T) {
	f := newCheckoutFixture(10)
	cart := []models.CartLine{
		priced(3, 1, "100.00"),
		priced(8, 4, "2.50"),
		priced(11, 3, "0.99"),
		priced(12, 1, "0"),
	}
	f.store.seedCart(1, cart...)
	f.store.seedCart(2, priced(3, 9, "100.00"))

	orderID, err := f.svc.Checkout(context.Background(), 1)
	require.NoError(t, err)

	type triple struct {
		product int64
		qty     int
		price   string
	}
	var want, got []triple
	for _, l := range cart {
		want = append(want, triple{l.ProductID, l.Quantity, l.LineTotal.String()})
	}
	st := f.store.snapshot()
	for _, it := range st.items {
		assert.Equal(t, orderID, it.OrderID)
		got = append(got, triple{it.ProductID, it.Quantity, it.Price.String()})
	}
	assert.ElementsMatch(t, want, got)
	assert.Len(t, st.orders, 1)
	assert.Empty(t, st.carts[1])
	assert.Len(t, st.carts[2], 1, "other users' carts are untouched")
}

func TestCheckout_FailureLeavesNoTrace(t *testing.T) {
	storeErr := errors.New("connection reset by peer")

	tests := []struct {
		name   string
		inject func(m *memStore)
		step   string
	}{
		{"list cart", func(m *memStore) { m.listErr = storeErr }, StepListCart},
		{"create order", func(m *memStore) { m.orderErr = storeErr }, StepCreateOrder},
		{"first line item", func(m *memStore) { m.itemErr, m.itemFailAt = storeErr, 1 }, StepCreateLineItem},
		{"last line item", func(m *memStore) { m.itemErr, m.itemFailAt = storeErr, 3 }, StepCreateLineItem},
		{"clear cart", func(m *memStore) { m.clearErr = storeErr }, StepClearCart},
		{"begin", func(m *memStore) { m.beginErr = storeErr }, StepTransaction},
		{"commit", func(m *memStore) { m.commitErr = storeErr }, StepTransaction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(500)
			f.store.seedCart(42, priced(1, 1, "5.00"), priced(2, 2, "3.00"), priced(3, 3, "1.00"))
			before := f.store.snapshot()
			tt.inject(f.store)

			orderID, err := f.svc.Checkout(context.Background(), 42)
			require.Error(t, err)
			assert.Zero(t, orderID)
			assert.True(t, errors.Is(err, ErrCheckoutFailed), "got %v", err)
			assert.True(t, errors.Is(err, storeErr), "cause must be reachable: %v", err)

			var ce *CheckoutError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.step, ce.Step)

			assert.Equal(t, before, f.store.snapshot())
			assert.Empty(t, f.dispatcher.events)
			assert.Empty(t, f.cache.deleted)
			assert.Equal(t, []string{ResultFailed}, f.observer.results)
		})
	}
}

func TestCheckout_RetryAfterFailureUsesSameCart(t *testing.T) {
	f := newCheckoutFixture(1)
	f.store.seedCart(42, priced(5, 2, "9.99"))
	f.store.clearErr = errors.New("lock wait timeout")

	_, err := f.svc.Checkout(context.Background(), 42)
	require.ErrorIs(t, err, ErrCheckoutFailed)

	f.store.clearErr = nil
	orderID, err := f.svc.Checkout(context.Background(), 42)
	require.NoError(t, err)

	st := f.store.snapshot()
	assert.Equal(t, int64(1), orderID, "failed attempt must not consume an order")
	require.Len(t, st.items, 1)
	assert.Equal(t, 2, st.items[0].Quantity)
}

func TestCheckout_RejectsMalformedCartLines(t *testing.T) {
	tests := []struct {
		name string
		line models.CartLine
	}{
		{"zero quantity", models.CartLine{ProductID: 1, Quantity: 0, LineTotal: decimal.Zero}},
		{"negative quantity", models.CartLine{ProductID: 1, Quantity: -1, LineTotal: decimal.Zero}},
		{"missing product", models.CartLine{Quantity: 1, LineTotal: decimal.NewFromInt(1)}},
		{"negative total", models.CartLine{ProductID: 1, Quantity: 1, LineTotal: decimal.NewFromInt(-3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(1)
			f.store.seedCart(9, priced(2, 1, "1.00"), tt.line)
			before := f.store.snapshot()

			_, err := f.svc.Checkout(context.Background(), 9)
			assert.ErrorIs(t, err, ErrCheckoutFailed)
			assert.ErrorIs(t, err, ErrInvalidCartLine)
			assert.Equal(t, before, f.store.snapshot())
			assert.Equal(t, []string{"list"}, f.store.calls)
		})
	}
}

func TestCheckout_RejectsDuplicateProducts(t *testing.T) {
	f := newCheckoutFixture(1)
	f.store.seedCart(9, priced(2, 1, "1.00"), priced(2, 3, "1.00"))

	_, err := f.svc.Checkout(context.Background(), 9)
	assert.ErrorIs(t, err, ErrInvalidCartLine)
}

func TestCheckout_ConcurrentSameUserPlacesOneOrder(t *testing.T) {
	f := newCheckoutFixture(1)
	f.store.seedCart(42, priced(5, 2, "9.99"), priced(6, 1, "4.00"))

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		placed  []int64
		empties int
		others  []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			id, err := f.svc.Checkout(context.Background(), 42)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed = append(placed, id)
			case errors.Is(err, ErrEmptyCart):
				empties++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Len(t, placed, 1)
	assert.Equal(t, callers-1, empties)

	st := f.store.snapshot()
	assert.Len(t, st.orders, 1)
	assert.Len(t, st.items, 2)
	assert.Len(t, f.dispatcher.events, 1)
}

func TestCheckout_CapturesCartPriceNotLivePrice(t *testing.T) {
	f := newCheckoutFixture(1)
	f.store.seedCart(42, priced(5, 2, "9.99"))

	livePrice := map[int64]decimal.Decimal{5: decimal.RequireFromString("9.99")}
	f.store.listHook = func() { livePrice[5] = decimal.RequireFromString("24.00") }

	_, err := f.svc.Checkout(context.Background(), 42)
	require.NoError(t, err)

	st := f.store.snapshot()
	require.Len(t, st.items, 1)
	assert.True(t, st.items[0].Price.Equal(decimal.RequireFromString("19.98")))
	assert.True(t, livePrice[5].Equal(decimal.RequireFromString("24.00")))
}

func TestCheckout_KeepsLineAddedAfterCartWasRead(t *testing.T) {
	f := newCheckoutFixture(100)
	f.store.seedCart(42, priced(5, 2, "9.99"))
	f.store.lateLines = []models.CartLine{priced(8, 1, "3.50")}

	id, err := f.svc.Checkout(context.Background(), 42)
	require.NoError(t, err)

	st := f.store.snapshot()
	require.Len(t, st.items, 1)
	assert.Equal(t, id, st.items[0].OrderID)
	assert.Equal(t, int64(5), st.items[0].ProductID)

	// the late line was never ordered, so it stays in the cart
	require.Len(t, st.carts[42], 1)
	assert.Equal(t, int64(8), st.carts[42][0].ProductID)
}

func TestCheckout_IgnoresCallerCancellation(t *testing.T) {
	f := newCheckoutFixture(1)
	f.store.seedCart(42, priced(5, 1, "1.00"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orderID, err := f.svc.Checkout(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), orderID)
}

func TestCheckout_PostCommitFailuresDoNotFail(t *testing.T) {
	f := newCheckoutFixture(1)
	f.store.seedCart(42, priced(5, 1, "1.00"))
	f.dispatcher.err = errors.New("broker down")
	f.cache.err = errors.New("redis down")

	orderID, err := f.svc.Checkout(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), orderID)
	assert.Len(t, f.store.snapshot().orders, 1)
}

func TestCheckoutError(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := error(&CheckoutError{Step: StepCreateOrder, Err: cause})

	assert.Equal(t, "checkout failed: create order: deadlock detected", err.Error())
	assert.True(t, errors.Is(err, ErrCheckoutFailed))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrEmptyCart))
	assert.Equal(t, cause, errors.Unwrap(err))
}
