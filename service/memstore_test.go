package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	models "github.com/Ptunda/easy-shop/model"
	"github.com/Ptunda/easy-shop/store"
)

// memState is everything a checkout can touch.
type memState struct {
	carts  map[int64][]models.CartLine
	orders map[int64]models.Order
	items  []models.OrderLineItem
	nextID int64
}

func (s memState) clone() memState {
	c := memState{
		carts:  make(map[int64][]models.CartLine, len(s.carts)),
		orders: make(map[int64]models.Order, len(s.orders)),
		items:  append([]models.OrderLineItem(nil), s.items...),
		nextID: s.nextID,
	}
	for k, v := range s.carts {
		c.carts[k] = append([]models.CartLine(nil), v...)
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// memStore is an in-memory Transactor. Atomically works on a copy of the state
// and swaps it in only on commit, so a failed callback leaves nothing behind.
type memStore struct {
	mu    sync.Mutex
	state memState

	beginErr  error
	listErr   error
	orderErr  error
	clearErr  error
	commitErr error
	// itemErr is returned by the itemFailAt-th line item insert (1-based).
	itemErr    error
	itemFailAt int

	// listHook runs after the cart was read, while the transaction is open.
	listHook func()
	// lateLines land in the cart right after it was read, the way a row
	// inserted by another session does under READ COMMITTED.
	lateLines []models.CartLine
	calls     []string
}

func newMemStore(firstOrderID int64) *memStore {
	return &memStore{state: memState{
		carts:  map[int64][]models.CartLine{},
		orders: map[int64]models.Order{},
		nextID: firstOrderID,
	}}
}

func (m *memStore) seedCart(userID int64, lines ...models.CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.carts[userID] = lines
}

// priced builds a cart line the way the cart store does: total = unit * qty.
func priced(productID int64, qty int, unit string) models.CartLine {
	u := decimal.RequireFromString(unit)
	return models.CartLine{ProductID: productID, Quantity: qty, UnitPrice: u, LineTotal: u.Mul(decimal.NewFromInt(int64(qty)))}
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) Atomically(ctx context.Context, _ int64, fn func(store.TxStores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.beginErr != nil {
		return errors.Wrap(m.beginErr, "begin transaction")
	}
	work := m.state.clone()
	tx := &memTx{m: m, st: &work}
	if err := fn(store.TxStores{Carts: memCarts{tx}, Orders: memOrders{tx}, LineItems: memItems{tx}}); err != nil {
		return err
	}
	if m.commitErr != nil {
		return errors.Wrap(m.commitErr, "commit transaction")
	}
	m.state = work
	return nil
}

type memTx struct {
	m      *memStore
	st     *memState
	items  int
	listed map[int64][]int64
}

type memCarts struct{ tx *memTx }

func (c memCarts) ListLines(_ context.Context, userID int64) ([]models.CartLine, error) {
	c.tx.m.calls = append(c.tx.m.calls, "list")
	if c.tx.m.listErr != nil {
		return nil, c.tx.m.listErr
	}
	if c.tx.m.listHook != nil {
		c.tx.m.listHook()
	}
	lines := append([]models.CartLine{}, c.tx.st.carts[userID]...)
	if c.tx.listed == nil {
		c.tx.listed = map[int64][]int64{}
	}
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	c.tx.listed[userID] = ids
	if len(c.tx.m.lateLines) > 0 {
		c.tx.st.carts[userID] = append(c.tx.st.carts[userID], c.tx.m.lateLines...)
	}
	return lines, nil
}

// Clear removes the lines ListLines returned in this transaction, or the whole
// cart when it was not read.
func (c memCarts) Clear(_ context.Context, userID int64) error {
	c.tx.m.calls = append(c.tx.m.calls, "clear")
	if c.tx.m.clearErr != nil {
		return c.tx.m.clearErr
	}
	ids, ok := c.tx.listed[userID]
	if !ok {
		delete(c.tx.st.carts, userID)
		return nil
	}
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []models.CartLine
	for _, l := range c.tx.st.carts[userID] {
		if !drop[l.ProductID] {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(c.tx.st.carts, userID)
	} else {
		c.tx.st.carts[userID] = kept
	}
	return nil
}

type memOrders struct{ tx *memTx }

func (o memOrders) Create(_ context.Context, userID int64, createdAt time.Time) (int64, error) {
	o.tx.m.calls = append(o.tx.m.calls, "order")
	if o.tx.m.orderErr != nil {
		return 0, o.tx.m.orderErr
	}
	id := o.tx.st.nextID
	o.tx.st.nextID++
	o.tx.st.orders[id] = models.Order{ID: id, UserID: userID, CreatedAt: createdAt}
	return id, nil
}

type memItems struct{ tx *memTx }

func (i memItems) Create(_ context.Context, orderID, productID int64, quantity int, price decimal.Decimal) error {
	i.tx.m.calls = append(i.tx.m.calls, "item")
	i.tx.items++
	if i.tx.m.itemErr != nil && i.tx.items == i.tx.m.itemFailAt {
		return i.tx.m.itemErr
	}
	if _, ok := i.tx.st.orders[orderID]; !ok {
		return errors.Errorf("order %d does not exist", orderID)
	}
	i.tx.st.items = append(i.tx.st.items, models.OrderLineItem{OrderID: orderID, ProductID: productID, Quantity: quantity, Price: price})
	return nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return d.err
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ObserveCheckout(result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}
