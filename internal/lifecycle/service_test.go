package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suanphol/fruitshop/internal/billing"
	"github.com/suanphol/fruitshop/internal/catalog"
	"github.com/suanphol/fruitshop/internal/inventory"
	"github.com/suanphol/fruitshop/internal/notify"
	"github.com/suanphol/fruitshop/internal/orders"
	"github.com/suanphol/fruitshop/internal/payments"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeTx satisfies pgx.Tx through interface embedding; only Commit and
// Rollback are ever called by the controller.
type fakeTx struct {
	pgx.Tx
	ledger    *fakeLedger
	committed bool
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.committed = true
	if tx.ledger != nil {
		tx.ledger.finish(tx, true)
	}
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if tx.committed {
		return pgx.ErrTxClosed
	}
	if tx.ledger != nil {
		tx.ledger.finish(tx, false)
	}
	return nil
}

type fakeDB struct {
	ledger *fakeLedger
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{ledger: db.ledger}, nil
}

type ledgerOp struct {
	fruitID int64
	delta   decimal.Decimal // negative = reserved, positive = released
}

// fakeLedger mimics the database's atomicity: the check-and-decrement is one
// critical section, and uncommitted deltas are undone on rollback.
type fakeLedger struct {
	mu    sync.Mutex
	stock map[int64]decimal.Decimal
	undo  map[*fakeTx][]ledgerOp
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		stock: map[int64]decimal.Decimal{},
		undo:  map[*fakeTx][]ledgerOp{},
	}
}

func (l *fakeLedger) Reserve(ctx context.Context, q inventory.Querier, fruitID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	tx := q.(*fakeTx)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stock[fruitID].LessThan(amount) {
		return decimal.Decimal{}, inventory.ErrInsufficientStock
	}
	l.stock[fruitID] = l.stock[fruitID].Sub(amount)
	l.undo[tx] = append(l.undo[tx], ledgerOp{fruitID, amount.Neg()})
	return l.stock[fruitID], nil
}

func (l *fakeLedger) Release(ctx context.Context, q inventory.Querier, fruitID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	tx := q.(*fakeTx)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[fruitID] = l.stock[fruitID].Add(amount)
	l.undo[tx] = append(l.undo[tx], ledgerOp{fruitID, amount})
	return l.stock[fruitID], nil
}

func (l *fakeLedger) finish(tx *fakeTx, commit bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !commit {
		for _, op := range l.undo[tx] {
			l.stock[op.fruitID] = l.stock[op.fruitID].Sub(op.delta)
		}
	}
	delete(l.undo, tx)
}

func (l *fakeLedger) get(fruitID int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[fruitID]
}

type fakeCatalog struct {
	mu     sync.Mutex
	fruits map[int64]catalog.Fruit
}

func (c *fakeCatalog) GetFruitByID(ctx context.Context, id int64) (catalog.Fruit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fruits[id]
	if !ok {
		return catalog.Fruit{}, catalog.ErrNotFound
	}
	return f, nil
}

type fakeOrders struct {
	mu   sync.Mutex
	seq  int64
	byID map[int64]orders.Order
}

func newFakeOrders() *fakeOrders { return &fakeOrders{byID: map[int64]orders.Order{}} }

func (s *fakeOrders) CreateWithItems(ctx context.Context, o orders.Order, items []orders.OrderItem) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	now := time.Now()
	o.ID = s.seq
	o.OrderNumber = orders.OrderNumber(o.ID, now)
	o.Status = orders.StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range items {
		items[i].OrderID = o.ID
		items[i].ID = int64(i + 1)
	}
	o.Items = items
	s.byID[o.ID] = o
	return o, nil
}

func (s *fakeOrders) GetByID(ctx context.Context, q orders.Querier, id int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (s *fakeOrders) UpdateStatus(ctx context.Context, q orders.Querier, id int64, from, to orders.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status != from {
		return orders.ErrStale
	}
	o.Status = to
	s.byID[id] = o
	return nil
}

func (s *fakeOrders) ListExpiredPending(ctx context.Context, maxAge time.Duration) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var out []orders.Order
	for _, o := range s.byID {
		if o.Status == orders.StatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeOrders) backdate(id int64, age time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.byID[id]
	o.CreatedAt = o.CreatedAt.Add(-age)
	s.byID[id] = o
}

type fakeInvoices struct {
	mu      sync.Mutex
	seq     int64
	byOrder map[int64]billing.Invoice
	calls   int
}

func newFakeInvoices() *fakeInvoices { return &fakeInvoices{byOrder: map[int64]billing.Invoice{}} }

func (f *fakeInvoices) Issue(ctx context.Context, o orders.Order) (billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if inv, ok := f.byOrder[o.ID]; ok {
		return inv, nil
	}
	f.seq++
	inv := billing.Invoice{
		ID:            f.seq,
		InvoiceNumber: billing.InvoiceNumber(f.seq, time.Now()),
		OrderID:       o.ID,
		UserID:        o.UserID,
		TotalAmount:   o.TotalAmount,
	}
	f.byOrder[o.ID] = inv
	return inv, nil
}

type fakeSlips struct {
	mu           sync.Mutex
	slips        []payments.PaymentSlip
	insideOpenTx bool
	createErr    error
}

func (f *fakeSlips) Create(ctx context.Context, q payments.Querier, slip payments.PaymentSlip) (payments.PaymentSlip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return payments.PaymentSlip{}, f.createErr
	}
	if tx, ok := q.(*fakeTx); ok {
		f.insideOpenTx = !tx.committed
	}
	slip.ID = int64(len(f.slips) + 1)
	f.slips = append(f.slips, slip)
	return slip, nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (d *fakeDispatcher) Enqueue(ev notify.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *fakeDispatcher) byKind(kind string) []notify.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.Event
	for _, ev := range d.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	svc        *Service
	ledger     *fakeLedger
	orders     *fakeOrders
	invoices   *fakeInvoices
	slips      *fakeSlips
	dispatcher *fakeDispatcher
}

func newFixture(fruits ...catalog.Fruit) *fixture {
	ledger := newFakeLedger()
	cat := &fakeCatalog{fruits: map[int64]catalog.Fruit{}}
	for _, f := range fruits {
		cat.fruits[f.ID] = f
		ledger.stock[f.ID] = f.Stock
	}
	fx := &fixture{
		ledger:     ledger,
		orders:     newFakeOrders(),
		invoices:   newFakeInvoices(),
		slips:      &fakeSlips{},
		dispatcher: &fakeDispatcher{},
	}
	fx.svc = &Service{
		DB:       &fakeDB{ledger: ledger},
		Catalog:  cat,
		Orders:   fx.orders,
		Ledger:   ledger,
		Invoices: fx.invoices,
		Slips:    fx.slips,
		Events:   fx.dispatcher,
	}
	return fx
}

func pieceFruit(id int64, name, price, stock string) catalog.Fruit {
	return catalog.Fruit{ID: id, Name: name, Price: dec(price), Stock: dec(stock), Unit: catalog.UnitPiece}
}

func kgFruit(id int64, name, price, stock string) catalog.Fruit {
	return catalog.Fruit{ID: id, Name: name, Price: dec(price), Stock: dec(stock), Unit: catalog.UnitKg}
}

func TestCreateOrderComputesTotals(t *testing.T) {
	fx := newFixture(
		pieceFruit(1, "mango", "10.00", "50"),
		kgFruit(2, "longan", "20.00", "12"),
	)

	o, err := fx.svc.CreateOrder(context.Background(), 7, CreateRequest{
		Items: []LineInput{
			{FruitID: 1, Quantity: dec("3")},
			{FruitID: 2, Quantity: dec("1.5")},
		},
		ShippingAddress: "99 Sukhumvit Rd",
	})
	require.NoError(t, err)

	assert.Equal(t, "60.00", o.TotalAmount.StringFixed(2))
	require.Len(t, o.Items, 2)
	assert.Equal(t, "30.00", o.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "30.00", o.Items[1].Subtotal.StringFixed(2))
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, "Thailand", o.ShippingCountry)
	assert.Equal(t, "Thai QR PromptPay", o.PaymentMethod)

	// creation never touches stock
	assert.True(t, fx.ledger.get(1).Equal(dec("50")))
	assert.True(t, fx.ledger.get(2).Equal(dec("12")))

	created := fx.dispatcher.byKind(orders.EventOrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, o.ID, created[0].Order.ID)
}

func TestCreateOrderUnitValidation(t *testing.T) {
	fx := newFixture(
		pieceFruit(1, "mango", "10.00", "50"),
		kgFruit(2, "longan", "20.00", "12"),
	)
	ctx := context.Background()

	// fractional quantity on a piece-sold fruit is rejected
	_, err := fx.svc.CreateOrder(ctx, 7, CreateRequest{
		Items:           []LineInput{{FruitID: 1, Quantity: dec("2.5")}},
		ShippingAddress: "a",
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	// the same quantity on a kg-sold fruit is fine
	_, err = fx.svc.CreateOrder(ctx, 7, CreateRequest{
		Items:           []LineInput{{FruitID: 2, Quantity: dec("2.5")}},
		ShippingAddress: "a",
	})
	require.NoError(t, err)

	// zero and negative quantities are rejected for both units
	for _, q := range []string{"0", "-1"} {
		_, err = fx.svc.CreateOrder(ctx, 7, CreateRequest{
			Items:           []LineInput{{FruitID: 2, Quantity: dec(q)}},
			ShippingAddress: "a",
		})
		require.ErrorIs(t, err, ErrInvalidQuantity, q)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	fx := newFixture(pieceFruit(1, "mango", "10.00", "5"))
	ctx := context.Background()

	_, err := fx.svc.CreateOrder(ctx, 7, CreateRequest{ShippingAddress: "a"})
	require.ErrorIs(t, err, ErrNoItems)

	_, err = fx.svc.CreateOrder(ctx, 7, CreateRequest{
		Items: []LineInput{{FruitID: 1, Quantity: dec("1")}},
	})
	require.ErrorIs(t, err, ErrMissingShipping)

	_, err = fx.svc.CreateOrder(ctx, 7, CreateRequest{
		Items:           []LineInput{{FruitID: 99, Quantity: dec("1")}},
		ShippingAddress: "a",
	})
	require.ErrorIs(t, err, catalog.ErrNotFound)

	// advisory stock check rejects obviously impossible orders up front
	_, err = fx.svc.CreateOrder(ctx, 7, CreateRequest{
		Items:           []LineInput{{FruitID: 1, Quantity: dec("6")}},
		ShippingAddress: "a",
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
}

func createOrder(t *testing.T, fx *fixture, userID int64, lines ...LineInput) orders.Order {
	t.Helper()
	o, err := fx.svc.CreateOrder(context.Background(), userID, CreateRequest{
		Items:           lines,
		ShippingAddress: "99 Sukhumvit Rd",
	})
	require.NoError(t, err)
	return o
}

func TestTransitionReservesAndReleases(t *testing.T) {
	fx := newFixture(
		pieceFruit(1, "mango", "10.00", "50"),
		kgFruit(2, "longan", "20.00", "12"),
	)
	ctx := context.Background()
	o := createOrder(t, fx, 7,
		LineInput{FruitID: 1, Quantity: dec("3")},
		LineInput{FruitID: 2, Quantity: dec("1.5")},
	)

	got, err := fx.svc.TransitionStatus(ctx, o.ID, orders.StatusConfirmed, ActorAdmin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, got.Status)
	assert.True(t, fx.ledger.get(1).Equal(dec("47")), "stock %s", fx.ledger.get(1))
	assert.True(t, fx.ledger.get(2).Equal(dec("10.5")))

	// cancelling a committed order restores every line in full
	got, err = fx.svc.TransitionStatus(ctx, o.ID, orders.StatusCancelled, ActorAdmin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.True(t, fx.ledger.get(1).Equal(dec("50")))
	assert.True(t, fx.ledger.get(2).Equal(dec("12")))

	cancelled := fx.dispatcher.byKind(orders.EventOrderCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, ActorAdmin, cancelled[0].Reason)
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	fx := newFixture(pieceFruit(1, "mango", "10.00", "50"))
	ctx := context.Background()
	o := createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("1")})

	_, err := fx.svc.TransitionStatus(ctx, o.ID, orders.Status("teleported"), ActorAdmin)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = fx.svc.TransitionStatus(ctx, o.ID, orders.StatusShipped, ActorAdmin)
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = fx.svc.TransitionStatus(ctx, 999, orders.StatusPaid, ActorAdmin)
	require.ErrorIs(t, err, orders.ErrNotFound)

	// terminal states are closed
	_, err = fx.svc.TransitionStatus(ctx, o.ID, orders.StatusCancelled, ActorAdmin)
	require.NoError(t, err)
	_, err = fx.svc.TransitionStatus(ctx, o.ID, orders.StatusPaid, ActorAdmin)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestTransitionAllOrNothing(t *testing.T) {
	fx := newFixture(
		pieceFruit(1, "mango", "10.00", "50"),
		pieceFruit(2, "lychee", "5.00", "50"),
	)
	ctx := context.Background()
	o := createOrder(t, fx, 7,
		LineInput{FruitID: 1, Quantity: dec("2")},
		LineInput{FruitID: 2, Quantity: dec("2")},
	)

	// lose the second line's stock to a competing order after creation
	fx.ledger.mu.Lock()
	fx.ledger.stock[2] = dec("1")
	fx.ledger.mu.Unlock()

	_, err := fx.svc.TransitionStatus(ctx, o.ID, orders.StatusConfirmed, ActorAdmin)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	// the first line's decrement must have been rolled back
	assert.True(t, fx.ledger.get(1).Equal(dec("50")))
	assert.True(t, fx.ledger.get(2).Equal(dec("1")))

	got, err := fx.orders.GetByID(ctx, nil, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
}

func TestTransitionToPaidIssuesInvoiceOnce(t *testing.T) {
	fx := newFixture(pieceFruit(1, "mango", "10.00", "50"))
	ctx := context.Background()
	o := createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("4")})

	got, err := fx.svc.TransitionStatus(ctx, o.ID, orders.StatusPaid, ActorAdmin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.True(t, fx.ledger.get(1).Equal(dec("46")))
	assert.Equal(t, 1, fx.invoices.calls)

	paid := fx.dispatcher.byKind(orders.EventOrderPaid)
	require.Len(t, paid, 1)
	assert.NotZero(t, paid[0].InvoiceID)
	assert.NotEmpty(t, paid[0].InvoiceNumber)

	// paid -> paid is a stock no-op and must not issue a second invoice
	got, err = fx.svc.TransitionStatus(ctx, o.ID, orders.StatusPaid, ActorAdmin)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.True(t, fx.ledger.get(1).Equal(dec("46")))
	assert.Equal(t, 1, fx.invoices.calls)
	assert.Len(t, fx.invoices.byOrder, 1)
	assert.Len(t, fx.dispatcher.byKind(orders.EventOrderPaid), 1)
}

func TestNoOversellUnderConcurrentTransitions(t *testing.T) {
	fx := newFixture(pieceFruit(1, "durian", "120.00", "1"))
	ctx := context.Background()

	// both checkouts pass the advisory check for the last piece
	o1 := createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("1")})
	o2 := createOrder(t, fx, 8, LineInput{FruitID: 1, Quantity: dec("1")})

	gate := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []int64{o1.ID, o2.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			<-gate
			_, errs[i] = fx.svc.TransitionStatus(ctx, id, orders.StatusConfirmed, ActorAdmin)
		}(i, id)
	}
	close(gate)
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, inventory.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one order may win the last piece")
	assert.Equal(t, 1, insufficient)
	assert.True(t, fx.ledger.get(1).Equal(dec("0")))
}

func TestConcurrentTransitionsOnSameOrderSerialize(t *testing.T) {
	fx := newFixture(pieceFruit(1, "mango", "10.00", "10"))
	ctx := context.Background()
	o := createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("2")})

	gate := make(chan struct{})
	errs := make([]error, 2)
	targets := []orders.Status{orders.StatusConfirmed, orders.StatusCancelled}
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target orders.Status) {
			defer wg.Done()
			<-gate
			_, errs[i] = fx.svc.TransitionStatus(ctx, o.ID, target, ActorAdmin)
		}(i, target)
	}
	close(gate)
	wg.Wait()

	got, err := fx.orders.GetByID(ctx, nil, o.ID)
	require.NoError(t, err)

	// whichever interleaving happened, a loser may only fail with a stale
	// CAS or an illegal move from the winner's committed status
	for i, err := range errs {
		if err != nil {
			assert.True(t,
				errors.Is(err, orders.ErrStale) || errors.Is(err, ErrIllegalTransition),
				"goroutine %d: %v", i, err)
		}
	}

	// stock must agree exactly with the final status; a lost reservation
	// must have been rolled back, never leaked
	switch got.Status {
	case orders.StatusConfirmed:
		require.NoError(t, errs[0])
		assert.True(t, fx.ledger.get(1).Equal(dec("8")), "stock %s", fx.ledger.get(1))
	case orders.StatusCancelled:
		require.NoError(t, errs[1])
		assert.True(t, fx.ledger.get(1).Equal(dec("10")), "stock %s", fx.ledger.get(1))
	default:
		t.Fatalf("unexpected final status %q", got.Status)
	}
}

func TestConfirmPaymentByOwner(t *testing.T) {
	fx := newFixture(pieceFruit(1, "mango", "10.00", "50"))
	ctx := context.Background()
	o := createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("2")})

	_, err := fx.svc.ConfirmPaymentByOwner(ctx, o.ID, 8)
	require.ErrorIs(t, err, ErrNotOwner)

	got, err := fx.svc.ConfirmPaymentByOwner(ctx, o.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.True(t, fx.ledger.get(1).Equal(dec("48")))
	assert.Equal(t, 1, fx.invoices.calls)

	// once paid, the shortcut is closed
	_, err = fx.svc.ConfirmPaymentByOwner(ctx, o.ID, 7)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestUploadPaymentSlip(t *testing.T) {
	fx := newFixture(kgFruit(1, "longan", "20.00", "12"))
	ctx := context.Background()
	o := createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("1.5")})

	_, err := fx.svc.UploadPaymentSlip(ctx, o.ID, 8, []byte{1}, dec("30.00"), "")
	require.ErrorIs(t, err, ErrNotOwner)

	got, err := fx.svc.UploadPaymentSlip(ctx, o.ID, 7, []byte{0xff, 0xd8}, dec("30.00"), "paid via app")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.True(t, fx.ledger.get(1).Equal(dec("10.5")))

	require.Len(t, fx.slips.slips, 1)
	assert.Equal(t, o.ID, fx.slips.slips[0].OrderID)
	assert.True(t, fx.slips.insideOpenTx, "slip row must be written before the transaction commits")
	assert.Equal(t, 1, fx.invoices.calls)

	paid := fx.dispatcher.byKind(orders.EventOrderPaid)
	require.Len(t, paid, 1)
	assert.True(t, paid[0].SlipUploaded)
}

func TestUploadPaymentSlipFailureRollsBack(t *testing.T) {
	fx := newFixture(kgFruit(1, "longan", "20.00", "12"))
	ctx := context.Background()
	o := createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("1.5")})

	fx.slips.createErr = errors.New("disk full")
	_, err := fx.svc.UploadPaymentSlip(ctx, o.ID, 7, []byte{1}, dec("30.00"), "")
	require.Error(t, err)

	got, err := fx.orders.GetByID(ctx, nil, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.True(t, fx.ledger.get(1).Equal(dec("12")))
	assert.Equal(t, 0, fx.invoices.calls)
}

func TestListExpiredPending(t *testing.T) {
	fx := newFixture(pieceFruit(1, "mango", "10.00", "50"))
	old := createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("1")})
	createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("1")})
	fx.orders.backdate(old.ID, 10*time.Minute)

	expired, err := fx.svc.ListExpiredPending(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	fx := newFixture(kgFruit(1, "longan", "20.00", "7.25"))
	ctx := context.Background()
	o := createOrder(t, fx, 7, LineInput{FruitID: 1, Quantity: dec("3.75")})

	_, err := fx.svc.TransitionStatus(ctx, o.ID, orders.StatusPaid, ActorAdmin)
	require.NoError(t, err)
	assert.True(t, fx.ledger.get(1).Equal(dec("3.5")))

	_, err = fx.svc.TransitionStatus(ctx, o.ID, orders.StatusCancelled, ActorAdmin)
	require.NoError(t, err)
	assert.True(t, fx.ledger.get(1).Equal(dec("7.25")))
}
