package lifecycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/suanphol/fruitshop/internal/billing"
	"github.com/suanphol/fruitshop/internal/catalog"
	"github.com/suanphol/fruitshop/internal/inventory"
	"github.com/suanphol/fruitshop/internal/notify"
	"github.com/suanphol/fruitshop/internal/orders"
	"github.com/suanphol/fruitshop/internal/payments"
)

// Actor identifies who drives a transition; it ends up in cancel reasons and
// logs, never in authorization decisions (those happen before the call).
const (
	ActorAdmin  = "admin"
	ActorOwner  = "owner"
	ActorSystem = "system"
)

const (
	defaultCountry       = "Thailand"
	defaultPaymentMethod = "Thai QR PromptPay"
)

type Catalog interface {
	GetFruitByID(ctx context.Context, id int64) (catalog.Fruit, error)
}

type OrderStore interface {
	CreateWithItems(ctx context.Context, o orders.Order, items []orders.OrderItem) (orders.Order, error)
	GetByID(ctx context.Context, q orders.Querier, id int64) (orders.Order, error)
	UpdateStatus(ctx context.Context, q orders.Querier, id int64, from, to orders.Status) error
	ListExpiredPending(ctx context.Context, maxAge time.Duration) ([]orders.Order, error)
}

type Ledger interface {
	Reserve(ctx context.Context, q inventory.Querier, fruitID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Release(ctx context.Context, q inventory.Querier, fruitID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

type InvoiceIssuer interface {
	Issue(ctx context.Context, o orders.Order) (billing.Invoice, error)
}

type SlipWriter interface {
	Create(ctx context.Context, q payments.Querier, slip payments.PaymentSlip) (payments.PaymentSlip, error)
}

type Dispatcher interface {
	Enqueue(ev notify.Event)
}

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the order lifecycle controller. It is the only component that
// decides whether a failure is fatal to a request; stores and the ledger
// report raw outcomes.
type Service struct {
	DB       TxBeginner
	Catalog  Catalog
	Orders   OrderStore
	Ledger   Ledger
	Invoices InvoiceIssuer
	Slips    SlipWriter
	Events   Dispatcher // optional
}

type LineInput struct {
	FruitID  int64           `json:"fruit_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

type CreateRequest struct {
	Items              []LineInput `json:"items"`
	ShippingAddress    string      `json:"shipping_address"`
	ShippingCity       string      `json:"shipping_city"`
	ShippingPostalCode string      `json:"shipping_postal_code"`
	ShippingCountry    string      `json:"shipping_country"`
	PaymentMethod      string      `json:"payment_method"`
	Notes              string      `json:"notes"`
}

// CreateOrder validates every line against the catalog, snapshots prices,
// and persists header + items in one transaction. Stock is NOT touched here:
// the creation-time check is advisory, the authoritative one is the Reserve
// inside the committing transition.
func (s *Service) CreateOrder(ctx context.Context, userID int64, req CreateRequest) (orders.Order, error) {
	if len(req.Items) == 0 {
		return orders.Order{}, ErrNoItems
	}
	if req.ShippingAddress == "" {
		return orders.Order{}, ErrMissingShipping
	}

	total := decimal.Zero
	items := make([]orders.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		fruit, err := s.Catalog.GetFruitByID(ctx, line.FruitID)
		if err != nil {
			return orders.Order{}, fmt.Errorf("fruit %d: %w", line.FruitID, err)
		}

		qty := line.Quantity
		if !qty.IsPositive() {
			return orders.Order{}, fmt.Errorf("%w: fruit %s", ErrInvalidQuantity, fruit.Name)
		}
		if fruit.Unit == catalog.UnitPiece && !qty.IsInteger() {
			return orders.Order{}, fmt.Errorf("%w: %s is sold by piece, quantity must be a whole number", ErrInvalidQuantity, fruit.Name)
		}
		if fruit.Stock.LessThan(qty) {
			return orders.Order{}, fmt.Errorf("%w: %s has %s %s available, %s requested",
				inventory.ErrInsufficientStock, fruit.Name,
				fruit.Stock.String(), fruit.Unit, qty.String())
		}

		subtotal := fruit.Price.Mul(qty)
		total = total.Add(subtotal)
		items = append(items, orders.OrderItem{
			FruitID:  fruit.ID,
			Quantity: qty,
			Price:    fruit.Price,
			Subtotal: subtotal,
		})
	}

	o := orders.Order{
		UserID:             userID,
		TotalAmount:        total,
		ShippingAddress:    req.ShippingAddress,
		ShippingCity:       req.ShippingCity,
		ShippingPostalCode: req.ShippingPostalCode,
		ShippingCountry:    orDefault(req.ShippingCountry, defaultCountry),
		PaymentMethod:      orDefault(req.PaymentMethod, defaultPaymentMethod),
		Notes:              req.Notes,
	}
	created, err := s.Orders.CreateWithItems(ctx, o, items)
	if err != nil {
		return orders.Order{}, err
	}

	if s.Events != nil {
		s.Events.Enqueue(notify.Event{Kind: orders.EventOrderCreated, Order: created})
	}
	return created, nil
}

// TransitionStatus drives an order to newStatus under transactional stock
// reconciliation. Side effects (invoice, notifications, events) fire after
// commit and never fail the transition.
func (s *Service) TransitionStatus(ctx context.Context, orderID int64, newStatus orders.Status, actor string) (orders.Order, error) {
	if !newStatus.Valid() {
		return orders.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}
	o, err := s.Orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	return s.apply(ctx, o, newStatus, actor, nil)
}

// ConfirmPaymentByOwner is the owner-restricted shortcut that drives
// pending/processing straight to paid.
func (s *Service) ConfirmPaymentByOwner(ctx context.Context, orderID, userID int64) (orders.Order, error) {
	o, err := s.Orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if o.UserID != userID {
		return orders.Order{}, ErrNotOwner
	}
	if o.Status != orders.StatusPending && o.Status != orders.StatusProcessing {
		return orders.Order{}, fmt.Errorf("%w: cannot confirm payment from %q", ErrIllegalTransition, o.Status)
	}
	return s.apply(ctx, o, orders.StatusPaid, ActorOwner, nil)
}

// UploadPaymentSlip persists the slip and flips the order to paid in one
// atomic unit: the slip row is written inside the same transaction, before
// the status CAS, so a committed paid order always has its slip.
func (s *Service) UploadPaymentSlip(ctx context.Context, orderID, userID int64, image []byte, declaredAmount decimal.Decimal, notes string) (orders.Order, error) {
	o, err := s.Orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if o.UserID != userID {
		return orders.Order{}, ErrNotOwner
	}
	if o.Status != orders.StatusPending && o.Status != orders.StatusProcessing {
		return orders.Order{}, fmt.Errorf("%w: cannot upload slip for %q order", ErrIllegalTransition, o.Status)
	}

	return s.apply(ctx, o, orders.StatusPaid, ActorOwner, func(tx pgx.Tx) error {
		_, err := s.Slips.Create(ctx, tx, payments.PaymentSlip{
			OrderID: orderID,
			Image:   image,
			Amount:  declaredAmount,
			Notes:   notes,
		})
		return err
	})
}

// apply runs the transition machinery on an already-loaded order: one
// transaction around (optional pre-step, per-line stock effect, status CAS),
// then post-commit side effects. All-or-nothing: a failed Reserve on any
// line rolls back every prior line's decrement.
func (s *Service) apply(ctx context.Context, o orders.Order, newStatus orders.Status, actor string, pre func(tx pgx.Tx) error) (orders.Order, error) {
	oldStatus := o.Status
	if !orders.CanTransition(oldStatus, newStatus) {
		return orders.Order{}, fmt.Errorf("%w: %q -> %q", ErrIllegalTransition, oldStatus, newStatus)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return orders.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if pre != nil {
		if err := pre(tx); err != nil {
			return orders.Order{}, err
		}
	}

	// Policy is decided once per order, applied per line.
	switch orders.Decide(oldStatus, newStatus) {
	case orders.EffectReserve:
		for _, it := range o.Items {
			if _, err := s.Ledger.Reserve(ctx, tx, it.FruitID, it.Quantity); err != nil {
				return orders.Order{}, fmt.Errorf("reserve fruit %d: %w", it.FruitID, err)
			}
		}
	case orders.EffectRelease:
		for _, it := range o.Items {
			if _, err := s.Ledger.Release(ctx, tx, it.FruitID, it.Quantity); err != nil {
				return orders.Order{}, fmt.Errorf("release fruit %d: %w", it.FruitID, err)
			}
		}
	}

	// CAS on the status we loaded: a racing transition makes this a no-row
	// update and the whole tx, stock effects included, rolls back.
	if err := s.Orders.UpdateStatus(ctx, tx, o.ID, oldStatus, newStatus); err != nil {
		return orders.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return orders.Order{}, err
	}
	o.Status = newStatus

	s.sideEffects(ctx, o, oldStatus, newStatus, actor, pre != nil)
	return o, nil
}

// sideEffects runs after the commit. Failures here are logged, never
// propagated: the committed status is the authoritative state and the
// invoice or notification may lag behind it.
func (s *Service) sideEffects(ctx context.Context, o orders.Order, oldStatus, newStatus orders.Status, actor string, fromSlip bool) {
	if newStatus == orders.StatusPaid && oldStatus != orders.StatusPaid {
		ev := notify.Event{Kind: orders.EventOrderPaid, Order: o, SlipUploaded: fromSlip}
		if s.Invoices != nil {
			inv, err := s.Invoices.Issue(ctx, o)
			if err != nil {
				log.Printf("issue invoice for order %d: %v", o.ID, err)
			} else {
				ev.InvoiceID = inv.ID
				ev.InvoiceNumber = inv.InvoiceNumber
			}
		}
		if s.Events != nil {
			s.Events.Enqueue(ev)
		}
	}

	if newStatus == orders.StatusCancelled && s.Events != nil {
		s.Events.Enqueue(notify.Event{
			Kind:   orders.EventOrderCancelled,
			Order:  o,
			Reason: actor,
		})
	}
}

// ListExpiredPending exposes the sweep query to the cleanup loop so expired
// orders are cancelled through the same transition machinery as everything
// else.
func (s *Service) ListExpiredPending(ctx context.Context, maxAge time.Duration) ([]orders.Order, error) {
	return s.Orders.ListExpiredPending(ctx, maxAge)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
