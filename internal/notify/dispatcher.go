package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/suanphol/fruitshop/internal/kafka"
	"github.com/suanphol/fruitshop/internal/orders"
)

// Event is a post-commit lifecycle fact the dispatcher fans out: admin
// notification rows plus a Kafka event. It is enqueued after the owning
// transaction has committed; nothing here can roll the order back.
type Event struct {
	Kind          string // orders.EventOrderCreated | EventOrderPaid | EventOrderCancelled
	Order         orders.Order
	InvoiceID     int64
	InvoiceNumber string
	SlipUploaded  bool
	Reason        string
	TraceID       string
}

type NotificationWriter interface {
	Create(ctx context.Context, n Notification) (Notification, error)
}

type AdminLister interface {
	AdminIDs(ctx context.Context) ([]int64, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Pusher delivers a message over an external channel (LINE push). Delivery
// is best-effort and lives outside this module.
type Pusher interface {
	Push(ctx context.Context, externalUserRef, message string) error
}

// Dispatcher drains an inbox channel on its own goroutine so request
// handlers never block on side effects. Same shape as the Kafka producer
// loop: Start, Enqueue, Close, WaitClosed.
type Dispatcher struct {
	Store    NotificationWriter
	Admins   AdminLister
	Created  Publisher
	Paid     Publisher
	Cancel   Publisher
	Producer string

	inbox   chan Event
	closeCh chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewDispatcher(store NotificationWriter, admins AdminLister, buf int) *Dispatcher {
	return &Dispatcher{
		Store:   store,
		Admins:  admins,
		inbox:   make(chan Event, buf),
		closeCh: make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				// drain what is already queued, then stop
				for {
					select {
					case ev, ok := <-d.inbox:
						if !ok {
							close(d.closeCh)
							return
						}
						d.handle(context.Background(), ev)
					default:
						close(d.closeCh)
						return
					}
				}
			case ev, ok := <-d.inbox:
				if !ok {
					close(d.closeCh)
					return
				}
				d.handle(ctx, ev)
			}
		}
	}()
}

// Enqueue hands an event to the worker. Dropping on a full or closed inbox
// is preferable to blocking a request; the loss is logged. Background tasks
// (the cleanup sweep, late handlers) may still report events during shutdown,
// so Enqueue must stay safe after Close.
func (d *Dispatcher) Enqueue(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Printf("dispatcher: closed, dropping %s for order %d", ev.Kind, ev.Order.ID)
		return
	}
	select {
	case d.inbox <- ev:
	default:
		log.Printf("dispatcher: inbox full, dropping %s for order %d", ev.Kind, ev.Order.ID)
	}
}

// Close stops accepting events; the worker drains the remainder and exits.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.inbox)
}

func (d *Dispatcher) WaitClosed() { <-d.closeCh }

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	d.notifyAdmins(ctx, ev)
	d.publish(ev)
}

// notifyAdmins writes one notification row per admin. Failures are isolated
// per row; one bad insert must not block the rest.
func (d *Dispatcher) notifyAdmins(ctx context.Context, ev Event) {
	if d.Admins == nil || d.Store == nil {
		return
	}
	adminIDs, err := d.Admins.AdminIDs(ctx)
	if err != nil {
		log.Printf("dispatcher: list admins: %v", err)
		return
	}

	title, message, typ := adminText(ev)
	if title == "" {
		return
	}
	for _, id := range adminIDs {
		_, err := d.Store.Create(ctx, Notification{
			UserID:    id,
			Title:     title,
			Message:   message,
			Type:      typ,
			RelatedID: ev.Order.ID,
		})
		if err != nil {
			log.Printf("dispatcher: notify admin %d: %v", id, err)
		}
	}
}

func adminText(ev Event) (title, message, typ string) {
	switch ev.Kind {
	case orders.EventOrderPaid:
		if ev.SlipUploaded {
			return "Payment slip uploaded",
				fmt.Sprintf("A payment slip was uploaded for order %s (%s)", ev.Order.OrderNumber, ev.Order.TotalAmount.StringFixed(2)),
				TypeSlipUploaded
		}
		return "Payment received",
			fmt.Sprintf("Order %s has been paid (%s)", ev.Order.OrderNumber, ev.Order.TotalAmount.StringFixed(2)),
			TypePaymentReceived
	case orders.EventOrderCancelled:
		return "Order cancelled",
			fmt.Sprintf("Order %s was cancelled", ev.Order.OrderNumber),
			TypeOrderCancelled
	default:
		return "", "", ""
	}
}

func (d *Dispatcher) publish(ev Event) {
	var (
		pub     Publisher
		payload any
	)
	switch ev.Kind {
	case orders.EventOrderCreated:
		pub = d.Created
		payload = orders.OrderCreatedPayload{
			OrderID:     ev.Order.ID,
			OrderNumber: ev.Order.OrderNumber,
			UserID:      ev.Order.UserID,
			TotalAmount: ev.Order.TotalAmount,
		}
	case orders.EventOrderPaid:
		pub = d.Paid
		payload = orders.OrderPaidPayload{
			OrderID:       ev.Order.ID,
			OrderNumber:   ev.Order.OrderNumber,
			UserID:        ev.Order.UserID,
			InvoiceID:     ev.InvoiceID,
			InvoiceNumber: ev.InvoiceNumber,
			TotalAmount:   ev.Order.TotalAmount,
			PaymentMethod: ev.Order.PaymentMethod,
		}
	case orders.EventOrderCancelled:
		pub = d.Cancel
		payload = orders.OrderCancelledPayload{
			OrderID:     ev.Order.ID,
			OrderNumber: ev.Order.OrderNumber,
			UserID:      ev.Order.UserID,
			Reason:      ev.Reason,
		}
	}
	if pub == nil {
		return
	}

	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Kind,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.Producer,
		TraceID:       ev.TraceID,
		CorrelationID: fmt.Sprintf("%d", ev.Order.ID),
		Payload:       kafkax.MustMarshal(payload),
	}
	pub.Publish(orders.PartitionKey(ev.Order.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(ev.Kind)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
