package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/suanphol/fruitshop/internal/kafka"
	"github.com/suanphol/fruitshop/internal/orders"
	"github.com/suanphol/fruitshop/internal/redisx"
	"github.com/suanphol/fruitshop/internal/users"
)

type UserReader interface {
	GetByID(ctx context.Context, id int64) (users.User, error)
}

// PushService consumes paid-order events and delivers a payment confirmation
// over the external push channel. It is the messaging counterpart of the
// in-process dispatcher: everything here is best-effort and after the fact.
type PushService struct {
	Users       UserReader
	Redis       *redis.Client
	Pusher      Pusher // nil when the channel is not configured
	ServiceName string
}

func (s *PushService) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.DecodeEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPaid {
		return nil
	}

	// dedup by event id so consumer-group rebalances don't double-push
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	if first, err := s.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result(); err == nil && !first {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		return err
	}

	if s.Pusher == nil {
		log.Printf("push channel not configured, skipping order %s", p.OrderNumber)
		return nil
	}

	u, err := s.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if u.LineUserID == "" {
		log.Printf("user %d has no push ref, skipping order %s", p.UserID, p.OrderNumber)
		return nil
	}

	msg := fmt.Sprintf("Thank you! Payment for order %s (%s) has been received.",
		p.OrderNumber, p.TotalAmount.StringFixed(2))
	if p.InvoiceNumber != "" {
		msg += " Invoice " + p.InvoiceNumber + " is ready."
	}
	if err := s.Pusher.Push(ctx, u.LineUserID, msg); err != nil {
		// delivery is best-effort; do not force a redelivery loop
		log.Printf("push to %s failed: %v", u.LineUserID, err)
	}
	return nil
}
