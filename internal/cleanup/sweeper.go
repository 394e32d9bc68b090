package cleanup

import (
	"context"
	"log"
	"time"

	"github.com/suanphol/fruitshop/internal/lifecycle"
	"github.com/suanphol/fruitshop/internal/orders"
)

// Lifecycle is the slice of the controller the sweeper needs: expired orders
// are cancelled through the same transition machinery as every other status
// change, so stock reconciliation applies uniformly.
type Lifecycle interface {
	ListExpiredPending(ctx context.Context, maxAge time.Duration) ([]orders.Order, error)
	TransitionStatus(ctx context.Context, orderID int64, newStatus orders.Status, actor string) (orders.Order, error)
}

// Sweeper cancels pending orders that were never paid within MaxAge.
type Sweeper struct {
	Lifecycle Lifecycle
	MaxAge    time.Duration
	Interval  time.Duration
}

// Run ticks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	log.Printf("order cleanup started: every %s, cancelling pending orders older than %s", s.Interval, s.MaxAge)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Printf("order cleanup: %v", err)
			} else if n > 0 {
				log.Printf("order cleanup: cancelled %d expired order(s)", n)
			}
		}
	}
}

// Sweep runs one pass and returns how many orders were cancelled. A failure
// on one order is logged and does not stop the batch.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.Lifecycle.ListExpiredPending(ctx, s.MaxAge)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range expired {
		if _, err := s.Lifecycle.TransitionStatus(ctx, o.ID, orders.StatusCancelled, lifecycle.ActorSystem); err != nil {
			log.Printf("order cleanup: cancel order %d (%s): %v", o.ID, o.OrderNumber, err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}
