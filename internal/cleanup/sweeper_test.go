package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suanphol/fruitshop/internal/orders"
)

type fakeLifecycle struct {
	expired   []orders.Order
	listErr   error
	failIDs   map[int64]error
	cancelled []int64
	actors    []string
}

func (f *fakeLifecycle) ListExpiredPending(ctx context.Context, maxAge time.Duration) ([]orders.Order, error) {
	return f.expired, f.listErr
}

func (f *fakeLifecycle) TransitionStatus(ctx context.Context, orderID int64, newStatus orders.Status, actor string) (orders.Order, error) {
	if err := f.failIDs[orderID]; err != nil {
		return orders.Order{}, err
	}
	f.cancelled = append(f.cancelled, orderID)
	f.actors = append(f.actors, actor)
	return orders.Order{ID: orderID, Status: newStatus}, nil
}

func TestSweepCancelsExpiredOrders(t *testing.T) {
	lc := &fakeLifecycle{
		expired: []orders.Order{{ID: 1}, {ID: 2}, {ID: 3}},
	}
	s := &Sweeper{Lifecycle: lc, MaxAge: 5 * time.Minute, Interval: time.Minute}

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{1, 2, 3}, lc.cancelled)
	for _, actor := range lc.actors {
		assert.Equal(t, "system", actor)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	lc := &fakeLifecycle{
		expired: []orders.Order{{ID: 1}, {ID: 2}, {ID: 3}},
		failIDs: map[int64]error{2: orders.ErrStale},
	}
	s := &Sweeper{Lifecycle: lc, MaxAge: 5 * time.Minute, Interval: time.Minute}

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "a racing transition on one order must not stop the batch")
	assert.Equal(t, []int64{1, 3}, lc.cancelled)
}

func TestSweepPropagatesListError(t *testing.T) {
	lc := &fakeLifecycle{listErr: errors.New("db down")}
	s := &Sweeper{Lifecycle: lc, MaxAge: 5 * time.Minute, Interval: time.Minute}

	_, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Empty(t, lc.cancelled)
}

func TestSweepNothingExpired(t *testing.T) {
	s := &Sweeper{Lifecycle: &fakeLifecycle{}, MaxAge: 5 * time.Minute, Interval: time.Minute}

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
