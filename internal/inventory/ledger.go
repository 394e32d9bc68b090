package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrInsufficientStock is a recoverable business error, not a system fault.
var ErrInsufficientStock = errors.New("insufficient stock")

// Querier is satisfied by *pgxpool.Pool and pgx.Tx. Ledger operations run on
// whatever handle the caller passes, so a lifecycle transition can fold stock
// changes into its own transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Ledger struct{}

// Reserve decrements stock for a committed order line. The WHERE clause is
// the authoritative oversell guard: zero rows means the stock race was lost.
// Never split this into a read followed by a write.
func (Ledger) Reserve(ctx context.Context, q Querier, fruitID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var stock decimal.Decimal
	err := q.QueryRow(ctx, `
		UPDATE fruits
		SET stock = stock - $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND stock >= $1
		RETURNING stock`, amount, fruitID,
	).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrInsufficientStock
	}
	return stock, err
}

// Release credits stock back after a committed order is cancelled. There is
// no upper bound; callers gate it through the status CAS so a release fires
// at most once per reservation.
func (Ledger) Release(ctx context.Context, q Querier, fruitID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var stock decimal.Decimal
	err := q.QueryRow(ctx, `
		UPDATE fruits
		SET stock = stock + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING stock`, amount, fruitID,
	).Scan(&stock)
	return stock, err
}
