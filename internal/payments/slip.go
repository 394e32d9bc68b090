package payments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrSlipNotFound = errors.New("payment slip not found")

// PaymentSlip is the uploaded proof of payment for an order. Its presence is
// what flips the order to paid.
type PaymentSlip struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	Image       []byte          `json:"image_data,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx. The slip insert must be
// durable before the paid transition commits, so the lifecycle controller
// passes its open transaction here.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type SlipStore struct{ DB *pgxpool.Pool }

func (s *SlipStore) Create(ctx context.Context, q Querier, slip PaymentSlip) (PaymentSlip, error) {
	if q == nil {
		q = s.DB
	}
	if slip.PaymentDate.IsZero() {
		slip.PaymentDate = time.Now()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO payment_slips (order_id, image_data, amount, payment_date, notes)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at`,
		slip.OrderID, slip.Image, slip.Amount, slip.PaymentDate, slip.Notes,
	).Scan(&slip.ID, &slip.CreatedAt)
	return slip, err
}

func (s *SlipStore) GetByOrderID(ctx context.Context, orderID int64) (PaymentSlip, error) {
	var slip PaymentSlip
	err := s.DB.QueryRow(ctx, `
		SELECT id, order_id, image_data, amount, payment_date, COALESCE(notes,''), created_at
		FROM payment_slips
		WHERE order_id = $1`, orderID,
	).Scan(&slip.ID, &slip.OrderID, &slip.Image, &slip.Amount, &slip.PaymentDate,
		&slip.Notes, &slip.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentSlip{}, ErrSlipNotFound
	}
	return slip, err
}
