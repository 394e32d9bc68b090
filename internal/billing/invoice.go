package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/suanphol/fruitshop/internal/orders"
)

var ErrNotFound = errors.New("invoice not found")

type Invoice struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	OrderID       int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	PaymentDate   time.Time       `json:"payment_date"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`

	// joined order/user detail for reads
	OrderNumber string        `json:"order_number,omitempty"`
	OrderStatus orders.Status `json:"order_status,omitempty"`
	Username    string        `json:"username,omitempty"`
	Email       string        `json:"email,omitempty"`
}

// PDFRenderer turns an invoice and its line items into a document byte
// stream. Rendering itself lives outside this module.
type PDFRenderer interface {
	Render(inv Invoice, items []orders.OrderItem) ([]byte, error)
}

// InvoiceNumber derives the public number from the issue date and the
// database-assigned id: INV-YYYY-MMDD-{id}.
func InvoiceNumber(id int64, at time.Time) string {
	return fmt.Sprintf("INV-%d-%02d%02d-%d", at.Year(), int(at.Month()), at.Day(), id)
}

// DB is satisfied by *pgxpool.Pool. Issue needs its own transaction; the
// reads run on the pool directly.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct{ DB DB }

// Issue creates the invoice for a paid order, at most once. The UNIQUE
// constraint on invoices.order_id resolves concurrent attempts: the loser's
// insert hits the conflict, returns no row, and the existing invoice is
// fetched instead. Runs in its own short transaction because it is invoked
// after the status transition has already committed.
func (s *Store) Issue(ctx context.Context, o orders.Order) (Invoice, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Invoice{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inv := Invoice{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Subtotal:      o.TotalAmount,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		Notes:         o.Notes,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, order_id, user_id, subtotal,
		                      total_amount, payment_method, payment_date, notes)
		VALUES ('TEMP', $1, $2, $3, $4, $5, NOW(), $6)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, payment_date, created_at`,
		inv.OrderID, inv.UserID, inv.Subtotal, inv.TotalAmount,
		inv.PaymentMethod, inv.Notes,
	).Scan(&inv.ID, &inv.PaymentDate, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// already issued; return the existing invoice
		_ = tx.Rollback(ctx)
		return s.GetByOrderID(ctx, o.ID)
	}
	if err != nil {
		return Invoice{}, err
	}

	inv.InvoiceNumber = InvoiceNumber(inv.ID, inv.CreatedAt)
	if _, err := tx.Exec(ctx, `UPDATE invoices SET invoice_number=$1 WHERE id=$2`, inv.InvoiceNumber, inv.ID); err != nil {
		return Invoice{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (s *Store) ExistsForOrder(ctx context.Context, orderID int64) (bool, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `SELECT id FROM invoices WHERE order_id=$1`, orderID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

const invoiceCols = `
	SELECT i.id, i.invoice_number, i.order_id, i.user_id, i.subtotal,
	       i.total_amount, i.payment_method, i.payment_date,
	       COALESCE(i.notes,''), i.created_at,
	       COALESCE(o.order_number,''), COALESCE(o.status,''),
	       COALESCE(u.username,''), COALESCE(u.email,'')
	FROM invoices i
	LEFT JOIN orders o ON i.order_id = o.id
	LEFT JOIN users u ON i.user_id = u.id`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &inv.UserID,
		&inv.Subtotal, &inv.TotalAmount, &inv.PaymentMethod, &inv.PaymentDate,
		&inv.Notes, &inv.CreatedAt, &inv.OrderNumber, &inv.OrderStatus,
		&inv.Username, &inv.Email)
	return inv, err
}

func (s *Store) GetByID(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(s.DB.QueryRow(ctx, invoiceCols+` WHERE i.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

func (s *Store) GetByOrderID(ctx context.Context, orderID int64) (Invoice, error) {
	inv, err := scanInvoice(s.DB.QueryRow(ctx, invoiceCols+` WHERE i.order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]Invoice, error) {
	return s.list(ctx, invoiceCols+` WHERE i.user_id=$1 ORDER BY i.created_at DESC`, userID)
}

func (s *Store) ListAll(ctx context.Context) ([]Invoice, error) {
	return s.list(ctx, invoiceCols+` ORDER BY i.created_at DESC`)
}

func (s *Store) list(ctx context.Context, sql string, args ...any) ([]Invoice, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
