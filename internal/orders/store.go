package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrStale means the row's status no longer matched the expected old
	// status when the compare-and-swap ran: a concurrent transition won.
	ErrStale = errors.New("order status changed concurrently")
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct{ DB *pgxpool.Pool }

// CreateWithItems persists an order header and its line items in one
// transaction. The order number embeds the database-assigned id, so the row
// is inserted with a placeholder and the number is written back once the id
// exists. No partial-item order is ever visible.
func (s *Store) CreateWithItems(ctx context.Context, o Order, items []OrderItem) (Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, order_number, total_amount, shipping_address,
		                    shipping_city, shipping_postal_code, shipping_country,
		                    payment_method, notes, status)
		VALUES ($1, 'TEMP', $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING id, created_at, updated_at`,
		o.UserID, o.TotalAmount, o.ShippingAddress, o.ShippingCity,
		o.ShippingPostalCode, o.ShippingCountry, o.PaymentMethod, o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}

	o.OrderNumber = OrderNumber(o.ID, o.CreatedAt)
	o.Status = StatusPending
	if _, err := tx.Exec(ctx, `UPDATE orders SET order_number=$1 WHERE id=$2`, o.OrderNumber, o.ID); err != nil {
		return Order{}, err
	}

	for i := range items {
		items[i].OrderID = o.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, fruit_id, quantity, price, subtotal)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id`,
			o.ID, items[i].FruitID, items[i].Quantity, items[i].Price, items[i].Subtotal,
		).Scan(&items[i].ID)
		if err != nil {
			return Order{}, err
		}
	}
	o.Items = items

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

const orderCols = `
	SELECT o.id, o.order_number, o.user_id, COALESCE(u.username,''),
	       COALESCE(u.email,''), COALESCE(u.line_user_id,''), o.total_amount,
	       o.shipping_address, COALESCE(o.shipping_city,''),
	       COALESCE(o.shipping_postal_code,''), o.shipping_country,
	       o.payment_method, COALESCE(o.notes,''), o.status,
	       o.created_at, o.updated_at
	FROM orders o
	LEFT JOIN users u ON o.user_id = u.id`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Username, &o.Email,
		&o.LineUserID, &o.TotalAmount, &o.ShippingAddress, &o.ShippingCity,
		&o.ShippingPostalCode, &o.ShippingCountry, &o.PaymentMethod, &o.Notes,
		&o.Status, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetByID fetches the header, owner summary and line items in one logical
// read. It accepts a Querier so a transition can re-read inside its own tx.
func (s *Store) GetByID(ctx context.Context, q Querier, id int64) (Order, error) {
	if q == nil {
		q = s.DB
	}
	o, err := scanOrder(q.QueryRow(ctx, orderCols+` WHERE o.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	o.Items, err = s.Items(ctx, q, id)
	return o, err
}

func (s *Store) Items(ctx context.Context, q Querier, orderID int64) ([]OrderItem, error) {
	if q == nil {
		q = s.DB
	}
	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.fruit_id, COALESCE(f.name,''),
		       oi.quantity, oi.price, oi.subtotal
		FROM order_items oi
		LEFT JOIN fruits f ON oi.fruit_id = f.id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.FruitID, &it.FruitName,
			&it.Quantity, &it.Price, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus is a compare-and-swap: the write only lands if the row still
// holds the status the caller observed. This is the guard against racing
// transitions double-applying a stock effect.
func (s *Store) UpdateStatus(ctx context.Context, q Querier, id int64, from, to Status) error {
	ct, err := q.Exec(ctx, `
		UPDATE orders
		SET status=$1, updated_at=CURRENT_TIMESTAMP
		WHERE id=$2 AND status=$3`, to, id, from)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]OrderSummary, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT o.id, o.order_number, o.user_id, o.total_amount, o.shipping_address,
		       COALESCE(o.shipping_city,''), COALESCE(o.shipping_postal_code,''),
		       o.shipping_country, o.payment_method, COALESCE(o.notes,''),
		       o.status, o.created_at, o.updated_at, COUNT(oi.id) AS item_count
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.user_id = $1
		GROUP BY o.id
		ORDER BY o.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSummaries(rows, false)
}

func (s *Store) ListAll(ctx context.Context) ([]OrderSummary, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT o.id, o.order_number, o.user_id, o.total_amount, o.shipping_address,
		       COALESCE(o.shipping_city,''), COALESCE(o.shipping_postal_code,''),
		       o.shipping_country, o.payment_method, COALESCE(o.notes,''),
		       o.status, o.created_at, o.updated_at, COUNT(oi.id) AS item_count,
		       COALESCE(u.username,''), COALESCE(u.email,'')
		FROM orders o
		LEFT JOIN users u ON o.user_id = u.id
		LEFT JOIN order_items oi ON o.id = oi.order_id
		GROUP BY o.id, u.username, u.email
		ORDER BY o.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSummaries(rows, true)
}

func collectSummaries(rows pgx.Rows, withUser bool) ([]OrderSummary, error) {
	var out []OrderSummary
	for rows.Next() {
		var o OrderSummary
		dest := []any{&o.ID, &o.OrderNumber, &o.UserID, &o.TotalAmount,
			&o.ShippingAddress, &o.ShippingCity, &o.ShippingPostalCode,
			&o.ShippingCountry, &o.PaymentMethod, &o.Notes, &o.Status,
			&o.CreatedAt, &o.UpdatedAt, &o.ItemCount}
		if withUser {
			dest = append(dest, &o.Username, &o.Email)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListExpiredPending returns pending orders older than the cutoff, for the
// cleanup sweep.
func (s *Store) ListExpiredPending(ctx context.Context, maxAge time.Duration) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_number, user_id, created_at
		FROM orders
		WHERE status = 'pending' AND created_at < NOW() - make_interval(secs => $1)`,
		maxAge.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = StatusPending
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetStatus returns the order's status and the id of the user who owns it.
func (s *Store) GetStatus(ctx context.Context, id int64) (Status, int64, error) {
	var st Status
	var userID int64
	err := s.DB.QueryRow(ctx, `SELECT status, user_id FROM orders WHERE id=$1`, id).Scan(&st, &userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	return st, userID, err
}
