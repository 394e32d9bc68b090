package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("notification not found")

const (
	TypeInfo            = "info"
	TypePaymentReceived = "payment_received"
	TypeSlipUploaded    = "slip_uploaded"
	TypeOrderCancelled  = "order_cancelled"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	RelatedID int64     `json:"related_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type ListOptions struct {
	Limit  int
	Offset int
	IsRead *bool
}

type Store struct{ DB *pgxpool.Pool }

func (s *Store) Create(ctx context.Context, n Notification) (Notification, error) {
	if n.Type == "" {
		n.Type = TypeInfo
	}
	err := s.DB.QueryRow(ctx, `
		INSERT INTO notifications (user_id, title, message, type, related_id)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, is_read, created_at`,
		n.UserID, n.Title, n.Message, n.Type, n.RelatedID,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	return n, err
}

func (s *Store) ListByUser(ctx context.Context, userID int64, opts ListOptions) ([]Notification, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	sql := `SELECT id, user_id, title, message, type, COALESCE(related_id,0), is_read, created_at
	        FROM notifications WHERE user_id = $1`
	args := []any{userID}
	if opts.IsRead != nil {
		sql += ` AND is_read = $2`
		args = append(args, *opts.IsRead)
	}
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type,
			&n.RelatedID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flips one notification; the user id guards ownership.
func (s *Store) MarkRead(ctx context.Context, id, userID int64) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE user_id=$1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *Store) Delete(ctx context.Context, id, userID int64) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM notifications WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read = FALSE`, userID).Scan(&n)
	return n, err
}
