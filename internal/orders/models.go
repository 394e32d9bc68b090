package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                 int64           `json:"id"`
	OrderNumber        string          `json:"order_number"`
	UserID             int64           `json:"user_id"`
	Username           string          `json:"username,omitempty"`
	Email              string          `json:"email,omitempty"`
	LineUserID         string          `json:"line_user_id,omitempty"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	ShippingAddress    string          `json:"shipping_address"`
	ShippingCity       string          `json:"shipping_city,omitempty"`
	ShippingPostalCode string          `json:"shipping_postal_code,omitempty"`
	ShippingCountry    string          `json:"shipping_country"`
	PaymentMethod      string          `json:"payment_method"`
	Notes              string          `json:"notes,omitempty"`
	Status             Status          `json:"status"`
	Items              []OrderItem     `json:"items,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// OrderItem is immutable once created: price is the fruit price at order
// time, quantity is in the fruit's unit (pieces or kilograms).
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	FruitID   int64           `json:"fruit_id"`
	FruitName string          `json:"fruit_name,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderSummary is a list row: header plus item count, no line detail.
type OrderSummary struct {
	Order
	ItemCount int64 `json:"item_count"`
}

// OrderNumber derives the public order number from the creation date and the
// database-assigned id: ORD-YYYY-MMDD-{id}. It can only be computed after
// the insert has produced the id.
func OrderNumber(id int64, at time.Time) string {
	return fmt.Sprintf("ORD-%d-%02d%02d-%d", at.Year(), int(at.Month()), at.Day(), id)
}
