package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unit determines how fruits under a category are measured and how order
// quantities are validated: whole pieces or kilograms.
type Unit string

const (
	UnitPiece Unit = "piece"
	UnitKg    Unit = "kg"
)

func (u Unit) Valid() bool { return u == UnitPiece || u == UnitKg }

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Unit      Unit      `json:"unit"`
	CreatedAt time.Time `json:"created_at"`
}

type Fruit struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        decimal.Decimal `json:"stock"`
	Image        []byte          `json:"image,omitempty"`
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"`
	Unit         Unit            `json:"unit"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PopularFruit is an aggregate over order_items.
type PopularFruit struct {
	FruitID       int64           `json:"fruit_id"`
	Name          string          `json:"name"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	OrderCount    int64           `json:"order_count"`
}
