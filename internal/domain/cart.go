package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quantity bounds enforced on every cart line.
const (
	MinQuantity = 1
	MaxQuantity = 10
)

// Line is one product entry in a cart. ID is assigned by the persistence
// layer; guest lines have no ID because the browser session addresses them
// by product.
type Line struct {
	ID        string          `json:"id,omitempty"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

// Subtotal is unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the server-persisted cart owned by a single user identity.
type Cart struct {
	ID         string          `json:"id,omitempty"`
	UserID     string          `json:"user_id"`
	Lines      []Line          `json:"lines"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// RecomputeTotal derives TotalPrice from the lines. Every write path must
// call this before the cart leaves the persistence layer; the stored total
// is never trusted independently of its inputs.
func (c *Cart) RecomputeTotal() {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	c.TotalPrice = total
}

// FindLine returns the line with the given persistence-assigned ID, or nil.
func (c *Cart) FindLine(lineID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Quantity returns the quantity of productID already in the cart, zero if
// the product has no line.
func (c *Cart) Quantity(productID string) int {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}
