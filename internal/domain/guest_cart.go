package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GuestCart is the unauthenticated cart owned by a browser session. It has
// no server identity; lines are addressed by product. Order of lines is
// insertion order and is preserved across upserts, which the login-time
// merge relies on.
type GuestCart struct {
	Lines []Line `json:"lines"`
}

// Upsert adds quantity of productID at the given unit price. An existing
// line for the product is incremented in place; the captured price is left
// as it was when the product was first added.
func (g *GuestCart) Upsert(productID string, quantity int, unitPrice decimal.Decimal) {
	for i := range g.Lines {
		if g.Lines[i].ProductID == productID {
			g.Lines[i].Quantity += quantity
			return
		}
	}
	g.Lines = append(g.Lines, Line{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		AddedAt:   time.Now(),
	})
}

// SetQuantity replaces the quantity of the product's line. Returns false if
// the product has no line.
func (g *GuestCart) SetQuantity(productID string, quantity int) bool {
	for i := range g.Lines {
		if g.Lines[i].ProductID == productID {
			g.Lines[i].Quantity = quantity
			return true
		}
	}
	return false
}

// Remove drops the product's line. Returns false if the product has no line.
func (g *GuestCart) Remove(productID string) bool {
	for i := range g.Lines {
		if g.Lines[i].ProductID == productID {
			g.Lines = append(g.Lines[:i], g.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// Quantity returns the quantity of productID in the cart, zero if absent.
func (g *GuestCart) Quantity(productID string) int {
	for _, l := range g.Lines {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

// Empty reports whether the cart holds no lines.
func (g *GuestCart) Empty() bool {
	return len(g.Lines) == 0
}

// Total derives the guest cart total from its lines.
func (g *GuestCart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range g.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
