package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// Product is the slice of the catalog the cart engine needs: current
// pricing and stock for a single product.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	SalePrice     decimal.Decimal
	OnSale        bool
	StockQuantity int
	IsAvailable   bool
}

// EffectivePrice is the price a cart line captures: the sale price when the
// product is on sale with a positive sale price, the regular price otherwise.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.OnSale && p.SalePrice.IsPositive() {
		return p.SalePrice
	}
	return p.Price
}

// Lookup is the catalog collaborator. Consumers define this interface, not
// the implementation.
type Lookup interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
}
