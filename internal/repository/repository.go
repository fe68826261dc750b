package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/jaideep-27/spargen-project/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrLineNotFound = errors.New("line not found in cart")

	// ErrRateLimited marks a persistence response the caller may retry
	// with backoff. The MongoDB implementation never returns it; remote
	// implementations of this interface do.
	ErrRateLimited = errors.New("cart store rate limited")
)

// CartRepository is the cart persistence service for authenticated carts.
// Every mutator returns the full updated cart with a freshly recomputed
// total; callers must treat that response as the authority and never derive
// authenticated totals from local arithmetic.
//
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)

	// UpsertItem adds quantity of the product to the user's cart, creating
	// the cart or incrementing the existing line as needed. The line is
	// repriced to unitPrice on every upsert.
	UpsertItem(ctx context.Context, userID, productID string, quantity int, unitPrice decimal.Decimal) (*domain.Cart, error)

	// UpdateLine replaces the quantity of the line with the given
	// persistence-assigned ID.
	UpdateLine(ctx context.Context, userID, lineID string, quantity int) (*domain.Cart, error)

	// RemoveLine drops the line with the given persistence-assigned ID.
	RemoveLine(ctx context.Context, userID, lineID string) (*domain.Cart, error)

	// ClearCart empties the user's cart in one operation. Clearing an
	// absent or already-empty cart succeeds.
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
}
