// Package guest holds the local cart store: the unauthenticated cart a
// browser session accumulates before login. The store is keyed by session
// ID and has exactly one writer, the session itself.
package guest

import (
	"context"

	"github.com/jaideep-27/spargen-project/internal/domain"
)

// Store persists guest carts per session. Get on an unknown session returns
// an empty cart; the cart comes into existence on the first Put.
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.GuestCart, error)
	Put(ctx context.Context, sessionID string, cart *domain.GuestCart) error
	Delete(ctx context.Context, sessionID string) error
}
