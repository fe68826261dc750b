package cache

import (
	"context"
	"errors"

	"github.com/jaideep-27/spargen-project/internal/domain"
)

// CartCache is a read-through cache for authenticated carts. The engine
// invalidates on every mutation; cached entries are always treated as
// possibly stale.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
