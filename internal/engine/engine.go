// Package engine is the single authority for cart mutations. Per call it
// decides whether to operate on the session's guest cart or the user's
// persisted cart, enforces stock and quantity invariants against the
// catalog, and hands back a derived view of the resulting state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jaideep-27/spargen-project/internal/cache"
	"github.com/jaideep-27/spargen-project/internal/catalog"
	"github.com/jaideep-27/spargen-project/internal/domain"
	"github.com/jaideep-27/spargen-project/internal/guest"
	"github.com/jaideep-27/spargen-project/internal/repository"
)

// Session identifies the caller of a cart operation. A non-empty UserID
// routes to the persisted cart; otherwise SessionID addresses the guest
// cart. Callers serialize operations per cart scope: the engine assumes at
// most one in-flight mutation for a given session or user.
type Session struct {
	UserID    string
	SessionID string
}

func (s Session) Authenticated() bool {
	return s.UserID != ""
}

type Engine struct {
	catalog catalog.Lookup
	repo    repository.CartRepository
	guests  guest.Store
	cache   cache.CartCache
	breaker *gobreaker.CircuitBreaker[*domain.Cart]
	retry   RetryPolicy
	logger  *zap.Logger
	sfg     singleflight.Group // Prevents cache stampede on cart reads

	mu      sync.Mutex
	subs    map[int]func(domain.View)
	nextSub int
}

func NewEngine(lookup catalog.Lookup, repo repository.CartRepository, guests guest.Store, cartCache cache.CartCache, retry RetryPolicy, logger *zap.Logger) *Engine {
	breaker := gobreaker.NewCircuitBreaker[*domain.Cart](gobreaker.Settings{
		Name:    "cart-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Business rejections are healthy responses from the store.
			return errors.Is(err, repository.ErrCartNotFound) ||
				errors.Is(err, repository.ErrLineNotFound)
		},
	})

	return &Engine{
		catalog: lookup,
		repo:    repo,
		guests:  guests,
		cache:   cartCache,
		breaker: breaker,
		retry:   retry,
		logger:  logger,
		subs:    make(map[int]func(domain.View)),
	}
}

// Add puts quantity of the product into the session's cart, incrementing an
// existing line for the same product. The stock check covers the quantity
// already in the cart, not just the requested delta.
func (e *Engine) Add(ctx context.Context, sess Session, productID string, quantity int) (domain.View, error) {
	if quantity < domain.MinQuantity {
		return domain.View{}, ErrInvalidQuantity
	}

	product, err := e.lookupProduct(ctx, productID)
	if err != nil {
		return domain.View{}, err
	}

	if sess.Authenticated() {
		return e.addAuthenticated(ctx, sess.UserID, product, quantity)
	}
	return e.addGuest(ctx, sess, product, quantity)
}

func (e *Engine) addGuest(ctx context.Context, sess Session, product *catalog.Product, quantity int) (domain.View, error) {
	if sess.SessionID == "" {
		return domain.View{}, ErrNoSession
	}

	gc, err := e.guests.Get(ctx, sess.SessionID)
	if err != nil {
		return domain.View{}, fmt.Errorf("failed to load guest cart: %w", err)
	}

	if err := checkLimits(product, gc.Quantity(product.ID)+quantity); err != nil {
		return domain.View{}, err
	}

	gc.Upsert(product.ID, quantity, product.EffectivePrice())
	if err := e.guests.Put(ctx, sess.SessionID, gc); err != nil {
		return domain.View{}, fmt.Errorf("failed to save guest cart: %w", err)
	}

	view := domain.GuestView(gc)
	e.notify(view)
	return view, nil
}

func (e *Engine) addAuthenticated(ctx context.Context, userID string, product *catalog.Product, quantity int) (domain.View, error) {
	cart, err := e.loadCart(ctx, userID)
	if err != nil {
		return domain.View{}, err
	}

	if err := checkLimits(product, cart.Quantity(product.ID)+quantity); err != nil {
		return domain.View{}, err
	}

	updated, err := e.persist(ctx, "upsert_item", func() (*domain.Cart, error) {
		return e.repo.UpsertItem(ctx, userID, product.ID, quantity, product.EffectivePrice())
	})
	if err != nil {
		return domain.View{}, err
	}

	e.refreshCache(userID, updated)
	view := domain.AuthenticatedView(updated)
	e.notify(view)
	return view, nil
}

// UpdateQuantity sets the quantity of one cart line. The authenticated path
// addresses the line by its persistence-assigned ID; the guest path by
// product ID, since guest lines carry no separate identity.
func (e *Engine) UpdateQuantity(ctx context.Context, sess Session, ref string, quantity int) (domain.View, error) {
	if quantity < domain.MinQuantity || quantity > domain.MaxQuantity {
		return domain.View{}, ErrInvalidQuantity
	}

	if sess.Authenticated() {
		return e.updateAuthenticated(ctx, sess.UserID, ref, quantity)
	}
	return e.updateGuest(ctx, sess, ref, quantity)
}

func (e *Engine) updateGuest(ctx context.Context, sess Session, productID string, quantity int) (domain.View, error) {
	if sess.SessionID == "" {
		return domain.View{}, ErrNoSession
	}

	gc, err := e.guests.Get(ctx, sess.SessionID)
	if err != nil {
		return domain.View{}, fmt.Errorf("failed to load guest cart: %w", err)
	}
	if gc.Quantity(productID) == 0 {
		return domain.View{}, ErrLineNotFound
	}

	product, err := e.lookupProduct(ctx, productID)
	if err != nil {
		return domain.View{}, err
	}
	if err := checkLimits(product, quantity); err != nil {
		return domain.View{}, err
	}

	gc.SetQuantity(productID, quantity)
	if err := e.guests.Put(ctx, sess.SessionID, gc); err != nil {
		return domain.View{}, fmt.Errorf("failed to save guest cart: %w", err)
	}

	view := domain.GuestView(gc)
	e.notify(view)
	return view, nil
}

func (e *Engine) updateAuthenticated(ctx context.Context, userID, lineID string, quantity int) (domain.View, error) {
	cart, err := e.loadCart(ctx, userID)
	if err != nil {
		return domain.View{}, err
	}

	line := cart.FindLine(lineID)
	if line == nil {
		return domain.View{}, ErrLineNotFound
	}

	product, err := e.lookupProduct(ctx, line.ProductID)
	if err != nil {
		return domain.View{}, err
	}
	if err := checkLimits(product, quantity); err != nil {
		return domain.View{}, err
	}

	updated, err := e.persist(ctx, "update_line", func() (*domain.Cart, error) {
		return e.repo.UpdateLine(ctx, userID, lineID, quantity)
	})
	if err != nil {
		if errors.Is(err, repository.ErrLineNotFound) {
			return domain.View{}, ErrLineNotFound
		}
		return domain.View{}, err
	}

	e.refreshCache(userID, updated)
	view := domain.AuthenticatedView(updated)
	e.notify(view)
	return view, nil
}

// Remove drops exactly one line. Removing a line that does not exist is an
// error, not a no-op.
func (e *Engine) Remove(ctx context.Context, sess Session, ref string) (domain.View, error) {
	if sess.Authenticated() {
		updated, err := e.persist(ctx, "remove_line", func() (*domain.Cart, error) {
			return e.repo.RemoveLine(ctx, sess.UserID, ref)
		})
		if err != nil {
			if errors.Is(err, repository.ErrLineNotFound) {
				return domain.View{}, ErrLineNotFound
			}
			return domain.View{}, err
		}

		e.refreshCache(sess.UserID, updated)
		view := domain.AuthenticatedView(updated)
		e.notify(view)
		return view, nil
	}

	if sess.SessionID == "" {
		return domain.View{}, ErrNoSession
	}

	gc, err := e.guests.Get(ctx, sess.SessionID)
	if err != nil {
		return domain.View{}, fmt.Errorf("failed to load guest cart: %w", err)
	}
	if !gc.Remove(ref) {
		return domain.View{}, ErrLineNotFound
	}
	if err := e.guests.Put(ctx, sess.SessionID, gc); err != nil {
		return domain.View{}, fmt.Errorf("failed to save guest cart: %w", err)
	}

	view := domain.GuestView(gc)
	e.notify(view)
	return view, nil
}

// Clear empties the cart in one call. Clearing an already-empty cart
// succeeds.
func (e *Engine) Clear(ctx context.Context, sess Session) (domain.View, error) {
	if sess.Authenticated() {
		updated, err := e.persist(ctx, "clear_cart", func() (*domain.Cart, error) {
			return e.repo.ClearCart(ctx, sess.UserID)
		})
		if err != nil {
			return domain.View{}, err
		}

		e.refreshCache(sess.UserID, updated)
		view := domain.AuthenticatedView(updated)
		e.notify(view)
		return view, nil
	}

	if sess.SessionID == "" {
		return domain.View{}, ErrNoSession
	}
	if err := e.guests.Delete(ctx, sess.SessionID); err != nil {
		return domain.View{}, fmt.Errorf("failed to clear guest cart: %w", err)
	}

	view := domain.GuestView(nil)
	e.notify(view)
	return view, nil
}

// View returns the current derived cart state for the session without
// mutating anything.
func (e *Engine) View(ctx context.Context, sess Session) (domain.View, error) {
	if sess.Authenticated() {
		cart, err := e.loadCart(ctx, sess.UserID)
		if err != nil {
			return domain.View{}, err
		}
		return domain.AuthenticatedView(cart), nil
	}

	if sess.SessionID == "" {
		return domain.View{}, ErrNoSession
	}
	gc, err := e.guests.Get(ctx, sess.SessionID)
	if err != nil {
		return domain.View{}, fmt.Errorf("failed to load guest cart: %w", err)
	}
	return domain.GuestView(gc), nil
}

// Subscribe registers fn to receive the fresh cart view after every
// successful mutation. The returned function cancels the subscription.
func (e *Engine) Subscribe(fn func(domain.View)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

func (e *Engine) notify(view domain.View) {
	e.mu.Lock()
	subs := make([]func(domain.View), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(view)
	}
}

func (e *Engine) lookupProduct(ctx context.Context, productID string) (*catalog.Product, error) {
	product, err := e.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}
	return product, nil
}

// checkLimits validates the absolute quantity a line would end up with.
func checkLimits(product *catalog.Product, newQuantity int) error {
	if !product.IsAvailable || product.StockQuantity < newQuantity {
		return ErrInsufficientStock
	}
	if newQuantity > domain.MaxQuantity {
		return ErrQuantityLimitExceeded
	}
	return nil
}

// loadCart reads the user's cart through the cache; a user with no cart
// document gets an empty cart.
func (e *Engine) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := e.sfg.Do(userID, func() (interface{}, error) {
		cart, err := e.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Warn("cart cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		cart, err = e.persist(ctx, "get_cart", func() (*domain.Cart, error) {
			return e.repo.GetCart(ctx, userID)
		})
		if errors.Is(err, repository.ErrCartNotFound) {
			return &domain.Cart{UserID: userID}, nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := e.cache.Set(setCtx, userID, cart); errSet != nil {
				e.logger.Warn("cart cache set failed", zap.String("user_id", userID), zap.Error(errSet))
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// persist runs one cart store call through the circuit breaker, retrying
// rate-limited responses per the engine's retry policy. All other failures
// surface on the first attempt.
func (e *Engine) persist(ctx context.Context, op string, call func() (*domain.Cart, error)) (*domain.Cart, error) {
	for attempt := 0; ; attempt++ {
		cart, err := e.breaker.Execute(call)
		if err == nil {
			return cart, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err)
		}
		if !errors.Is(err, repository.ErrRateLimited) {
			return nil, err
		}
		if attempt >= e.retry.MaxAttempts {
			return nil, fmt.Errorf("%s exhausted %d retries: %w", op, e.retry.MaxAttempts, err)
		}

		delay := e.retry.Backoff(attempt + 1)
		e.logger.Warn("cart store rate limited, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// refreshCache replaces the cached copy with the store's authoritative
// response; if that fails the stale entry is dropped instead.
func (e *Engine) refreshCache(userID string, cart *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := e.cache.Set(ctx, userID, cart); err != nil {
		e.logger.Warn("cart cache refresh failed", zap.String("user_id", userID), zap.Error(err))
		if errDel := e.cache.Delete(ctx, userID); errDel != nil {
			e.logger.Warn("cart cache invalidate failed", zap.String("user_id", userID), zap.Error(errDel))
		}
	}
}
