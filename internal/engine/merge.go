package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jaideep-27/spargen-project/internal/domain"
	"github.com/jaideep-27/spargen-project/internal/repository"
)

// LineFailure records one guest line that could not be merged.
type LineFailure struct {
	ProductID string
	Reason    string
	Err       error
}

// MergeResult summarizes a login-time merge for caller-level messaging.
type MergeResult struct {
	Merged   int
	Failed   int
	Failures []LineFailure
}

// Merge folds the session's guest cart into the user's persisted cart.
// Invoked once per login transition.
//
// Lines are attempted sequentially in guest insertion order, each one
// independently: a line that fails (typically because its product went out
// of stock while the cart sat in the guest session) is recorded and the
// rest still merge. The guest cart is discarded whatever the outcome, so a
// later login cannot re-merge stale lines. The returned view comes from an
// authoritative refetch, not from stitching together per-line responses;
// only a failure of that final fetch fails the merge as a whole.
func (e *Engine) Merge(ctx context.Context, sess Session) (MergeResult, domain.View, error) {
	var result MergeResult

	if !sess.Authenticated() {
		return result, domain.View{}, ErrNotAuthenticated
	}
	if sess.SessionID == "" {
		return result, domain.View{}, ErrNoSession
	}

	gc, err := e.guests.Get(ctx, sess.SessionID)
	if err != nil {
		return result, domain.View{}, fmt.Errorf("failed to load guest cart: %w", err)
	}

	if !gc.Empty() {
		cart, err := e.loadCart(ctx, sess.UserID)
		if err != nil {
			return result, domain.View{}, err
		}

		for _, line := range gc.Lines {
			updated, errLine := e.mergeLine(ctx, sess.UserID, cart, line)
			if errLine != nil {
				result.Failed++
				result.Failures = append(result.Failures, LineFailure{
					ProductID: line.ProductID,
					Reason:    ErrorCode(errLine),
					Err:       errLine,
				})
				e.logger.Warn("guest line not merged",
					zap.String("user_id", sess.UserID),
					zap.String("product_id", line.ProductID),
					zap.Error(errLine))
				continue
			}
			result.Merged++
			cart = updated
		}
	}

	// The guest cart is spent once merging has been attempted; keeping it
	// would replay stale lines on the next login.
	if err := e.guests.Delete(ctx, sess.SessionID); err != nil {
		e.logger.Warn("guest cart discard failed",
			zap.String("session_id", sess.SessionID), zap.Error(err))
	}

	final, err := e.persist(ctx, "get_cart", func() (*domain.Cart, error) {
		return e.repo.GetCart(ctx, sess.UserID)
	})
	if errors.Is(err, repository.ErrCartNotFound) {
		final = &domain.Cart{UserID: sess.UserID}
	} else if err != nil {
		return result, domain.View{}, fmt.Errorf("failed to fetch merged cart: %w", err)
	}

	e.refreshCache(sess.UserID, final)
	view := domain.AuthenticatedView(final)
	e.notify(view)
	return result, view, nil
}

func (e *Engine) mergeLine(ctx context.Context, userID string, cart *domain.Cart, line domain.Line) (*domain.Cart, error) {
	product, err := e.lookupProduct(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}

	if err := checkLimits(product, cart.Quantity(line.ProductID)+line.Quantity); err != nil {
		return nil, err
	}

	// The guest-captured price was provisional; merge reprices from the
	// current catalog.
	return e.persist(ctx, "upsert_item", func() (*domain.Cart, error) {
		return e.repo.UpsertItem(ctx, userID, line.ProductID, line.Quantity, product.EffectivePrice())
	})
}
