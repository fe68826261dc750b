package engine

import (
	"errors"

	"github.com/jaideep-27/spargen-project/internal/repository"
)

// Validation failures are resolved locally, never retried, and always leave
// cart state untouched.
var (
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientStock     = errors.New("not enough stock available")
	ErrInvalidQuantity       = errors.New("quantity outside allowed range")
	ErrQuantityLimitExceeded = errors.New("quantity exceeds per-product limit")
	ErrLineNotFound          = errors.New("item not found in cart")

	ErrNotAuthenticated = errors.New("operation requires an authenticated user")
	ErrNoSession        = errors.New("no cart session")

	// ErrServiceUnavailable surfaces when the circuit breaker refuses
	// calls to the cart store.
	ErrServiceUnavailable = errors.New("cart store unavailable")
)

// ErrorCode maps an engine error to a stable code the UI layer can turn
// into a user-facing message without inspecting transport details.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrQuantityLimitExceeded):
		return "quantity_limit_exceeded"
	case errors.Is(err, ErrLineNotFound):
		return "line_not_found"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, repository.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	default:
		return "internal_error"
	}
}
