package guest

import (
	"context"
	"sync"

	"github.com/jaideep-27/spargen-project/internal/domain"
)

// MemoryStore is a mutex-guarded in-process store for single-node
// deployments and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]*domain.GuestCart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts: make(map[string]*domain.GuestCart),
	}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*domain.GuestCart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cart, ok := m.carts[sessionID]
	if !ok {
		return &domain.GuestCart{}, nil
	}
	return copyCart(cart), nil
}

func (m *MemoryStore) Put(_ context.Context, sessionID string, cart *domain.GuestCart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.carts[sessionID] = copyCart(cart)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, sessionID)
	return nil
}

// copyCart keeps callers from aliasing the stored line slice.
func copyCart(cart *domain.GuestCart) *domain.GuestCart {
	return &domain.GuestCart{
		Lines: append([]domain.Line(nil), cart.Lines...),
	}
}
