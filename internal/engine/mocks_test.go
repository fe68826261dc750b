package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaideep-27/spargen-project/internal/cache"
	"github.com/jaideep-27/spargen-project/internal/catalog"
	"github.com/jaideep-27/spargen-project/internal/domain"
	"github.com/jaideep-27/spargen-project/internal/repository"
)

// mockLookup implements catalog.Lookup for testing
type mockLookup struct {
	products map[string]*catalog.Product
	err      error
}

func (m *mockLookup) GetProduct(_ context.Context, productID string) (*catalog.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	product, ok := m.products[productID]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *product
	return &cp, nil
}

// mockRepository implements repository.CartRepository in memory, mirroring
// the MongoDB implementation's contract: mutators return the full cart with
// a recomputed total.
type mockRepository struct {
	mu   sync.Mutex
	cart *domain.Cart

	// rateLimitTimes makes the next N calls fail as rate limited.
	rateLimitTimes int
	failWith       error
	calls          int
}

func (m *mockRepository) gate() error {
	m.calls++
	if m.rateLimitTimes > 0 {
		m.rateLimitTimes--
		return repository.ErrRateLimited
	}
	return m.failWith
}

func (m *mockRepository) snapshot() *domain.Cart {
	if m.cart == nil {
		return nil
	}
	cp := *m.cart
	cp.Lines = append([]domain.Line(nil), m.cart.Lines...)
	cp.RecomputeTotal()
	return &cp
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate(); err != nil {
		return nil, err
	}
	if m.cart == nil {
		return nil, repository.ErrCartNotFound
	}
	return m.snapshot(), nil
}

func (m *mockRepository) UpsertItem(_ context.Context, userID, productID string, quantity int, unitPrice decimal.Decimal) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate(); err != nil {
		return nil, err
	}
	if m.cart == nil {
		m.cart = &domain.Cart{UserID: userID}
	}

	found := false
	for i := range m.cart.Lines {
		if m.cart.Lines[i].ProductID == productID {
			m.cart.Lines[i].Quantity += quantity
			m.cart.Lines[i].UnitPrice = unitPrice
			found = true
			break
		}
	}
	if !found {
		m.cart.Lines = append(m.cart.Lines, domain.Line{
			ID:        uuid.NewString(),
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: unitPrice,
		})
	}

	return m.snapshot(), nil
}

func (m *mockRepository) UpdateLine(_ context.Context, _ string, lineID string, quantity int) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate(); err != nil {
		return nil, err
	}
	if m.cart == nil {
		return nil, repository.ErrLineNotFound
	}
	for i := range m.cart.Lines {
		if m.cart.Lines[i].ID == lineID {
			m.cart.Lines[i].Quantity = quantity
			return m.snapshot(), nil
		}
	}
	return nil, repository.ErrLineNotFound
}

func (m *mockRepository) RemoveLine(_ context.Context, _ string, lineID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate(); err != nil {
		return nil, err
	}
	if m.cart == nil {
		return nil, repository.ErrLineNotFound
	}
	for i := range m.cart.Lines {
		if m.cart.Lines[i].ID == lineID {
			m.cart.Lines = append(m.cart.Lines[:i], m.cart.Lines[i+1:]...)
			return m.snapshot(), nil
		}
	}
	return nil, repository.ErrLineNotFound
}

func (m *mockRepository) ClearCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate(); err != nil {
		return nil, err
	}
	if m.cart == nil {
		m.cart = &domain.Cart{UserID: userID}
	}
	m.cart.Lines = nil
	return m.snapshot(), nil
}

// mockCache implements cache.CartCache
type mockCache struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.carts[userID] = cart
	return nil
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}
