package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jaideep-27/spargen-project/internal/catalog"
	"github.com/jaideep-27/spargen-project/internal/domain"
	"github.com/jaideep-27/spargen-project/internal/guest"
)

func productFixture(id string, price float64, stock int) *catalog.Product {
	return &catalog.Product{
		ID:            id,
		Name:          "product " + id,
		Price:         decimal.NewFromFloat(price),
		StockQuantity: stock,
		IsAvailable:   stock > 0,
	}
}

func newTestEngine(lookup *mockLookup, repo *mockRepository) (*Engine, *guest.MemoryStore, *mockCache) {
	guests := guest.NewMemoryStore()
	cartCache := newMockCache()
	retry := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	eng := NewEngine(lookup, repo, guests, cartCache, retry, zap.NewNop())
	return eng, guests, cartCache
}

var (
	guestSess = Session{SessionID: "sess-1"}
	authSess  = Session{UserID: "user-1", SessionID: "sess-1"}
)

func TestAddGuestDistinctProducts(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring":     productFixture("ring", 149.99, 20),
		"bracelet": productFixture("bracelet", 89.50, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, guestSess, "ring", 2)
	require.NoError(t, err)
	view, err := eng.Add(ctx, guestSess, "bracelet", 1)
	require.NoError(t, err)

	assert.True(t, view.IsGuest())
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "ring", view.Lines[0].ProductID)
	assert.Equal(t, "bracelet", view.Lines[1].ProductID)
	assert.Equal(t, "389.48", view.Total.String()) // 2*149.99 + 89.50
}

func TestAddGuestSameProductAccumulates(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, guestSess, "ring", 2)
	require.NoError(t, err)

	// A price change between adds must not disturb the captured price.
	lookup.products["ring"].Price = decimal.NewFromInt(120)

	view, err := eng.Add(ctx, guestSess, "ring", 3)
	require.NoError(t, err)

	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Quantity)
	assert.Equal(t, "100", view.Lines[0].UnitPrice.String())
	assert.Equal(t, "500", view.Total.String())
}

func TestAddRejectsZeroQuantity(t *testing.T) {
	eng, _, _ := newTestEngine(&mockLookup{}, &mockRepository{})

	_, err := eng.Add(context.Background(), guestSess, "ring", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddUnknownProduct(t *testing.T) {
	eng, _, _ := newTestEngine(&mockLookup{products: map[string]*catalog.Product{}}, &mockRepository{})

	_, err := eng.Add(context.Background(), guestSess, "ghost", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAddGuestWithoutSession(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})

	_, err := eng.Add(context.Background(), Session{}, "ring", 1)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestAddOverQuantityCapLeavesCartUntouched(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 100),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, guestSess, "ring", domain.MaxQuantity+1)
	assert.ErrorIs(t, err, ErrQuantityLimitExceeded)

	view, err := eng.View(ctx, guestSess)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestAddInsufficientStockLeavesCartUntouched(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 3),
	}}
	repo := &mockRepository{}
	eng, _, _ := newTestEngine(lookup, repo)
	ctx := context.Background()

	_, err := eng.Add(ctx, authSess, "ring", 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	view, err := eng.View(ctx, authSess)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestAddStockCheckCoversExistingLine(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 5),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, guestSess, "ring", 3)
	require.NoError(t, err)

	// 3 already held + 3 requested exceeds the 5 in stock.
	_, err = eng.Add(ctx, guestSess, "ring", 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	view, err := eng.View(ctx, guestSess)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)
}

func TestAddAuthenticatedPersists(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 149.99, 20),
	}}
	repo := &mockRepository{}
	eng, _, _ := newTestEngine(lookup, repo)

	view, err := eng.Add(context.Background(), authSess, "ring", 2)
	require.NoError(t, err)

	assert.Equal(t, domain.ViewAuthenticated, view.Kind)
	require.Len(t, view.Lines, 1)
	assert.NotEmpty(t, view.Lines[0].ID)
	assert.Equal(t, "299.98", view.Total.String())

	stored, err := repo.GetCart(context.Background(), authSess.UserID)
	require.NoError(t, err)
	assert.Equal(t, "299.98", stored.TotalPrice.String())
}

func TestAddAuthenticatedUsesSalePrice(t *testing.T) {
	product := productFixture("ring", 200, 20)
	product.OnSale = true
	product.SalePrice = decimal.NewFromInt(150)
	lookup := &mockLookup{products: map[string]*catalog.Product{"ring": product}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})

	view, err := eng.Add(context.Background(), authSess, "ring", 1)
	require.NoError(t, err)
	assert.Equal(t, "150", view.Lines[0].UnitPrice.String())
}

func TestUpdateQuantityRejectsOutOfRange(t *testing.T) {
	eng, _, _ := newTestEngine(&mockLookup{}, &mockRepository{})
	ctx := context.Background()

	_, err := eng.UpdateQuantity(ctx, authSess, "line-1", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = eng.UpdateQuantity(ctx, authSess, "line-1", domain.MaxQuantity+1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateGuestQuantity(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, guestSess, "ring", 2)
	require.NoError(t, err)

	view, err := eng.UpdateQuantity(ctx, guestSess, "ring", 4)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 4, view.Lines[0].Quantity)
	assert.Equal(t, "400", view.Total.String())
}

func TestUpdateGuestUnknownProduct(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})

	_, err := eng.UpdateQuantity(context.Background(), guestSess, "ring", 2)
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestUpdateAuthenticatedLine(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	added, err := eng.Add(ctx, authSess, "ring", 2)
	require.NoError(t, err)
	lineID := added.Lines[0].ID

	view, err := eng.UpdateQuantity(ctx, authSess, lineID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, view.Lines[0].Quantity)
	assert.Equal(t, "700", view.Total.String())
}

func TestUpdateAuthenticatedUnknownLine(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, authSess, "ring", 2)
	require.NoError(t, err)

	_, err = eng.UpdateQuantity(ctx, authSess, "no-such-line", 3)
	assert.ErrorIs(t, err, ErrLineNotFound)

	view, err := eng.View(ctx, authSess)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Lines[0].Quantity)
}

func TestUpdateQuantityChecksStock(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 5),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, guestSess, "ring", 2)
	require.NoError(t, err)

	_, err = eng.UpdateQuantity(ctx, guestSess, "ring", 8)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestRemoveGuestLine(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring":     productFixture("ring", 100, 20),
		"bracelet": productFixture("bracelet", 50, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, guestSess, "ring", 1)
	require.NoError(t, err)
	_, err = eng.Add(ctx, guestSess, "bracelet", 1)
	require.NoError(t, err)

	view, err := eng.Remove(ctx, guestSess, "ring")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "bracelet", view.Lines[0].ProductID)
	assert.Equal(t, "50", view.Total.String())
}

func TestRemoveUnknownLineIsAnError(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, guestSess, "ring", 2)
	require.NoError(t, err)

	_, err = eng.Remove(ctx, guestSess, "bracelet")
	assert.ErrorIs(t, err, ErrLineNotFound)

	_, err = eng.Remove(ctx, authSess, "no-such-line")
	assert.ErrorIs(t, err, ErrLineNotFound)

	view, err := eng.View(ctx, guestSess)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
}

func TestClearGuestIsIdempotent(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	_, err := eng.Add(ctx, guestSess, "ring", 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		view, err := eng.Clear(ctx, guestSess)
		require.NoError(t, err)
		assert.Empty(t, view.Lines)
		assert.True(t, view.Total.IsZero())
	}
}

func TestClearAuthenticatedIsIdempotent(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	repo := &mockRepository{}
	eng, _, _ := newTestEngine(lookup, repo)
	ctx := context.Background()

	_, err := eng.Add(ctx, authSess, "ring", 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		view, err := eng.Clear(ctx, authSess)
		require.NoError(t, err)
		assert.Empty(t, view.Lines)
		assert.True(t, view.Total.IsZero())
	}
}

func TestViewUnknownUserIsEmptyCart(t *testing.T) {
	eng, _, _ := newTestEngine(&mockLookup{}, &mockRepository{})

	view, err := eng.View(context.Background(), authSess)
	require.NoError(t, err)
	assert.Equal(t, domain.ViewAuthenticated, view.Kind)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Total.IsZero())
}

func TestViewWithoutIdentity(t *testing.T) {
	eng, _, _ := newTestEngine(&mockLookup{}, &mockRepository{})

	_, err := eng.View(context.Background(), Session{})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSubscribeReceivesMutations(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	eng, _, _ := newTestEngine(lookup, &mockRepository{})
	ctx := context.Background()

	var seen []domain.View
	unsubscribe := eng.Subscribe(func(v domain.View) {
		seen = append(seen, v)
	})

	_, err := eng.Add(ctx, guestSess, "ring", 2)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "200", seen[0].Total.String())

	unsubscribe()

	_, err = eng.Add(ctx, guestSess, "ring", 1)
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestAuthenticatedReadsGoThroughCache(t *testing.T) {
	lookup := &mockLookup{products: map[string]*catalog.Product{
		"ring": productFixture("ring", 100, 20),
	}}
	repo := &mockRepository{}
	eng, _, cartCache := newTestEngine(lookup, repo)
	ctx := context.Background()

	_, err := eng.Add(ctx, authSess, "ring", 2)
	require.NoError(t, err)

	// The mutation refreshed the cache; a later read must not hit the store.
	cached, err := cartCache.Get(ctx, authSess.UserID)
	require.NoError(t, err)
	assert.Equal(t, "200", cached.TotalPrice.String())

	callsBefore := repo.calls
	view, err := eng.View(ctx, authSess)
	require.NoError(t, err)
	assert.Equal(t, "200", view.Total.String())
	assert.Equal(t, callsBefore, repo.calls)
}
