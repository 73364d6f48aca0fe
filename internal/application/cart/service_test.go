package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/storefront-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memCarts mirrors UserRepo cart semantics for a single user.
type memCarts struct {
	mu   sync.Mutex
	cart domain.Cart
}

func (m *memCarts) AddCartItem(_ context.Context, _ string, e domain.CartEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := domain.CartKey(e.ProductID, e.Size)
	cur, ok := m.cart[k]
	if ok {
		cur.Quantity += e.Quantity
		m.cart[k] = cur
		return nil
	}
	m.cart[k] = e
	return nil
}

func (m *memCarts) RemoveCartItem(_ context.Context, _ string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cart[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.cart, key)
	return nil
}

func (m *memCarts) ClearCart(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = domain.Cart{}
	return nil
}

func (m *memCarts) GetCart(context.Context, string) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := domain.Cart{}
	for k, v := range m.cart {
		out[k] = v
	}
	return out, nil
}

type mockCartStore struct{ mock.Mock }

func (m *mockCartStore) AddCartItem(ctx context.Context, userID string, e domain.CartEntry) error {
	return m.Called(ctx, userID, e).Error(0)
}
func (m *mockCartStore) RemoveCartItem(ctx context.Context, userID, key string) error {
	return m.Called(ctx, userID, key).Error(0)
}
func (m *mockCartStore) ClearCart(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockCartStore) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(domain.Cart)
	return c, args.Error(1)
}

func TestAdd_SizeCaseMergesEntries(t *testing.T) {
	svc := NewService(&memCarts{cart: domain.Cart{}})
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", domain.AddToCartRequest{ProductID: "P1", Size: "m", Quantity: 2})
	require.NoError(t, err)
	cart, err := svc.Add(ctx, "u1", domain.AddToCartRequest{ProductID: "P1", Size: "M", Quantity: 3})
	require.NoError(t, err)

	require.Len(t, cart, 1)
	assert.Equal(t, domain.CartEntry{ProductID: "P1", Size: "M", Quantity: 5}, cart["P1-M"])
}

func TestAdd_DifferentSizesAreSeparate(t *testing.T) {
	svc := NewService(&memCarts{cart: domain.Cart{}})
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", domain.AddToCartRequest{ProductID: "P1", Size: "S", Quantity: 1})
	require.NoError(t, err)
	cart, err := svc.Add(ctx, "u1", domain.AddToCartRequest{ProductID: "P1", Size: "L", Quantity: 1})
	require.NoError(t, err)

	assert.Len(t, cart, 2)
	assert.Equal(t, 2, cart.TotalQuantity())
}

func TestAdd_RejectsNonPositiveQuantity(t *testing.T) {
	st := &mockCartStore{}
	_, err := NewService(st).Add(context.Background(), "u1", domain.AddToCartRequest{ProductID: "P1", Size: "M", Quantity: 0})

	assert.ErrorIs(t, err, domain.ErrBadRequest)
	st.AssertNotCalled(t, "AddCartItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemove_NormalizesKey(t *testing.T) {
	st := &mockCartStore{}
	st.On("RemoveCartItem", mock.Anything, "u1", "P-100-XL").Return(nil)
	st.On("GetCart", mock.Anything, "u1").Return(domain.Cart{}, nil)

	_, err := NewService(st).Remove(context.Background(), "u1", "P-100-xl")
	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestRemove_MissingKey(t *testing.T) {
	svc := NewService(&memCarts{cart: domain.Cart{}})
	_, err := svc.Remove(context.Background(), "u1", "P9-M")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
