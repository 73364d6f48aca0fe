package user

import (
	"context"
	"testing"

	"github.com/storefront-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}
func (m *mockUserStore) ToggleWishlist(ctx context.Context, userID, productID string) (bool, error) {
	args := m.Called(ctx, userID, productID)
	return args.Bool(0), args.Error(1)
}
func (m *mockUserStore) Wishlist(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	l, _ := args.Get(0).([]string)
	return l, args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	return m.Called(ctx, email, purpose, code).Error(0)
}
func (m *mockLedger) Consume(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	return m.Called(ctx, email, purpose).Error(0)
}

func strPtr(s string) *string { return &s }

var current = &domain.User{UserID: "u1", Email: "asha@example.com", FirstName: "Asha"}

// --- tests ---

func TestUpdateProfile_NameOnly(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(current, nil)
	us.On("Update", mock.Anything, "u1", map[string]interface{}{fieldFirstName: "Asha", fieldLastName: "Rao"}).Return(nil)
	l := &mockLedger{}

	_, err := NewService(ServiceDeps{UserRepo: us, Ledger: l}).UpdateProfile(context.Background(), "u1",
		domain.UpdateProfileRequest{FirstName: strPtr(" Asha "), LastName: strPtr("Rao")})

	require.NoError(t, err)
	us.AssertExpectations(t)
	l.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProfile_EmailChangeNeedsOTP(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(current, nil)

	_, err := NewService(ServiceDeps{UserRepo: us, Ledger: &mockLedger{}}).UpdateProfile(context.Background(), "u1",
		domain.UpdateProfileRequest{Email: strPtr("new@example.com")})

	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(current, nil)
	us.On("GetByEmail", mock.Anything, "new@example.com").Return(&domain.User{UserID: "u2"}, nil)

	_, err := NewService(ServiceDeps{UserRepo: us, Ledger: &mockLedger{}}).UpdateProfile(context.Background(), "u1",
		domain.UpdateProfileRequest{Email: strPtr("New@Example.com"), OTP: strPtr("123456")})

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdateProfile_EmailChangeVerifiesAndConsumes(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(current, nil)
	us.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
	us.On("Update", mock.Anything, "u1", map[string]interface{}{fieldEmail: "new@example.com"}).Return(nil)
	l := &mockLedger{}
	l.On("Verify", mock.Anything, "new@example.com", domain.PurposeRegistration, "123456").Return(nil)
	l.On("Consume", mock.Anything, "new@example.com", domain.PurposeRegistration).Return(nil)

	_, err := NewService(ServiceDeps{UserRepo: us, Ledger: l}).UpdateProfile(context.Background(), "u1",
		domain.UpdateProfileRequest{Email: strPtr("new@example.com"), OTP: strPtr("123456")})

	require.NoError(t, err)
	us.AssertExpectations(t)
	l.AssertExpectations(t)
}

func TestUpdateProfile_WrongOTPLeavesEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(current, nil)
	us.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
	l := &mockLedger{}
	l.On("Verify", mock.Anything, "new@example.com", domain.PurposeRegistration, "000000").Return(domain.ErrOTPMismatch)

	_, err := NewService(ServiceDeps{UserRepo: us, Ledger: l}).UpdateProfile(context.Background(), "u1",
		domain.UpdateProfileRequest{Email: strPtr("new@example.com"), OTP: strPtr("000000")})

	assert.ErrorIs(t, err, domain.ErrOTPMismatch)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleWishlist(t *testing.T) {
	us := &mockUserStore{}
	us.On("ToggleWishlist", mock.Anything, "u1", "P1").Return(true, nil)

	added, err := NewService(ServiceDeps{UserRepo: us}).ToggleWishlist(context.Background(), "u1", " P1 ")
	require.NoError(t, err)
	assert.True(t, added)
}

func TestToggleWishlist_EmptyProduct(t *testing.T) {
	_, err := NewService(ServiceDeps{UserRepo: &mockUserStore{}}).ToggleWishlist(context.Background(), "u1", "  ")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}
