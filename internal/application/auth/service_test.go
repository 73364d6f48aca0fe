package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/storefront-api/internal/application/otp"
	"github.com/storefront-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetCredentials(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Issue(ctx context.Context, email string, purpose domain.OTPPurpose) (string, error) {
	args := m.Called(ctx, email, purpose)
	return args.String(0), args.Error(1)
}
func (m *mockLedger) Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	return m.Called(ctx, email, purpose, code).Error(0)
}
func (m *mockLedger) IsVerified(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error) {
	args := m.Called(ctx, email, purpose)
	return args.Bool(0), args.Error(1)
}
func (m *mockLedger) Consume(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	return m.Called(ctx, email, purpose).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

// --- helpers ---

const email = "asha@example.com"

func newService(us *mockUserStore, l otpLedger, jwt *mockJWTSigner) Service {
	return NewService(ServiceDeps{UserRepo: us, Ledger: l, JWTProvider: jwt})
}

func registerReq(code string) domain.RegisterRequest {
	return domain.RegisterRequest{
		FirstName: "Asha",
		LastName:  "Rao",
		Email:     "Asha@Example.com",
		Password:  "password123",
		OTP:       code,
	}
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// --- registration ---

func TestSendRegistrationOTP_EmailTaken(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, email).Return(&domain.User{}, nil)
	l := &mockLedger{}

	err := newService(us, l, nil).SendRegistrationOTP(context.Background(), " Asha@example.com")

	assert.ErrorIs(t, err, domain.ErrConflict)
	l.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_ConflictCheckedBeforeOTP(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, email).Return(&domain.User{}, nil)
	l := &mockLedger{}

	_, err := newService(us, l, nil).Register(context.Background(), registerReq("000000"))

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.ErrorContains(t, err, "already registered")
	l.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_BadOTP(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, email).Return(nil, domain.ErrNotFound)
	l := &mockLedger{}
	l.On("Verify", mock.Anything, email, domain.PurposeRegistration, "111111").Return(domain.ErrOTPMismatch)

	_, err := newService(us, l, nil).Register(context.Background(), registerReq("111111"))

	assert.ErrorIs(t, err, domain.ErrOTPMismatch)
	us.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRegister_Success(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, email).Return(nil, domain.ErrNotFound)
	us.On("Put", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == email && u.FirstName == "Asha" && u.Cart != nil &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")) == nil
	})).Return(nil)
	l := &mockLedger{}
	l.On("Verify", mock.Anything, email, domain.PurposeRegistration, "482913").Return(nil)
	l.On("Consume", mock.Anything, email, domain.PurposeRegistration).Return(nil)
	jwt := &mockJWTSigner{}
	jwt.On("Sign", mock.Anything).Return("tok", nil)

	res, err := newService(us, l, jwt).Register(context.Background(), registerReq("482913"))

	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, email, res.User.Email)
	us.AssertExpectations(t)
	l.AssertExpectations(t)
}

// --- login ---

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetCredentials", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)
	us.On("GetCredentials", mock.Anything, email).Return(&domain.User{UserID: "u1", PasswordHash: hashed(t, "right-password")}, nil)
	svc := newService(us, nil, nil)

	_, errUnknown := svc.Login(context.Background(), domain.LoginRequest{Email: "ghost@example.com", Password: "x"})
	_, errWrong := svc.Login(context.Background(), domain.LoginRequest{Email: email, Password: "wrong-password"})

	assert.ErrorIs(t, errUnknown, domain.ErrUnauthorized)
	assert.ErrorIs(t, errWrong, domain.ErrUnauthorized)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLogin_StoreFailureIsNotUnauthorized(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetCredentials", mock.Anything, email).Return(nil, errors.New("throttled"))

	_, err := newService(us, nil, nil).Login(context.Background(), domain.LoginRequest{Email: email, Password: "x"})
	assert.False(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- password reset ---

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, email).Return(nil, domain.ErrNotFound)

	err := newService(us, &mockLedger{}, nil).RequestPasswordReset(context.Background(), email)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResetPassword_RequiresVerifiedOTP(t *testing.T) {
	l := &mockLedger{}
	l.On("IsVerified", mock.Anything, email, domain.PurposePasswordReset).Return(false, nil)
	us := &mockUserStore{}

	err := newService(us, l, nil).ResetPassword(context.Background(), email, "new-password")

	assert.ErrorIs(t, err, domain.ErrBadRequest)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword_UpdatesHashAndConsumes(t *testing.T) {
	l := &mockLedger{}
	l.On("IsVerified", mock.Anything, email, domain.PurposePasswordReset).Return(true, nil)
	l.On("Consume", mock.Anything, email, domain.PurposePasswordReset).Return(nil)
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, email).Return(&domain.User{UserID: "u1"}, nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		h, _ := m["password_hash"].(string)
		return bcrypt.CompareHashAndPassword([]byte(h), []byte("new-password")) == nil
	})).Return(nil)

	require.NoError(t, newService(us, l, nil).ResetPassword(context.Background(), email, "new-password"))
	l.AssertExpectations(t)
	us.AssertExpectations(t)
}

// --- end to end with the real ledger ---

type memOTPStore struct {
	mu   sync.Mutex
	recs map[string]domain.OTPRecord
}

func (s *memOTPStore) k(email string, p domain.OTPPurpose) string { return email + "|" + string(p) }

func (s *memOTPStore) Put(_ context.Context, rec *domain.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[s.k(rec.Email, rec.Purpose)] = *rec
	return nil
}
func (s *memOTPStore) Get(_ context.Context, email string, p domain.OTPPurpose) (*domain.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[s.k(email, p)]
	if !ok {
		return nil, domain.ErrOTPNotFound
	}
	return &rec, nil
}
func (s *memOTPStore) Delete(_ context.Context, email string, p domain.OTPPurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, s.k(email, p))
	return nil
}
func (s *memOTPStore) MarkVerified(_ context.Context, email string, p domain.OTPPurpose, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recs[s.k(email, p)]
	rec.Verified = true
	s.recs[s.k(email, p)] = rec
	return nil
}
func (s *memOTPStore) IncrementAttempts(_ context.Context, email string, p domain.OTPPurpose) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recs[s.k(email, p)]
	rec.Attempts++
	s.recs[s.k(email, p)] = rec
	return rec.Attempts, nil
}

type captureDispatcher struct{ codes []string }

func (d *captureDispatcher) Dispatch(_ context.Context, t domain.NotificationTask) error {
	d.codes = append(d.codes, t.Email.Text)
	return nil
}

func TestRegistrationFlow_EndToEnd(t *testing.T) {
	store := &memOTPStore{recs: map[string]domain.OTPRecord{}}
	ledger := otp.NewLedger(otp.LedgerDeps{Store: store, Dispatcher: &captureDispatcher{}})

	var created *domain.User
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, email).Return(nil, domain.ErrNotFound).Times(2)
	us.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.User)
	}).Return(nil).Once()
	jwt := &mockJWTSigner{}
	jwt.On("Sign", mock.Anything).Return("tok", nil)
	svc := newService(us, ledger, jwt)
	ctx := context.Background()

	require.NoError(t, svc.SendRegistrationOTP(ctx, email))
	rec, err := store.Get(ctx, email, domain.PurposeRegistration)
	require.NoError(t, err)

	require.NoError(t, svc.VerifyRegistrationOTP(ctx, email, rec.Code))
	res, err := svc.Register(ctx, registerReq(rec.Code))
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	require.NotNil(t, created)

	// the code was consumed by registration
	_, err = store.Get(ctx, email, domain.PurposeRegistration)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// the new account can log in
	us.On("GetCredentials", mock.Anything, email).Return(created, nil)
	login, err := svc.Login(ctx, domain.LoginRequest{Email: email, Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, created.UserID, login.User.UserID)
}
