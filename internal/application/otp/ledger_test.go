package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/storefront-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type key struct {
	email   string
	purpose domain.OTPPurpose
}

// memStore mirrors OTPRepo semantics in memory.
type memStore struct {
	mu   sync.Mutex
	recs map[key]domain.OTPRecord
}

func newMemStore() *memStore { return &memStore{recs: map[key]domain.OTPRecord{}} }

func (s *memStore) Put(_ context.Context, rec *domain.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[key{rec.Email, rec.Purpose}] = *rec
	return nil
}

func (s *memStore) Get(_ context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key{email, purpose}]
	if !ok {
		return nil, domain.ErrOTPNotFound
	}
	return &rec, nil
}

func (s *memStore) Delete(_ context.Context, email string, purpose domain.OTPPurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, key{email, purpose})
	return nil
}

func (s *memStore) MarkVerified(_ context.Context, email string, purpose domain.OTPPurpose, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key{email, purpose}]
	if !ok || rec.Code != code {
		return domain.ErrOTPNotFound
	}
	rec.Verified = true
	s.recs[key{email, purpose}] = rec
	return nil
}

func (s *memStore) IncrementAttempts(_ context.Context, email string, purpose domain.OTPPurpose) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key{email, purpose}]
	if !ok {
		return 0, domain.ErrOTPNotFound
	}
	rec.Attempts++
	s.recs[key{email, purpose}] = rec
	return rec.Attempts, nil
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, t domain.NotificationTask) error {
	return m.Called(ctx, t).Error(0)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// --- helpers ---

const addr = "asha@example.com"

func newLedger(t *testing.T) (Ledger, *memStore, *clock) {
	t.Helper()
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return(nil)
	store := newMemStore()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	l := NewLedger(LedgerDeps{Store: store, Dispatcher: d, StoreName: "Kazuha", TTL: 5 * time.Minute, Clock: c.now})
	return l, store, c
}

func wrongCode(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}

// --- tests ---

func TestIssue_SendsCodeByEmail(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(task domain.NotificationTask) bool {
		return task.Kind == "otp" && task.Email != nil && task.Email.To == addr
	})).Return(nil).Once()
	l := NewLedger(LedgerDeps{Store: newMemStore(), Dispatcher: d, TTL: time.Minute})

	code, err := l.Issue(context.Background(), addr, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.NotEqual(t, byte('0'), code[0])
	d.AssertExpectations(t)
}

func TestIssue_DispatchFailureStillIssues(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return(errors.New("queue full"))
	store := newMemStore()
	l := NewLedger(LedgerDeps{Store: store, Dispatcher: d})

	code, err := l.Issue(context.Background(), addr, domain.PurposeRegistration)
	require.NoError(t, err)
	require.NoError(t, l.Verify(context.Background(), addr, domain.PurposeRegistration, code))
}

func TestIssue_RejectsUnknownPurpose(t *testing.T) {
	l, _, _ := newLedger(t)
	_, err := l.Issue(context.Background(), addr, "login")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestVerify_CorrectCodeMarksVerified(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()
	code, err := l.Issue(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)

	require.NoError(t, l.Verify(ctx, "  Asha@Example.com ", domain.PurposeRegistration, code))
	ok, err := l.IsVerified(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.True(t, ok)

	// verifying again is harmless
	assert.NoError(t, l.Verify(ctx, addr, domain.PurposeRegistration, code))
}

func TestVerify_MismatchLeavesRecordUnverified(t *testing.T) {
	l, store, _ := newLedger(t)
	ctx := context.Background()
	code, err := l.Issue(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)

	err = l.Verify(ctx, addr, domain.PurposeRegistration, wrongCode(code))
	assert.ErrorIs(t, err, domain.ErrOTPMismatch)

	rec, err := store.Get(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.False(t, rec.Verified)
	assert.Equal(t, 1, rec.Attempts)

	ok, err := l.IsVerified(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_ExpiresAfterTTL(t *testing.T) {
	l, _, c := newLedger(t)
	ctx := context.Background()
	code, err := l.Issue(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)

	c.advance(5*time.Minute + time.Second)
	assert.ErrorIs(t, l.Verify(ctx, addr, domain.PurposeRegistration, code), domain.ErrOTPExpired)
}

func TestVerify_ValidJustBeforeExpiry(t *testing.T) {
	l, _, c := newLedger(t)
	ctx := context.Background()
	code, err := l.Issue(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)

	c.advance(4*time.Minute + 59*time.Second)
	assert.NoError(t, l.Verify(ctx, addr, domain.PurposeRegistration, code))
}

func TestIsVerified_FalseOnceExpired(t *testing.T) {
	l, _, c := newLedger(t)
	ctx := context.Background()
	code, err := l.Issue(ctx, addr, domain.PurposePasswordReset)
	require.NoError(t, err)
	require.NoError(t, l.Verify(ctx, addr, domain.PurposePasswordReset, code))

	c.advance(6 * time.Minute)
	ok, err := l.IsVerified(ctx, addr, domain.PurposePasswordReset)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIssue_ReissueInvalidatesPreviousCode(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()
	first, err := l.Issue(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)

	second := first
	for second == first {
		second, err = l.Issue(ctx, addr, domain.PurposeRegistration)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, l.Verify(ctx, addr, domain.PurposeRegistration, first), domain.ErrOTPMismatch)
	assert.NoError(t, l.Verify(ctx, addr, domain.PurposeRegistration, second))
}

func TestVerify_NoRecord(t *testing.T) {
	l, _, _ := newLedger(t)
	err := l.Verify(context.Background(), addr, domain.PurposeRegistration, "123456")
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_CodeForAnotherPurpose(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()
	code, err := l.Issue(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)

	err = l.Verify(ctx, addr, domain.PurposePasswordReset, code)
	assert.ErrorIs(t, err, domain.ErrOTPWrongPurpose)
}

func TestVerify_DiscardsAfterMaxAttempts(t *testing.T) {
	l, store, _ := newLedger(t)
	ctx := context.Background()
	code, err := l.Issue(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)

	for i := 0; i < DefaultMaxAttempts; i++ {
		assert.ErrorIs(t, l.Verify(ctx, addr, domain.PurposeRegistration, wrongCode(code)), domain.ErrOTPMismatch)
	}
	_, err = store.Get(ctx, addr, domain.PurposeRegistration)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, l.Verify(ctx, addr, domain.PurposeRegistration, code), domain.ErrOTPNotFound)
}

func TestConsume_RemovesRecord(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()
	code, err := l.Issue(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)
	require.NoError(t, l.Verify(ctx, addr, domain.PurposeRegistration, code))

	require.NoError(t, l.Consume(ctx, addr, domain.PurposeRegistration))

	ok, err := l.IsVerified(ctx, addr, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, l.Verify(ctx, addr, domain.PurposeRegistration, code), domain.ErrOTPNotFound)
}
