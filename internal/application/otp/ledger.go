package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/storefront-api/internal/application/notification"
	"github.com/storefront-api/internal/domain"
)

// DefaultMaxAttempts is how many wrong codes a record tolerates before it is discarded.
const DefaultMaxAttempts = 5

// Ledger issues and checks one-time passwords keyed by (email, purpose).
// A record moves from issued to verified on a correct code and is removed by
// Consume once the gated action has run.
type Ledger interface {
	Issue(ctx context.Context, email string, purpose domain.OTPPurpose) (string, error)
	Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error
	IsVerified(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error)
	Consume(ctx context.Context, email string, purpose domain.OTPPurpose) error
}

type otpStore interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Get(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error)
	Delete(ctx context.Context, email string, purpose domain.OTPPurpose) error
	MarkVerified(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error
	IncrementAttempts(ctx context.Context, email string, purpose domain.OTPPurpose) (int, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, t domain.NotificationTask) error
}

type LedgerDeps struct {
	Store       otpStore
	Dispatcher  dispatcher
	StoreName   string
	TTL         time.Duration
	MaxAttempts int
	Clock       func() time.Time
}

type ledger struct {
	store       otpStore
	dispatcher  dispatcher
	storeName   string
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewLedger(deps LedgerDeps) Ledger {
	if deps.TTL <= 0 {
		deps.TTL = 5 * time.Minute
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = DefaultMaxAttempts
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &ledger{
		store:       deps.Store,
		dispatcher:  deps.Dispatcher,
		storeName:   deps.StoreName,
		ttl:         deps.TTL,
		maxAttempts: deps.MaxAttempts,
		now:         deps.Clock,
	}
}

// Issue stores a fresh code, replacing any earlier one for the same key, and
// queues the email. Queueing failures are logged; the code stays valid.
func (l *ledger) Issue(ctx context.Context, email string, purpose domain.OTPPurpose) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("unknown otp purpose %q: %w", purpose, domain.ErrBadRequest)
	}
	email = domain.NormalizeEmail(email)
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	now := l.now().UTC()
	rec := &domain.OTPRecord{
		Email:     email,
		Purpose:   purpose,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(l.ttl).Unix(),
	}
	if err := l.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	msg, err := notification.OTPEmail(l.storeName, email, code, purpose, l.ttl)
	if err != nil {
		return "", err
	}
	if err := l.dispatcher.Dispatch(ctx, domain.NotificationTask{Kind: "otp", Email: &msg}); err != nil {
		slog.Warn("could not queue otp email", "email", email, "purpose", purpose, "err", err)
	}
	return code, nil
}

// Verify checks code against the live record. Checks run in order: presence,
// expiry, code, purpose. A wrong code counts against MaxAttempts.
func (l *ledger) Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	email = domain.NormalizeEmail(email)
	rec, err := l.store.Get(ctx, email, purpose)
	if errors.Is(err, domain.ErrNotFound) {
		return l.missing(ctx, email, purpose, code)
	}
	if err != nil {
		return err
	}
	if rec.Expired(l.now()) {
		return domain.ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		l.recordFailure(ctx, email, purpose)
		return domain.ErrOTPMismatch
	}
	if rec.Purpose != purpose {
		return domain.ErrOTPWrongPurpose
	}
	if rec.Verified {
		return nil
	}
	return l.store.MarkVerified(ctx, email, purpose, code)
}

// IsVerified reports whether a live, verified record exists.
func (l *ledger) IsVerified(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error) {
	rec, err := l.store.Get(ctx, domain.NormalizeEmail(email), purpose)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Verified && rec.Purpose == purpose && !rec.Expired(l.now()), nil
}

func (l *ledger) Consume(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	return l.store.Delete(ctx, domain.NormalizeEmail(email), purpose)
}

// missing tells a code issued for another action apart from no code at all.
func (l *ledger) missing(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	for _, other := range domain.OTPPurposes {
		if other == purpose {
			continue
		}
		rec, err := l.store.Get(ctx, email, other)
		if err != nil {
			continue
		}
		if !rec.Expired(l.now()) && subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) == 1 {
			return domain.ErrOTPWrongPurpose
		}
	}
	return domain.ErrOTPNotFound
}

func (l *ledger) recordFailure(ctx context.Context, email string, purpose domain.OTPPurpose) {
	n, err := l.store.IncrementAttempts(ctx, email, purpose)
	if err != nil {
		slog.Warn("could not record otp attempt", "email", email, "purpose", purpose, "err", err)
		return
	}
	if n >= l.maxAttempts {
		slog.Warn("otp discarded after too many attempts", "email", email, "purpose", purpose, "attempts", n)
		if err := l.store.Delete(ctx, email, purpose); err != nil {
			slog.Warn("could not discard otp", "email", email, "err", err)
		}
	}
}

// generateCode returns a uniformly random six-digit code without a leading zero.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
