package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/storefront-api/internal/domain"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldEmail     = "email"
	fieldFirstName = "first_name"
	fieldLastName  = "last_name"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
	ToggleWishlist(ctx context.Context, userID, productID string) (added bool, err error)
	Wishlist(ctx context.Context, userID string) ([]string, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	ToggleWishlist(ctx context.Context, userID, productID string) (bool, error)
	Wishlist(ctx context.Context, userID string) ([]string, error)
}

type otpLedger interface {
	Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error
	Consume(ctx context.Context, email string, purpose domain.OTPPurpose) error
}

type ServiceDeps struct {
	UserRepo userStore
	Ledger   otpLedger
}

type service struct {
	repo   userStore
	ledger otpLedger
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo, ledger: deps.Ledger}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

// UpdateProfile applies name changes directly. An email change needs a
// registration code verified for the new address, which is consumed.
func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	current, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if name == "" {
			return nil, fmt.Errorf("first_name cannot be empty: %w", domain.ErrBadRequest)
		}
		updates[fieldFirstName] = name
	}
	if req.LastName != nil {
		updates[fieldLastName] = strings.TrimSpace(*req.LastName)
	}

	var newEmail string
	if req.Email != nil {
		newEmail = domain.NormalizeEmail(*req.Email)
		if newEmail == current.Email {
			newEmail = ""
		}
	}
	if newEmail != "" {
		if req.OTP == nil {
			return nil, fmt.Errorf("otp required to change email: %w", domain.ErrBadRequest)
		}
		if _, err := s.repo.GetByEmail(ctx, newEmail); err == nil {
			return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err := s.ledger.Verify(ctx, newEmail, domain.PurposeRegistration, *req.OTP); err != nil {
			return nil, err
		}
		updates[fieldEmail] = newEmail
	}

	if len(updates) == 0 {
		return current, nil
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	if newEmail != "" {
		if err := s.ledger.Consume(ctx, newEmail, domain.PurposeRegistration); err != nil {
			slog.Warn("could not consume email change otp", "email", newEmail, "err", err)
		}
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) ToggleWishlist(ctx context.Context, userID, productID string) (bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, fmt.Errorf("product_id is required: %w", domain.ErrBadRequest)
	}
	return s.repo.ToggleWishlist(ctx, userID, productID)
}

func (s *service) Wishlist(ctx context.Context, userID string) ([]string, error) {
	return s.repo.Wishlist(ctx, userID)
}
