package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string
	User  *domain.User
}

type Service interface {
	SendRegistrationOTP(ctx context.Context, email string) error
	VerifyRegistrationOTP(ctx context.Context, email, code string) error
	Register(ctx context.Context, req domain.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*AuthResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyPasswordResetOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, newPassword string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetCredentials(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type otpLedger interface {
	Issue(ctx context.Context, email string, purpose domain.OTPPurpose) (string, error)
	Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error
	IsVerified(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error)
	Consume(ctx context.Context, email string, purpose domain.OTPPurpose) error
}

type jwtSigner interface {
	Sign(userID string) (string, error)
}

type ServiceDeps struct {
	UserRepo    userStore
	Ledger      otpLedger
	JWTProvider jwtSigner
}

type service struct {
	repo   userStore
	ledger otpLedger
	jwt    jwtSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo, ledger: deps.Ledger, jwt: deps.JWTProvider}
}

// errInvalidCredentials is the single answer for unknown email and wrong password.
var errInvalidCredentials = fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)

// SendRegistrationOTP refuses addresses that already have an account.
func (s *service) SendRegistrationOTP(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return err
	}
	_, err := s.ledger.Issue(ctx, email, domain.PurposeRegistration)
	return err
}

func (s *service) VerifyRegistrationOTP(ctx context.Context, email, code string) error {
	return s.ledger.Verify(ctx, email, domain.PurposeRegistration, code)
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*AuthResult, error) {
	email := domain.NormalizeEmail(req.Email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}
	if err := s.ledger.Verify(ctx, email, domain.PurposeRegistration, req.OTP); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Cart:         domain.Cart{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	if err := s.ledger.Consume(ctx, email, domain.PurposeRegistration); err != nil {
		slog.Warn("could not consume registration otp", "email", email, "err", err)
	}
	token, err := s.jwt.Sign(u.UserID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*AuthResult, error) {
	u, err := s.repo.GetCredentials(ctx, domain.NormalizeEmail(req.Email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	token, err := s.jwt.Sign(u.UserID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if _, err := s.repo.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no account for this email: %w", domain.ErrNotFound)
		}
		return err
	}
	_, err := s.ledger.Issue(ctx, email, domain.PurposePasswordReset)
	return err
}

func (s *service) VerifyPasswordResetOTP(ctx context.Context, email, code string) error {
	return s.ledger.Verify(ctx, email, domain.PurposePasswordReset, code)
}

// ResetPassword requires a code verified through VerifyPasswordResetOTP and consumes it.
func (s *service) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = domain.NormalizeEmail(email)
	ok, err := s.ledger.IsVerified(ctx, email, domain.PurposePasswordReset)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("otp not verified for this email: %w", domain.ErrBadRequest)
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, u.UserID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		return err
	}
	if err := s.ledger.Consume(ctx, email, domain.PurposePasswordReset); err != nil {
		slog.Warn("could not consume password reset otp", "email", email, "err", err)
	}
	return nil
}

func (s *service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return fmt.Errorf("email already registered, please login: %w", domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}
