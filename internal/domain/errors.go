package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	ErrOTPExpired       = errors.New("otp expired")
	ErrOTPMismatch      = errors.New("otp mismatch")
	ErrOTPWrongPurpose  = errors.New("otp not valid for this action")
	ErrSignatureInvalid = errors.New("payment signature invalid")
	ErrGateway          = errors.New("payment gateway error")
)

// Not-found refinements still satisfy errors.Is(err, ErrNotFound).
var (
	ErrOTPNotFound   = fmt.Errorf("otp %w", ErrNotFound)
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
)
