package domain

import (
	"strings"
	"time"
)

// OTPPurpose scopes a one-time password to the action it may authorise.
type OTPPurpose string

const (
	PurposeRegistration  OTPPurpose = "registration"
	PurposePasswordReset OTPPurpose = "password_reset"
)

func (p OTPPurpose) Valid() bool {
	return p == PurposeRegistration || p == PurposePasswordReset
}

// OTPPurposes lists every purpose a code can be issued for.
var OTPPurposes = []OTPPurpose{PurposeRegistration, PurposePasswordReset}

// OTPRecord is the ledger entry for one (email, purpose) pair.
// PK: email, SK: purpose. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type OTPRecord struct {
	Email     string     `json:"email" dynamodbav:"email"`
	Purpose   OTPPurpose `json:"purpose" dynamodbav:"purpose"`
	Code      string     `json:"-" dynamodbav:"code"`
	Verified  bool       `json:"verified" dynamodbav:"verified"`
	Attempts  int        `json:"attempts" dynamodbav:"attempts"`
	IssuedAt  time.Time  `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt int64      `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// Expired reports whether now is past the record's expiry.
// DynamoDB TTL deletion lags by minutes, so reads must check this themselves.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.Unix() > r.ExpiresAt
}

// NormalizeEmail is the canonical form used for every ledger and user lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	OTP   string `json:"otp" validate:"required,otp"`
}
