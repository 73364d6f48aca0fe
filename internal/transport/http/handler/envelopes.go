package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/storefront-api/internal/application/notification"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/validate"
)

const maxBodyBytes = 1 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// AuthEnvelope wraps login/register responses.
type AuthEnvelope struct {
	Bearer  string       `json:"Bearer,omitempty"`
	User    *domain.User `json:"user,omitempty"`
	Message string       `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: code})
}

// decode reads a JSON body into v and runs struct validation. It writes the
// error response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeErrorCode(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return false
	}
	return true
}

// httpError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a generic 500.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOTPNotFound):
		writeErrorCode(w, http.StatusNotFound, "otp_not_found", "no active code for this email, request a new one")
	case errors.Is(err, domain.ErrOTPExpired):
		writeErrorCode(w, http.StatusBadRequest, "otp_expired", "code expired, request a new one")
	case errors.Is(err, domain.ErrOTPMismatch):
		writeErrorCode(w, http.StatusBadRequest, "otp_mismatch", "incorrect code")
	case errors.Is(err, domain.ErrOTPWrongPurpose):
		writeErrorCode(w, http.StatusBadRequest, "otp_wrong_purpose", "code was issued for a different action")
	case errors.Is(err, domain.ErrSignatureInvalid):
		writeErrorCode(w, http.StatusBadRequest, "signature_invalid", "payment signature verification failed")
	case errors.Is(err, domain.ErrGateway):
		slog.Error("payment gateway failure", "err", err)
		writeErrorCode(w, http.StatusBadGateway, "gateway_error", "payment gateway unavailable, try again")
	case errors.Is(err, notification.ErrQueueFull):
		writeErrorCode(w, http.StatusServiceUnavailable, "busy", "service busy, try again shortly")
	case errors.Is(err, domain.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeErrorCode(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeErrorCode(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeErrorCode(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeErrorCode(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		slog.Error("unhandled error", "err", err)
		writeErrorCode(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
