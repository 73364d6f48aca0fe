package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-api/internal/application/auth"
	"github.com/storefront-api/internal/domain"
)

// AuthHandler serves registration, login and the OTP and password reset flows.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

// OTP handles /otp/{action} for the registration purpose.
func (h *AuthHandler) OTP(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "send":
		var req domain.SendOTPRequest
		if !decode(w, r, &req) {
			return
		}
		if err := h.svc.SendRegistrationOTP(r.Context(), req.Email); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent"})
	case "verify":
		var req domain.VerifyOTPRequest
		if !decode(w, r, &req) {
			return
		}
		if err := h.svc.VerifyRegistrationOTP(r.Context(), req.Email, req.OTP); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP verified"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// Password handles /password/{action}: forgot, verify-otp and reset.
func (h *AuthHandler) Password(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "forgot":
		var req domain.SendOTPRequest
		if !decode(w, r, &req) {
			return
		}
		if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent"})
	case "verify-otp":
		var req domain.VerifyOTPRequest
		if !decode(w, r, &req) {
			return
		}
		if err := h.svc.VerifyPasswordResetOTP(r.Context(), req.Email, req.OTP); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP verified"})
	case "reset":
		var req domain.PasswordResetRequest
		if !decode(w, r, &req) {
			return
		}
		if err := h.svc.ResetPassword(r.Context(), req.Email, req.Password); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthEnvelope{Bearer: res.Token, User: res.User, Message: "registered"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Bearer: res.Token, User: res.User})
}
