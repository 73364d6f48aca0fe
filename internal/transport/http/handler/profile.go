package handler

import (
	"net/http"

	"github.com/storefront-api/internal/application/user"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/transport/http/middleware"
)

// ProfileHandler serves the caller's profile and wishlist.
type ProfileHandler struct {
	svc user.Service
}

func NewProfileHandler(svc user.Service) *ProfileHandler { return &ProfileHandler{svc: svc} }

type WishlistEnvelope struct {
	Items   []string `json:"items"`
	Added   *bool    `json:"added,omitempty"`
	Message string   `json:"message,omitempty"`
}

// callerID returns the authenticated user id or writes a 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.UserID, true
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), uid)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), uid, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *ProfileHandler) Wishlist(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	items, err := h.svc.Wishlist(r.Context(), uid)
	if err != nil {
		httpError(w, err)
		return
	}
	if items == nil {
		items = []string{}
	}
	writeJSON(w, http.StatusOK, WishlistEnvelope{Items: items})
}

func (h *ProfileHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.WishlistToggleRequest
	if !decode(w, r, &req) {
		return
	}
	added, err := h.svc.ToggleWishlist(r.Context(), uid, req.ProductID)
	if err != nil {
		httpError(w, err)
		return
	}
	items, err := h.svc.Wishlist(r.Context(), uid)
	if err != nil {
		httpError(w, err)
		return
	}
	if items == nil {
		items = []string{}
	}
	msg := "removed from wishlist"
	if added {
		msg = "added to wishlist"
	}
	writeJSON(w, http.StatusOK, WishlistEnvelope{Items: items, Added: &added, Message: msg})
}
