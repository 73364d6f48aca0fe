package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-api/internal/application/cart"
	"github.com/storefront-api/internal/domain"
)

type CartHandler struct {
	svc cart.Service
}

func NewCartHandler(svc cart.Service) *CartHandler { return &CartHandler{svc: svc} }

type CartEnvelope struct {
	Items domain.Cart `json:"items"`
	Count int         `json:"count"`
}

func cartEnvelope(c domain.Cart) CartEnvelope {
	if c == nil {
		c = domain.Cart{}
	}
	return CartEnvelope{Items: c, Count: c.TotalQuantity()}
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.AddToCartRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.Add(r.Context(), uid, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartEnvelope(c))
}

func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.View(r.Context(), uid)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartEnvelope(c))
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Remove(r.Context(), uid, chi.URLParam(r, "key"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartEnvelope(c))
}
