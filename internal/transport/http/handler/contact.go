package handler

import (
	"net/http"

	"github.com/storefront-api/internal/application/notification"
	"github.com/storefront-api/internal/domain"
)

type ContactHandler struct {
	svc notification.SupportService
}

func NewContactHandler(svc notification.SupportService) *ContactHandler {
	return &ContactHandler{svc: svc}
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Submit(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "message received, we will get back to you soon"})
}
