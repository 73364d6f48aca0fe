package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-api/internal/application/order"
	"github.com/storefront-api/internal/domain"
)

// OrderHandler serves checkout, payment verification, order history and invoices.
type OrderHandler struct {
	svc   order.Service
	keyID string
	loc   *time.Location
}

// NewOrderHandler renders timestamps in loc. keyID is the public gateway key
// the client needs to open checkout.
func NewOrderHandler(svc order.Service, keyID string, loc *time.Location) *OrderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderHandler{svc: svc, keyID: keyID, loc: loc}
}

type CheckoutEnvelope struct {
	Order *domain.GatewayOrder `json:"order"`
	KeyID string               `json:"key_id,omitempty"`
}

type PaymentEnvelope struct {
	Message          string `json:"message"`
	OrderID          string `json:"order_id"`
	PaymentID        string `json:"payment_id"`
	AlreadyProcessed bool   `json:"already_processed"`
}

// OrderView is an order history record with display-formatted timestamps.
type OrderView struct {
	ID         string                    `json:"id"`
	Receipt    string                    `json:"receipt"`
	PaymentID  string                    `json:"payment_id"`
	Status     domain.OrderStatus        `json:"status"`
	Amount     int64                     `json:"amount"`
	Currency   string                    `json:"currency"`
	Items      []domain.CartSnapshotItem `json:"items"`
	Name       string                    `json:"name"`
	Address    string                    `json:"address"`
	Phone      string                    `json:"phone"`
	CreatedAt  string                    `json:"created_at"`
	VerifiedAt string                    `json:"verified_at,omitempty"`
}

type OrdersEnvelope struct {
	Data []OrderView `json:"data"`
}

type InvoiceLinkEnvelope struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

func (h *OrderHandler) view(rec *domain.OrderHistoryRecord) OrderView {
	v := OrderView{
		ID:        rec.GatewayOrderID,
		Receipt:   rec.Receipt,
		PaymentID: rec.PaymentID,
		Status:    rec.Status,
		Amount:    rec.Amount,
		Currency:  rec.Currency,
		Items:     rec.Cart.Items,
		Name:      rec.Name,
		Address:   rec.Address,
		Phone:     rec.Phone,
		CreatedAt: rec.CreatedAt.In(h.loc).Format(order.DisplayLayout),
	}
	if v.Items == nil {
		v.Items = []domain.CartSnapshotItem{}
	}
	if !rec.VerifiedAt.IsZero() {
		v.VerifiedAt = rec.VerifiedAt.In(h.loc).Format(order.DisplayLayout)
	}
	return v
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	gw, err := h.svc.CreateOrder(r.Context(), uid, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckoutEnvelope{Order: gw, KeyID: h.keyID})
}

// VerifyPayment is the gateway callback. The signature authenticates it, so
// it is mounted without the bearer middleware.
func (h *OrderHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyPayment(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	msg := "payment verified"
	if res.AlreadyProcessed {
		msg = "payment already verified"
	}
	writeJSON(w, http.StatusOK, PaymentEnvelope{
		Message:          msg,
		OrderID:          res.Order.GatewayOrderID,
		PaymentID:        res.Order.PaymentID,
		AlreadyProcessed: res.AlreadyProcessed,
	})
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	recs, err := h.svc.ListHistory(r.Context(), uid)
	if err != nil {
		httpError(w, err)
		return
	}
	out := make([]OrderView, len(recs))
	for i := range recs {
		out[i] = h.view(&recs[i])
	}
	writeJSON(w, http.StatusOK, OrdersEnvelope{Data: out})
}

func (h *OrderHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	html, err := h.svc.Invoice(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (h *OrderHandler) InvoiceLink(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	url, err := h.svc.InvoiceLink(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InvoiceLinkEnvelope{URL: url, ExpiresIn: int(order.InvoiceLinkTTL.Seconds())})
}
