package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/storefront-api/internal/application/order"
	"github.com/storefront-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOrderSvc struct{ mock.Mock }

func (m *mockOrderSvc) CreateOrder(ctx context.Context, userID string, req domain.CreateOrderRequest) (*domain.GatewayOrder, error) {
	args := m.Called(ctx, userID, req)
	if o, _ := args.Get(0).(*domain.GatewayOrder); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOrderSvc) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (*order.VerifyResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*order.VerifyResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOrderSvc) ListHistory(ctx context.Context, userID string) ([]domain.OrderHistoryRecord, error) {
	args := m.Called(ctx, userID)
	l, _ := args.Get(0).([]domain.OrderHistoryRecord)
	return l, args.Error(1)
}
func (m *mockOrderSvc) Invoice(ctx context.Context, userID, orderID string) (string, error) {
	args := m.Called(ctx, userID, orderID)
	return args.String(0), args.Error(1)
}
func (m *mockOrderSvc) InvoiceLink(ctx context.Context, userID, orderID string) (string, error) {
	args := m.Called(ctx, userID, orderID)
	return args.String(0), args.Error(1)
}

var ist = time.FixedZone("IST", 5*3600+1800)

const checkoutBody = `{"amount":1299,"cart":{"items":[{"name":"Linen Shirt","price":"1299","size":"M","quantity":1}]},"address":"12 MG Road","phone":"+919876543210"}`

func TestCreateOrder_ReturnsGatewayOrderAndKey(t *testing.T) {
	svc := &mockOrderSvc{}
	svc.On("CreateOrder", mock.Anything, testUserID, mock.MatchedBy(func(req domain.CreateOrderRequest) bool {
		return req.Amount.IntPart() == 1299 && len(req.Cart.Items) == 1
	})).Return(&domain.GatewayOrder{ID: "order_1", Amount: 129900, Currency: "INR"}, nil)
	r := asUser(httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString(checkoutBody)), testUserID)
	rr := httptest.NewRecorder()
	NewOrderHandler(svc, "rzp_test_key", ist).Create(rr, r)

	require.Equal(t, http.StatusCreated, rr.Code)
	var env CheckoutEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, "order_1", env.Order.ID)
	assert.Equal(t, "rzp_test_key", env.KeyID)
	svc.AssertExpectations(t)
}

func TestCreateOrder_GatewayDown(t *testing.T) {
	svc := &mockOrderSvc{}
	svc.On("CreateOrder", mock.Anything, testUserID, mock.Anything).
		Return(nil, fmt.Errorf("%w: %w", domain.ErrGateway, errors.New("503 from upstream")))
	r := asUser(httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString(checkoutBody)), testUserID)
	rr := httptest.NewRecorder()
	NewOrderHandler(svc, "", ist).Create(rr, r)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.NotContains(t, rr.Body.String(), "503 from upstream")
}

func TestVerifyPayment_BadSignature(t *testing.T) {
	svc := &mockOrderSvc{}
	svc.On("VerifyPayment", mock.Anything, mock.Anything).Return(nil, domain.ErrSignatureInvalid)
	body := []byte(`{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"deadbeef"}`)
	rr := httptest.NewRecorder()
	NewOrderHandler(svc, "", ist).VerifyPayment(rr, httptest.NewRequest(http.MethodPost, "/v1/payments/verify", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "signature_invalid", decodeEnvelope(t, rr).ErrorCode)
}

func TestVerifyPayment_AlreadyProcessed(t *testing.T) {
	svc := &mockOrderSvc{}
	svc.On("VerifyPayment", mock.Anything, domain.VerifyPaymentRequest{
		GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: "abc",
	}).Return(&order.VerifyResult{
		Order:            &domain.OrderHistoryRecord{GatewayOrderID: "order_1", PaymentID: "pay_1"},
		AlreadyProcessed: true,
	}, nil)
	body := []byte(`{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"abc"}`)
	rr := httptest.NewRecorder()
	NewOrderHandler(svc, "", ist).VerifyPayment(rr, httptest.NewRequest(http.MethodPost, "/v1/payments/verify", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rr.Code)
	var env PaymentEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.True(t, env.AlreadyProcessed)
	assert.Equal(t, "pay_1", env.PaymentID)
}

func TestListOrders_FormatsInDisplayZone(t *testing.T) {
	svc := &mockOrderSvc{}
	svc.On("ListHistory", mock.Anything, testUserID).Return([]domain.OrderHistoryRecord{{
		GatewayOrderID: "order_1",
		Status:         domain.OrderStatusPaid,
		Amount:         1299,
		CreatedAt:      time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		VerifiedAt:     time.Date(2026, 3, 1, 10, 31, 5, 0, time.UTC),
	}}, nil)
	rr := httptest.NewRecorder()
	NewOrderHandler(svc, "", ist).List(rr, asUser(httptest.NewRequest(http.MethodGet, "/v1/orders", nil), testUserID))

	require.Equal(t, http.StatusOK, rr.Code)
	var env OrdersEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "2026-03-01 16:00:00", env.Data[0].CreatedAt)
	assert.Equal(t, "2026-03-01 16:01:05", env.Data[0].VerifiedAt)
	assert.Equal(t, []domain.CartSnapshotItem{}, env.Data[0].Items)
}

func TestInvoice_ServesHTML(t *testing.T) {
	svc := &mockOrderSvc{}
	svc.On("Invoice", mock.Anything, testUserID, "order_1").Return("<html>invoice</html>", nil)
	r := withChiParam(asUser(httptest.NewRequest(http.MethodGet, "/v1/orders/order_1/invoice", nil), testUserID), "id", "order_1")
	rr := httptest.NewRecorder()
	NewOrderHandler(svc, "", ist).Invoice(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, "<html>invoice</html>", rr.Body.String())
}

func TestInvoice_OtherUsersOrder(t *testing.T) {
	svc := &mockOrderSvc{}
	svc.On("Invoice", mock.Anything, testUserID, "order_9").Return("", domain.ErrOrderNotFound)
	r := withChiParam(asUser(httptest.NewRequest(http.MethodGet, "/v1/orders/order_9/invoice", nil), testUserID), "id", "order_9")
	rr := httptest.NewRecorder()
	NewOrderHandler(svc, "", ist).Invoice(rr, r)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
