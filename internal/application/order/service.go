package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/money"
)

// InvoiceLinkTTL bounds how long a presigned invoice URL stays valid.
const InvoiceLinkTTL = 15 * time.Minute

type Service interface {
	CreateOrder(ctx context.Context, userID string, req domain.CreateOrderRequest) (*domain.GatewayOrder, error)
	VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (*VerifyResult, error)
	ListHistory(ctx context.Context, userID string) ([]domain.OrderHistoryRecord, error)
	Invoice(ctx context.Context, userID, orderID string) (string, error)
	InvoiceLink(ctx context.Context, userID, orderID string) (string, error)
}

// VerifyResult reports the promoted order. AlreadyProcessed is set when an
// earlier call had already moved the order into history.
type VerifyResult struct {
	Order            *domain.OrderHistoryRecord
	AlreadyProcessed bool
}

type pendingStore interface {
	Put(ctx context.Context, o *domain.PendingOrder) error
	Get(ctx context.Context, gatewayOrderID string) (*domain.PendingOrder, error)
	MarkPaid(ctx context.Context, gatewayOrderID, paymentID string, at time.Time) (*domain.PendingOrder, error)
	Delete(ctx context.Context, gatewayOrderID string) error
}

type historyStore interface {
	PutIfAbsent(ctx context.Context, rec *domain.OrderHistoryRecord) (bool, error)
	Get(ctx context.Context, gatewayOrderID string) (*domain.OrderHistoryRecord, error)
	ListByUser(ctx context.Context, userID string) ([]domain.OrderHistoryRecord, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type cartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*domain.GatewayOrder, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

type dispatcher interface {
	Dispatch(ctx context.Context, t domain.NotificationTask) error
}

// StatusPublisher pushes order status changes to connected clients.
type StatusPublisher interface {
	PublishOrderUpdate(userID, orderID string, status domain.OrderStatus)
}

type invoiceLinker interface {
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ServiceDeps struct {
	PendingRepo pendingStore
	HistoryRepo historyStore
	UserRepo    userStore
	CartRepo    cartClearer
	Gateway     gateway
	Dispatcher  dispatcher
	Publisher   StatusPublisher // optional
	Invoices    invoiceLinker   // optional
	Currency    string
	StoreName   string
	SMSEnabled  bool
	Location    *time.Location
	Clock       func() time.Time
}

type service struct {
	pending    pendingStore
	history    historyStore
	users      userStore
	carts      cartClearer
	gateway    gateway
	dispatcher dispatcher
	publisher  StatusPublisher
	invoices   invoiceLinker
	currency   string
	store      string
	smsEnabled bool
	loc        *time.Location
	now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Currency == "" {
		deps.Currency = "INR"
	}
	return &service{
		pending:    deps.PendingRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		carts:      deps.CartRepo,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		publisher:  deps.Publisher,
		invoices:   deps.Invoices,
		currency:   deps.Currency,
		store:      deps.StoreName,
		smsEnabled: deps.SMSEnabled,
		loc:        deps.Location,
		now:        deps.Clock,
	}
}

// CreateOrder reserves the amount with the gateway and records a pending order.
// Nothing is written locally unless the gateway accepted the order.
func (s *service) CreateOrder(ctx context.Context, userID string, req domain.CreateOrderRequest) (*domain.GatewayOrder, error) {
	major, minor, err := money.ToMinorUnits(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
	}
	if len(req.Cart.Items) == 0 {
		return nil, fmt.Errorf("cart is empty: %w", domain.ErrBadRequest)
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	receipt := uuid.NewString()
	gw, err := s.gateway.CreateOrder(ctx, minor, s.currency, receipt)
	if err != nil {
		if !errors.Is(err, domain.ErrGateway) {
			err = fmt.Errorf("%w: %w", domain.ErrGateway, err)
		}
		return nil, err
	}

	o := &domain.PendingOrder{
		GatewayOrderID: gw.ID,
		UserID:         userID,
		Receipt:        receipt,
		Cart:           req.Cart.Clone(),
		Amount:         major,
		AmountMinor:    minor,
		Currency:       s.currency,
		Status:         domain.OrderStatusPending,
		Name:           u.FullName(),
		Email:          u.Email,
		Address:        strings.TrimSpace(req.Address),
		Phone:          strings.TrimSpace(req.Phone),
		CreatedAt:      s.now().UTC().Truncate(time.Second),
	}
	if err := s.pending.Put(ctx, o); err != nil {
		slog.Error("gateway order created but not recorded", "gateway_order_id", gw.ID, "user_id", userID, "err", err)
		return nil, err
	}

	slog.Info("order created", "gateway_order_id", gw.ID, "user_id", userID, "amount", major)
	return gw, nil
}

// VerifyPayment checks the gateway signature and promotes the pending order
// into history. Repeated calls for the same order are no-ops after the first.
func (s *service) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (*VerifyResult, error) {
	if !s.gateway.VerifyPaymentSignature(req.GatewayOrderID, req.PaymentID, req.Signature) {
		slog.Warn("payment signature rejected", "gateway_order_id", req.GatewayOrderID)
		return nil, domain.ErrSignatureInvalid
	}

	p, err := s.pending.Get(ctx, req.GatewayOrderID)
	if errors.Is(err, domain.ErrNotFound) {
		rec, herr := s.history.Get(ctx, req.GatewayOrderID)
		if herr != nil {
			return nil, herr
		}
		return &VerifyResult{Order: rec, AlreadyProcessed: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if p.Status != domain.OrderStatusPaid {
		paid, err := s.pending.MarkPaid(ctx, p.GatewayOrderID, req.PaymentID, s.now().UTC())
		switch {
		case err == nil:
			p = paid
		case errors.Is(err, domain.ErrConflict):
			if p, err = s.pending.Get(ctx, req.GatewayOrderID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return s.alreadyProcessed(ctx, req.GatewayOrderID)
				}
				return nil, err
			}
		default:
			return nil, err
		}
	}

	rec := domain.NewOrderHistoryRecord(p)
	created, err := s.history.PutIfAbsent(ctx, rec)
	if err != nil {
		return nil, err
	}
	if err := s.pending.Delete(ctx, p.GatewayOrderID); err != nil {
		slog.Warn("could not delete promoted pending order", "gateway_order_id", p.GatewayOrderID, "err", err)
	}
	if !created {
		return s.alreadyProcessed(ctx, p.GatewayOrderID)
	}

	slog.Info("payment verified", "gateway_order_id", rec.GatewayOrderID, "payment_id", rec.PaymentID, "user_id", rec.UserID)
	s.afterPayment(ctx, rec)
	return &VerifyResult{Order: rec}, nil
}

func (s *service) alreadyProcessed(ctx context.Context, orderID string) (*VerifyResult, error) {
	rec, err := s.history.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Order: rec, AlreadyProcessed: true}, nil
}

// afterPayment runs the side effects of a newly paid order. Failures are logged only.
func (s *service) afterPayment(ctx context.Context, rec *domain.OrderHistoryRecord) {
	if err := s.carts.ClearCart(ctx, rec.UserID); err != nil {
		slog.Warn("could not clear cart after payment", "user_id", rec.UserID, "err", err)
	}

	task, err := s.invoiceTask(rec)
	if err != nil {
		slog.Error("could not render invoice", "gateway_order_id", rec.GatewayOrderID, "err", err)
	} else if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		slog.Warn("could not queue invoice", "gateway_order_id", rec.GatewayOrderID, "err", err)
	}

	if s.publisher != nil {
		s.publisher.PublishOrderUpdate(rec.UserID, rec.GatewayOrderID, rec.Status)
	}
}

func (s *service) invoiceTask(rec *domain.OrderHistoryRecord) (domain.NotificationTask, error) {
	html, err := RenderInvoice(s.store, rec, s.loc)
	if err != nil {
		return domain.NotificationTask{}, err
	}
	task := domain.NotificationTask{
		Kind: "invoice",
		Email: &domain.EmailMessage{
			To:      rec.Email,
			Subject: fmt.Sprintf("%s order confirmation %s", s.store, rec.GatewayOrderID),
			HTML:    html,
			Text:    invoiceText(s.store, rec),
		},
		Archive: &domain.Archive{
			Key:         InvoiceKey(rec.UserID, rec.GatewayOrderID),
			ContentType: "text/html; charset=utf-8",
			Body:        []byte(html),
		},
	}
	if s.smsEnabled && strings.HasPrefix(rec.Phone, "+") {
		task.SMS = &domain.SMSMessage{
			To:   rec.Phone,
			Body: fmt.Sprintf("%s: payment of %s %d received for order %s. Thank you!", s.store, rec.Currency, rec.Amount, rec.GatewayOrderID),
		}
	}
	return task, nil
}

func (s *service) ListHistory(ctx context.Context, userID string) ([]domain.OrderHistoryRecord, error) {
	return s.history.ListByUser(ctx, userID)
}

// Invoice renders the invoice for an order owned by userID. Orders owned by
// someone else are reported as not found.
func (s *service) Invoice(ctx context.Context, userID, orderID string) (string, error) {
	rec, err := s.ownedRecord(ctx, userID, orderID)
	if err != nil {
		return "", err
	}
	return RenderInvoice(s.store, rec, s.loc)
}

func (s *service) InvoiceLink(ctx context.Context, userID, orderID string) (string, error) {
	if s.invoices == nil {
		return "", fmt.Errorf("invoice archive not configured: %w", domain.ErrNotFound)
	}
	rec, err := s.ownedRecord(ctx, userID, orderID)
	if err != nil {
		return "", err
	}
	return s.invoices.PresignedURL(ctx, InvoiceKey(rec.UserID, rec.GatewayOrderID), InvoiceLinkTTL)
}

func (s *service) ownedRecord(ctx context.Context, userID, orderID string) (*domain.OrderHistoryRecord, error) {
	rec, err := s.history.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return rec, nil
}
