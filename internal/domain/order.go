package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
)

// CartSnapshotItem is a product line as the storefront displayed it at checkout.
// Price is kept verbatim ("₹1,299", "1299.00") and parsed only for totals.
type CartSnapshotItem struct {
	ProductID string `json:"product_id,omitempty" dynamodbav:"product_id,omitempty"`
	Name      string `json:"name" dynamodbav:"name" validate:"required,max=255"`
	Price     string `json:"price" dynamodbav:"price" validate:"max=32"`
	Size      string `json:"size" dynamodbav:"size" validate:"max=16"`
	Quantity  int    `json:"quantity" dynamodbav:"quantity" validate:"min=1,max=100"`
}

// UnitPrice parses Price, ignoring currency symbols and grouping separators.
// Unparseable prices count as zero.
func (i CartSnapshotItem) UnitPrice() decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, i.Price)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// LineTotal is UnitPrice times Quantity.
func (i CartSnapshotItem) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type CartSnapshot struct {
	Items []CartSnapshotItem `json:"items" dynamodbav:"items" validate:"max=100,dive"`
}

// Clone copies the item slice so later edits by the caller never reach a stored order.
func (s CartSnapshot) Clone() CartSnapshot {
	items := make([]CartSnapshotItem, len(s.Items))
	copy(items, s.Items)
	return CartSnapshot{Items: items}
}

// Total sums LineTotal across items.
func (s CartSnapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// PendingOrder is an order reserved with the gateway and awaiting payment
// verification. PK: gateway_order_id.
type PendingOrder struct {
	GatewayOrderID string       `json:"gateway_order_id" dynamodbav:"gateway_order_id"`
	UserID         string       `json:"user_id" dynamodbav:"user_id"`
	Receipt        string       `json:"receipt" dynamodbav:"receipt"`
	Cart           CartSnapshot `json:"cart" dynamodbav:"cart"`
	Amount         int64        `json:"amount" dynamodbav:"amount"`             // major units
	AmountMinor    int64        `json:"amount_minor" dynamodbav:"amount_minor"` // sent to the gateway
	Currency       string       `json:"currency" dynamodbav:"currency"`
	Status         OrderStatus  `json:"status" dynamodbav:"status"`
	Name           string       `json:"name" dynamodbav:"name"`
	Email          string       `json:"email" dynamodbav:"email"`
	Address        string       `json:"address" dynamodbav:"address"`
	Phone          string       `json:"phone" dynamodbav:"phone"`
	PaymentID      string       `json:"payment_id,omitempty" dynamodbav:"payment_id,omitempty"`
	VerifiedAt     *time.Time   `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at" dynamodbav:"created_at"`
}

// OrderHistoryRecord is the permanent record of a paid order. PK: gateway_order_id.
type OrderHistoryRecord struct {
	GatewayOrderID string       `json:"gateway_order_id" dynamodbav:"gateway_order_id"`
	UserID         string       `json:"user_id" dynamodbav:"user_id"`
	Receipt        string       `json:"receipt" dynamodbav:"receipt"`
	PaymentID      string       `json:"payment_id" dynamodbav:"payment_id"`
	Cart           CartSnapshot `json:"cart" dynamodbav:"cart"`
	Amount         int64        `json:"amount" dynamodbav:"amount"`
	Currency       string       `json:"currency" dynamodbav:"currency"`
	Status         OrderStatus  `json:"status" dynamodbav:"status"`
	Name           string       `json:"name" dynamodbav:"name"`
	Email          string       `json:"email" dynamodbav:"email"`
	Address        string       `json:"address" dynamodbav:"address"`
	Phone          string       `json:"phone" dynamodbav:"phone"`
	CreatedAt      time.Time    `json:"created_at" dynamodbav:"created_at"`
	VerifiedAt     time.Time    `json:"verified_at" dynamodbav:"verified_at"`
}

// NewOrderHistoryRecord copies a paid pending order into its history form.
func NewOrderHistoryRecord(p *PendingOrder) *OrderHistoryRecord {
	rec := &OrderHistoryRecord{
		GatewayOrderID: p.GatewayOrderID,
		UserID:         p.UserID,
		Receipt:        p.Receipt,
		PaymentID:      p.PaymentID,
		Cart:           p.Cart.Clone(),
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         OrderStatusPaid,
		Name:           p.Name,
		Email:          p.Email,
		Address:        p.Address,
		Phone:          p.Phone,
		CreatedAt:      p.CreatedAt,
	}
	if p.VerifiedAt != nil {
		rec.VerifiedAt = *p.VerifiedAt
	}
	return rec
}

// GatewayOrder is the gateway's view of a reserved order, returned to the
// client so it can open the checkout widget.
type GatewayOrder struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`
}

// CreateOrderRequest carries the checkout form. Amount is in major units and
// must be a positive whole number.
type CreateOrderRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Cart    CartSnapshot    `json:"cart"`
	Address string          `json:"address" validate:"required,max=1000"`
	Phone   string          `json:"phone" validate:"required,max=20"`
}

// VerifyPaymentRequest is the gateway callback payload.
type VerifyPaymentRequest struct {
	GatewayOrderID string `json:"razorpay_order_id" validate:"required,max=64"`
	PaymentID      string `json:"razorpay_payment_id" validate:"required,max=64"`
	Signature      string `json:"razorpay_signature" validate:"required,max=128"`
}
