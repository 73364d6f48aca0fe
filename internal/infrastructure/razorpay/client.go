package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/storefront-api/internal/config"
	"github.com/storefront-api/internal/domain"
)

// maxAttempts bounds order-creation calls. Only transport failures, 429 and
// 5xx are retried; a retried create may leave an unpaid orphan order at the
// gateway, which expires on its own.
const maxAttempts = 3

// Client talks to the Razorpay Orders API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	newBackOff func() backoff.BackOff
}

func NewClient(cfg *config.Razorpay) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 300 * time.Millisecond
			b.MaxElapsedTime = 0
			return b
		},
	}
}

type createOrderBody struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder reserves an order of amountMinor (paise for INR) with auto-capture.
// Every failure wraps domain.ErrGateway.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*domain.GatewayOrder, error) {
	payload, err := json.Marshal(createOrderBody{
		Amount:         amountMinor,
		Currency:       currency,
		Receipt:        receipt,
		PaymentCapture: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	var order domain.GatewayOrder
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.keyID, c.keySecret)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http client do: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 300 {
			err := statusError(resp.StatusCode, body)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		if err := json.Unmarshal(body, &order); err != nil {
			return backoff.Permanent(fmt.Errorf("decode order: %w", err))
		}
		if order.ID == "" {
			return backoff.Permanent(fmt.Errorf("gateway returned order without id"))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("razorpay create order: %w: %w", domain.ErrGateway, err)
	}
	return &order, nil
}

// VerifyPaymentSignature checks the checkout callback signature with the key secret.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return VerifySignature(c.keySecret, orderID, paymentID, signature)
}

func statusError(status int, body []byte) error {
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Error.Description != "" {
		return fmt.Errorf("status %d: %s: %s", status, ae.Error.Code, ae.Error.Description)
	}
	return fmt.Errorf("status %d", status)
}
