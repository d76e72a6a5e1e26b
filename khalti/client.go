// Package khalti talks to the Khalti ePayment v2 API.
package khalti

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://a.khalti.com"

	initiatePath = "/api/v2/epayment/initiate/"
	lookupPath   = "/api/v2/epayment/lookup/"
)

// Lookup statuses reported by the gateway.
const (
	StatusCompleted    = "Completed"
	StatusPending      = "Pending"
	StatusInitiated    = "Initiated"
	StatusFailed       = "Failed"
	StatusExpired      = "Expired"
	StatusUserCanceled = "User canceled"
	StatusRefunded     = "Refunded"
)

type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// InitiateRequest amounts are in paisa.
type InitiateRequest struct {
	ReturnURL         string       `json:"return_url"`
	WebsiteURL        string       `json:"website_url"`
	Amount            int64        `json:"amount"`
	PurchaseOrderID   string       `json:"purchase_order_id"`
	PurchaseOrderName string       `json:"purchase_order_name"`
	CustomerInfo      CustomerInfo `json:"customer_info"`
}

type InitiateResponse struct {
	Pidx       string          `json:"pidx"`
	PaymentURL string          `json:"payment_url"`
	ExpiresAt  string          `json:"expires_at"`
	ExpiresIn  int             `json:"expires_in"`
	Raw        json.RawMessage `json:"-"`
}

type LookupResponse struct {
	Pidx          string          `json:"pidx"`
	TotalAmount   int64           `json:"total_amount"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id"`
	Fee           int64           `json:"fee"`
	Refunded      bool            `json:"refunded"`
	Raw           json.RawMessage `json:"-"`
}

// APIError is a non-2xx answer from the gateway. Body is the gateway's own
// error payload, kept verbatim for the caller.
type APIError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("khalti responded with status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Payload returns the gateway error body decoded as JSON, or as a plain
// string when it is not JSON.
func (e *APIError) Payload() any {
	var v any
	if err := json.Unmarshal(e.Body, &v); err != nil {
		return string(e.Body)
	}
	return v
}

type Client struct {
	http    *resty.Client
	breaker *CircuitBreaker
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeaders(map[string]string{
			"Authorization": "Key " + cfg.SecretKey,
			"Accept":        "application/json",
			"Content-Type":  "application/json",
		})

	return &Client{
		http:    httpClient,
		breaker: NewCircuitBreaker(5, 30*time.Second),
		logger:  logger,
	}
}

func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	body, err := c.post(ctx, initiatePath, req)
	if err != nil {
		return nil, err
	}

	var out InitiateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse initiate response: %w", err)
	}
	if out.Pidx == "" || out.PaymentURL == "" {
		return nil, fmt.Errorf("incomplete initiate response: %s", string(body))
	}
	out.Raw = body
	return &out, nil
}

func (c *Client) Lookup(ctx context.Context, pidx string) (*LookupResponse, error) {
	body, err := c.post(ctx, lookupPath, map[string]string{"pidx": pidx})
	if err != nil {
		return nil, err
	}

	var out LookupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse lookup response: %w", err)
	}
	out.Raw = body
	return &out, nil
}

// post sends one JSON request through the breaker. Only transport errors and
// 5xx answers count as breaker failures; a 4xx is the gateway working.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	var (
		body   []byte
		apiErr *APIError
	)

	err := c.breaker.Execute(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(payload).
			Post(path)
		if err != nil {
			return err
		}

		if resp.StatusCode() >= http.StatusInternalServerError {
			return &APIError{StatusCode: resp.StatusCode(), Body: resp.Body()}
		}
		if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
			apiErr = &APIError{StatusCode: resp.StatusCode(), Body: resp.Body()}
			return nil
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			c.logger.Warn("Khalti circuit open, request skipped", zap.String("path", path))
		} else {
			c.logger.Error("Khalti request failed", zap.String("path", path), zap.Error(err))
		}
		return nil, err
	}
	if apiErr != nil {
		c.logger.Warn("Khalti rejected request",
			zap.String("path", path),
			zap.Int("status", apiErr.StatusCode),
			zap.ByteString("body", apiErr.Body),
		)
		return nil, apiErr
	}
	return body, nil
}
