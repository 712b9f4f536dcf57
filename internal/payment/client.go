package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrGateway is returned when the payment gateway rejects a request or
// cannot be reached.
var ErrGateway = errors.New("payment gateway error")

// LineItem is one charge on a hosted checkout page.
type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"` // minor units
	Quantity   int    `json:"quantity"`
}

// SessionRequest asks the gateway for a hosted checkout session.
type SessionRequest struct {
	LineItems         []LineItem        `json:"line_items"`
	Currency          string            `json:"currency"`
	ClientReferenceID string            `json:"client_reference_id"`
	CustomerEmail     string            `json:"customer_email,omitempty"`
	Metadata          map[string]string `json:"metadata"`
	SuccessURL        string            `json:"success_url"`
	CancelURL         string            `json:"cancel_url"`

	// IdempotencyKey is sent as the Idempotency-Key header so a retried
	// request cannot open a second session.
	IdempotencyKey string `json:"-"`
}

// Session is a created checkout session.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type gatewayError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SessionCreator creates hosted checkout sessions. *GatewayClient
// satisfies it.
type SessionCreator interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// GatewayClient talks to the hosted checkout API.
type GatewayClient struct {
	http *resty.Client
}

// NewGatewayClient returns a client for the gateway at baseURL
// authenticating with apiKey.
func NewGatewayClient(baseURL, apiKey string) *GatewayClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError)
		})
	return &GatewayClient{http: c}
}

// CreateSession creates a checkout session.
func (c *GatewayClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var out Session
	var apiErr gatewayError
	r := c.http.R().SetContext(ctx)
	if req.IdempotencyKey != "" {
		r.SetHeader("Idempotency-Key", req.IdempotencyKey)
	}
	resp, err := r.
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/checkout/sessions")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("%w: create session: %s", ErrGateway, msg)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("%w: session has no url", ErrGateway)
	}
	return &out, nil
}
