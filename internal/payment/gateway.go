package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pipshop/internal/models"
	"pipshop/internal/money"
)

// ErrBadSignature is returned for webhooks that fail verification.
var ErrBadSignature = errors.New("invalid webhook signature")

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Gateway-Signature"

// Deduper remembers processed webhook events.
type Deduper interface {
	// FirstSeen records key and reports whether it was new.
	FirstSeen(ctx context.Context, key string) (bool, error)
	// Forget drops key so the event can be retried.
	Forget(ctx context.Context, key string) error
}

// Payments records payments against orders. *orders.Service satisfies it.
type Payments interface {
	AddPayment(o *models.Order, amount decimal.Decimal, transactionID, method string) (*models.OrderPayment, error)
}

// GatewayConfig configures the hosted card payment method.
type GatewayConfig struct {
	Label         string
	Currency      string
	Domain        string // public base URL for return links
	WebhookSecret string
}

// Gateway sends customers to a hosted checkout page. The order is created
// when the gateway confirms payment through the webhook, so the basket
// stays in place until then.
type Gateway struct {
	cfg      GatewayConfig
	client   SessionCreator
	orders   Orders
	payments Payments
	baskets  Baskets
	dedup    Deduper
}

// NewGateway returns the hosted card payment method.
func NewGateway(cfg GatewayConfig, client SessionCreator, orders Orders, payments Payments, baskets Baskets, dedup Deduper) *Gateway {
	if cfg.Label == "" {
		cfg.Label = "Pay with card"
	}
	if cfg.Currency == "" {
		cfg.Currency = "gbp"
	}
	return &Gateway{cfg: cfg, client: client, orders: orders, payments: payments, baskets: baskets, dedup: dedup}
}

func (*Gateway) Identifier() string { return "gateway" }
func (g *Gateway) Label() string    { return g.cfg.Label }
func (*Gateway) Help() string       { return "Pay with card" }
func (*Gateway) Button() string     { return "Pay Now" }

// Checkout reprices the basket and opens a checkout session for it.
func (g *Gateway) Checkout(ctx context.Context, b *models.Basket) (string, error) {
	if err := g.baskets.Refresh(b); err != nil {
		return "", err
	}
	s, err := g.client.CreateSession(ctx, g.sessionRequest(b))
	if err != nil {
		return "", err
	}
	slog.Info("gateway session created", "basket", b.ID, "session", s.ID)
	return s.URL, nil
}

func (g *Gateway) sessionRequest(b *models.Basket) SessionRequest {
	req := SessionRequest{
		Currency:          g.cfg.Currency,
		ClientReferenceID: b.ID.String(),
		CustomerEmail:     b.ExtraString("email"),
		Metadata:          map[string]string{"shipping_method": string(b.ShippingMethod)},
		SuccessURL:        g.cfg.Domain + "/shop/payment/gateway/return?basket=" + b.ID.String(),
		CancelURL:         g.cfg.Domain + "/shop/basket",
		IdempotencyKey:    sessionKey(b),
	}
	for _, it := range b.Items {
		name := it.Ref()
		if it.Variant != nil {
			name = it.Variant.Name()
		}
		req.LineItems = append(req.LineItems, LineItem{
			Name:       name,
			UnitAmount: money.MinorUnits(it.UnitPrice),
			Quantity:   it.Quantity,
		})
		for _, row := range it.ExtraRows {
			req.LineItems = append(req.LineItems, LineItem{Name: row.Label, UnitAmount: money.MinorUnits(row.Amount), Quantity: 1})
		}
	}
	for _, row := range b.ExtraRows {
		req.LineItems = append(req.LineItems, LineItem{Name: row.Label, UnitAmount: money.MinorUnits(row.Amount), Quantity: 1})
	}
	return req
}

// sessionKey identifies one checkout attempt. Refresh moves the basket
// timeout, so each attempt gets its own key while retries share one.
func sessionKey(b *models.Basket) string {
	if b.Timeout == nil {
		return b.ID.String()
	}
	return b.ID.String() + ":" + strconv.FormatInt(b.Timeout.UnixNano(), 10)
}

// WebhookEvent is the gateway's event envelope.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
			AmountTotal       int64  `json:"amount_total"`
			PaymentIntent     string `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

// VerifySignature checks signature against the HMAC-SHA256 of body.
func VerifySignature(body []byte, signature, secret string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleWebhook verifies and processes one gateway event. Events already
// processed, events for unknown baskets and event types other than
// checkout.session.completed are acknowledged without effect.
func (g *Gateway) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !VerifySignature(body, signature, g.cfg.WebhookSecret) {
		return ErrBadSignature
	}
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode webhook: %w", err)
	}
	if ev.Type != "checkout.session.completed" {
		slog.Debug("gateway event ignored", "id", ev.ID, "type", ev.Type)
		return nil
	}

	key := "webhook:gateway:" + ev.ID
	if g.dedup != nil {
		first, err := g.dedup.FirstSeen(ctx, key)
		if err != nil {
			slog.Warn("webhook dedup unavailable", "event", ev.ID, "error", err)
		} else if !first {
			slog.Info("duplicate gateway event", "event", ev.ID)
			return nil
		}
	}

	created, err := g.complete(ctx, ev)
	if err != nil {
		// Once the order exists a retry would duplicate it, so the event
		// stays marked as seen.
		if g.dedup != nil && !created {
			if ferr := g.dedup.Forget(ctx, key); ferr != nil {
				slog.Warn("webhook dedup forget failed", "event", ev.ID, "error", ferr)
			}
		}
		return err
	}
	return nil
}

// complete turns the paid basket into an order. created reports whether
// the order was saved, even when a later step failed.
func (g *Gateway) complete(ctx context.Context, ev WebhookEvent) (created bool, err error) {
	obj := ev.Data.Object
	basketID, err := uuid.Parse(obj.ClientReferenceID)
	if err != nil {
		slog.Warn("gateway event with bad basket reference", "event", ev.ID, "ref", obj.ClientReferenceID)
		return false, nil
	}
	b, err := g.baskets.Get(basketID)
	if err != nil {
		return false, err
	}
	if b == nil {
		slog.Warn("gateway event for missing basket", "event", ev.ID, "basket", basketID)
		return false, nil
	}

	o, err := g.orders.CreateFromBasket(ctx, b, models.OrderProcessing)
	if err != nil {
		return false, err
	}
	// A redelivery may reach an order converted by an earlier delivery.
	if hasPayment(o, g.Identifier(), obj.PaymentIntent) {
		slog.Info("gateway payment already recorded", "event", ev.ID, "ref", o.Ref)
	} else if _, err := g.payments.AddPayment(o, money.FromMinorUnits(obj.AmountTotal), obj.PaymentIntent, g.Identifier()); err != nil {
		return true, fmt.Errorf("record payment for %s: %w", o.Ref, err)
	}
	if _, err := g.baskets.Delete(b.ID); err != nil {
		slog.Error("delete converted basket", "basket", b.ID, "ref", o.Ref, "error", err)
	}
	return true, nil
}

func hasPayment(o *models.Order, method, transactionID string) bool {
	for _, p := range o.Payments {
		if p.PaymentMethod == method && p.TransactionID == transactionID {
			return true
		}
	}
	return false
}
