// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pipshop/internal/basket"
	"pipshop/internal/models"
	"pipshop/internal/money"
	"pipshop/internal/orders"
	"pipshop/internal/payment"
	"pipshop/internal/sale"
	"pipshop/internal/session"
	"pipshop/internal/store"
)

// maxWebhookBody caps gateway webhook payloads.
const maxWebhookBody = 1 << 20

// Checkout groups the checkout, order status and payment gateway handlers.
type Checkout struct {
	sessions *session.Store
	baskets  *basket.Service
	orders   *orders.Service
	lookup   *store.OrderStore
	methods  *payment.Registry
	gateway  *payment.Gateway
}

// NewCheckout creates the Checkout handler group. gateway is nil when the
// hosted gateway is not enabled.
func NewCheckout(sessions *session.Store, baskets *basket.Service, orderService *orders.Service, lookup *store.OrderStore, methods *payment.Registry, gateway *payment.Gateway) *Checkout {
	return &Checkout{
		sessions: sessions,
		baskets:  baskets,
		orders:   orderService,
		lookup:   lookup,
		methods:  methods,
		gateway:  gateway,
	}
}

type shippingMethodInfo struct {
	Identifier models.ShippingMethod `json:"identifier"`
	Label      string                `json:"label"`
}

// Methods lists the enabled payment methods and the shipping methods.
func (c *Checkout) Methods(w http.ResponseWriter, r *http.Request) {
	shipping := make([]shippingMethodInfo, 0, len(models.ShippingMethods))
	for _, m := range models.ShippingMethods {
		shipping = append(shipping, shippingMethodInfo{Identifier: m, Label: m.Label()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_methods":  c.methods.List(),
		"shipping_methods": shipping,
	})
}

// Submit validates the checkout form, stores the customer details on the
// basket and hands it to the chosen payment method.
func (c *Checkout) Submit(w http.ResponseWriter, r *http.Request) {
	var form CheckoutForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := form.Validate(c.methods); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": errs,
			"fields": form,
		})
		return
	}

	ctx := r.Context()
	sess, sid, err := c.sessions.Load(ctx, w, r)
	if err != nil {
		slog.Error("checkout session load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	var b *models.Basket
	if sess.BasketID != uuid.Nil {
		if b, err = c.baskets.Get(sess.BasketID); err != nil {
			slog.Error("checkout basket load failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}
	if b == nil || len(b.Items) == 0 {
		writeError(w, http.StatusBadRequest, "Your basket is empty")
		return
	}

	b, err = c.baskets.SetShipping(b.ID, form.ShippingMethod)
	if err != nil {
		writeBasketError(w, err)
		return
	}
	extra := maps.Clone(b.Extra)
	if extra == nil {
		extra = map[string]any{}
	}
	extra["email"] = form.Email
	extra["name"] = form.Name
	extra["shipping_address"] = form.ShippingAddress
	extra["billing_address"] = form.BillingAddress
	extra["payment_method"] = form.PaymentMethod
	if err := c.baskets.SetExtra(b, extra); err != nil {
		writeBasketError(w, err)
		return
	}

	method, err := c.methods.Get(form.PaymentMethod)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Select a valid payment method")
		return
	}
	url, err := method.Checkout(ctx, b)
	if err != nil {
		c.writeCheckoutError(w, err)
		return
	}

	// Pay-in-advance has already deleted the basket.
	if method.Identifier() == "pay-in-advance" {
		sess.BasketID = uuid.Nil
		if err := c.sessions.Save(ctx, sid, sess); err != nil {
			slog.Warn("clear session basket failed", "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func (c *Checkout) writeCheckoutError(w http.ResponseWriter, err error) {
	var verr *sale.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Message)
	case errors.Is(err, payment.ErrGateway):
		slog.Error("gateway checkout failed", "error", err)
		writeError(w, http.StatusBadGateway, "The payment provider is unavailable, please try again")
	case errors.Is(err, orders.ErrEmptyBasket):
		writeError(w, http.StatusBadRequest, "Your basket is empty")
	default:
		slog.Error("checkout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type orderItemView struct {
	Name      string            `json:"name"`
	Code      string            `json:"code"`
	Quantity  int               `json:"quantity"`
	UnitPrice string            `json:"unit_price"`
	Subtotal  string            `json:"subtotal"`
	Total     string            `json:"total"`
	ExtraRows []models.ExtraRow `json:"extra_rows"`
}

type orderNoteView struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"date_created"`
}

type orderView struct {
	Ref               string                `json:"ref"`
	Status            models.OrderStatus    `json:"status"`
	StatusLabel       string                `json:"status_label"`
	Name              string                `json:"name"`
	Email             string                `json:"email"`
	ShippingMethod    models.ShippingMethod `json:"shipping_method"`
	ShippingAddress   string                `json:"shipping_address"`
	BillingAddress    string                `json:"billing_address"`
	Items             []orderItemView       `json:"items"`
	ExtraRows         []models.ExtraRow     `json:"extra_rows"`
	Subtotal          string                `json:"subtotal"`
	Total             string                `json:"total"`
	AmountPaid        string                `json:"amount_paid"`
	AmountOutstanding string                `json:"amount_outstanding"`
	IsPaid            bool                  `json:"is_paid"`
	Notes             []orderNoteView       `json:"notes"`
	CreatedAt         time.Time             `json:"date_created"`
	New               bool                  `json:"new"`
}

func customerOrderView(o *models.Order, isNew bool) orderView {
	v := orderView{
		Ref:               o.Ref,
		Status:            o.Status,
		StatusLabel:       o.Status.Label(),
		Name:              o.Name,
		Email:             o.Email,
		ShippingMethod:    o.ShippingMethod,
		ShippingAddress:   o.ShippingAddress,
		BillingAddress:    o.BillingAddress,
		Items:             make([]orderItemView, 0, len(o.Items)),
		ExtraRows:         o.ExtraRows,
		Subtotal:          money.String(o.Subtotal),
		Total:             money.String(o.Total),
		AmountPaid:        money.String(o.AmountPaid()),
		AmountOutstanding: money.String(o.AmountOutstanding()),
		IsPaid:            o.IsPaid(),
		Notes:             []orderNoteView{},
		CreatedAt:         o.CreatedAt,
		New:               isNew,
	}
	if v.ExtraRows == nil {
		v.ExtraRows = []models.ExtraRow{}
	}
	for _, it := range o.Items {
		rows := it.ExtraRows
		if rows == nil {
			rows = []models.ExtraRow{}
		}
		v.Items = append(v.Items, orderItemView{
			Name:      it.Name,
			Code:      it.Code,
			Quantity:  it.Quantity,
			UnitPrice: money.String(it.UnitPrice),
			Subtotal:  money.String(it.Subtotal),
			Total:     money.String(it.Total),
			ExtraRows: rows,
		})
	}
	for _, n := range o.PublicNotes() {
		v.Notes = append(v.Notes, orderNoteView{Message: n.Message, CreatedAt: n.CreatedAt})
	}
	return v
}

// Order shows an order to the customer holding its status link.
func (c *Checkout) Order(w http.ResponseWriter, r *http.Request) {
	c.order(w, r, false)
}

// NewOrder is the page shown straight after checkout.
func (c *Checkout) NewOrder(w http.ResponseWriter, r *http.Request) {
	c.order(w, r, true)
}

func (c *Checkout) order(w http.ResponseWriter, r *http.Request, isNew bool) {
	o, err := c.orders.GetByToken(chiParam(r, "token"))
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		slog.Error("order lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, customerOrderView(o, isNew))
}

// GatewayWebhook receives payment events from the hosted gateway.
func (c *Checkout) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	err = c.gateway.HandleWebhook(r.Context(), body, r.Header.Get(payment.SignatureHeader))
	if errors.Is(err, payment.ErrBadSignature) {
		slog.Warn("gateway webhook rejected", "remote", r.RemoteAddr)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		// A 5xx makes the gateway retry the delivery.
		slog.Error("gateway webhook failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// GatewayReturn is where the gateway sends the customer after paying. It
// redirects to the order once the webhook has created it.
func (c *Checkout) GatewayReturn(w http.ResponseWriter, r *http.Request) {
	basketID, err := uuid.Parse(r.URL.Query().Get("basket"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid basket reference")
		return
	}
	o, err := c.lookup.FindByBasketID(basketID)
	if err != nil {
		slog.Error("order lookup by basket failed", "basket", basketID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if o == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}

	ctx := r.Context()
	if sess, sid, err := c.sessions.Load(ctx, w, r); err == nil && sess.BasketID == basketID {
		sess.BasketID = uuid.Nil
		if err := c.sessions.Save(ctx, sid, sess); err != nil {
			slog.Warn("clear session basket failed", "error", err)
		}
	}
	http.Redirect(w, r, payment.OrderURL(o), http.StatusSeeOther)
}
