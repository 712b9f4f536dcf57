// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pipshop/internal/middleware"
	"pipshop/internal/models"
	"pipshop/internal/orders"
)

const ordersPerPage = 25

type adminOrder struct {
	*models.Order
	StatusLabel       string          `json:"status_label"`
	ShippingLabel     string          `json:"shipping_label"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	AmountOutstanding decimal.Decimal `json:"amount_outstanding"`
	Paid              bool            `json:"paid"`
}

func toAdminOrder(o *models.Order) adminOrder {
	return adminOrder{
		Order:             o,
		StatusLabel:       o.Status.Label(),
		ShippingLabel:     o.ShippingMethod.Label(),
		AmountPaid:        o.AmountPaid(),
		AmountOutstanding: o.AmountOutstanding(),
		Paid:              o.IsPaid(),
	}
}

// loadOrder resolves the {id} param to an order, writing 404 when missing.
func (a *Admin) loadOrder(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return nil, false
	}
	o, err := a.orders.Get(id)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return nil, false
	}
	if err != nil {
		serverError(w, "find order failed", err)
		return nil, false
	}
	return o, true
}

// OrdersList returns a page of orders, newest first, optionally filtered
// by ?status=.
func (a *Admin) OrdersList(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}
	page := intQuery(r, "page", 1)
	items, err := a.orders.List(status, ordersPerPage, (page-1)*ordersPerPage)
	if err != nil {
		serverError(w, "list orders failed", err)
		return
	}
	out := make([]adminOrder, 0, len(items))
	for i := range items {
		out = append(out, toAdminOrder(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":   page,
		"orders": out,
	})
}

// OrderGet returns one order with items, payments and notes.
func (a *Admin) OrderGet(w http.ResponseWriter, r *http.Request) {
	o, ok := a.loadOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAdminOrder(o))
}

// OrderStatus moves an order to a new status and emails the customer
// when the lifecycle calls for it.
func (a *Admin) OrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	var in struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.Status = models.OrderStatus(strings.ToUpper(string(in.Status)))
	if !in.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	o, err := a.orders.SetStatus(r.Context(), id, in.Status)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		serverError(w, "set order status failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminOrder(o))
}

// OrderPayment records a manual payment, e.g. a bank transfer received
// for a pay-in-advance order.
func (a *Admin) OrderPayment(w http.ResponseWriter, r *http.Request) {
	o, ok := a.loadOrder(w, r)
	if !ok {
		return
	}
	var in struct {
		Amount        decimal.Decimal `json:"amount"`
		TransactionID string          `json:"transaction_id"`
		PaymentMethod string          `json:"payment_method"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !in.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Amount must be greater than zero.")
		return
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		in.PaymentMethod = "manual"
	}
	if strings.TrimSpace(in.TransactionID) == "" {
		in.TransactionID = uuid.NewString()
	}
	p, err := a.orders.AddPayment(o, in.Amount, in.TransactionID, in.PaymentMethod)
	if err != nil {
		serverError(w, "add payment failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// OrderNote attaches a staff note; public notes appear on the customer's
// order page.
func (a *Admin) OrderNote(w http.ResponseWriter, r *http.Request) {
	o, ok := a.loadOrder(w, r)
	if !ok {
		return
	}
	var in struct {
		Message string `json:"message"`
		Public  bool   `json:"public"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required.")
		return
	}
	n, err := a.orders.AddNote(o, in.Message, in.Public)
	if err != nil {
		serverError(w, "add note failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// editableSettings are the shop setting keys the API may change.
var editableSettings = map[string]bool{
	models.SettingNotifyEmails: true,
	models.SettingReplyTo:      true,
}

// Settings returns the shop settings.
func (a *Admin) Settings(w http.ResponseWriter, r *http.Request) {
	all, err := a.settings.All()
	if err != nil {
		serverError(w, "load settings failed", err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// SettingsUpdate saves the notification settings. Email values are
// checked before anything is written.
func (a *Admin) SettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var in map[string]string
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updates := make(map[string]string, len(in))
	for k, v := range in {
		if !editableSettings[k] {
			writeError(w, http.StatusBadRequest, "unknown setting "+k)
			return
		}
		v = strings.TrimSpace(v)
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" && !validEmail(addr) {
				writeError(w, http.StatusBadRequest, "Enter a valid email address.")
				return
			}
		}
		updates[k] = v
	}
	if err := a.settings.SetMany(updates); err != nil {
		serverError(w, "save settings failed", err)
		return
	}
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil {
		slog.Info("shop settings updated", "user", sess.Email, "keys", len(updates))
	}
	a.Settings(w, r)
}

// StockMovements lists recent stock changes, optionally for one variant.
func (a *Admin) StockMovements(w http.ResponseWriter, r *http.Request) {
	var variantID *uuid.UUID
	if raw := r.URL.Query().Get("variant"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid variant id")
			return
		}
		variantID = &id
	}
	limit := min(intQuery(r, "limit", 50), 500)
	items, err := a.stock.Recent(variantID, limit)
	if err != nil {
		serverError(w, "list stock movements failed", err)
		return
	}
	if items == nil {
		items = []models.StockMovement{}
	}
	writeJSON(w, http.StatusOK, items)
}
