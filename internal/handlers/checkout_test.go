package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

func validCheckout() map[string]string {
	return map[string]string{
		"email":            "buyer@pipshop.test",
		"email1":           "buyer@pipshop.test",
		"name":             "Sam Buyer",
		"payment_method":   "pay-in-advance",
		"shipping_method":  string(models.ShippingDeliver),
		"shipping_address": "1 High Street\nTown",
	}
}

func TestCheckout_Methods(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.Checkout.Methods(rec, httptest.NewRequest(http.MethodGet, "/shop/checkout/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		PaymentMethods []struct {
			Identifier string `json:"identifier"`
		} `json:"payment_methods"`
		ShippingMethods []shippingMethodInfo `json:"shipping_methods"`
	}
	decodeBody(t, rec, &body)
	if len(body.PaymentMethods) != 1 || body.PaymentMethods[0].Identifier != "pay-in-advance" {
		t.Errorf("payment methods = %+v", body.PaymentMethods)
	}
	if len(body.ShippingMethods) != 2 {
		t.Errorf("shipping methods = %+v", body.ShippingMethods)
	}
}

func TestCheckout_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	c := newClient()

	form := validCheckout()
	form["email1"] = "other@pipshop.test"
	form["payment_method"] = "cash"
	rec := c.do(env.Checkout.Submit, jsonRequest(t, http.MethodPost, "/shop/checkout/", form))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	decodeBody(t, rec, &body)
	if len(body.Errors["email1"]) == 0 || len(body.Errors["payment_method"]) == 0 {
		t.Errorf("errors = %+v", body.Errors)
	}
}

func TestCheckout_EmptyBasket(t *testing.T) {
	env := newTestEnv(t)
	c := newClient()

	rec := c.do(env.Checkout.Submit, jsonRequest(t, http.MethodPost, "/shop/checkout/", validCheckout()))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "empty") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestCheckout_PayInAdvance(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "10.00", 3)
	v := f.Variants[0]
	c := newClient()

	if rec := addToBasket(t, env, c, v.ID, 2); rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}
	basketID := c.session(t, env).BasketID

	rec := c.do(env.Checkout.Submit, jsonRequest(t, http.MethodPost, "/shop/checkout/", validCheckout()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d, body %s", rec.Code, rec.Body)
	}
	var out struct {
		URL string `json:"url"`
	}
	decodeBody(t, rec, &out)
	if !strings.HasPrefix(out.URL, "/shop/order/") || !strings.HasSuffix(out.URL, "/new/") {
		t.Fatalf("url = %q", out.URL)
	}

	if sess := c.session(t, env); sess.BasketID != uuid.Nil {
		t.Errorf("session basket = %s, want cleared", sess.BasketID)
	}
	if got := env.stockOf(t, v.ID); got != 1 {
		t.Errorf("stock after checkout = %d, want 1", got)
	}

	o, err := env.Orders.FindByBasketID(basketID)
	if err != nil || o == nil {
		t.Fatalf("order for basket: %v, %v", o, err)
	}
	if o.Status != models.OrderHold {
		t.Errorf("status = %s, want HOLD", o.Status)
	}
	if o.Total.StringFixed(2) != "23.99" {
		t.Errorf("total = %s, want 23.99", o.Total)
	}
	if o.Name != "Sam Buyer" || o.ShippingAddress != "1 High Street\nTown" || o.BillingAddress != "-" {
		t.Errorf("customer details = %q %q %q", o.Name, o.ShippingAddress, o.BillingAddress)
	}

	req := withURLParams(httptest.NewRequest(http.MethodGet, out.URL, nil), "token", o.Token)
	rec = httptest.NewRecorder()
	env.Checkout.NewOrder(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("order page status = %d", rec.Code)
	}
	var view orderView
	decodeBody(t, rec, &view)
	if !view.New || view.Ref != o.Ref || len(view.Items) != 1 || view.Items[0].Quantity != 2 {
		t.Errorf("order view = %+v", view)
	}
	if view.IsPaid || view.AmountOutstanding != "23.99" {
		t.Errorf("paid=%v outstanding=%s", view.IsPaid, view.AmountOutstanding)
	}
}

func TestCheckout_OrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/shop/order/nope/", nil), "token", "nope")
	rec := httptest.NewRecorder()
	env.Checkout.Order(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCheckout_GatewayReturnPending(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.Checkout.GatewayReturn(rec, httptest.NewRequest(http.MethodGet, "/shop/checkout/gateway/return/?basket="+uuid.NewString(), nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.Checkout.GatewayReturn(rec, httptest.NewRequest(http.MethodGet, "/shop/checkout/gateway/return/?basket=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad basket status = %d, want 400", rec.Code)
	}
}
