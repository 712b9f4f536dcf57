package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

// addToBasket posts quantity of a variant as shopper c.
func addToBasket(t *testing.T, env *testEnv, c *client, variantID uuid.UUID, quantity int) *httptest.ResponseRecorder {
	t.Helper()
	t.Cleanup(func() { c.dropBasket(env) })
	id := variantID.String()
	req := withURLParams(jsonRequest(t, http.MethodPost, "/shop/basket/add/"+id+"/", map[string]int{"quantity": quantity}),
		"variantID", id)
	return c.do(env.Basket.Add, req)
}

// dropBasket deletes the shopper's basket row, if any.
func (c *client) dropBasket(env *testEnv) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if sess, err := env.Sessions.Get(req.Context(), req); err == nil && sess != nil && sess.BasketID != uuid.Nil {
		env.DB.Exec("DELETE FROM baskets WHERE id = $1", sess.BasketID)
	}
}

func TestBasket_GetCreatesBasket(t *testing.T) {
	env := newTestEnv(t)
	c := newClient()

	rec := c.do(env.Basket.Get, httptest.NewRequest(http.MethodGet, "/shop/basket/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var view basketView
	decodeBody(t, rec, &view)
	t.Cleanup(func() { env.DB.Exec("DELETE FROM baskets WHERE id = $1", view.ID) })

	if view.Quantity != 0 || len(view.Items) != 0 {
		t.Errorf("new basket = %+v", view)
	}
	if view.ShippingMethod != models.ShippingCollect {
		t.Errorf("shipping = %q, want collect", view.ShippingMethod)
	}
	if sess := c.session(t, env); sess == nil || sess.BasketID != view.ID {
		t.Errorf("session basket = %+v, want %s", sess, view.ID)
	}

	// A second request reuses the same basket.
	rec = c.do(env.Basket.Get, httptest.NewRequest(http.MethodGet, "/shop/basket/", nil))
	var again basketView
	decodeBody(t, rec, &again)
	if again.ID != view.ID {
		t.Errorf("basket id changed: %s -> %s", view.ID, again.ID)
	}
}

func TestBasket_AddUpdateRemove(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "10.00", 5)
	v := f.Variants[0]
	c := newClient()

	rec := addToBasket(t, env, c, v.ID, 2)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body)
	}
	var view basketView
	decodeBody(t, rec, &view)
	if view.Quantity != 2 || view.Subtotal != "20.00" || view.Total != "20.00" {
		t.Errorf("after add: quantity=%d subtotal=%s total=%s", view.Quantity, view.Subtotal, view.Total)
	}
	if got := env.stockOf(t, v.ID); got != 3 {
		t.Errorf("stock after add = %d, want 3", got)
	}
	if len(view.Groups[f.Product.Identifier()]) != 1 {
		t.Errorf("groups = %+v", view.Groups)
	}

	ref := models.ItemRef(v.ID)
	req := withURLParams(jsonRequest(t, http.MethodPut, "/shop/basket/"+ref+"/", map[string]int{"quantity": 4}), "ref", ref)
	rec = c.do(env.Basket.Update, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	if got := env.stockOf(t, v.ID); got != 1 {
		t.Errorf("stock after update = %d, want 1", got)
	}

	req = withURLParams(jsonRequest(t, http.MethodPut, "/shop/basket/"+ref+"/", map[string]int{"quantity": 4}), "ref", ref)
	rec = c.do(env.Basket.Update, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("same quantity status = %d, want 400", rec.Code)
	}

	req = withURLParams(httptest.NewRequest(http.MethodDelete, "/shop/basket/"+ref+"/", nil), "ref", ref)
	rec = c.do(env.Basket.Delete, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body)
	}
	decodeBody(t, rec, &view)
	if len(view.Items) != 0 {
		t.Errorf("items after delete = %d", len(view.Items))
	}
	if got := env.stockOf(t, v.ID); got != 5 {
		t.Errorf("stock after delete = %d, want 5", got)
	}
}

func TestBasket_AddMoreThanStock(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "10.00", 1)
	c := newClient()

	rec := addToBasket(t, env, c, f.Variants[0].ID, 2)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if got := env.stockOf(t, f.Variants[0].ID); got != 1 {
		t.Errorf("stock = %d, want unchanged 1", got)
	}
}

func TestBasket_AddUnknownVariant(t *testing.T) {
	env := newTestEnv(t)
	c := newClient()

	rec := addToBasket(t, env, c, uuid.New(), 1)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestBasket_Shipping(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "10.00", 1)
	c := newClient()
	addToBasket(t, env, c, f.Variants[0].ID, 1)

	rec := c.do(env.Basket.Shipping, jsonRequest(t, http.MethodPost, "/shop/basket/shipping/",
		map[string]string{"shipping_method": "teleport"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid method status = %d, want 400", rec.Code)
	}

	rec = c.do(env.Basket.Shipping, jsonRequest(t, http.MethodPost, "/shop/basket/shipping/",
		map[string]string{"shipping_method": string(models.ShippingDeliver)}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var view basketView
	decodeBody(t, rec, &view)
	if view.ShippingMethod != models.ShippingDeliver {
		t.Errorf("shipping = %q", view.ShippingMethod)
	}
	if view.Total != "13.99" {
		t.Errorf("total = %s, want 13.99 with delivery", view.Total)
	}
}

func TestBasket_UpdateWithoutBasket(t *testing.T) {
	env := newTestEnv(t)
	c := newClient()

	ref := models.ItemRef(uuid.New())
	req := withURLParams(jsonRequest(t, http.MethodPut, "/shop/basket/"+ref+"/", map[string]int{"quantity": 1}), "ref", ref)
	rec := c.do(env.Basket.Update, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = c.do(env.Basket.Update, withURLParams(jsonRequest(t, http.MethodPut, "/shop/basket/"+ref+"/", map[string]any{}), "ref", ref))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing quantity status = %d, want 400", rec.Code)
	}
}
