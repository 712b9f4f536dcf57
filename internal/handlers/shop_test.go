package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestShop_Categories(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "12.00", 3)
	env.Shop.catalog.InvalidateAll(context.Background())

	rec := httptest.NewRecorder()
	env.Shop.Categories(rec, httptest.NewRequest(http.MethodGet, "/shop/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var cats []categoryView
	decodeBody(t, rec, &cats)
	found := false
	for _, c := range cats {
		if c.ID == f.Category.ID {
			found = true
			if c.LiveProducts != 1 {
				t.Errorf("live products = %d, want 1", c.LiveProducts)
			}
		}
	}
	if !found {
		t.Error("fixture category missing from list")
	}
}

func TestShop_Category(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "12.00", 3, 0)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/shop/category/"+f.Category.ID.String()+"/", nil),
		"id", f.Category.ID.String())
	rec := httptest.NewRecorder()
	env.Shop.Category(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var view categoryView
	decodeBody(t, rec, &view)
	if !strings.Contains(view.Body, "<em>category</em>") {
		t.Errorf("body_html = %q, want rendered markdown", view.Body)
	}
	if len(view.Products) != 1 {
		t.Fatalf("products = %d, want 1", len(view.Products))
	}
	p := view.Products[0]
	if p.Price != "12.00" {
		t.Errorf("price = %q", p.Price)
	}
	if len(p.Variants) != 2 {
		t.Errorf("variants = %d, want 2", len(p.Variants))
	}
	if p.OutOfStock {
		t.Error("product with stock should not be out of stock")
	}
}

func TestShop_CategoryNotFound(t *testing.T) {
	env := newTestEnv(t)

	id := uuid.NewString()
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/shop/category/"+id+"/", nil), "id", id)
	rec := httptest.NewRecorder()
	env.Shop.Category(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.Shop.Category(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/shop/category/x/", nil), "id", "x"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("bad id status = %d, want 404", rec.Code)
	}
}

func TestShop_ProductRequiresLiveVariants(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "8.50")

	id := f.Product.ID.String()
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/shop/product/"+id+"/", nil), "id", id)
	rec := httptest.NewRecorder()
	env.Shop.Product(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("product without variants: status = %d, want 404", rec.Code)
	}
}

func TestShop_Product(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "8.50", 0)

	id := f.Product.ID.String()
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/shop/product/"+id+"/", nil), "id", id)
	rec := httptest.NewRecorder()
	env.Shop.Product(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var p productView
	decodeBody(t, rec, &p)
	if !p.OutOfStock {
		t.Error("product with zero stock should be out of stock")
	}
	if p.Identifier != f.Product.Identifier() {
		t.Errorf("identifier = %q, want %q", p.Identifier, f.Product.Identifier())
	}
	if len(p.Variants) != 1 || p.Variants[0].NameAndPrice == "" {
		t.Errorf("variants = %+v", p.Variants)
	}
}

func TestShop_CachedProductShowsCurrentStock(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "8.50", 2)

	id := f.Product.ID.String()
	get := func() productView {
		t.Helper()
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/shop/product/"+id+"/", nil), "id", id)
		rec := httptest.NewRecorder()
		env.Shop.Product(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		var p productView
		decodeBody(t, rec, &p)
		return p
	}

	if p := get(); p.Variants[0].Stock != 2 || p.OutOfStock {
		t.Fatalf("first view: stock %d, out of stock %v", p.Variants[0].Stock, p.OutOfStock)
	}

	if rec := addToBasket(t, env, newClient(), f.Variants[0].ID, 2); rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body)
	}

	p := get()
	if p.Variants[0].Stock != 0 {
		t.Errorf("cached view stock = %d, want 0", p.Variants[0].Stock)
	}
	if !p.OutOfStock {
		t.Error("cached view should show the product out of stock")
	}
}

func TestShop_CachedCategoryShowsCurrentStock(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "12.00", 1, 4)

	id := f.Category.ID.String()
	get := func() categoryView {
		t.Helper()
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/shop/category/"+id+"/", nil), "id", id)
		rec := httptest.NewRecorder()
		env.Shop.Category(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		var view categoryView
		decodeBody(t, rec, &view)
		return view
	}

	get()
	if _, err := env.DB.Exec(`UPDATE variants SET stock = 0 WHERE product_id = $1`, f.Product.ID); err != nil {
		t.Fatalf("clear stock: %v", err)
	}

	view := get()
	if len(view.Products) != 1 {
		t.Fatalf("products = %d, want 1", len(view.Products))
	}
	p := view.Products[0]
	if !p.OutOfStock {
		t.Error("cached category should show the product out of stock")
	}
	for _, v := range p.Variants {
		if v.Stock != 0 {
			t.Errorf("variant %s stock = %d, want 0", v.ID, v.Stock)
		}
	}
}

func TestShop_Search(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "5.00", 1)
	name := "Searchable " + uuid.NewString()[:8]
	f.Product.Name = name
	if err := env.Products.Update(f.Product); err != nil {
		t.Fatalf("rename product: %v", err)
	}

	rec := httptest.NewRecorder()
	env.Shop.Search(rec, httptest.NewRequest(http.MethodGet, "/shop/search/?query="+strings.ReplaceAll(name, " ", "+"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp searchResponse
	decodeBody(t, rec, &resp)
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Pages != 1 {
		t.Errorf("search = %+v", resp)
	}

	rec = httptest.NewRecorder()
	env.Shop.Search(rec, httptest.NewRequest(http.MethodGet, "/shop/search/", nil))
	decodeBody(t, rec, &resp)
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("empty query should return nothing, got %+v", resp)
	}
}

func TestShop_QuantitySteppers(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, "5.00", 2)
	id := f.Variants[0].ID.String()

	step := func(h http.HandlerFunc, quantity string) (int, bool, string) {
		t.Helper()
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/shop/quantity/"+id+"/?quantity="+quantity, nil), "variantID", id)
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var s struct {
			Value   int  `json:"value"`
			Changed bool `json:"changed"`
		}
		decodeBody(t, rec, &s)
		return s.Value, s.Changed, rec.Header().Get("HX-Trigger")
	}

	if v, changed, trigger := step(env.Shop.QuantityIncrease, "1"); v != 2 || !changed || trigger != "quantity-changed" {
		t.Errorf("increase 1 = %d changed=%v trigger=%q", v, changed, trigger)
	}
	if v, changed, _ := step(env.Shop.QuantityIncrease, "2"); v != 2 || changed {
		t.Errorf("increase past stock = %d changed=%v", v, changed)
	}
	if v, changed, _ := step(env.Shop.QuantityDecrease, "1"); v != 1 || changed {
		t.Errorf("decrease at 1 = %d changed=%v", v, changed)
	}
	if v, changed, _ := step(env.Shop.QuantityDecrease, "2"); v != 1 || !changed {
		t.Errorf("decrease 2 = %d changed=%v", v, changed)
	}
}
