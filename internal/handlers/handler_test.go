// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"pipshop/internal/basket"
	"pipshop/internal/cache"
	"pipshop/internal/database"
	"pipshop/internal/middleware"
	"pipshop/internal/models"
	"pipshop/internal/notify"
	"pipshop/internal/orders"
	"pipshop/internal/payment"
	"pipshop/internal/pricing"
	"pipshop/internal/sale"
	"pipshop/internal/session"
	"pipshop/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "pipshop")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "pipshop")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		for _, pattern := range []string{"session:*", "catalog:*", "dedup:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB         *sql.DB
	Valkey     *redis.Client
	Sessions   *session.Store
	Categories *store.CategoryStore
	Products   *store.ProductStore
	Variants   *store.VariantStore
	Users      *store.UserStore
	Orders     *store.OrderStore
	Baskets    *basket.Service
	OrderSvc   *orders.Service

	Shop     *Shop
	Basket   *Basket
	Checkout *Checkout
	Auth     *Auth
	Admin    *Admin
}

// newTestEnv creates a complete test environment with all handler
// dependencies. Payment is pay-in-advance only and mail goes to the log.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	sessions := session.NewStore(vk, false)
	categories := store.NewCategoryStore(db)
	products := store.NewProductStore(db)
	variants := store.NewVariantStore(db)
	users := store.NewUserStore(db)
	orderStore := store.NewOrderStore(db)
	saleStore := store.NewSaleStore(db)
	settings := store.NewShopSettingStore(db)

	engine := sale.NewEngine(saleStore)
	pipeline := pricing.Default(decimal.RequireFromString("3.99"))
	baskets := basket.NewService(store.NewBasketStore(db), variants, engine, pipeline, nil, 15*time.Minute)
	notifier := notify.NewNotifier(notify.LogMailer{}, "shop@pipshop.test", "http://pipshop.test")
	orderSvc := orders.NewService(orderStore, settings, notifier, baskets, nil)

	registry, err := payment.NewRegistry([]string{"pay-in-advance"}, payment.NewPayInAdvance(orderSvc, baskets))
	if err != nil {
		t.Fatalf("payment registry: %v", err)
	}
	catalog := cache.NewCatalogCache(vk, time.Minute)

	return &testEnv{
		DB:         db,
		Valkey:     vk,
		Sessions:   sessions,
		Categories: categories,
		Products:   products,
		Variants:   variants,
		Users:      users,
		Orders:     orderStore,
		Baskets:    baskets,
		OrderSvc:   orderSvc,

		Shop:     NewShop(sessions, categories, products, engine, baskets, catalog, nil),
		Basket:   NewBasket(sessions, baskets),
		Checkout: NewCheckout(sessions, baskets, orderSvc, orderStore, registry, nil),
		Auth:     NewAuth(sessions, users),
		Admin: NewAdmin(AdminDeps{
			Categories:     categories,
			Products:       products,
			Variants:       variants,
			SaleStore:      saleStore,
			Sales:          engine,
			Orders:         orderSvc,
			Settings:       settings,
			StockMovements: store.NewStockMovementStore(db),
			Catalog:        catalog,
		}),
	}
}

// fixture is a live category with one live product and its variants.
type fixture struct {
	Category *models.Category
	Product  *models.Product
	Variants []*models.Variant
}

// newFixture creates a throwaway catalog. Everything, including baskets
// and orders that reference it, is removed when the test ends.
func (e *testEnv) newFixture(t *testing.T, price string, stocks ...int) *fixture {
	t.Helper()

	cat, err := e.Categories.Create(&models.Category{
		Title: "Test " + uuid.NewString()[:8],
		Body:  "Test *category*",
		Index: 100,
		Live:  true,
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	prod, err := e.Products.Create(&models.Product{
		CategoryID:  cat.ID,
		Name:        "Tee",
		Description: "A **soft** tee",
		Price:       decimal.RequireFromString(price),
		Index:       100,
		Live:        true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	prod.CategoryTitle = cat.Title

	f := &fixture{Category: cat, Product: prod}
	for i, stock := range stocks {
		size := []string{"S", "M", "L", "XL"}[i%4]
		v, err := e.Variants.Create(&models.Variant{ProductID: prod.ID, Size: &size, Stock: stock, Live: true, SortOrder: i})
		if err != nil {
			t.Fatalf("create variant: %v", err)
		}
		f.Variants = append(f.Variants, v)
	}

	t.Cleanup(func() {
		for _, v := range f.Variants {
			e.DB.Exec(`DELETE FROM baskets WHERE id IN (SELECT basket_id FROM basket_items WHERE variant_id = $1)`, v.ID)
			e.DB.Exec(`DELETE FROM orders WHERE id IN (SELECT order_id FROM order_items WHERE variant_id = $1)`, v.ID)
		}
		e.DB.Exec("DELETE FROM categories WHERE id = $1", cat.ID)
	})
	return f
}

// stockOf reads a variant's current stock.
func (e *testEnv) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var stock int
	if err := e.DB.QueryRow(`SELECT stock FROM variants WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

// client replays cookies across requests like a browser would.
type client struct {
	cookies map[string]*http.Cookie
}

func newClient() *client {
	return &client{cookies: make(map[string]*http.Cookie)}
}

// do sends req to h with the stored cookies and keeps any cookies set
// by the response.
func (c *client) do(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

// session returns the session data behind the stored cookie.
func (c *client) session(t *testing.T, e *testEnv) *session.Data {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	data, err := e.Sessions.Get(req.Context(), req)
	if err != nil {
		t.Fatalf("session get: %v", err)
	}
	return data
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeBody unmarshals a JSON response.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// testSession creates a session.Data for testing.
func testSession(userID uuid.UUID, email, role string, twoFADone bool) *session.Data {
	return &session.Data{
		UserID:      userID,
		Email:       email,
		DisplayName: "Test User",
		Role:        role,
		TwoFADone:   twoFADone,
	}
}

// withURLParams adds chi URL parameters (key, value pairs) to a request.
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withSession adds session data to a request using the middleware key.
func withSession(r *http.Request, sess *session.Data) *http.Request {
	return r.WithContext(middleware.WithSession(r.Context(), sess))
}
