// Package router sets up all HTTP routes and middleware chains for the
// pipshop storefront. It organizes routes into the public shop and the
// staff admin groups with appropriate middleware stacks.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pipshop/internal/handlers"
	"pipshop/internal/middleware"
	"pipshop/internal/session"
)

// Deps is everything the router mounts.
type Deps struct {
	Sessions *session.Store
	Shop     *handlers.Shop
	Basket   *handlers.Basket
	Checkout *handlers.Checkout
	Auth     *handlers.Auth
	Admin    *handlers.Admin

	// Sweeper clears expired baskets on shop requests.
	Sweeper middleware.ExpirySweeper
	// AuthLimiter throttles login and 2FA attempts. Optional.
	AuthLimiter *middleware.RateLimiter
	// ShopLimiter throttles basket adds and checkout submissions. Optional.
	ShopLimiter *middleware.RateLimiter

	// GatewayEnabled mounts the hosted gateway webhook and return routes.
	GatewayEnabled bool
	// SecureCookies marks the CSRF cookie Secure.
	SecureCookies bool
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(d.Sessions))

	r.Get("/health", healthHandler)

	r.Route("/shop", func(r chi.Router) {
		r.Use(middleware.ClearExpiredBaskets(d.Sweeper))

		// Catalog
		r.Get("/categories", d.Shop.Categories)
		r.Get("/categories/{id}", d.Shop.Category)
		r.Get("/products/{id}", d.Shop.Product)
		r.Get("/search", d.Shop.Search)
		r.Get("/sale", d.Shop.Sale)
		r.Get("/quantity/inc/{variantID}", d.Shop.QuantityIncrease)
		r.Get("/quantity/dec/{variantID}", d.Shop.QuantityDecrease)

		// Basket, checkout and orders carry per-customer data.
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Route("/basket", func(r chi.Router) {
				r.Get("/", d.Basket.Get)
				r.With(limit(d.ShopLimiter)).Post("/add/{variantID}", d.Basket.Add)
				r.Post("/update/{ref}", d.Basket.Update)
				r.Post("/delete/{ref}", d.Basket.Delete)
				r.Post("/shipping", d.Basket.Shipping)
			})

			r.Get("/checkout/methods", d.Checkout.Methods)
			r.With(limit(d.ShopLimiter)).Post("/checkout", d.Checkout.Submit)
			r.Get("/order/{token}/", d.Checkout.Order)
			r.Get("/order/{token}/new/", d.Checkout.NewOrder)

			if d.GatewayEnabled {
				r.Get("/payment/gateway/return", d.Checkout.GatewayReturn)
				r.Post("/payment/gateway/webhook", d.Checkout.GatewayWebhook)
			}
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.NoStore)

		// Auth endpoints, protected by the double-submit CSRF cookie.
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRF(d.SecureCookies))

			r.Get("/login", d.Auth.LoginState)
			r.With(limit(d.AuthLimiter)).Post("/login", d.Auth.Login)
			r.Post("/logout", d.Auth.Logout)

			// 2FA requires a session but NOT completed 2FA.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/2fa/setup", d.Auth.TwoFASetup)
				r.With(limit(d.AuthLimiter)).Post("/2fa/verify", d.Auth.TwoFAVerify)
			})
		})

		// Authenticated + 2FA-verified JSON API.
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", d.Admin.CategoriesList)
				r.Post("/", d.Admin.CategoryCreate)
				r.Get("/{id}", d.Admin.CategoryGet)
				r.Put("/{id}", d.Admin.CategoryUpdate)
				r.Delete("/{id}", d.Admin.CategoryDelete)
				r.Get("/{id}/products", d.Admin.ProductsList)
			})

			r.Route("/products", func(r chi.Router) {
				r.Post("/", d.Admin.ProductCreate)
				r.Get("/{id}", d.Admin.ProductGet)
				r.Put("/{id}", d.Admin.ProductUpdate)
				r.Delete("/{id}", d.Admin.ProductDelete)
				r.Post("/{id}/image", d.Admin.ProductImage)
				r.Get("/{id}/variants", d.Admin.VariantsList)
				r.Post("/{id}/variants", d.Admin.VariantCreate)
			})

			r.Route("/variants", func(r chi.Router) {
				r.Get("/{id}", d.Admin.VariantGet)
				r.Put("/{id}", d.Admin.VariantUpdate)
				r.Delete("/{id}", d.Admin.VariantDelete)
				r.Post("/{id}/image", d.Admin.VariantImage)
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", d.Admin.SalesList)
				r.Post("/", d.Admin.SaleCreate)
				r.Get("/{id}", d.Admin.SaleGet)
				r.Put("/{id}", d.Admin.SaleUpdate)
				r.Delete("/{id}", d.Admin.SaleDelete)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", d.Admin.OrdersList)
				r.Get("/{id}", d.Admin.OrderGet)
				r.Post("/{id}/status", d.Admin.OrderStatus)
				r.Post("/{id}/payments", d.Admin.OrderPayment)
				r.Post("/{id}/notes", d.Admin.OrderNote)
			})

			r.Get("/stock-movements", d.Admin.StockMovements)

			// Settings changes are admin only.
			r.Get("/settings", d.Admin.Settings)
			r.With(middleware.RequireAdmin).Put("/settings", d.Admin.SettingsUpdate)
		})
	})

	return r
}

// limit returns the limiter middleware, or a pass-through when rl is nil.
func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
