// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pipshop/internal/basket"
	"pipshop/internal/cache"
	"pipshop/internal/markdown"
	"pipshop/internal/middleware"
	"pipshop/internal/models"
	"pipshop/internal/money"
	"pipshop/internal/sale"
	"pipshop/internal/session"
	"pipshop/internal/storage"
	"pipshop/internal/store"
)

// searchPageSize is the number of search results per page.
const searchPageSize = 10

// Shop groups the public catalog handlers. Catalog responses are cached in
// Valkey for a short time.
type Shop struct {
	sessions   *session.Store
	categories *store.CategoryStore
	products   *store.ProductStore
	sales      *sale.Engine
	baskets    *basket.Service
	catalog    *cache.CatalogCache
	storage    *storage.Client
}

// NewShop creates the Shop handler group. catalog and storageClient may be
// nil.
func NewShop(sessions *session.Store, categories *store.CategoryStore, products *store.ProductStore, sales *sale.Engine, baskets *basket.Service, catalog *cache.CatalogCache, storageClient *storage.Client) *Shop {
	return &Shop{
		sessions:   sessions,
		categories: categories,
		products:   products,
		sales:      sales,
		baskets:    baskets,
		catalog:    catalog,
		storage:    storageClient,
	}
}

type categoryView struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title"`
	Body         string        `json:"body_html,omitempty"`
	LiveProducts int           `json:"live_products"`
	Products     []productView `json:"products,omitempty"`
}

type productView struct {
	ID          uuid.UUID     `json:"id"`
	CategoryID  uuid.UUID     `json:"category_id"`
	Identifier  string        `json:"identifier"`
	Name        string        `json:"name"`
	Description string        `json:"description_html"`
	Price       string        `json:"price"`
	Images      []string      `json:"images"`
	OutOfStock  bool          `json:"out_of_stock"`
	Variants    []variantView `json:"variants"`
}

type variantView struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Price           string    `json:"price"`
	DiscountedPrice *string   `json:"discounted_price"`
	Discount        int       `json:"discount,omitempty"`
	NameAndPrice    string    `json:"name_and_price"`
	Stock           int       `json:"stock"`
	Image           string    `json:"image,omitempty"`
}

// imageURL resolves an object key, or "" without storage.
func (s *Shop) imageURL(key *string) string {
	if key == nil || *key == "" || s.storage == nil {
		return ""
	}
	return s.storage.FileURL(*key)
}

func (s *Shop) productView(p *models.Product, d sale.Discounts) productView {
	v := productView{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Identifier:  p.Identifier(),
		Name:        p.Name,
		Description: markdown.MustHTML(p.Description),
		Price:       money.String(p.Price),
		Images:      []string{},
		OutOfStock:  p.OutOfStock(),
		Variants:    []variantView{},
	}
	for _, key := range p.Images() {
		if url := s.imageURL(&key); url != "" {
			v.Images = append(v.Images, url)
		}
	}
	for _, variant := range p.LiveVariants() {
		v.Variants = append(v.Variants, s.variantView(&variant, d))
	}
	return v
}

func (s *Shop) variantView(v *models.Variant, d sale.Discounts) variantView {
	out := variantView{
		ID:           v.ID,
		Name:         v.Name(),
		FullName:     v.FullName(),
		Price:        money.String(v.UnitPrice()),
		NameAndPrice: d.NameAndPrice(v),
		Stock:        v.Stock,
		Image:        s.imageURL(v.ImageKey),
	}
	if price, ok := d.Price(v); ok {
		str := money.String(price)
		out.DiscountedPrice = &str
		item, _ := d.Item(v)
		out.Discount = item.Discount
	}
	return out
}

// serveCached serves r from the catalog cache, or builds, caches and serves
// it. Only 200 responses are cached. A cached body is passed through fresh
// before it is served so figures that move between invalidations, such as
// stock, are never stale.
func serveCached[T any](s *Shop, w http.ResponseWriter, r *http.Request, build func() (T, int, error), fresh func(*T) error) {
	key := r.URL.Path + "?" + r.URL.RawQuery
	if body, ok := s.catalog.Get(r.Context(), key); ok {
		var data T
		if err := json.Unmarshal(body, &data); err != nil {
			slog.Warn("discarding unreadable catalog entry", "key", key, "error", err)
		} else {
			if fresh != nil {
				if err := fresh(&data); err != nil {
					slog.Error("refresh catalog response failed", "path", r.URL.Path, "error", err)
					writeError(w, http.StatusInternalServerError, "internal server error")
					return
				}
			}
			writeJSON(w, http.StatusOK, data)
			return
		}
	}

	data, status, err := build()
	if err != nil {
		slog.Error("catalog request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if status != http.StatusOK {
		writeError(w, status, http.StatusText(status))
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		slog.Error("encode catalog response", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.catalog.Set(r.Context(), key, buf.Bytes())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(buf.Bytes())
}

// withLiveStock overwrites the stock figures of views with current levels.
func (s *Shop) withLiveStock(views []productView) error {
	ids := make([]uuid.UUID, len(views))
	for i := range views {
		ids[i] = views[i].ID
	}
	levels, err := s.products.StockLevels(ids)
	if err != nil {
		return err
	}
	for i := range views {
		stocks := levels[views[i].ID]
		total := 0
		for _, n := range stocks {
			total += n
		}
		views[i].OutOfStock = len(stocks) == 0 || total <= 0
		for j := range views[i].Variants {
			views[i].Variants[j].Stock = stocks[views[i].Variants[j].ID]
		}
	}
	return nil
}

// Categories lists live categories with their live product counts.
func (s *Shop) Categories(w http.ResponseWriter, r *http.Request) {
	serveCached(s, w, r, func() ([]categoryView, int, error) {
		items, err := s.categories.List(true)
		if err != nil {
			return nil, 0, err
		}
		out := make([]categoryView, 0, len(items))
		for _, c := range items {
			out = append(out, categoryView{ID: c.ID, Title: c.Title, LiveProducts: c.LiveProducts})
		}
		return out, http.StatusOK, nil
	}, nil)
}

// Category returns a live category and its live products.
func (s *Shop) Category(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	serveCached(s, w, r, func() (categoryView, int, error) {
		c, err := s.categories.FindByID(id)
		if err != nil {
			return categoryView{}, 0, err
		}
		if c == nil || !c.Live {
			return categoryView{}, http.StatusNotFound, nil
		}
		products, err := s.products.LiveByCategory(id)
		if err != nil {
			return categoryView{}, 0, err
		}
		d, err := s.sales.Discounts()
		if err != nil {
			return categoryView{}, 0, err
		}
		view := categoryView{
			ID:           c.ID,
			Title:        c.Title,
			Body:         markdown.MustHTML(c.Body),
			LiveProducts: c.LiveProducts,
			Products:     make([]productView, 0, len(products)),
		}
		for i := range products {
			view.Products = append(view.Products, s.productView(&products[i], d))
		}
		return view, http.StatusOK, nil
	}, func(view *categoryView) error {
		return s.withLiveStock(view.Products)
	})
}

// Product returns one live product with its live variants.
func (s *Shop) Product(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	serveCached(s, w, r, func() (productView, int, error) {
		p, err := s.products.FindByID(id)
		if err != nil {
			return productView{}, 0, err
		}
		if p == nil || !p.Live || len(p.LiveVariants()) == 0 {
			return productView{}, http.StatusNotFound, nil
		}
		d, err := s.sales.Discounts()
		if err != nil {
			return productView{}, 0, err
		}
		return s.productView(p, d), http.StatusOK, nil
	}, func(view *productView) error {
		views := []productView{*view}
		if err := s.withLiveStock(views); err != nil {
			return err
		}
		*view = views[0]
		return nil
	})
}

type searchResponse struct {
	Query   string        `json:"query"`
	Page    int           `json:"page"`
	Pages   int           `json:"pages"`
	Total   int           `json:"total"`
	Results []productView `json:"results"`
}

// Search finds live products by name, ten per page.
func (s *Shop) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	page := intQuery(r, "page", 1)

	resp := searchResponse{Query: query, Page: page, Results: []productView{}}
	if query == "" {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	items, total, err := s.products.Search(query, searchPageSize, (page-1)*searchPageSize)
	if err != nil {
		slog.Error("product search failed", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	d, err := s.sales.Discounts()
	if err != nil {
		slog.Error("load sale failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp.Total = total
	resp.Pages = (total + searchPageSize - 1) / searchPageSize
	for i := range items {
		resp.Results = append(resp.Results, s.productView(&items[i], d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sale returns the running sale's banner, or null.
func (s *Shop) Sale(w http.ResponseWriter, r *http.Request) {
	current, err := s.sales.Current()
	if err != nil {
		slog.Error("load sale failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, sale.BannerFor(current))
}

// QuantityIncrease steps a quantity selector up when stock allows. With
// ref=basket the check counts what the shopper's basket already holds.
func (s *Shop) QuantityIncrease(w http.ResponseWriter, r *http.Request) {
	variantID, ok := idParam(r, "variantID")
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	quantity := intQuery(r, "quantity", 1)

	basketID := uuid.Nil
	if r.URL.Query().Get("ref") == "basket" {
		if sess := middleware.SessionFromCtx(r.Context()); sess != nil {
			basketID = sess.BasketID
		}
	}

	step, err := s.baskets.Increase(variantID, quantity, basketID)
	if errors.Is(err, basket.ErrVariantNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		slog.Error("quantity increase failed", "variant", variantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeStep(w, step)
}

// QuantityDecrease steps a quantity selector down, never below 1.
func (s *Shop) QuantityDecrease(w http.ResponseWriter, r *http.Request) {
	if _, ok := idParam(r, "variantID"); !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeStep(w, basket.Decrease(intQuery(r, "quantity", 1)))
}

func writeStep(w http.ResponseWriter, step basket.Step) {
	if step.Changed {
		w.Header().Set("HX-Trigger", "quantity-changed")
	}
	writeJSON(w, http.StatusOK, step)
}

// chiParam is a shorthand used by handlers that take a raw string param.
func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
