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

	"pipshop/internal/cache"
	"pipshop/internal/models"
	"pipshop/internal/orders"
	"pipshop/internal/sale"
	"pipshop/internal/storage"
	"pipshop/internal/store"
)

// Admin groups the staff JSON API handlers and their dependencies.
type Admin struct {
	categories *store.CategoryStore
	products   *store.ProductStore
	variants   *store.VariantStore
	saleStore  *store.SaleStore
	sales      *sale.Engine
	orders     *orders.Service
	settings   *store.ShopSettingStore
	stock      *store.StockMovementStore
	storage    *storage.Client
	catalog    *cache.CatalogCache
}

// AdminDeps lists what the admin API needs. Storage and Catalog may be nil.
type AdminDeps struct {
	Categories     *store.CategoryStore
	Products       *store.ProductStore
	Variants       *store.VariantStore
	SaleStore      *store.SaleStore
	Sales          *sale.Engine
	Orders         *orders.Service
	Settings       *store.ShopSettingStore
	StockMovements *store.StockMovementStore
	Storage        *storage.Client
	Catalog        *cache.CatalogCache
}

// NewAdmin creates a new Admin handler group.
func NewAdmin(d AdminDeps) *Admin {
	return &Admin{
		categories: d.Categories,
		products:   d.Products,
		variants:   d.Variants,
		saleStore:  d.SaleStore,
		sales:      d.Sales,
		orders:     d.Orders,
		settings:   d.Settings,
		stock:      d.StockMovements,
		storage:    d.Storage,
		catalog:    d.Catalog,
	}
}

// serverError logs err and sends a generic 500.
func serverError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// writeStoreError maps a failed store mutation to 404 or 500.
func writeStoreError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	serverError(w, what+" write failed", err)
}

// --- Categories ---

type categoryInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Index int    `json:"index"`
	Live  bool   `json:"live"`
}

type adminCategory struct {
	models.Category
	ProductCount string `json:"product_count"`
}

// CategoriesList returns every category with its product count label.
func (a *Admin) CategoriesList(w http.ResponseWriter, r *http.Request) {
	items, err := a.categories.List(false)
	if err != nil {
		serverError(w, "list categories failed", err)
		return
	}
	out := make([]adminCategory, 0, len(items))
	for _, c := range items {
		out = append(out, adminCategory{Category: c, ProductCount: c.ProductCount()})
	}
	writeJSON(w, http.StatusOK, out)
}

// CategoryCreate adds a category.
func (a *Admin) CategoryCreate(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateCategory(in.Title, in.Body); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	c, err := a.categories.Create(&models.Category{
		Title: strings.TrimSpace(in.Title),
		Body:  in.Body,
		Index: in.Index,
		Live:  in.Live,
	})
	if err != nil {
		serverError(w, "create category failed", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	writeJSON(w, http.StatusCreated, adminCategory{Category: *c, ProductCount: c.ProductCount()})
}

// CategoryGet returns one category.
func (a *Admin) CategoryGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	c, err := a.categories.FindByID(id)
	if err != nil {
		serverError(w, "find category failed", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, adminCategory{Category: *c, ProductCount: c.ProductCount()})
}

// CategoryUpdate saves a category.
func (a *Admin) CategoryUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	var in categoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateCategory(in.Title, in.Body); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	c := &models.Category{ID: id, Title: strings.TrimSpace(in.Title), Body: in.Body, Index: in.Index, Live: in.Live}
	if err := a.categories.Update(c); err != nil {
		writeStoreError(w, "category", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	a.CategoryGet(w, r)
}

// CategoryDelete removes a category and its products.
func (a *Admin) CategoryDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	if err := a.categories.Delete(id); err != nil {
		serverError(w, "delete category failed", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// --- Products ---

type productInput struct {
	CategoryID  uuid.UUID       `json:"category_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Index       int             `json:"index"`
	Live        bool            `json:"live"`
}

type adminProduct struct {
	models.Product
	Identifier   string `json:"identifier"`
	VariantCount string `json:"variant_count"`
	OutOfStock   bool   `json:"out_of_stock"`
}

func toAdminProduct(p *models.Product) adminProduct {
	return adminProduct{
		Product:      *p,
		Identifier:   p.Identifier(),
		VariantCount: p.VariantCount(),
		OutOfStock:   p.OutOfStock(),
	}
}

func (in *productInput) product(id uuid.UUID) *models.Product {
	return &models.Product{
		ID:          id,
		CategoryID:  in.CategoryID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Index:       in.Index,
		Live:        in.Live,
	}
}

// ProductsList returns every product of a category.
func (a *Admin) ProductsList(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	items, err := a.products.ListByCategory(id)
	if err != nil {
		serverError(w, "list products failed", err)
		return
	}
	out := make([]adminProduct, 0, len(items))
	for i := range items {
		out = append(out, toAdminProduct(&items[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// ProductCreate adds a product.
func (a *Admin) ProductCreate(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateProduct(in.Name, in.Description, in.Price); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if c, err := a.categories.FindByID(in.CategoryID); err != nil || c == nil {
		writeError(w, http.StatusBadRequest, "Select a valid category.")
		return
	}
	p, err := a.products.Create(in.product(uuid.Nil))
	if err != nil {
		serverError(w, "create product failed", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	writeJSON(w, http.StatusCreated, toAdminProduct(p))
}

// ProductGet returns one product with all its variants.
func (a *Admin) ProductGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	p, err := a.products.FindByID(id)
	if err != nil {
		serverError(w, "find product failed", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, toAdminProduct(p))
}

// ProductUpdate saves a product.
func (a *Admin) ProductUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	var in productInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateProduct(in.Name, in.Description, in.Price); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if c, err := a.categories.FindByID(in.CategoryID); err != nil || c == nil {
		writeError(w, http.StatusBadRequest, "Select a valid category.")
		return
	}
	if err := a.products.Update(in.product(id)); err != nil {
		writeStoreError(w, "product", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	a.ProductGet(w, r)
}

// ProductDelete removes a product and its variants.
func (a *Admin) ProductDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err := a.products.Delete(id); err != nil {
		serverError(w, "delete product failed", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// --- Variants ---

// defaultVariantStock is the stock of a new variant created without one.
const defaultVariantStock = 1

// variantInput is the variant create/update body. On update, stock moves
// only when "stock" or "stock_delta" is sent; "expected_stock" guards an
// absolute "stock" against reservations made since the form was loaded.
type variantInput struct {
	VariantName   *string             `json:"variant_name"`
	Colour        *string             `json:"colour"`
	Size          *string             `json:"size"`
	Price         decimal.NullDecimal `json:"price"`
	Stock         *int                `json:"stock"`
	ExpectedStock *int                `json:"expected_stock"`
	StockDelta    *int                `json:"stock_delta"`
	Live          *bool               `json:"live"`
	SortOrder     int                 `json:"sort_order"`
}

// variant builds the model; live falls back to the given value when the
// body leaves it out.
func (in *variantInput) variant(id, productID uuid.UUID, live bool) *models.Variant {
	if in.Live != nil {
		live = *in.Live
	}
	return &models.Variant{
		ID:          id,
		ProductID:   productID,
		VariantName: emptyToNil(in.VariantName),
		Colour:      emptyToNil(in.Colour),
		Size:        emptyToNil(in.Size),
		Price:       in.Price,
		Live:        live,
		SortOrder:   in.SortOrder,
	}
}

func (in *variantInput) stockEdit() (store.StockEdit, string) {
	if in.Stock != nil && in.StockDelta != nil {
		return store.StockEdit{}, "Send either stock or stock_delta, not both."
	}
	if in.ExpectedStock != nil && in.Stock == nil {
		return store.StockEdit{}, "expected_stock needs stock."
	}
	edit := store.StockEdit{Set: in.Stock, Expected: in.ExpectedStock}
	if in.StockDelta != nil {
		edit.Delta = *in.StockDelta
	}
	return edit, ""
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

type adminVariant struct {
	models.Variant
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

func toAdminVariant(v *models.Variant) adminVariant {
	return adminVariant{Variant: *v, Name: v.Name(), FullName: v.FullName()}
}

// VariantsList returns every variant of a product.
func (a *Admin) VariantsList(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	items, err := a.variants.ListByProduct(id)
	if err != nil {
		serverError(w, "list variants failed", err)
		return
	}
	out := make([]adminVariant, 0, len(items))
	for i := range items {
		out = append(out, toAdminVariant(&items[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// VariantCreate adds a variant to a product. Without a price it takes the
// product's price; stock defaults to 1 and live to true.
func (a *Admin) VariantCreate(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	var in variantInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateVariant(in.Price, in.VariantName, in.Colour, in.Size); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if p, err := a.products.FindByID(productID); err != nil || p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if in.StockDelta != nil || in.ExpectedStock != nil {
		writeError(w, http.StatusBadRequest, "A new variant takes stock only.")
		return
	}
	nv := in.variant(uuid.Nil, productID, true)
	nv.Stock = defaultVariantStock
	if in.Stock != nil {
		nv.Stock = *in.Stock
	}
	v, err := a.variants.Create(nv)
	if err != nil {
		serverError(w, "create variant failed", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	writeJSON(w, http.StatusCreated, toAdminVariant(v))
}

// VariantGet returns one variant.
func (a *Admin) VariantGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	v, err := a.variants.FindByID(id)
	if err != nil {
		serverError(w, "find variant failed", err)
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	writeJSON(w, http.StatusOK, toAdminVariant(v))
}

// VariantUpdate saves a variant. Stock is left alone unless the body
// sets or adjusts it, and any change is recorded in the stock movement
// log.
func (a *Admin) VariantUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	var in variantInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateVariant(in.Price, in.VariantName, in.Colour, in.Size); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	edit, msg := in.stockEdit()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	current, err := a.variants.FindByID(id)
	if err != nil {
		serverError(w, "find variant failed", err)
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	err = a.variants.Update(in.variant(id, uuid.Nil, current.Live), edit)
	if errors.Is(err, store.ErrStockChanged) {
		writeError(w, http.StatusConflict, "Stock has changed since it was loaded.")
		return
	}
	if err != nil {
		writeStoreError(w, "variant", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	a.VariantGet(w, r)
}

// VariantDelete removes a variant.
func (a *Admin) VariantDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	if err := a.variants.Delete(id); err != nil {
		serverError(w, "delete variant failed", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
