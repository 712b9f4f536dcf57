package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"pipshop/internal/models"
	"pipshop/internal/sale"
)

type saleItemInput struct {
	CategoryID uuid.UUID `json:"category_id"`
	ProductID  uuid.UUID `json:"product_id"`
	Discount   *int      `json:"discount"`
}

type saleInput struct {
	Name             string          `json:"name"`
	BannerTitle      string          `json:"banner_title"`
	BannerContent    string          `json:"banner_content"`
	BannerIncludeEnd bool            `json:"banner_include_end"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Categories       []saleItemInput `json:"categories"`
	Products         []saleItemInput `json:"products"`
}

func discountOrDefault(d *int) int {
	if d == nil {
		return models.DefaultDiscount
	}
	return *d
}

// sale converts the input, filling the banner defaults when left blank.
func (in *saleInput) sale(id uuid.UUID) *models.Sale {
	s := &models.Sale{
		ID:               id,
		Name:             strings.TrimSpace(in.Name),
		BannerTitle:      strings.TrimSpace(in.BannerTitle),
		BannerContent:    strings.TrimSpace(in.BannerContent),
		BannerIncludeEnd: in.BannerIncludeEnd,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
	}
	if s.BannerTitle == "" {
		s.BannerTitle = models.DefaultBannerTitle
	}
	if s.BannerContent == "" {
		s.BannerContent = models.DefaultBannerContent
	}
	for _, c := range in.Categories {
		s.Categories = append(s.Categories, models.SaleCategory{
			CategoryID: c.CategoryID,
			Discount:   discountOrDefault(c.Discount),
		})
	}
	for _, p := range in.Products {
		s.Products = append(s.Products, models.SaleProduct{
			ProductID: p.ProductID,
			Discount:  discountOrDefault(p.Discount),
		})
	}
	return s
}

func writeSaleError(w http.ResponseWriter, err error) {
	var ve *sale.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusUnprocessableEntity, ve.Message)
		return
	}
	writeStoreError(w, "sale", err)
}

// SalesList returns all sales, most recent first.
func (a *Admin) SalesList(w http.ResponseWriter, r *http.Request) {
	items, err := a.saleStore.List()
	if err != nil {
		serverError(w, "list sales failed", err)
		return
	}
	if items == nil {
		items = []models.Sale{}
	}
	writeJSON(w, http.StatusOK, items)
}

// SaleCreate adds a sale. Sales may not overlap.
func (a *Admin) SaleCreate(w http.ResponseWriter, r *http.Request) {
	var in saleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s := in.sale(uuid.Nil)
	if err := a.sales.Create(s); err != nil {
		writeSaleError(w, err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	writeJSON(w, http.StatusCreated, s)
}

// SaleGet returns one sale with its discounts.
func (a *Admin) SaleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "sale not found")
		return
	}
	s, err := a.saleStore.FindByID(id)
	if err != nil {
		serverError(w, "find sale failed", err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "sale not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// SaleUpdate saves a sale and replaces its discounts.
func (a *Admin) SaleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "sale not found")
		return
	}
	var in saleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s := in.sale(id)
	if err := sale.Validate(s); err != nil {
		writeSaleError(w, err)
		return
	}
	if err := a.saleStore.Update(s); err != nil {
		writeSaleError(w, err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	a.SaleGet(w, r)
}

// SaleDelete removes a sale.
func (a *Admin) SaleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "sale not found")
		return
	}
	if err := a.saleStore.Delete(id); err != nil {
		serverError(w, "delete sale failed", err)
		return
	}
	a.catalog.InvalidateAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
