package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pipshop/internal/basket"
	"pipshop/internal/models"
	"pipshop/internal/money"
	"pipshop/internal/session"
)

// Basket groups the shopper's basket handlers. The basket id lives in the
// visitor's session.
type Basket struct {
	sessions *session.Store
	baskets  *basket.Service
	now      func() time.Time
}

// NewBasket creates the Basket handler group.
func NewBasket(sessions *session.Store, baskets *basket.Service) *Basket {
	return &Basket{sessions: sessions, baskets: baskets, now: time.Now}
}

type basketItemView struct {
	Ref               string            `json:"ref"`
	VariantID         uuid.UUID         `json:"product_id"`
	ProductIdentifier string            `json:"product_identifier"`
	Name              string            `json:"name"`
	Quantity          int               `json:"quantity"`
	UnitPrice         string            `json:"unit_price"`
	Subtotal          string            `json:"subtotal"`
	Total             string            `json:"total"`
	ExtraRows         []models.ExtraRow `json:"extra_rows"`
}

type basketView struct {
	ID             uuid.UUID                   `json:"id"`
	ShippingMethod models.ShippingMethod       `json:"shipping_method"`
	Extra          map[string]any              `json:"extra"`
	ExtraRows      []models.ExtraRow           `json:"extra_rows"`
	Items          []basketItemView            `json:"items"`
	Groups         map[string][]basketItemView `json:"groups"`
	Subtotal       string                      `json:"subtotal"`
	Total          string                      `json:"total"`
	Timeout        *time.Time                  `json:"timeout"`
	TimeRemaining  string                      `json:"time_remaining"`
	Quantity       int                         `json:"quantity"`
}

func (h *Basket) view(b *models.Basket) basketView {
	v := basketView{
		ID:             b.ID,
		ShippingMethod: b.ShippingMethod,
		Extra:          b.Extra,
		ExtraRows:      b.ExtraRows,
		Items:          []basketItemView{},
		Groups:         map[string][]basketItemView{},
		Subtotal:       money.String(b.Subtotal),
		Total:          money.String(b.Total),
		Timeout:        b.Timeout,
		TimeRemaining:  b.TimeRemaining(h.now()),
		Quantity:       b.Quantity(),
	}
	if v.Extra == nil {
		v.Extra = map[string]any{}
	}
	if v.ExtraRows == nil {
		v.ExtraRows = []models.ExtraRow{}
	}
	for i := range b.Items {
		it := &b.Items[i]
		iv := basketItemView{
			Ref:       it.Ref(),
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: money.String(it.UnitPrice),
			Subtotal:  money.String(it.Subtotal),
			Total:     money.String(it.Total),
			ExtraRows: it.ExtraRows,
		}
		if iv.ExtraRows == nil {
			iv.ExtraRows = []models.ExtraRow{}
		}
		if it.Variant != nil {
			iv.Name = it.Variant.Name()
			iv.ProductIdentifier = it.Variant.ProductIdentifier()
		}
		v.Items = append(v.Items, iv)
		v.Groups[iv.ProductIdentifier] = append(v.Groups[iv.ProductIdentifier], iv)
	}
	return v
}

// current returns the shopper's basket, creating it (and the session) on
// first use.
func (h *Basket) current(w http.ResponseWriter, r *http.Request) (*models.Basket, error) {
	ctx := r.Context()
	sess, sid, err := h.sessions.Load(ctx, w, r)
	if err != nil {
		return nil, err
	}
	b, created, err := h.baskets.GetOrCreate(sess.BasketID)
	if err != nil {
		return nil, err
	}
	if created || sess.BasketID != b.ID {
		sess.BasketID = b.ID
		if err := h.sessions.Save(ctx, sid, sess); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// existing returns the shopper's basket without creating one. It is nil
// when there is none.
func (h *Basket) existing(w http.ResponseWriter, r *http.Request) (*models.Basket, error) {
	sess, _, err := h.sessions.Load(r.Context(), w, r)
	if err != nil {
		return nil, err
	}
	if sess.BasketID == uuid.Nil {
		return nil, nil
	}
	return h.baskets.Get(sess.BasketID)
}

// writeBasketError maps basket errors to responses.
func writeBasketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, basket.ErrNotAvailable):
		writeError(w, http.StatusConflict, basket.ErrNotAvailable.Error())
	case errors.Is(err, basket.ErrNothingToUpdate):
		writeError(w, http.StatusBadRequest, basket.ErrNothingToUpdate.Error())
	case errors.Is(err, basket.ErrVariantNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, basket.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "basket item not found")
	case errors.Is(err, basket.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid quantity")
	default:
		slog.Error("basket request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Get returns the shopper's basket.
func (h *Basket) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.current(w, r)
	if err != nil {
		writeBasketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(b))
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

// Add puts a variant into the basket. Quantity defaults to 1.
func (h *Basket) Add(w http.ResponseWriter, r *http.Request) {
	variantID, ok := idParam(r, "variantID")
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	b, err := h.current(w, r)
	if err != nil {
		writeBasketError(w, err)
		return
	}
	b, err = h.baskets.Add(b.ID, variantID, quantity)
	if err != nil {
		writeBasketError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(b))
}

// Update sets an item's quantity. A quantity of 0 removes the item.
func (h *Basket) Update(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	b, err := h.existing(w, r)
	if err != nil {
		writeBasketError(w, err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "basket not found")
		return
	}
	b, err = h.baskets.Update(b.ID, chiParam(r, "ref"), *req.Quantity)
	if err != nil {
		writeBasketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(b))
}

// Delete removes an item from the basket.
func (h *Basket) Delete(w http.ResponseWriter, r *http.Request) {
	b, err := h.existing(w, r)
	if err != nil {
		writeBasketError(w, err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "basket not found")
		return
	}
	b, err = h.baskets.Remove(b.ID, chiParam(r, "ref"))
	if err != nil {
		writeBasketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(b))
}

// Shipping changes the basket's shipping method.
func (h *Basket) Shipping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingMethod models.ShippingMethod `json:"shipping_method"`
	}
	if err := decodeJSON(w, r, &req); err != nil || !req.ShippingMethod.Valid() {
		writeError(w, http.StatusBadRequest, "Select a valid shipping method")
		return
	}
	b, err := h.current(w, r)
	if err != nil {
		writeBasketError(w, err)
		return
	}
	b, err = h.baskets.SetShipping(b.ID, req.ShippingMethod)
	if err != nil {
		writeBasketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(b))
}
