// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShippingMethod is how the customer receives an order.
type ShippingMethod string

const (
	ShippingCollect ShippingMethod = "collect"
	ShippingDeliver ShippingMethod = "deliver"
)

// ShippingMethods lists the available methods in display order.
var ShippingMethods = []ShippingMethod{ShippingCollect, ShippingDeliver}

// Valid reports whether m is a known shipping method.
func (m ShippingMethod) Valid() bool {
	return m == ShippingCollect || m == ShippingDeliver
}

// Label returns the customer-facing name of the method.
func (m ShippingMethod) Label() string {
	switch m {
	case ShippingCollect:
		return "Collect in store"
	case ShippingDeliver:
		return "Delivery"
	}
	return string(m)
}

// ExtraRow is a line added to a basket or item by a pricing modifier,
// e.g. a shipping charge or a sale discount.
type ExtraRow struct {
	Modifier string          `json:"modifier"`
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount"`
	Extra    map[string]any  `json:"extra"`
}

// MarshalJSON renders the amount with exactly two decimals.
func (r ExtraRow) MarshalJSON() ([]byte, error) {
	extra := r.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	return json.Marshal(struct {
		Modifier string         `json:"modifier"`
		Label    string         `json:"label"`
		Amount   string         `json:"amount"`
		Extra    map[string]any `json:"extra"`
	}{r.Modifier, r.Label, r.Amount.StringFixed(2), extra})
}

// Basket holds a customer's items until checkout or expiry. It is keyed by
// the visitor's session.
type Basket struct {
	ID             uuid.UUID      `json:"id"`
	ShippingMethod ShippingMethod `json:"shipping_method"`
	Timeout        *time.Time     `json:"timeout"`
	Extra          map[string]any `json:"extra"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Items []BasketItem `json:"items"`

	// Computed by the pricing pipeline.
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
	ExtraRows []ExtraRow      `json:"extra_rows"`
}

// Quantity is the number of units across all items.
func (b *Basket) Quantity() int {
	n := 0
	for _, it := range b.Items {
		n += it.Quantity
	}
	return n
}

// Count is the number of distinct items.
func (b *Basket) Count() int {
	return len(b.Items)
}

// Item returns the item with the given ref, or nil.
func (b *Basket) Item(ref string) *BasketItem {
	for i := range b.Items {
		if b.Items[i].Ref() == ref {
			return &b.Items[i]
		}
	}
	return nil
}

// ExtraString returns a string value from Extra, or "".
func (b *Basket) ExtraString(key string) string {
	if v, ok := b.Extra[key].(string); ok {
		return v
	}
	return ""
}

// TimeRemaining formats the time left before the basket expires as
// "<m>m <s>s", never negative.
func (b *Basket) TimeRemaining(now time.Time) string {
	var left time.Duration
	if b.Timeout != nil {
		left = b.Timeout.Sub(now)
	}
	if left < 0 {
		left = 0
	}
	secs := int(left.Seconds())
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// BasketItem is a variant and quantity held in a basket.
type BasketItem struct {
	ID        uuid.UUID `json:"-"`
	BasketID  uuid.UUID `json:"-"`
	VariantID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Variant *Variant `json:"-"`

	// Computed by the pricing pipeline.
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
	ExtraRows []ExtraRow      `json:"extra_rows"`
}

// ItemRefPrefix prefixes every basket item ref.
const ItemRefPrefix = "variant-"

// Ref is the item's stable reference within its basket.
func (i *BasketItem) Ref() string {
	return ItemRef(i.VariantID)
}

// ItemRef builds the ref for a variant.
func ItemRef(variantID uuid.UUID) string {
	return ItemRefPrefix + variantID.String()
}

// ParseItemRef extracts the variant id from an item ref.
func ParseItemRef(ref string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(ref, ItemRefPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid item ref %q", ref)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid item ref %q: %w", ref, err)
	}
	return id, nil
}

// StockDelta is the change applied to a variant's stock when a basket
// item's quantity moves from old to new. New items have old = 0.
func StockDelta(old, new int) int {
	return old - new
}
