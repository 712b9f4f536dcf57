// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package pricing computes basket totals. A Pipeline runs an ordered list
// of modifiers that each contribute extra rows, such as a shipping charge
// or a sale discount, to items or to the basket as a whole.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pipshop/internal/models"
	"pipshop/internal/money"
	"pipshop/internal/sale"
)

// Context is the per-run input shared by all modifiers.
type Context struct {
	Discounts sale.Discounts
}

// Modifier is a named step in the pipeline. A modifier also implements
// ItemModifier, BasketModifier or both.
type Modifier interface {
	Identifier() string
}

// ItemModifier contributes at most one row per basket item.
type ItemModifier interface {
	Modifier
	ItemRow(ctx Context, b *models.Basket, item *models.BasketItem) (models.ExtraRow, bool)
}

// BasketModifier contributes at most one basket-level row.
type BasketModifier interface {
	Modifier
	BasketRow(ctx Context, b *models.Basket) (models.ExtraRow, bool)
}

// Pipeline applies modifiers in order.
type Pipeline struct {
	modifiers []Modifier
}

// NewPipeline returns a pipeline running modifiers in the given order.
func NewPipeline(modifiers ...Modifier) *Pipeline {
	return &Pipeline{modifiers: modifiers}
}

// Default returns the shop's standard pipeline: shipping cost, then sale
// discounts.
func Default(shipping decimal.Decimal) *Pipeline {
	return NewPipeline(ShippingCost{Amount: shipping}, SaleDiscount{})
}

// Identifiers lists the modifiers in run order.
func (p *Pipeline) Identifiers() []string {
	ids := make([]string, len(p.modifiers))
	for i, m := range p.modifiers {
		ids[i] = m.Identifier()
	}
	return ids
}

// Run recomputes every price, row and total on b. Rows from a previous run
// are discarded first, so running twice gives the same result.
func (p *Pipeline) Run(ctx Context, b *models.Basket) {
	b.ExtraRows = nil
	b.Subtotal = decimal.Zero
	b.Total = decimal.Zero

	for i := range b.Items {
		item := &b.Items[i]
		item.ExtraRows = nil
		if item.Variant != nil {
			item.UnitPrice = item.Variant.UnitPrice()
		}
		item.Subtotal = money.Quantize(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		item.Total = item.Subtotal

		for _, m := range p.modifiers {
			im, ok := m.(ItemModifier)
			if !ok {
				continue
			}
			if row, ok := im.ItemRow(ctx, b, item); ok {
				item.ExtraRows = append(item.ExtraRows, row)
				item.Total = item.Total.Add(row.Amount)
			}
		}

		b.Subtotal = b.Subtotal.Add(item.Subtotal)
		b.Total = b.Total.Add(item.Total)
	}

	for _, m := range p.modifiers {
		bm, ok := m.(BasketModifier)
		if !ok {
			continue
		}
		if row, ok := bm.BasketRow(ctx, b); ok {
			b.ExtraRows = append(b.ExtraRows, row)
			b.Total = b.Total.Add(row.Amount)
		}
	}
}

// ShippingCost charges a flat delivery fee on non-empty baskets that are
// not collected in store.
type ShippingCost struct {
	Amount decimal.Decimal
}

func (ShippingCost) Identifier() string { return "shipping-cost" }

func (s ShippingCost) BasketRow(_ Context, b *models.Basket) (models.ExtraRow, bool) {
	if b.ShippingMethod == models.ShippingCollect || len(b.Items) == 0 {
		return models.ExtraRow{}, false
	}
	return models.ExtraRow{
		Modifier: s.Identifier(),
		Label:    "Shipping",
		Amount:   money.Quantize(s.Amount),
	}, true
}

// SaleDiscount takes the running sale's discount off each item it covers.
type SaleDiscount struct{}

func (SaleDiscount) Identifier() string { return "sales-discount" }

func (s SaleDiscount) ItemRow(ctx Context, _ *models.Basket, item *models.BasketItem) (models.ExtraRow, bool) {
	if item.Variant == nil {
		return models.ExtraRow{}, false
	}
	si, ok := ctx.Discounts.Item(item.Variant)
	if !ok || si.Discount == 0 {
		return models.ExtraRow{}, false
	}
	return models.ExtraRow{
		Modifier: s.Identifier(),
		Label:    fmt.Sprintf("Sale: %d%% off", si.Discount),
		Amount:   money.Percent(item.Subtotal, si.Discount).Neg(),
		Extra:    map[string]any{"discount": si.Discount, "kind": si.Kind},
	}, true
}
