package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pipshop/internal/slug"
)

// Variant is a single purchasable item of a product, e.g. a black t-shirt
// in size M. Stock is decremented while the variant sits in a basket and
// may go negative.
type Variant struct {
	ID          uuid.UUID           `json:"id"`
	ProductID   uuid.UUID           `json:"product_id"`
	VariantName *string             `json:"variant_name"`
	Colour      *string             `json:"colour"`
	Size        *string             `json:"size"`
	Price       decimal.NullDecimal `json:"price"`
	Stock       int                 `json:"stock"`
	Live        bool                `json:"live"`
	ImageKey    *string             `json:"image_key"`
	SortOrder   int                 `json:"sort_order"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	// Populated by store methods from the parent product.
	ProductName   string          `json:"product_name"`
	ProductPrice  decimal.Decimal `json:"-"`
	CategoryID    uuid.UUID       `json:"category_id"`
	CategoryTitle string          `json:"-"`
}

// FullName joins the variant's name, colour and size, e.g.
// "Men's - Black, M". It is empty when none are set.
func (v *Variant) FullName() string {
	name := deref(v.VariantName)
	colour, size := deref(v.Colour), deref(v.Size)
	if name != "" && (colour != "" || size != "") {
		name += " - "
	}
	if colour != "" {
		name += colour
		if size != "" {
			name += ", "
		}
	}
	return name + size
}

// Name is the display name used in baskets and orders.
func (v *Variant) Name() string {
	if full := v.FullName(); full != "" {
		return v.ProductName + " - " + full
	}
	return v.ProductName
}

// ProductIdentifier matches Product.Identifier for the parent product.
func (v *Variant) ProductIdentifier() string {
	return slug.Generate(v.CategoryTitle + "-" + v.ProductName)
}

// Code is the product code copied onto order items.
func (v *Variant) Code() string {
	return v.ID.String()
}

// UnitPrice returns the variant price, or the product price when the
// variant has none.
func (v *Variant) UnitPrice() decimal.Decimal {
	if v.Price.Valid {
		return v.Price.Decimal
	}
	return v.ProductPrice
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
