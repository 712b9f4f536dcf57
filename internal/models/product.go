// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pipshop/internal/slug"
)

// Product is an item for sale with a name and description. The things
// actually added to a basket are its Variants.
type Product struct {
	ID          uuid.UUID       `json:"id"`
	CategoryID  uuid.UUID       `json:"category_id"`
	Name        string          `json:"name"`
	ImageKey    *string         `json:"image_key"`
	Description string          `json:"description"` // Markdown
	Price       decimal.Decimal `json:"price"`
	Index       int             `json:"index"`
	Live        bool            `json:"live"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Populated by store methods.
	CategoryTitle string    `json:"category_title"`
	Variants      []Variant `json:"variants,omitempty"`
}

// Identifier is the stable key used to group basket and order items by
// product, e.g. "clothing-t-shirt".
func (p *Product) Identifier() string {
	return slug.Generate(p.CategoryTitle + "-" + p.Name)
}

// LiveVariants returns the variants that are shown in the shop.
func (p *Product) LiveVariants() []Variant {
	var out []Variant
	for _, v := range p.Variants {
		if v.Live {
			out = append(out, v)
		}
	}
	return out
}

// OutOfStock reports whether the product has no variants or its variants'
// combined stock is zero or less.
func (p *Product) OutOfStock() bool {
	if len(p.Variants) == 0 {
		return true
	}
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total <= 0
}

// Images returns the product image followed by each live variant's image,
// skipping empty keys and duplicates.
func (p *Product) Images() []string {
	var images []string
	seen := make(map[string]bool)
	add := func(key *string) {
		if key == nil || *key == "" || seen[*key] {
			return
		}
		seen[*key] = true
		images = append(images, *key)
	}
	add(p.ImageKey)
	for _, v := range p.LiveVariants() {
		add(v.ImageKey)
	}
	return images
}

// VariantCount returns the admin list label for the product's variants.
func (p *Product) VariantCount() string {
	return CountLabel(len(p.LiveVariants()), len(p.Variants))
}
