// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Banner defaults for new sales.
const (
	DefaultBannerTitle   = "Sale now on!"
	DefaultBannerContent = "Discounts available across the shop."
	DefaultDiscount      = 10
)

// Sale is a time-boxed set of category and product discounts. At most one
// sale may cover any moment in time.
type Sale struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	BannerTitle      string    `json:"banner_title"`
	BannerContent    string    `json:"banner_content"`
	BannerIncludeEnd bool      `json:"banner_include_end"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	CreatedAt        time.Time `json:"created_at"`

	Categories []SaleCategory `json:"categories"`
	Products   []SaleProduct  `json:"products"`
}

// SaleCategory applies a percentage discount to a whole category.
type SaleCategory struct {
	ID         uuid.UUID `json:"id"`
	SaleID     uuid.UUID `json:"sale_id"`
	CategoryID uuid.UUID `json:"category_id"`
	Discount   int       `json:"discount"`
}

// SaleProduct applies a percentage discount to one product, overriding its
// category's discount. A discount of 0 takes the product out of the sale.
type SaleProduct struct {
	ID        uuid.UUID `json:"id"`
	SaleID    uuid.UUID `json:"sale_id"`
	ProductID uuid.UUID `json:"product_id"`
	Discount  int       `json:"discount"`
}

// String renders the sale as "Summer (01Jul26 - 31Jul26)".
func (s *Sale) String() string {
	return fmt.Sprintf("%s (%s - %s)", s.Name,
		s.StartDate.Format("02Jan06"), s.EndDate.Format("02Jan06"))
}

// Overlaps reports whether the closed range [start, end] intersects the
// sale's own closed range.
func (s *Sale) Overlaps(start, end time.Time) bool {
	return !s.EndDate.Before(start) && !s.StartDate.After(end)
}

// ActiveAt reports whether now falls within [StartDate, EndDate).
func (s *Sale) ActiveAt(now time.Time) bool {
	return !now.Before(s.StartDate) && now.Before(s.EndDate)
}

// HasItems reports whether any category or product is discounted.
func (s *Sale) HasItems() bool {
	return len(s.Categories) > 0 || len(s.Products) > 0
}
