// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category groups products on the shop page.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"` // Markdown
	Index     int       `json:"index"`
	Live      bool      `json:"live"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Virtual fields populated by store methods.
	LiveProducts  int `json:"live_products"`
	TotalProducts int `json:"total_products"`
}

// ProductCount returns the admin list label, e.g. "2 live (3 total)".
func (c *Category) ProductCount() string {
	return CountLabel(c.LiveProducts, c.TotalProducts)
}

// CountLabel formats a live/total pair the way admin listings show them.
func CountLabel(live, total int) string {
	return fmt.Sprintf("%d live (%d total)", live, total)
}
