// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly identifiers from arbitrary strings.
// Product identifiers in basket and order read models are built with it.
package slug

import (
	"regexp"
	"strings"
)

var (
	// nonWord matches anything that isn't a word character, space or hyphen.
	nonWord = regexp.MustCompile(`[^\w\s-]`)
	// separators collapses runs of hyphens and whitespace into one hyphen.
	separators = regexp.MustCompile(`[-\s]+`)
)

// Generate creates a URL-friendly slug from the given string.
// Example: "Clothing-T-shirt (Black)" → "clothing-t-shirt-black"
func Generate(s string) string {
	result := strings.ToLower(s)
	result = nonWord.ReplaceAllString(result, "")
	result = separators.ReplaceAllString(result, "-")
	return strings.Trim(result, "-_")
}
