// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package payment holds the checkout payment methods. A method receives a
// priced basket with the customer's details in its extra data and returns
// the URL the customer should go to next.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

// ErrUnknownMethod is returned for payment method identifiers that are not
// enabled.
var ErrUnknownMethod = errors.New("unknown payment method")

// Method is a way to pay for a basket.
type Method interface {
	Identifier() string
	Label() string
	Help() string
	Button() string
	// Checkout starts payment for b and returns the next URL.
	Checkout(ctx context.Context, b *models.Basket) (string, error)
}

// Info describes a method to the checkout form.
type Info struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Help       string `json:"help"`
	Button     string `json:"button"`
}

// Registry holds the enabled methods in configured order.
type Registry struct {
	methods []Method
	byID    map[string]Method
}

// NewRegistry enables the methods named in enabled, picked from
// available. Naming a method that is not available is an error.
func NewRegistry(enabled []string, available ...Method) (*Registry, error) {
	all := make(map[string]Method, len(available))
	for _, m := range available {
		all[m.Identifier()] = m
	}
	r := &Registry{byID: make(map[string]Method, len(enabled))}
	for _, id := range enabled {
		m, ok := all[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, id)
		}
		if _, dup := r.byID[id]; dup {
			continue
		}
		r.methods = append(r.methods, m)
		r.byID[id] = m
	}
	return r, nil
}

// Get returns the enabled method with the given identifier.
func (r *Registry) Get(id string) (Method, error) {
	m, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, id)
	}
	return m, nil
}

// Has reports whether id is enabled.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// List describes every enabled method.
func (r *Registry) List() []Info {
	out := make([]Info, len(r.methods))
	for i, m := range r.methods {
		out[i] = Info{Identifier: m.Identifier(), Label: m.Label(), Help: m.Help(), Button: m.Button()}
	}
	return out
}

// Orders creates orders from baskets and records payments.
// *orders.Service satisfies it.
type Orders interface {
	CreateFromBasket(ctx context.Context, b *models.Basket, status models.OrderStatus) (*models.Order, error)
}

// Baskets is the basket service as used by payment methods.
// *basket.Service satisfies it.
type Baskets interface {
	Get(id uuid.UUID) (*models.Basket, error)
	Refresh(b *models.Basket) error
	Delete(id uuid.UUID) (bool, error)
}

// OrderURL is the customer status link for a freshly placed order.
func OrderURL(o *models.Order) string {
	return "/shop/order/" + o.Token + "/new/"
}
