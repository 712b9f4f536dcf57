// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package basket is the customer-facing basket service. It sits on top of
// the basket ledger in the store package, checks stock before quantities
// grow, prices the basket through the pricing pipeline and keeps the
// sliding timeout moving on every change.
package basket

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pipshop/internal/events"
	"pipshop/internal/models"
	"pipshop/internal/pricing"
	"pipshop/internal/sale"
	"pipshop/internal/store"
)

var (
	// ErrNotAvailable is returned when stock cannot cover a larger quantity.
	ErrNotAvailable = errors.New("Quantity requested is not available")
	// ErrNothingToUpdate is returned when an update leaves the quantity as is.
	ErrNothingToUpdate = errors.New("Nothing to update")
	// ErrItemNotFound is returned for refs that are not in the basket.
	ErrItemNotFound = errors.New("basket item not found")
	// ErrVariantNotFound is returned for unknown or hidden variants.
	ErrVariantNotFound = errors.New("product not found")
	// ErrInvalidQuantity is returned for negative or zero quantities where
	// a positive one is needed.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// Store is the ledger the service drives. *store.BasketStore satisfies it.
type Store interface {
	Create(timeout time.Time) (*models.Basket, error)
	FindByID(id uuid.UUID) (*models.Basket, error)
	ChangeItem(basketID, variantID uuid.UUID, timeout time.Time, fn store.QuantityFunc) (before, after int, err error)
	SetShippingMethod(basketID uuid.UUID, method models.ShippingMethod, timeout time.Time) error
	SetExtra(basketID uuid.UUID, extra map[string]any) error
	ResetTimeout(basketID uuid.UUID, timeout time.Time) error
	ExpiredIDs(now time.Time) ([]uuid.UUID, error)
	Delete(id uuid.UUID) (bool, error)
	DeleteExpired(id uuid.UUID, now time.Time) (bool, error)
}

// Variants looks up catalog variants.
type Variants interface {
	FindByID(id uuid.UUID) (*models.Variant, error)
}

// Discounter supplies the running sale for pricing.
type Discounter interface {
	Discounts() (sale.Discounts, error)
}

// Service implements basket operations.
type Service struct {
	store    Store
	variants Variants
	sales    Discounter
	pipeline *pricing.Pipeline
	events   events.Publisher
	timeout  time.Duration
	now      func() time.Time
}

// NewService wires a basket service. timeout is how long a basket lives
// after its last change.
func NewService(st Store, variants Variants, sales Discounter, pipeline *pricing.Pipeline, pub events.Publisher, timeout time.Duration) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:    st,
		variants: variants,
		sales:    sales,
		pipeline: pipeline,
		events:   pub,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (s *Service) expiry() time.Time {
	return s.now().Add(s.timeout)
}

// Get loads and prices a basket. It returns nil if the basket is gone.
func (s *Service) Get(id uuid.UUID) (*models.Basket, error) {
	b, err := s.store.FindByID(id)
	if err != nil || b == nil {
		return nil, err
	}
	if err := s.Price(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetOrCreate returns the basket id refers to, or a new empty basket when
// id is nil or the basket has since expired. created reports which.
func (s *Service) GetOrCreate(id uuid.UUID) (b *models.Basket, created bool, err error) {
	if id != uuid.Nil {
		if b, err = s.Get(id); err != nil || b != nil {
			return b, false, err
		}
	}
	b, err = s.store.Create(s.expiry())
	if err != nil {
		return nil, false, err
	}
	if err := s.Price(b); err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Price runs the pricing pipeline over b against the current sale.
func (s *Service) Price(b *models.Basket) error {
	d, err := s.sales.Discounts()
	if err != nil {
		return fmt.Errorf("load sale: %w", err)
	}
	s.pipeline.Run(pricing.Context{Discounts: d}, b)
	return nil
}

// Refresh reprices b and pushes its timeout out. Checkout calls it before
// handing the basket to a payment method.
func (s *Service) Refresh(b *models.Basket) error {
	if err := s.Price(b); err != nil {
		return err
	}
	timeout := s.expiry()
	if err := s.store.ResetTimeout(b.ID, timeout); err != nil {
		return err
	}
	b.Timeout = &timeout
	return nil
}

// Add puts quantity more of a live variant into the basket.
func (s *Service) Add(basketID, variantID uuid.UUID, quantity int) (*models.Basket, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	v, err := s.variants.FindByID(variantID)
	if err != nil {
		return nil, err
	}
	if v == nil || !v.Live {
		return nil, ErrVariantNotFound
	}

	_, _, err = s.store.ChangeItem(basketID, variantID, s.expiry(), func(current, stock int) (int, error) {
		if !CanIncrease(stock, 0, quantity) {
			return current, ErrNotAvailable
		}
		return current + quantity, nil
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return s.Get(basketID)
}

// Update sets the quantity of the item ref. A quantity of 0 removes it.
func (s *Service) Update(basketID uuid.UUID, ref string, quantity int) (*models.Basket, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	variantID, err := models.ParseItemRef(ref)
	if err != nil {
		return nil, ErrItemNotFound
	}

	_, _, err = s.store.ChangeItem(basketID, variantID, s.expiry(), func(current, stock int) (int, error) {
		switch {
		case current == 0:
			return current, ErrItemNotFound
		case quantity == current:
			return current, ErrNothingToUpdate
		case quantity > current && !CanIncrease(stock, current, quantity):
			return current, ErrNotAvailable
		}
		return quantity, nil
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return s.Get(basketID)
}

// Remove deletes the item ref, returning its stock.
func (s *Service) Remove(basketID uuid.UUID, ref string) (*models.Basket, error) {
	variantID, err := models.ParseItemRef(ref)
	if err != nil {
		return nil, ErrItemNotFound
	}
	_, _, err = s.store.ChangeItem(basketID, variantID, s.expiry(), func(current, _ int) (int, error) {
		if current == 0 {
			return 0, ErrItemNotFound
		}
		return 0, nil
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return s.Get(basketID)
}

// SetShipping changes how the basket will be delivered.
func (s *Service) SetShipping(basketID uuid.UUID, method models.ShippingMethod) (*models.Basket, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unknown shipping method %q", method)
	}
	if err := s.store.SetShippingMethod(basketID, method, s.expiry()); err != nil {
		return nil, s.mapErr(err)
	}
	return s.Get(basketID)
}

// SetExtra replaces the basket's extra data.
func (s *Service) SetExtra(b *models.Basket, extra map[string]any) error {
	if err := s.store.SetExtra(b.ID, extra); err != nil {
		return s.mapErr(err)
	}
	b.Extra = extra
	return nil
}

// Delete removes the basket and settles its stock.
func (s *Service) Delete(id uuid.UUID) (bool, error) {
	return s.store.Delete(id)
}

// ClearExpired deletes every basket whose timeout has passed and returns
// how many were removed. Baskets taken by a concurrent sweep are skipped,
// so calling it again straight away removes nothing.
func (s *Service) ClearExpired() (int, error) {
	now := s.now()
	ids, err := s.store.ExpiredIDs(now)
	if err != nil {
		return 0, err
	}

	var errs []error
	cleared := 0
	for _, id := range ids {
		ok, err := s.store.DeleteExpired(id, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("basket %s: %w", id, err))
			continue
		}
		if ok {
			cleared++
			s.events.Publish(id.String(), events.NewEnvelope(events.BasketExpired, map[string]string{
				"basket_id": id.String(),
			}))
		}
	}
	if cleared > 0 {
		slog.Info("expired baskets cleared", "count", cleared)
	}
	return cleared, errors.Join(errs...)
}

func (s *Service) mapErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrItemNotFound, err)
	}
	return err
}

// CanIncrease reports whether stock can cover moving an item from current
// to desired. From the catalog current is 0. Stock already reserved by the
// basket counts towards what is available.
func CanIncrease(stock, current, desired int) bool {
	return stock+current-desired >= 0
}
