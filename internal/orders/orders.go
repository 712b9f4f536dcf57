// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package orders turns baskets into orders and moves orders through their
// statuses, emailing customers and publishing events along the way.
package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pipshop/internal/events"
	"pipshop/internal/models"
	"pipshop/internal/notify"
)

var (
	// ErrInvalidTransition is returned for status changes the lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyBasket is returned when checking out a basket with no items.
	ErrEmptyBasket = errors.New("basket is empty")
)

// transitions lists the statuses each status may move to.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderHold:       {models.OrderProcessing, models.OrderShipped, models.OrderCompleted},
	models.OrderProcessing: {models.OrderShipped, models.OrderCompleted},
	models.OrderShipped:    {models.OrderCompleted},
	models.OrderCompleted:  nil,
}

// CanTransition reports whether an order may move from one status to
// another. Staying in the same status is not a transition.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Store persists orders. *store.OrderStore satisfies it.
type Store interface {
	CreateFromBasket(basket *models.Basket, order *models.Order) (created bool, err error)
	FindByID(id uuid.UUID) (*models.Order, error)
	FindByToken(token string) (*models.Order, error)
	List(status models.OrderStatus, limit, offset int) ([]models.Order, error)
	SetStatus(id uuid.UUID, from, to models.OrderStatus) (bool, error)
	AddPayment(p *models.OrderPayment) error
	AddNote(n *models.OrderNote) error
}

// Settings loads the shop settings used for notifications.
type Settings interface {
	All() (models.ShopSettings, error)
}

// Notifier sends order emails. *notify.Notifier satisfies it.
type Notifier interface {
	OrderCreated(ctx context.Context, o *models.Order, s notify.Settings) error
	StatusChanged(ctx context.Context, o *models.Order, s notify.Settings) error
}

// Pricer reprices a basket before it is copied into an order.
type Pricer interface {
	Price(b *models.Basket) error
}

// Service implements the order lifecycle.
type Service struct {
	store    Store
	settings Settings
	notifier Notifier
	pricer   Pricer
	events   events.Publisher
}

// NewService wires an order service.
func NewService(st Store, settings Settings, notifier Notifier, pricer Pricer, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{store: st, settings: settings, notifier: notifier, pricer: pricer, events: pub}
}

// Populate builds an unsaved order from b. It marks b.Extra with the
// basket id, moves the customer name from the basket extra onto the order
// and snapshots totals and items. b must already be priced.
func Populate(b *models.Basket, status models.OrderStatus) *models.Order {
	if b.Extra == nil {
		b.Extra = map[string]any{}
	}
	b.Extra["basket_id"] = b.ID.String()

	name := b.ExtraString("name")
	delete(b.Extra, "name")

	extra := make(map[string]any, len(b.Extra))
	for k, v := range b.Extra {
		extra[k] = v
	}

	o := &models.Order{
		Status:          status,
		Name:            name,
		Email:           b.ExtraString("email"),
		ShippingMethod:  b.ShippingMethod,
		ShippingAddress: b.ExtraString("shipping_address"),
		BillingAddress:  b.ExtraString("billing_address"),
		Subtotal:        b.Subtotal,
		Total:           b.Total,
		Extra:           extra,
		ExtraRows:       b.ExtraRows,
	}
	for _, it := range b.Items {
		variantID := it.VariantID
		item := models.OrderItem{
			VariantID: &variantID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal,
			Total:     it.Total,
			ExtraRows: it.ExtraRows,
		}
		if it.Variant != nil {
			item.Name = it.Variant.Name()
			item.Code = it.Variant.Code()
		}
		o.Items = append(o.Items, item)
	}
	return o
}

// CreateFromBasket prices b, saves it as a new order with the given
// status and sends the order emails. The basket itself is left for the
// caller to delete. A basket that was already converted returns its
// existing order and sends nothing.
func (s *Service) CreateFromBasket(ctx context.Context, b *models.Basket, status models.OrderStatus) (*models.Order, error) {
	if len(b.Items) == 0 {
		return nil, ErrEmptyBasket
	}
	if err := s.pricer.Price(b); err != nil {
		return nil, err
	}

	o := Populate(b, status)
	o.Token = rand.Text()
	created, err := s.store.CreateFromBasket(b, o)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if !created {
		existing, err := s.Get(o.ID)
		if err != nil {
			return nil, fmt.Errorf("load converted order: %w", err)
		}
		slog.Info("basket already converted", "basket", b.ID, "ref", existing.Ref)
		return existing, nil
	}
	slog.Info("order created", "ref", o.Ref, "status", o.Status, "total", o.Total.StringFixed(2))

	s.notify(ctx, o, s.notifier.OrderCreated)
	s.events.Publish(o.ID.String(), events.NewEnvelope(events.OrderCreated, o))
	s.events.Publish(b.ID.String(), events.NewEnvelope(events.BasketConverted, map[string]string{
		"basket_id": b.ID.String(),
		"order_ref": o.Ref,
	}))
	return o, nil
}

// notify sends an email and logs failures; the order change stands either
// way. Without settings the customer is still emailed, with no staff copy
// and the default reply-to.
func (s *Service) notify(ctx context.Context, o *models.Order, send func(context.Context, *models.Order, notify.Settings) error) {
	var ns notify.Settings
	if all, err := s.settings.All(); err != nil {
		slog.Warn("load shop settings for email", "ref", o.Ref, "error", err)
	} else {
		ns = notify.SettingsFrom(all)
	}
	if err := send(ctx, o, ns); err != nil {
		slog.Warn("order email failed", "ref", o.Ref, "error", err)
	}
}

// Get returns an order with its items, payments and notes.
func (s *Service) Get(id uuid.UUID) (*models.Order, error) {
	o, err := s.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNotFound
	}
	return o, nil
}

// GetByToken returns the order behind a customer status link.
func (s *Service) GetByToken(token string) (*models.Order, error) {
	o, err := s.store.FindByToken(token)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns orders newest first, optionally filtered by status.
func (s *Service) List(status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	return s.store.List(status, limit, offset)
}

// SetStatus moves an order to status to. Setting the current status again
// does nothing. Customers are emailed when an order starts processing or
// completes.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	o, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if to == from {
		return o, nil
	}
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}

	ok, err := s.store.SetStatus(id, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %s is no longer %s", ErrInvalidTransition, o.Ref, from)
	}
	o.Status = to
	slog.Info("order status changed", "ref", o.Ref, "from", from, "to", to)

	s.notify(ctx, o, s.notifier.StatusChanged)
	s.events.Publish(o.ID.String(), events.NewEnvelope(events.OrderStatusChanged, map[string]string{
		"order_id": o.ID.String(),
		"ref":      o.Ref,
		"from":     string(from),
		"to":       string(to),
	}))
	return o, nil
}

// AddPayment records money received for an order.
func (s *Service) AddPayment(o *models.Order, amount decimal.Decimal, transactionID, method string) (*models.OrderPayment, error) {
	p := &models.OrderPayment{
		OrderID:       o.ID,
		Amount:        amount,
		TransactionID: transactionID,
		PaymentMethod: method,
	}
	if err := s.store.AddPayment(p); err != nil {
		return nil, err
	}
	o.Payments = append(o.Payments, *p)
	s.events.Publish(o.ID.String(), events.NewEnvelope(events.OrderPaid, map[string]string{
		"order_id":       o.ID.String(),
		"ref":            o.Ref,
		"amount":         amount.StringFixed(2),
		"transaction_id": transactionID,
		"payment_method": method,
	}))
	return p, nil
}

// AddNote attaches a staff note. Public notes are shown to the customer.
func (s *Service) AddNote(o *models.Order, message string, public bool) (*models.OrderNote, error) {
	n := &models.OrderNote{OrderID: o.ID, Message: message, Public: public}
	if err := s.store.AddNote(n); err != nil {
		return nil, err
	}
	o.Notes = append(o.Notes, *n)
	return n, nil
}
