package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderHold       OrderStatus = "HOLD"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderCompleted  OrderStatus = "COMPLETED"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderHold, OrderProcessing, OrderShipped, OrderCompleted:
		return true
	}
	return false
}

// Label returns the customer-facing status name.
func (s OrderStatus) Label() string {
	switch s {
	case OrderHold:
		return "Hold"
	case OrderProcessing:
		return "Processing"
	case OrderShipped:
		return "Shipped"
	case OrderCompleted:
		return "Completed"
	}
	return string(s)
}

// Order is a basket committed at checkout. Items, prices and rows are
// snapshots and do not follow later catalog changes.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	Ref             string          `json:"ref"`
	Token           string          `json:"token"`
	Status          OrderStatus     `json:"status"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	ShippingMethod  ShippingMethod  `json:"shipping_method"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Total           decimal.Decimal `json:"total"`
	Extra           map[string]any  `json:"extra"`
	ExtraRows       []ExtraRow      `json:"extra_rows"`
	CreatedAt       time.Time       `json:"date_created"`
	UpdatedAt       time.Time       `json:"date_updated"`

	Items    []OrderItem    `json:"items"`
	Payments []OrderPayment `json:"payments"`
	Notes    []OrderNote    `json:"notes"`
}

// OrderItem is a snapshot of a basket item.
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"-"`
	VariantID *uuid.UUID      `json:"product_id"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
	ExtraRows []ExtraRow      `json:"extra_rows"`
}

// OrderPayment records money received against an order.
type OrderPayment struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       uuid.UUID       `json:"-"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"date_created"`
}

// OrderNote is a staff note; public notes are shown to the customer.
type OrderNote struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"-"`
	Message   string    `json:"message"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"date_created"`
}

// AmountPaid sums all payments.
func (o *Order) AmountPaid() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range o.Payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// AmountOutstanding is the total less payments received.
func (o *Order) AmountOutstanding() decimal.Decimal {
	return o.Total.Sub(o.AmountPaid())
}

// IsPaid reports whether payments cover the total.
func (o *Order) IsPaid() bool {
	return o.AmountPaid().GreaterThanOrEqual(o.Total)
}

// BasketID returns the id of the basket the order was created from.
func (o *Order) BasketID() string {
	if v, ok := o.Extra["basket_id"].(string); ok {
		return v
	}
	return ""
}

// PublicNotes returns the notes visible to the customer.
func (o *Order) PublicNotes() []OrderNote {
	var out []OrderNote
	for _, n := range o.Notes {
		if n.Public {
			out = append(out, n)
		}
	}
	return out
}
