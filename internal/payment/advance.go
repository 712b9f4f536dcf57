package payment

import (
	"context"
	"log/slog"

	"pipshop/internal/models"
)

// PayInAdvance places the order on hold until the shop receives payment
// offline.
type PayInAdvance struct {
	orders  Orders
	baskets Baskets
}

// NewPayInAdvance returns the offline payment method.
func NewPayInAdvance(orders Orders, baskets Baskets) *PayInAdvance {
	return &PayInAdvance{orders: orders, baskets: baskets}
}

func (*PayInAdvance) Identifier() string { return "pay-in-advance" }
func (*PayInAdvance) Label() string      { return "Pay in advance" }
func (*PayInAdvance) Help() string {
	return "Offline payment; your order will be placed on hold until payment has been received"
}
func (*PayInAdvance) Button() string { return "Submit Order" }

// Checkout creates a HOLD order and deletes the basket, which turns its
// stock reservation into a sale.
func (p *PayInAdvance) Checkout(ctx context.Context, b *models.Basket) (string, error) {
	o, err := p.orders.CreateFromBasket(ctx, b, models.OrderHold)
	if err != nil {
		return "", err
	}
	if _, err := p.baskets.Delete(b.ID); err != nil {
		// The order stands; the expiry sweep settles the basket later.
		slog.Error("delete converted basket", "basket", b.ID, "ref", o.Ref, "error", err)
	}
	return OrderURL(o), nil
}
