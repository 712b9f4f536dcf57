package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipshop/internal/models"
)

type outbox struct {
	sent []Message
	err  error
}

func (o *outbox) Send(_ context.Context, m Message) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, m)
	return nil
}

func order(status models.OrderStatus) *models.Order {
	return &models.Order{Ref: "2026-00007", Token: "tok123", Status: status, Email: "buyer@example.com"}
}

func TestSettingsFrom(t *testing.T) {
	s := SettingsFrom(models.ShopSettings{
		models.SettingNotifyEmails: " a@shop.test, ,b@shop.test ",
		models.SettingReplyTo:      "help@shop.test",
	})
	assert.Equal(t, []string{"a@shop.test", "b@shop.test"}, s.NotifyEmails)
	assert.Equal(t, "help@shop.test", s.ReplyTo)

	assert.Empty(t, SettingsFrom(models.ShopSettings{}).NotifyEmails)
}

func TestOrderCreatedOnHold(t *testing.T) {
	box := &outbox{}
	n := NewNotifier(box, "shop@pipshop.test", "https://pipshop.test/")

	require.NoError(t, n.OrderCreated(context.Background(), order(models.OrderHold), Settings{}))

	require.Len(t, box.sent, 1, "no staff email without a notify list")
	m := box.sent[0]
	assert.Equal(t, "Order '2026-00007' has been received", m.Subject)
	assert.Equal(t, "Thank you for your order! Your order will be completed when payment has been received.\n"+
		"View the status of your order: https://pipshop.test/shop/order/tok123/", m.Body)
	assert.Equal(t, []string{"buyer@example.com"}, m.To)
	assert.Equal(t, "shop@pipshop.test", m.From)
	assert.Equal(t, "shop@pipshop.test", m.ReplyTo, "reply-to falls back to the sender")
}

func TestOrderCreatedNotifiesStaff(t *testing.T) {
	box := &outbox{}
	n := NewNotifier(box, "shop@pipshop.test", "https://pipshop.test")
	s := Settings{NotifyEmails: []string{"a@shop.test", "b@shop.test"}, ReplyTo: "help@shop.test"}

	require.NoError(t, n.OrderCreated(context.Background(), order(models.OrderProcessing), s))

	require.Len(t, box.sent, 2)
	assert.Equal(t, "Thank you for your order! Your order is being processed.\n"+
		"View the status of your order: https://pipshop.test/shop/order/tok123/", box.sent[0].Body)
	assert.Equal(t, "help@shop.test", box.sent[0].ReplyTo)

	staff := box.sent[1]
	assert.Equal(t, "New shop order '2026-00007'", staff.Subject)
	assert.Equal(t, "A new shop order has been received.", staff.Body)
	assert.Equal(t, []string{"a@shop.test", "b@shop.test"}, staff.To)
}

func TestStatusChanged(t *testing.T) {
	tests := []struct {
		status  models.OrderStatus
		subject string
		line    string
	}{
		{models.OrderCompleted, "Order '2026-00007' is completed", "Your order is now complete."},
		{models.OrderProcessing, "Order '2026-00007' is being processed", "Your order is being processed."},
		{models.OrderShipped, "", ""},
		{models.OrderHold, "", ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			box := &outbox{}
			n := NewNotifier(box, "shop@pipshop.test", "https://pipshop.test")
			require.NoError(t, n.StatusChanged(context.Background(), order(tt.status), Settings{}))
			if tt.subject == "" {
				assert.Empty(t, box.sent)
				return
			}
			require.Len(t, box.sent, 1)
			assert.Equal(t, tt.subject, box.sent[0].Subject)
			assert.Equal(t, "Thank you for your order! "+tt.line+"\n"+
				"View the status of your order: https://pipshop.test/shop/order/tok123/", box.sent[0].Body)
		})
	}
}

func TestSendErrorsAreWrapped(t *testing.T) {
	boom := errors.New("relay down")
	n := NewNotifier(&outbox{err: boom}, "shop@pipshop.test", "https://pipshop.test")
	err := n.OrderCreated(context.Background(), order(models.OrderHold), Settings{})
	assert.ErrorIs(t, err, boom)
}

func TestNewSMTPMailer(t *testing.T) {
	m, err := NewSMTPMailer("localhost", 1025, "", "")
	require.NoError(t, err)
	assert.NotNil(t, m.client)

	_, err = NewSMTPMailer("", 25, "", "")
	assert.Error(t, err, "an empty host is rejected")
}
