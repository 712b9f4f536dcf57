package store

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipshop/internal/models"
)

func TestFormatRef(t *testing.T) {
	assert.Equal(t, "2026-00001", FormatRef(2026, 1))
	assert.Equal(t, "2026-12345", FormatRef(2026, 12345))
}

func createOrder(t *testing.T, s *OrderStore, b *models.Basket) *models.Order {
	t.Helper()
	o := &models.Order{
		Token:          "tok-" + uuid.NewString(),
		Status:         models.OrderHold,
		Name:           "Buyer",
		Email:          "buyer@example.com",
		ShippingMethod: models.ShippingDeliver,
		Subtotal:       decimal.NewFromInt(20),
		Total:          decimal.RequireFromString("23.99"),
		Extra:          map[string]any{"basket_id": b.ID.String()},
		ExtraRows: []models.ExtraRow{{
			Modifier: "shipping-cost", Label: "Shipping", Amount: decimal.RequireFromString("3.99"),
		}},
	}
	created, err := s.CreateFromBasket(b, o)
	require.NoError(t, err)
	require.True(t, created)
	return o
}

func TestOrderCreateAndFind(t *testing.T) {
	db := testDB(t)
	s := NewOrderStore(db)
	b := newBasket(t, db)

	o := createOrder(t, s, b)
	t.Cleanup(func() { db.Exec("DELETE FROM orders WHERE id = $1", o.ID) })

	assert.True(t, strings.HasPrefix(o.Ref, fmt.Sprintf("%d-", time.Now().Year())), "ref %q", o.Ref)
	assert.NotEqual(t, uuid.Nil, o.ID)

	got, err := s.FindByToken(o.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, o.Ref, got.Ref)
	assert.Equal(t, "23.99", got.Total.StringFixed(2))
	require.Len(t, got.ExtraRows, 1)
	assert.Equal(t, "3.99", got.ExtraRows[0].Amount.StringFixed(2))
	assert.Equal(t, b.ID.String(), got.BasketID())

	byBasket, err := s.FindByBasketID(b.ID)
	require.NoError(t, err)
	require.NotNil(t, byBasket)
	assert.Equal(t, o.ID, byBasket.ID)

	missing, err := s.FindByToken("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRefsAreSequential(t *testing.T) {
	db := testDB(t)
	s := NewOrderStore(db)

	first := createOrder(t, s, newBasket(t, db))
	second := createOrder(t, s, newBasket(t, db))
	t.Cleanup(func() { db.Exec("DELETE FROM orders WHERE id IN ($1, $2)", first.ID, second.ID) })

	var a, b int
	fmt.Sscanf(first.Ref[5:], "%d", &a)
	fmt.Sscanf(second.Ref[5:], "%d", &b)
	assert.Equal(t, a+1, b)
}

func TestOrderCreateFromBasketConvertsOnce(t *testing.T) {
	db := testDB(t)
	s := NewOrderStore(db)
	b := newBasket(t, db)

	first := createOrder(t, s, b)
	t.Cleanup(func() { db.Exec("DELETE FROM orders WHERE extra->>'basket_id' = $1", b.ID.String()) })

	again := &models.Order{
		Token:          "tok-" + uuid.NewString(),
		Status:         models.OrderHold,
		Email:          "buyer@example.com",
		ShippingMethod: models.ShippingCollect,
		Extra:          map[string]any{"basket_id": b.ID.String()},
	}
	created, err := s.CreateFromBasket(b, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID, "the existing order is reported")
	assert.Empty(t, again.Ref)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM orders WHERE extra->>'basket_id' = $1`, b.ID.String()).Scan(&n))
	assert.Equal(t, 1, n)

	_, err = db.Exec(`
		INSERT INTO orders (ref, token, extra) VALUES ($1, $2, $3)`,
		"dup-"+uuid.NewString()[:8], "tok-"+uuid.NewString(), `{"basket_id":"`+b.ID.String()+`"}`)
	assert.Error(t, err, "the unique index rejects a second order for the basket")
}

func TestOrderRefsSurviveDeletion(t *testing.T) {
	db := testDB(t)
	s := NewOrderStore(db)

	first := createOrder(t, s, newBasket(t, db))
	second := createOrder(t, s, newBasket(t, db))
	db.Exec("DELETE FROM orders WHERE id = $1", first.ID)
	third := createOrder(t, s, newBasket(t, db))
	t.Cleanup(func() { db.Exec("DELETE FROM orders WHERE id IN ($1, $2)", second.ID, third.ID) })

	assert.NotEqual(t, second.Ref, third.Ref)
	var b, c int
	fmt.Sscanf(second.Ref[5:], "%d", &b)
	fmt.Sscanf(third.Ref[5:], "%d", &c)
	assert.Equal(t, b+1, c)
}

func TestOrderStatusPaymentsNotes(t *testing.T) {
	db := testDB(t)
	s := NewOrderStore(db)
	o := createOrder(t, s, newBasket(t, db))
	t.Cleanup(func() { db.Exec("DELETE FROM orders WHERE id = $1", o.ID) })

	ok, err := s.SetStatus(o.ID, models.OrderHold, models.OrderProcessing)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.SetStatus(o.ID, models.OrderHold, models.OrderCompleted)
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status does not apply")

	require.NoError(t, s.AddPayment(&models.OrderPayment{
		OrderID: o.ID, Amount: decimal.NewFromInt(20), TransactionID: "tx-1", PaymentMethod: "pay-in-advance",
	}))
	require.Error(t, s.AddPayment(&models.OrderPayment{
		OrderID: o.ID, Amount: decimal.NewFromInt(1), TransactionID: "tx-1", PaymentMethod: "pay-in-advance",
	}), "duplicate transaction ids are rejected")
	require.NoError(t, s.AddNote(&models.OrderNote{OrderID: o.ID, Message: "Posted", Public: true}))

	got, err := s.FindByID(o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, got.Status)
	assert.Equal(t, "20.00", got.AmountPaid().StringFixed(2))
	assert.Equal(t, "3.99", got.AmountOutstanding().StringFixed(2))
	assert.Len(t, got.PublicNotes(), 1)

	list, err := s.List(models.OrderProcessing, 100, 0)
	require.NoError(t, err)
	found := false
	for _, lo := range list {
		found = found || lo.ID == o.ID
	}
	assert.True(t, found)
}
