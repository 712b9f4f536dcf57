package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

// OrderStore persists orders with their items, payments and notes.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore returns a new OrderStore.
func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

const orderColumns = `id, ref, token, status, name, email, shipping_method, shipping_address,
	billing_address, subtotal, total, extra, extra_rows, created_at, updated_at`

func scanOrder(scanner interface{ Scan(...any) error }) (*models.Order, error) {
	var o models.Order
	var extra, rows []byte
	err := scanner.Scan(
		&o.ID, &o.Ref, &o.Token, &o.Status, &o.Name, &o.Email, &o.ShippingMethod,
		&o.ShippingAddress, &o.BillingAddress, &o.Subtotal, &o.Total,
		&extra, &rows, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if o.Extra, err = decodeExtra(extra); err != nil {
		return nil, err
	}
	if o.ExtraRows, err = decodeRows(rows); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateFromBasket saves order, already populated from basket, together
// with the basket's extra mapping in one transaction. It assigns the
// order ref ("<year>-<sequence>") and fills in the generated fields.
//
// A basket converts once. When an order for basket already exists nothing
// is written, order.ID is set to the existing order and created is false.
func (s *OrderStore) CreateFromBasket(basket *models.Basket, order *models.Order) (created bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := lockBasket(tx, basket.ID); err != nil {
		return false, err
	}

	var existing uuid.UUID
	err = tx.QueryRow(`SELECT id FROM orders WHERE extra->>'basket_id' = $1`, basket.ID.String()).Scan(&existing)
	switch {
	case err == nil:
		order.ID = existing
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("find converted order: %w", err)
	}

	basketExtra, err := encodeExtra(basket.Extra)
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(`UPDATE baskets SET extra = $1, updated_at = NOW() WHERE id = $2`, basketExtra, basket.ID); err != nil {
		return false, fmt.Errorf("save basket extra: %w", err)
	}

	// The counter row lock serialises ref allocation. Year and created_at
	// both come from the database clock.
	var year, seq int
	err = tx.QueryRow(`
		INSERT INTO order_sequences (year, seq)
		VALUES (EXTRACT(YEAR FROM NOW())::int, 1)
		ON CONFLICT (year) DO UPDATE SET seq = order_sequences.seq + 1
		RETURNING year, seq`).Scan(&year, &seq)
	if err != nil {
		return false, fmt.Errorf("allocate order ref: %w", err)
	}
	order.Ref = FormatRef(year, seq)

	extra, err := encodeExtra(order.Extra)
	if err != nil {
		return false, err
	}
	rows, err := encodeRows(order.ExtraRows)
	if err != nil {
		return false, err
	}
	err = tx.QueryRow(`
		INSERT INTO orders (ref, token, status, name, email, shipping_method, shipping_address,
		                    billing_address, subtotal, total, extra, extra_rows)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		order.Ref, order.Token, order.Status, order.Name, order.Email, order.ShippingMethod,
		order.ShippingAddress, order.BillingAddress, order.Subtotal, order.Total, extra, rows,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		it := &order.Items[i]
		it.OrderID = order.ID
		itemRows, err := encodeRows(it.ExtraRows)
		if err != nil {
			return false, err
		}
		err = tx.QueryRow(`
			INSERT INTO order_items (order_id, variant_id, name, code, unit_price, quantity, subtotal, total, extra_rows)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			order.ID, it.VariantID, it.Name, it.Code, it.UnitPrice, it.Quantity, it.Subtotal, it.Total, itemRows,
		).Scan(&it.ID)
		if err != nil {
			return false, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// FormatRef renders an order reference, e.g. "2026-00042".
func FormatRef(year, seq int) string {
	return fmt.Sprintf("%d-%05d", year, seq)
}

// FindByID returns an order with its items, payments and notes, or nil.
func (s *OrderStore) FindByID(id uuid.UUID) (*models.Order, error) {
	return s.findOne(`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// FindByToken returns the order with the given external token, or nil.
func (s *OrderStore) FindByToken(token string) (*models.Order, error) {
	return s.findOne(`SELECT `+orderColumns+` FROM orders WHERE token = $1`, token)
}

// FindByBasketID returns the order converted from the given basket, or nil.
func (s *OrderStore) FindByBasketID(basketID uuid.UUID) (*models.Order, error) {
	return s.findOne(`SELECT `+orderColumns+` FROM orders WHERE extra->>'basket_id' = $1
		ORDER BY created_at LIMIT 1`, basketID.String())
}

func (s *OrderStore) findOne(query string, arg any) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if err := s.loadChildren(o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderStore) loadChildren(o *models.Order) error {
	rows, err := s.db.Query(`
		SELECT id, order_id, variant_id, name, code, unit_price, quantity, subtotal, total, extra_rows
		FROM order_items WHERE order_id = $1 ORDER BY name, id`, o.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	o.Items = nil
	for rows.Next() {
		var it models.OrderItem
		var raw []byte
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.Name, &it.Code,
			&it.UnitPrice, &it.Quantity, &it.Subtotal, &it.Total, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		if it.ExtraRows, err = decodeRows(raw); err != nil {
			rows.Close()
			return err
		}
		o.Items = append(o.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if o.Payments, err = s.Payments(o.ID); err != nil {
		return err
	}
	o.Notes, err = s.Notes(o.ID)
	return err
}

// List returns orders newest first. An empty status lists every order.
func (s *OrderStore) List(status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	rows, err := s.db.Query(`
		SELECT `+orderColumns+` FROM orders
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// SetStatus moves an order from one status to another. It reports false
// when the order was no longer in status from, so concurrent changes
// apply once.
func (s *OrderStore) SetStatus(id uuid.UUID, from, to models.OrderStatus) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return false, fmt.Errorf("set order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set order status: %w", err)
	}
	return n == 1, nil
}

// AddPayment records a payment against an order.
func (s *OrderStore) AddPayment(p *models.OrderPayment) error {
	err := s.db.QueryRow(`
		INSERT INTO order_payments (order_id, amount, transaction_id, payment_method)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		p.OrderID, p.Amount, p.TransactionID, p.PaymentMethod,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("add order payment: %w", err)
	}
	return nil
}

// Payments returns an order's payments, oldest first.
func (s *OrderStore) Payments(orderID uuid.UUID) ([]models.OrderPayment, error) {
	rows, err := s.db.Query(`
		SELECT id, order_id, amount, transaction_id, payment_method, created_at
		FROM order_payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order payments: %w", err)
	}
	defer rows.Close()

	var out []models.OrderPayment
	for rows.Next() {
		var p models.OrderPayment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.TransactionID, &p.PaymentMethod, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddNote records a note against an order.
func (s *OrderStore) AddNote(n *models.OrderNote) error {
	err := s.db.QueryRow(`
		INSERT INTO order_notes (order_id, message, public)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		n.OrderID, n.Message, n.Public,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("add order note: %w", err)
	}
	return nil
}

// Notes returns an order's notes, oldest first.
func (s *OrderStore) Notes(orderID uuid.UUID) ([]models.OrderNote, error) {
	rows, err := s.db.Query(`
		SELECT id, order_id, message, public, created_at
		FROM order_notes WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order notes: %w", err)
	}
	defer rows.Close()

	var out []models.OrderNote
	for rows.Next() {
		var n models.OrderNote
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Message, &n.Public, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
