// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

// BasketStore persists baskets and is the basket ledger: every change to
// an item's quantity moves the variant's stock by the inverse amount in
// the same transaction. Rows are always locked basket first, then
// variants in ascending id order.
type BasketStore struct {
	db *sql.DB
}

// NewBasketStore returns a new BasketStore.
func NewBasketStore(db *sql.DB) *BasketStore {
	return &BasketStore{db: db}
}

// QuantityFunc decides an item's new quantity from its current quantity
// (0 when the basket does not hold the variant) and the variant's locked
// stock. A result of 0 removes the item.
type QuantityFunc func(current, stock int) (int, error)

const basketColumns = `id, shipping_method, timeout, extra, created_at, updated_at`

func scanBasket(scanner interface{ Scan(...any) error }) (*models.Basket, error) {
	var b models.Basket
	var extra []byte
	err := scanner.Scan(&b.ID, &b.ShippingMethod, &b.Timeout, &extra, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if b.Extra, err = decodeExtra(extra); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts an empty basket expiring at timeout.
func (s *BasketStore) Create(timeout time.Time) (*models.Basket, error) {
	b, err := scanBasket(s.db.QueryRow(`
		INSERT INTO baskets (timeout) VALUES ($1)
		RETURNING `+basketColumns, timeout))
	if err != nil {
		return nil, fmt.Errorf("create basket: %w", err)
	}
	return b, nil
}

// FindByID returns a basket with its items and their variants, or nil if
// not found.
func (s *BasketStore) FindByID(id uuid.UUID) (*models.Basket, error) {
	b, err := scanBasket(s.db.QueryRow(`SELECT `+basketColumns+` FROM baskets WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find basket: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT bi.id, bi.basket_id, bi.variant_id, bi.quantity, bi.created_at, bi.updated_at,`+variantCols+`
		FROM basket_items bi
		JOIN variants v ON v.id = bi.variant_id`+variantJoins+`
		WHERE bi.basket_id = $1
		ORDER BY bi.created_at, bi.id`, id)
	if err != nil {
		return nil, fmt.Errorf("load basket items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.BasketItem
		v := &models.Variant{}
		dest := append([]any{&it.ID, &it.BasketID, &it.VariantID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt}, variantDest(v)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan basket item: %w", err)
		}
		it.Variant = v
		b.Items = append(b.Items, it)
	}
	return b, rows.Err()
}

// ChangeItem sets the quantity of variantID in the basket to whatever fn
// returns, moves the variant's stock by the difference and pushes the
// basket timeout out to timeout. It returns the previous and new
// quantities. Errors from fn abort the transaction unchanged.
func (s *BasketStore) ChangeItem(basketID, variantID uuid.UUID, timeout time.Time, fn QuantityFunc) (before, after int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := lockBasket(tx, basketID); err != nil {
		return 0, 0, err
	}

	var stock int
	err = tx.QueryRow(`SELECT stock FROM variants WHERE id = $1 FOR UPDATE`, variantID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("variant: %w", ErrNotFound)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lock variant: %w", err)
	}

	err = tx.QueryRow(`SELECT quantity FROM basket_items WHERE basket_id = $1 AND variant_id = $2`,
		basketID, variantID).Scan(&before)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("read basket item: %w", err)
	}

	after, err = fn(before, stock)
	if err != nil {
		return before, before, err
	}
	if after < 0 {
		after = 0
	}

	var reason string
	switch {
	case after == before:
		// Nothing to move; the timeout is still refreshed below.
	case after == 0:
		reason = models.StockBasketRemove
		if _, err := tx.Exec(`DELETE FROM basket_items WHERE basket_id = $1 AND variant_id = $2`, basketID, variantID); err != nil {
			return 0, 0, fmt.Errorf("delete basket item: %w", err)
		}
	default:
		reason = models.StockBasketUpdate
		if before == 0 {
			reason = models.StockBasketAdd
		}
		_, err := tx.Exec(`
			INSERT INTO basket_items (basket_id, variant_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (basket_id, variant_id)
			DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`,
			basketID, variantID, after)
		if err != nil {
			return 0, 0, fmt.Errorf("save basket item: %w", err)
		}
	}

	if reason != "" {
		if err := applyStock(tx, variantID, models.StockDelta(before, after), reason, &basketID, nil); err != nil {
			return 0, 0, err
		}
	}
	if err := setTimeout(tx, basketID, timeout); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return before, after, nil
}

// SetShippingMethod changes the basket's shipping method and timeout.
func (s *BasketStore) SetShippingMethod(basketID uuid.UUID, method models.ShippingMethod, timeout time.Time) error {
	res, err := s.db.Exec(`
		UPDATE baskets SET shipping_method = $1, timeout = $2, updated_at = NOW()
		WHERE id = $3`, method, timeout, basketID)
	if err != nil {
		return fmt.Errorf("set shipping method: %w", err)
	}
	return expectOne(res, "basket")
}

// SetExtra replaces the basket's extra mapping.
func (s *BasketStore) SetExtra(basketID uuid.UUID, extra map[string]any) error {
	raw, err := encodeExtra(extra)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE baskets SET extra = $1, updated_at = NOW() WHERE id = $2`, raw, basketID)
	if err != nil {
		return fmt.Errorf("set basket extra: %w", err)
	}
	return expectOne(res, "basket")
}

// ResetTimeout moves the basket's expiry to timeout.
func (s *BasketStore) ResetTimeout(basketID uuid.UUID, timeout time.Time) error {
	res, err := s.db.Exec(`UPDATE baskets SET timeout = $1, updated_at = NOW() WHERE id = $2`, timeout, basketID)
	if err != nil {
		return fmt.Errorf("reset basket timeout: %w", err)
	}
	return expectOne(res, "basket")
}

// ExpiredIDs returns the ids of baskets whose timeout is before now.
func (s *BasketStore) ExpiredIDs(now time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(`SELECT id FROM baskets WHERE timeout < $1 ORDER BY timeout`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired baskets: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan basket id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a basket and settles its stock. It reports false when
// the basket no longer exists.
//
// A basket whose extra carries a basket_id that an order references was
// converted at checkout: its items are released and the order's items are
// taken from stock, which leaves the reservation in place as a sale.
// Any other basket simply releases its items.
func (s *BasketStore) Delete(id uuid.UUID) (bool, error) {
	return s.delete(id, `SELECT extra FROM baskets WHERE id = $1 FOR UPDATE`, id)
}

// DeleteExpired is Delete for the expiry sweep. Baskets that another
// sweep holds, or whose timeout has since moved past now, are skipped.
func (s *BasketStore) DeleteExpired(id uuid.UUID, now time.Time) (bool, error) {
	return s.delete(id, `SELECT extra FROM baskets WHERE id = $1 AND timeout < $2 FOR UPDATE SKIP LOCKED`, id, now)
}

type stockChange struct {
	variantID uuid.UUID
	delta     int
	reason    string
}

func (s *BasketStore) delete(id uuid.UUID, lockQuery string, args ...any) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRow(lockQuery, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock basket: %w", err)
	}
	extra, err := decodeExtra(raw)
	if err != nil {
		return false, err
	}

	var changes []stockChange
	items, err := quantities(tx, `SELECT variant_id, quantity FROM basket_items WHERE basket_id = $1`, id)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		changes = append(changes, stockChange{it.variantID, it.delta, models.StockBasketDelete})
	}

	var orderID *uuid.UUID
	if marker, ok := extra["basket_id"].(string); ok && marker != "" {
		var oid uuid.UUID
		err := tx.QueryRow(`
			SELECT id FROM orders WHERE extra->>'basket_id' = $1
			ORDER BY created_at LIMIT 1`, marker).Scan(&oid)
		switch {
		case err == nil:
			orderID = &oid
		case !errors.Is(err, sql.ErrNoRows):
			return false, fmt.Errorf("find converted order: %w", err)
		}
	}
	if orderID != nil {
		sold, err := quantities(tx, `
			SELECT variant_id, quantity FROM order_items
			WHERE order_id = $1 AND variant_id IS NOT NULL`, *orderID)
		if err != nil {
			return false, err
		}
		for _, it := range sold {
			changes = append(changes, stockChange{it.variantID, -it.delta, models.StockOrderCommit})
		}
	}

	if err := lockVariants(tx, changes); err != nil {
		return false, err
	}
	for _, c := range changes {
		if err := applyStock(tx, c.variantID, c.delta, c.reason, &id, orderID); err != nil {
			return false, err
		}
	}

	if _, err := tx.Exec(`DELETE FROM baskets WHERE id = $1`, id); err != nil {
		return false, fmt.Errorf("delete basket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func lockBasket(tx *sql.Tx, id uuid.UUID) error {
	var found uuid.UUID
	err := tx.QueryRow(`SELECT id FROM baskets WHERE id = $1 FOR UPDATE`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("basket: %w", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock basket: %w", err)
	}
	return nil
}

// lockVariants locks every variant touched by changes in ascending id order.
func lockVariants(tx *sql.Tx, changes []stockChange) error {
	seen := make(map[uuid.UUID]bool)
	var ids []string
	for _, c := range changes {
		if !seen[c.variantID] {
			seen[c.variantID] = true
			ids = append(ids, c.variantID.String())
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	rows, err := tx.Query(`SELECT id FROM variants WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("lock variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func setTimeout(tx *sql.Tx, basketID uuid.UUID, timeout time.Time) error {
	if _, err := tx.Exec(`UPDATE baskets SET timeout = $1, updated_at = NOW() WHERE id = $2`, timeout, basketID); err != nil {
		return fmt.Errorf("set basket timeout: %w", err)
	}
	return nil
}

type variantQuantity struct {
	variantID uuid.UUID
	delta     int
}

func quantities(tx *sql.Tx, query string, args ...any) ([]variantQuantity, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("read quantities: %w", err)
	}
	defer rows.Close()

	var out []variantQuantity
	for rows.Next() {
		var q variantQuantity
		if err := rows.Scan(&q.variantID, &q.delta); err != nil {
			return nil, fmt.Errorf("scan quantity: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
