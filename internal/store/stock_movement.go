// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// stock_movement.go records every stock change made by the basket ledger
// so admins can trace where a variant's stock went.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

// StockMovementStore reads the stock audit log.
type StockMovementStore struct {
	db *sql.DB
}

// NewStockMovementStore creates a new StockMovementStore.
func NewStockMovementStore(db *sql.DB) *StockMovementStore {
	return &StockMovementStore{db: db}
}

// applyStock changes a locked variant's stock by delta and records the
// movement in the same transaction.
func applyStock(tx *sql.Tx, variantID uuid.UUID, delta int, reason string, basketID, orderID *uuid.UUID) error {
	if delta == 0 {
		return nil
	}
	if _, err := tx.Exec(`UPDATE variants SET stock = stock + $1, updated_at = NOW() WHERE id = $2`, delta, variantID); err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	_, err := tx.Exec(`
		INSERT INTO stock_movements (variant_id, delta, reason, basket_id, order_id)
		VALUES ($1, $2, $3, $4, $5)
	`, variantID, delta, reason, basketID, orderID)
	if err != nil {
		return fmt.Errorf("record stock movement: %w", err)
	}
	slog.Debug("stock moved",
		"variant_id", variantID,
		"delta", delta,
		"reason", reason,
	)
	return nil
}

// Recent returns the most recent movements, newest first. A non-nil
// variantID restricts the list to that variant.
func (s *StockMovementStore) Recent(variantID *uuid.UUID, limit int) ([]models.StockMovement, error) {
	rows, err := s.db.Query(`
		SELECT id, variant_id, delta, reason, basket_id, order_id, created_at
		FROM stock_movements
		WHERE $1::uuid IS NULL OR variant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, variantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query stock movements: %w", err)
	}
	defer rows.Close()

	var entries []models.StockMovement
	for rows.Next() {
		var e models.StockMovement
		if err := rows.Scan(&e.ID, &e.VariantID, &e.Delta, &e.Reason, &e.BasketID, &e.OrderID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
