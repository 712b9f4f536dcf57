// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"
	"time"

	"pipshop/internal/models"
)

// ShopSettingStore manages shop configuration such as notification
// recipients and the reply-to address.
type ShopSettingStore struct {
	db *sql.DB
}

// NewShopSettingStore returns a new ShopSettingStore backed by the given database.
func NewShopSettingStore(db *sql.DB) *ShopSettingStore {
	return &ShopSettingStore{db: db}
}

// All returns every setting as a convenience map.
func (s *ShopSettingStore) All() (models.ShopSettings, error) {
	rows, err := s.db.Query(`SELECT key, value FROM shop_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list shop settings: %w", err)
	}
	defer rows.Close()

	settings := make(models.ShopSettings)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan shop setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// SetMany upserts multiple settings in a single transaction.
func (s *ShopSettingStore) SetMany(settings map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO shop_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for k, v := range settings {
		if _, err := stmt.Exec(k, v, now); err != nil {
			return fmt.Errorf("upsert setting %s: %w", k, err)
		}
	}

	return tx.Commit()
}
