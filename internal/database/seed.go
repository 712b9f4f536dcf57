// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// SeedAdminEmail is the login created for a fresh development database.
const SeedAdminEmail = "admin@pipshop.local"

// Seed populates the database with initial development data: a default
// admin user (2FA not yet enrolled), empty shop settings and a small
// sample catalog. Each part is skipped when its table already has rows.
func Seed(db *sql.DB) error {
	if err := seedAdmin(db); err != nil {
		return err
	}
	if err := seedSettings(db); err != nil {
		return err
	}
	return seedCatalog(db)
}

func seedAdmin(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}
	if count > 0 {
		slog.Info("users already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO users (email, password_hash, display_name, role, totp_enabled)
		VALUES ($1, $2, $3, $4, $5)
	`, SeedAdminEmail, string(hash), "Admin", "admin", false)
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"email", SeedAdminEmail,
		"password", "admin",
	)
	return nil
}

func seedSettings(db *sql.DB) error {
	_, err := db.Exec(`
		INSERT INTO shop_settings (key, value) VALUES
			('notify_email_addresses', ''),
			('reply_to', '')
		ON CONFLICT (key) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("seed shop settings: %w", err)
	}
	return nil
}

func seedCatalog(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("seed check categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var categoryID, productID string
	err = tx.QueryRow(`
		INSERT INTO categories (title, body, sort_index)
		VALUES ('Clothing', 'Shirts and hoodies printed in house.', 10)
		RETURNING id`).Scan(&categoryID)
	if err != nil {
		return fmt.Errorf("seed category: %w", err)
	}

	err = tx.QueryRow(`
		INSERT INTO products (category_id, name, description, price, sort_index)
		VALUES ($1, 'T-shirt', 'A **soft** cotton t-shirt.', 12.50, 10)
		RETURNING id`, categoryID).Scan(&productID)
	if err != nil {
		return fmt.Errorf("seed product: %w", err)
	}

	for i, size := range []string{"S", "M", "L"} {
		_, err := tx.Exec(`
			INSERT INTO variants (product_id, colour, size, price, stock, sort_order)
			VALUES ($1, 'Black', $2, 12.50, 5, $3)`, productID, size, i)
		if err != nil {
			return fmt.Errorf("seed variant %s: %w", size, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}
	slog.Info("database seeded with sample catalog")
	return nil
}
