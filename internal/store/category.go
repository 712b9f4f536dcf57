// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

// CategoryStore manages shop categories in the database.
type CategoryStore struct {
	db *sql.DB
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// The product counts treat a product as live when it is itself live and
// has at least one live variant.
const categorySelect = `
	SELECT c.id, c.title, c.body, c.sort_index, c.live, c.created_at, c.updated_at,
	       (SELECT COUNT(*) FROM products p
	         WHERE p.category_id = c.id AND p.live
	           AND EXISTS (SELECT 1 FROM variants v WHERE v.product_id = p.id AND v.live)),
	       (SELECT COUNT(*) FROM products p WHERE p.category_id = c.id)
	FROM categories c`

func scanCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	err := scanner.Scan(
		&c.ID, &c.Title, &c.Body, &c.Index, &c.Live, &c.CreatedAt, &c.UpdatedAt,
		&c.LiveProducts, &c.TotalProducts,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns categories ordered by index then title. When liveOnly is
// set, hidden categories are skipped.
func (s *CategoryStore) List(liveOnly bool) ([]models.Category, error) {
	q := categorySelect
	if liveOnly {
		q += ` WHERE c.live`
	}
	rows, err := s.db.Query(q + ` ORDER BY c.sort_index, c.title`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// FindByID returns a category or nil if not found.
func (s *CategoryStore) FindByID(id uuid.UUID) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRow(categorySelect+` WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

// Create inserts a category.
func (s *CategoryStore) Create(c *models.Category) (*models.Category, error) {
	var id uuid.UUID
	err := s.db.QueryRow(`
		INSERT INTO categories (title, body, sort_index, live)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, c.Title, c.Body, c.Index, c.Live).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return s.FindByID(id)
}

// Update saves a category's editable fields.
func (s *CategoryStore) Update(c *models.Category) error {
	res, err := s.db.Exec(`
		UPDATE categories SET title = $1, body = $2, sort_index = $3, live = $4, updated_at = NOW()
		WHERE id = $5`, c.Title, c.Body, c.Index, c.Live, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return expectOne(res, "category")
}

// Delete removes a category with its products and variants.
func (s *CategoryStore) Delete(id uuid.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM categories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// ErrNotFound is returned by mutations whose target row does not exist.
var ErrNotFound = errors.New("not found")

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
