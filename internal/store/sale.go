// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

// SaleStore manages sales and their category and product discounts.
type SaleStore struct {
	db *sql.DB
}

// NewSaleStore returns a new SaleStore.
func NewSaleStore(db *sql.DB) *SaleStore {
	return &SaleStore{db: db}
}

const saleColumns = `id, name, COALESCE(banner_title, ''), COALESCE(banner_content, ''),
	banner_include_end, start_date, end_date, created_at`

func scanSale(scanner interface{ Scan(...any) error }) (*models.Sale, error) {
	var s models.Sale
	err := scanner.Scan(
		&s.ID, &s.Name, &s.BannerTitle, &s.BannerContent,
		&s.BannerIncludeEnd, &s.StartDate, &s.EndDate, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// Create inserts a sale with its items unless its closed date range meets
// an existing sale. The check runs under a table lock, so two concurrent
// creates cannot both pass it. On conflict the existing sale is returned
// and nothing is written.
func (s *SaleStore) Create(sale *models.Sale) (conflict *models.Sale, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`LOCK TABLE sales IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock sales: %w", err)
	}

	existing, err := scanSale(tx.QueryRow(`
		SELECT `+saleColumns+` FROM sales
		WHERE NOT (end_date < $1 OR start_date > $2)
		ORDER BY start_date
		LIMIT 1`, sale.StartDate, sale.EndDate))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check overlapping sales: %w", err)
	}

	err = tx.QueryRow(`
		INSERT INTO sales (name, banner_title, banner_content, banner_include_end, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		sale.Name, sale.BannerTitle, sale.BannerContent, sale.BannerIncludeEnd,
		sale.StartDate, sale.EndDate,
	).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}

	if err := insertSaleItems(tx, sale); err != nil {
		return nil, err
	}
	return nil, tx.Commit()
}

// Update saves a sale's fields and replaces its items. Overlaps are only
// checked when a sale is created.
func (s *SaleStore) Update(sale *models.Sale) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE sales
		SET name = $1, banner_title = $2, banner_content = $3, banner_include_end = $4,
		    start_date = $5, end_date = $6
		WHERE id = $7`,
		sale.Name, sale.BannerTitle, sale.BannerContent, sale.BannerIncludeEnd,
		sale.StartDate, sale.EndDate, sale.ID)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if err := expectOne(res, "sale"); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM sale_categories WHERE sale_id = $1`, sale.ID); err != nil {
		return fmt.Errorf("clear sale categories: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sale_products WHERE sale_id = $1`, sale.ID); err != nil {
		return fmt.Errorf("clear sale products: %w", err)
	}
	if err := insertSaleItems(tx, sale); err != nil {
		return err
	}
	return tx.Commit()
}

func insertSaleItems(tx *sql.Tx, sale *models.Sale) error {
	for i := range sale.Categories {
		sc := &sale.Categories[i]
		sc.SaleID = sale.ID
		err := tx.QueryRow(`
			INSERT INTO sale_categories (sale_id, category_id, discount)
			VALUES ($1, $2, $3) RETURNING id`,
			sale.ID, sc.CategoryID, sc.Discount).Scan(&sc.ID)
		if err != nil {
			return fmt.Errorf("insert sale category: %w", err)
		}
	}
	for i := range sale.Products {
		sp := &sale.Products[i]
		sp.SaleID = sale.ID
		err := tx.QueryRow(`
			INSERT INTO sale_products (sale_id, product_id, discount)
			VALUES ($1, $2, $3) RETURNING id`,
			sale.ID, sp.ProductID, sp.Discount).Scan(&sp.ID)
		if err != nil {
			return fmt.Errorf("insert sale product: %w", err)
		}
	}
	return nil
}

// FindByID returns a sale with its items, or nil if not found.
func (s *SaleStore) FindByID(id uuid.UUID) (*models.Sale, error) {
	sale, err := scanSale(s.db.QueryRow(`SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find sale: %w", err)
	}
	if err := loadSaleItems(s.db, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

// List returns all sales, most recent first, with their items.
func (s *SaleStore) List() ([]models.Sale, error) {
	rows, err := s.db.Query(`SELECT ` + saleColumns + ` FROM sales ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range sales {
		if err := loadSaleItems(s.db, &sales[i]); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

// Current returns the sale running at now, or nil when there is none or
// the running sale has no discounted categories or products.
func (s *SaleStore) Current(now time.Time) (*models.Sale, error) {
	sale, err := scanSale(s.db.QueryRow(`
		SELECT `+saleColumns+` FROM sales
		WHERE start_date <= $1 AND end_date > $1
		ORDER BY start_date
		LIMIT 1`, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current sale: %w", err)
	}
	if err := loadSaleItems(s.db, sale); err != nil {
		return nil, err
	}
	if !sale.HasItems() {
		return nil, nil
	}
	return sale, nil
}

// Delete removes a sale and its items.
func (s *SaleStore) Delete(id uuid.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM sales WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	return nil
}

func loadSaleItems(q querier, sale *models.Sale) error {
	rows, err := q.Query(`
		SELECT id, sale_id, category_id, discount FROM sale_categories
		WHERE sale_id = $1 ORDER BY id`, sale.ID)
	if err != nil {
		return fmt.Errorf("load sale categories: %w", err)
	}
	sale.Categories = nil
	for rows.Next() {
		var sc models.SaleCategory
		if err := rows.Scan(&sc.ID, &sc.SaleID, &sc.CategoryID, &sc.Discount); err != nil {
			rows.Close()
			return fmt.Errorf("scan sale category: %w", err)
		}
		sale.Categories = append(sale.Categories, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(`
		SELECT id, sale_id, product_id, discount FROM sale_products
		WHERE sale_id = $1 ORDER BY id`, sale.ID)
	if err != nil {
		return fmt.Errorf("load sale products: %w", err)
	}
	defer rows.Close()
	sale.Products = nil
	for rows.Next() {
		var sp models.SaleProduct
		if err := rows.Scan(&sp.ID, &sp.SaleID, &sp.ProductID, &sp.Discount); err != nil {
			return fmt.Errorf("scan sale product: %w", err)
		}
		sale.Products = append(sale.Products, sp)
	}
	return rows.Err()
}
