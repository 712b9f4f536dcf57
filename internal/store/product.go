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

// ProductStore manages products. Loaded products always carry their
// variants so stock and image helpers work without extra queries.
type ProductStore struct {
	db       *sql.DB
	variants *VariantStore
}

// NewProductStore returns a new ProductStore.
func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db, variants: NewVariantStore(db)}
}

const productSelect = `
	SELECT p.id, p.category_id, p.name, p.image_key, p.description, p.price,
	       p.sort_index, p.live, p.created_at, p.updated_at, c.title
	FROM products p
	JOIN categories c ON c.id = p.category_id`

// liveProductFilter matches products that are live and have at least one
// live variant.
const liveProductFilter = `p.live AND EXISTS (SELECT 1 FROM variants v WHERE v.product_id = p.id AND v.live)`

func scanProduct(scanner interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := scanner.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.ImageKey, &p.Description, &p.Price,
		&p.Index, &p.Live, &p.CreatedAt, &p.UpdatedAt, &p.CategoryTitle,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProductStore) query(q string, args ...any) ([]models.Product, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachVariants(items); err != nil {
		return nil, err
	}
	return items, nil
}

// attachVariants loads every variant of the given products in one query.
func (s *ProductStore) attachVariants(items []models.Product) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, p := range items {
		ids[i] = p.ID.String()
	}
	variants, err := s.variants.listByProducts(ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Variants = variants[items[i].ID]
	}
	return nil
}

// StockLevels returns the current stock of every variant of the given
// products, keyed by product then variant.
func (s *ProductStore) StockLevels(productIDs []uuid.UUID) (map[uuid.UUID]map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]map[uuid.UUID]int, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(productIDs))
	for i, id := range productIDs {
		ids[i] = id.String()
		out[id] = map[uuid.UUID]int{}
	}
	rows, err := s.db.Query(`SELECT product_id, id, stock FROM variants WHERE product_id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("load stock levels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var productID, variantID uuid.UUID
		var stock int
		if err := rows.Scan(&productID, &variantID, &stock); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		out[productID][variantID] = stock
	}
	return out, rows.Err()
}

// LiveByCategory returns the category's live products ordered by index
// then name.
func (s *ProductStore) LiveByCategory(categoryID uuid.UUID) ([]models.Product, error) {
	items, err := s.query(productSelect+`
		WHERE p.category_id = $1 AND `+liveProductFilter+`
		ORDER BY p.sort_index, p.name`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list live products: %w", err)
	}
	return items, nil
}

// ListByCategory returns every product of a category for the admin API.
func (s *ProductStore) ListByCategory(categoryID uuid.UUID) ([]models.Product, error) {
	items, err := s.query(productSelect+`
		WHERE p.category_id = $1
		ORDER BY p.sort_index, p.name`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return items, nil
}

// Search returns one page of live products in live categories whose name
// contains query, case-insensitively, plus the total match count.
func (s *ProductStore) Search(query string, limit, offset int) ([]models.Product, int, error) {
	where := `
		WHERE c.live AND ` + liveProductFilter + `
		  AND p.name ILIKE '%' || $1 || '%'`

	var total int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM products p JOIN categories c ON c.id = p.category_id`+where, query).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	items, err := s.query(productSelect+where+`
		ORDER BY p.name, p.id
		LIMIT $2 OFFSET $3`, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	return items, total, nil
}

// FindByID returns a product with its variants, or nil if not found.
func (s *ProductStore) FindByID(id uuid.UUID) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRow(productSelect+` WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	items := []models.Product{*p}
	if err := s.attachVariants(items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// Create inserts a product.
func (s *ProductStore) Create(p *models.Product) (*models.Product, error) {
	var id uuid.UUID
	err := s.db.QueryRow(`
		INSERT INTO products (category_id, name, image_key, description, price, sort_index, live)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.CategoryID, p.Name, p.ImageKey, p.Description, p.Price, p.Index, p.Live,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return s.FindByID(id)
}

// Update saves a product's editable fields.
func (s *ProductStore) Update(p *models.Product) error {
	res, err := s.db.Exec(`
		UPDATE products
		SET category_id = $1, name = $2, description = $3, price = $4,
		    sort_index = $5, live = $6, updated_at = NOW()
		WHERE id = $7`,
		p.CategoryID, p.Name, p.Description, p.Price, p.Index, p.Live, p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return expectOne(res, "product")
}

// SetImage stores the object key of the product's image.
func (s *ProductStore) SetImage(id uuid.UUID, key string) error {
	res, err := s.db.Exec(`UPDATE products SET image_key = $1, updated_at = NOW() WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("set product image: %w", err)
	}
	return expectOne(res, "product")
}

// Delete removes a product and, by cascade, its variants.
func (s *ProductStore) Delete(id uuid.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
