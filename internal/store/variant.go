package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

// VariantStore manages product variants. Stock is changed here only by
// the admin API; basket activity moves stock through BasketStore.
type VariantStore struct {
	db *sql.DB
}

// NewVariantStore returns a new VariantStore.
func NewVariantStore(db *sql.DB) *VariantStore {
	return &VariantStore{db: db}
}

const variantCols = `
	v.id, v.product_id, v.variant_name, v.colour, v.size, v.price, v.stock,
	v.live, v.image_key, v.sort_order, v.created_at, v.updated_at,
	p.name, p.price, p.category_id, c.title`

const variantJoins = `
	JOIN products p ON p.id = v.product_id
	JOIN categories c ON c.id = p.category_id`

const variantSelect = `SELECT ` + variantCols + ` FROM variants v ` + variantJoins

// variantDest lists scan destinations in variantSelect column order so
// joined queries can append them to their own.
func variantDest(v *models.Variant) []any {
	return []any{
		&v.ID, &v.ProductID, &v.VariantName, &v.Colour, &v.Size, &v.Price, &v.Stock,
		&v.Live, &v.ImageKey, &v.SortOrder, &v.CreatedAt, &v.UpdatedAt,
		&v.ProductName, &v.ProductPrice, &v.CategoryID, &v.CategoryTitle,
	}
}

func scanVariant(scanner interface{ Scan(...any) error }) (*models.Variant, error) {
	var v models.Variant
	if err := scanner.Scan(variantDest(&v)...); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindByID returns a variant with its product fields, or nil if not found.
func (s *VariantStore) FindByID(id uuid.UUID) (*models.Variant, error) {
	v, err := scanVariant(s.db.QueryRow(variantSelect+` WHERE v.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find variant: %w", err)
	}
	return v, nil
}

// ListByProduct returns a product's variants in display order.
func (s *VariantStore) ListByProduct(productID uuid.UUID) ([]models.Variant, error) {
	m, err := s.listByProducts([]string{productID.String()})
	if err != nil {
		return nil, err
	}
	return m[productID], nil
}

func (s *VariantStore) listByProducts(productIDs []string) (map[uuid.UUID][]models.Variant, error) {
	rows, err := s.db.Query(variantSelect+`
		WHERE v.product_id = ANY($1::uuid[])
		ORDER BY v.sort_order, v.created_at`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.Variant)
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out[v.ProductID] = append(out[v.ProductID], *v)
	}
	return out, rows.Err()
}

// Create inserts a variant. A missing price is filled in from the product.
func (s *VariantStore) Create(v *models.Variant) (*models.Variant, error) {
	var id uuid.UUID
	err := s.db.QueryRow(`
		INSERT INTO variants (product_id, variant_name, colour, size, price, stock, live, image_key, sort_order)
		VALUES ($1, $2, $3, $4,
		        COALESCE($5, (SELECT price FROM products WHERE id = $1)),
		        $6, $7, $8, $9)
		RETURNING id`,
		v.ProductID, v.VariantName, v.Colour, v.Size, v.Price, v.Stock, v.Live, v.ImageKey, v.SortOrder,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}
	return s.FindByID(id)
}

// ErrStockChanged is returned when a stock edit was made against a level
// that has since moved, usually by basket reservations.
var ErrStockChanged = errors.New("stock has changed")

// StockEdit is an admin change to a variant's stock. Set replaces the
// level, guarded by Expected when given; otherwise Delta is added.
type StockEdit struct {
	Set      *int
	Expected *int
	Delta    int
}

// Update saves a variant's editable fields and applies edit to its
// stock. A cleared price is filled in from the product again. A stock
// change is recorded as an admin_set movement.
func (s *VariantStore) Update(v *models.Variant, edit StockEdit) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var stock int
	err = tx.QueryRow(`SELECT stock FROM variants WHERE id = $1 FOR UPDATE`, v.ID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("variant %s: %w", v.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock variant: %w", err)
	}

	delta := edit.Delta
	if edit.Set != nil {
		if edit.Expected != nil && *edit.Expected != stock {
			return fmt.Errorf("variant %s at %d, expected %d: %w", v.ID, stock, *edit.Expected, ErrStockChanged)
		}
		delta = *edit.Set - stock
	}

	_, err = tx.Exec(`
		UPDATE variants
		SET variant_name = $1, colour = $2, size = $3,
		    price = COALESCE($4, (SELECT price FROM products WHERE id = variants.product_id)),
		    live = $5, sort_order = $6, updated_at = NOW()
		WHERE id = $7`,
		v.VariantName, v.Colour, v.Size, v.Price, v.Live, v.SortOrder, v.ID)
	if err != nil {
		return fmt.Errorf("update variant: %w", err)
	}
	if err := applyStock(tx, v.ID, delta, models.StockAdminSet, nil, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// SetImage stores the object key of the variant's image.
func (s *VariantStore) SetImage(id uuid.UUID, key string) error {
	res, err := s.db.Exec(`UPDATE variants SET image_key = $1, updated_at = NOW() WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("set variant image: %w", err)
	}
	return expectOne(res, "variant")
}

// Delete removes a variant.
func (s *VariantStore) Delete(id uuid.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM variants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete variant: %w", err)
	}
	return nil
}
