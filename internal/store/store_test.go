// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"pipshop/internal/database"
	"pipshop/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "pipshop")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "pipshop")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", testDSN())
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	// Run migrations to ensure the schema is current.
	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Downgrade goose global state.
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// cleanUsers removes test users by email. Call in t.Cleanup().
func cleanUsers(t *testing.T, db *sql.DB, emails ...string) {
	t.Helper()
	for _, email := range emails {
		db.Exec("DELETE FROM users WHERE email = $1", email)
	}
}

// catalogFixture is a throwaway category with one product and the given
// variant stocks. Everything is removed when the test ends.
type catalogFixture struct {
	Category *models.Category
	Product  *models.Product
	Variants []*models.Variant
}

func newCatalog(t *testing.T, db *sql.DB, price string, stocks ...int) *catalogFixture {
	t.Helper()

	cat, err := NewCategoryStore(db).Create(&models.Category{
		Title: "Test " + uuid.NewString()[:8],
		Index: 100,
		Live:  true,
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM categories WHERE id = $1", cat.ID) })

	prod, err := NewProductStore(db).Create(&models.Product{
		CategoryID: cat.ID,
		Name:       "Tee",
		Price:      decimal.RequireFromString(price),
		Index:      100,
		Live:       true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	f := &catalogFixture{Category: cat, Product: prod}
	vs := NewVariantStore(db)
	for i, stock := range stocks {
		size := []string{"S", "M", "L", "XL"}[i%4]
		v, err := vs.Create(&models.Variant{ProductID: prod.ID, Size: &size, Stock: stock, Live: true, SortOrder: i})
		if err != nil {
			t.Fatalf("create variant: %v", err)
		}
		f.Variants = append(f.Variants, v)
	}
	return f
}

// stockOf reads a variant's current stock.
func stockOf(t *testing.T, db *sql.DB, id uuid.UUID) int {
	t.Helper()
	var stock int
	if err := db.QueryRow(`SELECT stock FROM variants WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

// newBasket creates a basket that is removed when the test ends.
func newBasket(t *testing.T, db *sql.DB) *models.Basket {
	t.Helper()
	b, err := NewBasketStore(db).Create(time.Now().Add(15 * time.Minute))
	if err != nil {
		t.Fatalf("create basket: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM baskets WHERE id = $1", b.ID) })
	return b
}

// setTo returns a QuantityFunc that always asks for n.
func setTo(n int) QuantityFunc {
	return func(current, stock int) (int, error) { return n, nil }
}
