// Package sale decides which variants are discounted by the running sale
// and by how much. A product-level discount overrides its category's
// discount, and a product discount of 0 takes the product out of the sale.
package sale

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pipshop/internal/models"
	"pipshop/internal/money"
)

// Store is the persistence the engine needs. *store.SaleStore satisfies it.
type Store interface {
	Create(s *models.Sale) (conflict *models.Sale, err error)
	Current(now time.Time) (*models.Sale, error)
}

// ValidationError is returned when a sale cannot be saved as given.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Engine creates sales and answers discount questions.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine returns an Engine backed by store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Validate checks the fields of s that do not depend on other sales.
func Validate(s *models.Sale) error {
	if s.Name == "" {
		return &ValidationError{Message: "Name is required"}
	}
	if !s.EndDate.After(s.StartDate) {
		return &ValidationError{Message: "End date must be after start date"}
	}
	for _, c := range s.Categories {
		if c.Discount < 0 || c.Discount > 100 {
			return &ValidationError{Message: "Discount must be between 0 and 100"}
		}
	}
	for _, p := range s.Products {
		if p.Discount < 0 || p.Discount > 100 {
			return &ValidationError{Message: "Discount must be between 0 and 100"}
		}
	}
	return nil
}

// Create validates and saves a new sale. Overlap with an existing sale is
// checked by the store under a table lock and reported as a
// *ValidationError naming the other sale.
func (e *Engine) Create(s *models.Sale) error {
	if err := Validate(s); err != nil {
		return err
	}

	conflict, err := e.store.Create(s)
	if err != nil {
		return fmt.Errorf("create sale: %w", err)
	}
	if conflict != nil {
		return &ValidationError{
			Message: fmt.Sprintf("A sale already exists for some of these dates (%s)", conflict),
		}
	}
	return nil
}

// Current returns the running sale, or nil.
func (e *Engine) Current() (*models.Sale, error) {
	return e.store.Current(e.now())
}

// Discounts loads the running sale once for use across a request.
func (e *Engine) Discounts() (Discounts, error) {
	s, err := e.Current()
	if err != nil {
		return Discounts{}, err
	}
	return Discounts{Sale: s}, nil
}

// Item is the sale row that applies to a variant.
type Item struct {
	Kind     string `json:"kind"` // "product" or "category"
	Discount int    `json:"discount"`
}

// Discounts answers price questions against one sale, which may be nil.
type Discounts struct {
	Sale *models.Sale
}

// Item returns the sale item for v. Product rows win over category rows
// and a product row with a discount of 0 excludes the product.
func (d Discounts) Item(v *models.Variant) (Item, bool) {
	if d.Sale == nil {
		return Item{}, false
	}
	for _, p := range d.Sale.Products {
		if p.ProductID == v.ProductID {
			if p.Discount == 0 {
				return Item{}, false
			}
			return Item{Kind: "product", Discount: p.Discount}, true
		}
	}
	for _, c := range d.Sale.Categories {
		if c.CategoryID == v.CategoryID {
			return Item{Kind: "category", Discount: c.Discount}, true
		}
	}
	return Item{}, false
}

// Price returns the discounted unit price of v and whether it is on sale.
func (d Discounts) Price(v *models.Variant) (decimal.Decimal, bool) {
	item, ok := d.Item(v)
	if !ok {
		return decimal.Decimal{}, false
	}
	return DiscountedPrice(v.UnitPrice(), item.Discount), true
}

// NameAndPrice renders the variant for a select list, e.g.
// "Black, M - £9.00 (was £10.00)".
func (d Discounts) NameAndPrice(v *models.Variant) string {
	price := v.UnitPrice()
	label := money.Format(price)
	if discounted, ok := d.Price(v); ok {
		label = fmt.Sprintf("%s (was %s)", money.Format(discounted), money.Format(price))
	}
	if full := v.FullName(); full != "" {
		return full + " - " + label
	}
	return label
}

// DiscountedPrice takes pct percent, rounded to pence, off price.
func DiscountedPrice(price decimal.Decimal, pct int) decimal.Decimal {
	return price.Sub(money.Percent(price, pct))
}

// Banner is what the shop shows while a sale runs.
type Banner struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Ends    string `json:"ends,omitempty"`
}

// BannerFor returns the banner of s, or nil when s is nil.
func BannerFor(s *models.Sale) *Banner {
	if s == nil {
		return nil
	}
	b := &Banner{Name: s.Name, Title: s.BannerTitle, Content: s.BannerContent}
	if s.BannerIncludeEnd {
		b.Ends = fmt.Sprintf("Sale ends on %s at %s",
			s.EndDate.Format("02 Jan 2006"), s.EndDate.Format("15:04"))
	}
	return b
}
