package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipshop/internal/models"
)

// saleAt creates a sale far in the future so tests never meet real data.
func saleAt(t *testing.T, s *SaleStore, start, end time.Time, f *catalogFixture) *models.Sale {
	t.Helper()
	sale := &models.Sale{
		Name:          "Store test sale",
		BannerTitle:   models.DefaultBannerTitle,
		BannerContent: models.DefaultBannerContent,
		StartDate:     start,
		EndDate:       end,
	}
	if f != nil {
		sale.Categories = []models.SaleCategory{{CategoryID: f.Category.ID, Discount: 10}}
	}
	conflict, err := s.Create(sale)
	require.NoError(t, err)
	require.Nil(t, conflict)
	t.Cleanup(func() { s.Delete(sale.ID) })
	return sale
}

func TestSaleCreateRejectsOverlaps(t *testing.T) {
	db := testDB(t)
	s := NewSaleStore(db)

	day := 24 * time.Hour
	base := time.Date(2391, 3, 10, 0, 0, 0, 0, time.UTC)
	existing := saleAt(t, s, base, base.Add(10*day), nil)

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"start inside", base.Add(5 * day), base.Add(20 * day)},
		{"end inside", base.Add(-5 * day), base.Add(5 * day)},
		{"contained", base.Add(day), base.Add(9 * day)},
		{"containing", base.Add(-day), base.Add(11 * day)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict, err := s.Create(&models.Sale{Name: tt.name, StartDate: tt.start, EndDate: tt.end})
			require.NoError(t, err)
			require.NotNil(t, conflict)
			assert.Equal(t, existing.ID, conflict.ID)
		})
	}

	after := saleAt(t, s, base.Add(11*day), base.Add(12*day), nil)
	assert.NotEqual(t, existing.ID, after.ID)
}

func TestSaleCurrentNeedsItems(t *testing.T) {
	db := testDB(t)
	s := NewSaleStore(db)
	f := newCatalog(t, db, "10", 1)

	start := time.Date(2390, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	empty := saleAt(t, s, start, end, nil)

	cur, err := s.Current(start.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, cur, "a sale without items is not current")

	empty.Categories = []models.SaleCategory{{CategoryID: f.Category.ID, Discount: 20}}
	require.NoError(t, s.Update(empty))

	cur, err = s.Current(start.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, cur)
	require.Len(t, cur.Categories, 1)
	assert.Equal(t, 20, cur.Categories[0].Discount)

	cur, err = s.Current(end)
	require.NoError(t, err)
	assert.Nil(t, cur, "the end date is exclusive")
}

func TestSaleDateConstraint(t *testing.T) {
	db := testDB(t)
	start := time.Date(2392, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewSaleStore(db).Create(&models.Sale{Name: "backwards", StartDate: start, EndDate: start.Add(-time.Hour)})
	assert.Error(t, err)
}
