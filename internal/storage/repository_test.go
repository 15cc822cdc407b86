package storage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveObservation(t *testing.T) {
	obs := NewObservation{
		AmazonPrice:     decimal.NewFromInt(100),
		ActualPrice:     decimal.NewFromInt(120),
		CompetitorPrice: decimal.NewFromInt(110),
	}

	discount, diff, diffPct := deriveObservation(obs)

	// (120-100)/120*100 = 16.67%
	assert.True(t, discount.Round(2).Equal(decimal.NewFromFloat(16.67)), "discount = %s", discount)
	assert.True(t, diff.Equal(decimal.NewFromInt(10)), "diff = %s", diff)
	assert.True(t, diffPct.Equal(decimal.NewFromInt(10)), "diffPct = %s", diffPct)
}

func TestDeriveObservationZeroActualPrice(t *testing.T) {
	obs := NewObservation{
		AmazonPrice:     decimal.NewFromInt(100),
		ActualPrice:     decimal.Zero,
		CompetitorPrice: decimal.NewFromInt(90),
	}

	discount, diff, diffPct := deriveObservation(obs)

	assert.True(t, discount.IsZero(), "discount = %s", discount)
	assert.True(t, diff.Equal(decimal.NewFromInt(-10)), "diff = %s", diff)
	assert.True(t, diffPct.Equal(decimal.NewFromInt(-10)), "diffPct = %s", diffPct)
}

func TestDeriveObservationZeroCompetitor(t *testing.T) {
	obs := NewObservation{
		AmazonPrice: decimal.NewFromInt(100),
		ActualPrice: decimal.NewFromInt(100),
	}

	discount, diff, diffPct := deriveObservation(obs)

	assert.True(t, discount.IsZero())
	assert.True(t, diff.IsZero())
	assert.True(t, diffPct.IsZero())
}

func TestParseCatalogRow(t *testing.T) {
	columns := map[string]int{
		"product_id":         0,
		"name":               1,
		"discount_price":     2,
		"actual_price":       3,
		"competitor_price":   4,
		"ratings":            5,
		"no_of_ratings":      6,
		"brand":              7,
		"stock_availability": 8,
	}
	record := []string{"42", "Test Headphones", "1349.00", "1999.00", "1400.00", "4.2", "1200", "sony", "In Stock"}

	product, obs, err := parseCatalogRow(columns, record)
	require.NoError(t, err)

	assert.Equal(t, int64(42), product.ProductID)
	assert.Equal(t, "Test Headphones", product.Name)
	assert.Equal(t, "sony", product.Brand)
	assert.Equal(t, 4.2, product.Ratings)
	assert.Equal(t, int64(1200), product.NoOfRatings)
	assert.True(t, obs.AmazonPrice.Equal(decimal.NewFromFloat(1349)))
	assert.True(t, obs.ActualPrice.Equal(decimal.NewFromFloat(1999)))
	assert.True(t, obs.CompetitorPrice.Equal(decimal.NewFromFloat(1400)))
	assert.Equal(t, StockInStock, obs.StockStatus)
}

func TestParseCatalogRowDefaults(t *testing.T) {
	columns := map[string]int{
		"product_id":     0,
		"name":           1,
		"discount_price": 2,
		"actual_price":   3,
	}
	record := []string{"7", "Bare Minimum", "10.00", "12.00"}

	product, obs, err := parseCatalogRow(columns, record)
	require.NoError(t, err)

	assert.Equal(t, StockInStock, product.StockAvailability)
	assert.True(t, obs.CompetitorPrice.IsZero())
	assert.Zero(t, product.Ratings)
}

func TestParseCatalogRowRejectsBadValues(t *testing.T) {
	columns := map[string]int{
		"product_id":     0,
		"name":           1,
		"discount_price": 2,
		"actual_price":   3,
	}

	tests := []struct {
		name   string
		record []string
	}{
		{name: "bad product id", record: []string{"abc", "Name", "10", "12"}},
		{name: "empty name", record: []string{"1", "", "10", "12"}},
		{name: "bad price", record: []string{"1", "Name", "ten", "12"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parseCatalogRow(columns, tc.record)
			require.Error(t, err)
		})
	}
}
