package simulator

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/storage"
)

// scriptedRand replays a fixed sequence of draws.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) Intn(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

type fakeStore struct {
	rows         []storage.ProductPrice
	inserted     []storage.NewObservation
	stockUpdates map[int64]string
}

func (f *fakeStore) ListCurrentPrices(ctx context.Context) ([]storage.ProductPrice, error) {
	return f.rows, nil
}

func (f *fakeStore) InsertObservation(ctx context.Context, obs storage.NewObservation) error {
	f.inserted = append(f.inserted, obs)
	return nil
}

func (f *fakeStore) UpdateStockAvailability(ctx context.Context, productID int64, status string) error {
	if f.stockUpdates == nil {
		f.stockUpdates = make(map[int64]string)
	}
	f.stockUpdates[productID] = status
	return nil
}

func seedRow(id int64, amazon, actual, competitor float64) storage.ProductPrice {
	row := storage.ProductPrice{
		AmazonPrice:     decimal.NewFromFloat(amazon),
		ActualPrice:     decimal.NewFromFloat(actual),
		CompetitorPrice: decimal.NewFromFloat(competitor),
		StockStatus:     storage.StockInStock,
	}
	row.ProductID = id
	return row
}

func TestTickNoChangeAppendsNothing(t *testing.T) {
	store := &fakeStore{rows: []storage.ProductPrice{seedRow(1, 100, 120, 110)}}
	// All keep branches: amazon drift, actual drift, competitor no-react then
	// keep, stock keep.
	rng := &scriptedRand{floats: []float64{0.1, 0.1, 0.9, 0.1, 0.1}}
	sim := New(store, rng, zerolog.Nop())

	updates, err := sim.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, updates)
	assert.Empty(t, store.inserted)
}

func TestTickActualPriceClampedToOfferPrice(t *testing.T) {
	store := &fakeStore{rows: []storage.ProductPrice{seedRow(1, 100, 100, 0)}}
	// Amazon price takes the maximum positive delta (+5%), actual keeps its
	// old value and must be clamped up to the new offer price.
	rng := &scriptedRand{floats: []float64{0.9, 1.0, 0.1, 0.1}}
	sim := New(store, rng, zerolog.Nop())

	updates, err := sim.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, updates)
	require.Len(t, store.inserted, 1)

	obs := store.inserted[0]
	assert.True(t, obs.AmazonPrice.Equal(decimal.NewFromFloat(105)), "amazon price: %s", obs.AmazonPrice)
	assert.True(t, obs.ActualPrice.GreaterThanOrEqual(obs.AmazonPrice),
		"actual %s must not be below amazon %s", obs.ActualPrice, obs.AmazonPrice)
}

func TestTickCompetitorMatchesCheaperPlatform(t *testing.T) {
	store := &fakeStore{rows: []storage.ProductPrice{seedRow(1, 100, 120, 110)}}
	// Own prices keep; competitor reacts, rolls a match, and lands on the
	// bottom of the [0.95, 1.02] band.
	rng := &scriptedRand{floats: []float64{0.1, 0.1, 0.1, 0.1, 0.0, 0.1}}
	sim := New(store, rng, zerolog.Nop())

	updates, err := sim.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, updates)
	require.Len(t, store.inserted, 1)

	obs := store.inserted[0]
	assert.True(t, obs.CompetitorPrice.Equal(decimal.NewFromFloat(95)), "competitor price: %s", obs.CompetitorPrice)
}

func TestTickStockFlipRecordedAndMirrored(t *testing.T) {
	store := &fakeStore{rows: []storage.ProductPrice{seedRow(7, 100, 120, 110)}}
	// Everything keeps except the stock draw, which redraws Out of Stock.
	rng := &scriptedRand{
		floats: []float64{0.1, 0.1, 0.9, 0.1, 0.99},
		ints:   []int{1},
	}
	sim := New(store, rng, zerolog.Nop())

	updates, err := sim.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, updates)
	require.Len(t, store.inserted, 1)

	assert.Equal(t, storage.StockOutOfStock, store.inserted[0].StockStatus)
	assert.Equal(t, storage.StockOutOfStock, store.stockUpdates[7])
}

func TestDriftPriceFloorsAtMinimum(t *testing.T) {
	sim := New(&fakeStore{}, &scriptedRand{floats: []float64{0.9, 0.0}}, zerolog.Nop())

	next := sim.driftPrice(decimal.NewFromFloat(0.01), ownDriftMaxPct)
	assert.True(t, next.GreaterThanOrEqual(minPrice), "price %s fell below floor", next)
}

func TestDriftPriceZeroPassesThrough(t *testing.T) {
	sim := New(&fakeStore{}, &scriptedRand{floats: []float64{0.9, 0.5}}, zerolog.Nop())

	next := sim.driftPrice(decimal.Zero, ownDriftMaxPct)
	assert.True(t, next.IsZero())
}
