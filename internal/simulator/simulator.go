// Package simulator advances the simulated market: each tick perturbs every
// product's latest prices with stochastic drift, competitor response, and
// stock flips, appending a history row per product that actually changed.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/storage"
)

const (
	// Probability that a price survives a tick unchanged.
	keepPriceProb = 0.70
	// Probability that the stock label survives a tick unchanged.
	keepStockProb = 0.95
	// Probability the competitor reacts to the platform's new price.
	competitorReactProb = 0.20
	// Probability the competitor matches when the platform is cheaper.
	competitorMatchProb = 0.70
	// Probability the competitor raises when the platform is dearer.
	competitorRaiseProb = 0.30

	ownDriftMaxPct        = 5.0
	competitorDriftMaxPct = 2.0
)

var (
	minPrice     = decimal.NewFromFloat(0.01)
	stockChoices = []string{storage.StockInStock, storage.StockOutOfStock}
)

// Rand is the subset of math/rand the simulator draws from. Injected so
// tests can force individual branches.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Store is the persistence surface the simulator writes through.
type Store interface {
	ListCurrentPrices(ctx context.Context) ([]storage.ProductPrice, error)
	InsertObservation(ctx context.Context, obs storage.NewObservation) error
	UpdateStockAvailability(ctx context.Context, productID int64, status string) error
}

// Simulator mutates the market one tick at a time.
type Simulator struct {
	store  Store
	rng    Rand
	logger zerolog.Logger
}

// New constructs a Simulator. A nil rng falls back to a time-seeded source.
func New(store Store, rng Rand, logger zerolog.Logger) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		store:  store,
		rng:    rng,
		logger: logger.With().Str("component", "simulator").Logger(),
	}
}

// Tick processes every product's latest observation once and returns the
// number of products whose prices or stock changed. Each change is a single
// row insert, so an interrupt between products never tears an observation.
func (s *Simulator) Tick(ctx context.Context) (int, error) {
	current, err := s.store.ListCurrentPrices(ctx)
	if err != nil {
		return 0, fmt.Errorf("load current prices: %w", err)
	}

	updates := 0
	for _, row := range current {
		if err := ctx.Err(); err != nil {
			return updates, err
		}

		newAmazon := s.driftPrice(row.AmazonPrice, ownDriftMaxPct)
		newActual := s.driftPrice(row.ActualPrice, ownDriftMaxPct)
		// A list price can never fall below the offer price.
		if newActual.LessThan(newAmazon) {
			newActual = newAmazon
		}
		newCompetitor := s.competitorResponse(newAmazon, row.CompetitorPrice)
		newStock := s.nextStockStatus(row.StockStatus)

		if newAmazon.Equal(row.AmazonPrice) &&
			newActual.Equal(row.ActualPrice) &&
			newCompetitor.Equal(row.CompetitorPrice) &&
			newStock == row.StockStatus {
			continue
		}

		obs := storage.NewObservation{
			ProductID:       row.ProductID,
			AmazonPrice:     newAmazon,
			ActualPrice:     newActual,
			CompetitorPrice: newCompetitor,
			StockStatus:     newStock,
		}
		if err := s.store.InsertObservation(ctx, obs); err != nil {
			s.logger.Error().Err(err).Int64("product_id", row.ProductID).Msg("failed to append observation")
			continue
		}
		if newStock != row.StockStatus {
			if err := s.store.UpdateStockAvailability(ctx, row.ProductID, newStock); err != nil {
				s.logger.Error().Err(err).Int64("product_id", row.ProductID).Msg("failed to update stock availability")
			}
		}
		updates++
	}

	return updates, nil
}

// driftPrice leaves the price alone with probability keepPriceProb, otherwise
// applies a uniform delta bounded by maxChangePct, floored at minPrice.
func (s *Simulator) driftPrice(current decimal.Decimal, maxChangePct float64) decimal.Decimal {
	if current.IsZero() {
		return current
	}
	if s.rng.Float64() < keepPriceProb {
		return current
	}

	price := current.InexactFloat64()
	maxChange := price * maxChangePct / 100
	change := (s.rng.Float64()*2 - 1) * maxChange

	next := decimal.NewFromFloat(price + change).Round(2)
	if next.LessThan(minPrice) {
		return minPrice
	}
	return next
}

// nextStockStatus keeps the current label with probability keepStockProb,
// otherwise redraws it uniformly.
func (s *Simulator) nextStockStatus(current string) string {
	if s.rng.Float64() < keepStockProb {
		return current
	}
	return stockChoices[s.rng.Intn(len(stockChoices))]
}

// competitorResponse models the competitor either reacting to the platform's
// new price or drifting on its own with a tighter bound.
func (s *Simulator) competitorResponse(newAmazon, current decimal.Decimal) decimal.Decimal {
	if current.IsZero() {
		return current
	}

	if s.rng.Float64() < competitorReactProb {
		if newAmazon.LessThan(current) {
			// Platform is cheaper: competitor tries to match or undercut.
			if s.rng.Float64() < competitorMatchProb {
				return s.scalePrice(newAmazon, 0.95, 1.02)
			}
		} else {
			// Platform is dearer: competitor may raise toward it.
			if s.rng.Float64() < competitorRaiseProb {
				return s.scalePrice(newAmazon, 0.90, 0.98)
			}
		}
	}

	return s.driftPrice(current, competitorDriftMaxPct)
}

func (s *Simulator) scalePrice(base decimal.Decimal, lo, hi float64) decimal.Decimal {
	factor := lo + s.rng.Float64()*(hi-lo)
	next := decimal.NewFromFloat(base.InexactFloat64() * factor).Round(2)
	if next.LessThan(minPrice) {
		return minPrice
	}
	return next
}
