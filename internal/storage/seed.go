package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SeedResult summarises a catalog load.
type SeedResult struct {
	Loaded  int
	Skipped int
}

// SeedFromCatalog loads a catalog CSV extract: one product row plus its
// initial price observation per record. Malformed rows are logged and
// skipped; a bad row never aborts the batch.
func (s *Store) SeedFromCatalog(ctx context.Context, path string, logger zerolog.Logger) (SeedResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return SeedResult{}, fmt.Errorf("read catalog header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"product_id", "name", "discount_price", "actual_price"} {
		if _, ok := columns[required]; !ok {
			return SeedResult{}, fmt.Errorf("catalog missing column %q", required)
		}
	}

	var result SeedResult
	line := 1
	for {
		line++
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			logger.Warn().Err(readErr).Int("line", line).Msg("skipping unreadable catalog row")
			result.Skipped++
			continue
		}

		product, obs, parseErr := parseCatalogRow(columns, record)
		if parseErr != nil {
			logger.Warn().Err(parseErr).Int("line", line).Msg("skipping invalid catalog row")
			result.Skipped++
			continue
		}

		if err := s.UpsertProduct(ctx, product); err != nil {
			return result, err
		}
		if err := s.InsertObservation(ctx, obs); err != nil {
			return result, err
		}
		result.Loaded++
	}

	return result, nil
}

func parseCatalogRow(columns map[string]int, record []string) (Product, NewObservation, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	productID, err := strconv.ParseInt(field("product_id"), 10, 64)
	if err != nil {
		return Product{}, NewObservation{}, fmt.Errorf("parse product_id: %w", err)
	}

	name := field("name")
	if name == "" {
		return Product{}, NewObservation{}, errors.New("empty product name")
	}

	amazonPrice, err := decimal.NewFromString(field("discount_price"))
	if err != nil {
		return Product{}, NewObservation{}, fmt.Errorf("parse discount_price: %w", err)
	}
	actualPrice, err := decimal.NewFromString(field("actual_price"))
	if err != nil {
		return Product{}, NewObservation{}, fmt.Errorf("parse actual_price: %w", err)
	}

	competitorPrice := decimal.Zero
	if raw := field("competitor_price"); raw != "" {
		competitorPrice, err = decimal.NewFromString(raw)
		if err != nil {
			return Product{}, NewObservation{}, fmt.Errorf("parse competitor_price: %w", err)
		}
	}

	ratings := 0.0
	if raw := field("ratings"); raw != "" {
		if ratings, err = strconv.ParseFloat(raw, 64); err != nil {
			return Product{}, NewObservation{}, fmt.Errorf("parse ratings: %w", err)
		}
	}
	ratingCount := int64(0)
	if raw := field("no_of_ratings"); raw != "" {
		if ratingCount, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return Product{}, NewObservation{}, fmt.Errorf("parse no_of_ratings: %w", err)
		}
	}

	stock := field("stock_availability")
	if stock == "" {
		stock = StockInStock
	}

	product := Product{
		ProductID:         productID,
		Name:              name,
		Brand:             field("brand"),
		MainCategory:      field("main_category"),
		SubCategory:       field("sub_category"),
		ProductCategory:   field("product_category"),
		Ratings:           ratings,
		NoOfRatings:       ratingCount,
		StockAvailability: stock,
	}
	obs := NewObservation{
		ProductID:       productID,
		AmazonPrice:     amazonPrice,
		ActualPrice:     actualPrice,
		CompetitorPrice: competitorPrice,
		StockStatus:     stock,
	}
	return product, obs, nil
}
