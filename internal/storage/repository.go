package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	upsertProductSQL = `INSERT INTO products (
        product_id, name, brand, main_category, sub_category,
        product_category, ratings, no_of_ratings, stock_availability
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    ON CONFLICT (product_id) DO UPDATE
    SET name               = EXCLUDED.name,
        brand              = EXCLUDED.brand,
        main_category      = EXCLUDED.main_category,
        sub_category       = EXCLUDED.sub_category,
        product_category   = EXCLUDED.product_category,
        ratings            = EXCLUDED.ratings,
        no_of_ratings      = EXCLUDED.no_of_ratings,
        stock_availability = EXCLUDED.stock_availability;`

	getProductSQL = `SELECT
        product_id, name, brand, main_category, sub_category,
        product_category, ratings, no_of_ratings, stock_availability
    FROM products
    WHERE product_id = $1;`

	updateStockAvailabilitySQL = `UPDATE products
    SET stock_availability = $2
    WHERE product_id = $1;`

	listCategoriesSQL = `SELECT DISTINCT main_category
    FROM products
    WHERE main_category <> ''
    ORDER BY main_category;`

	catalogStatsSQL = `SELECT
        COUNT(*),
        COALESCE(AVG(ph.amazon_price), 0),
        COALESCE(AVG(ph.actual_price), 0),
        COALESCE(AVG(p.no_of_ratings), 0)
    FROM products p
    JOIN LATERAL (
        SELECT amazon_price, actual_price
        FROM price_history
        WHERE product_id = p.product_id
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    ) ph ON TRUE;`

	topReviewedSQL = `SELECT name, no_of_ratings
    FROM products
    ORDER BY no_of_ratings DESC
    LIMIT 10;`

	insertObservationSQL = `INSERT INTO price_history (
        product_id, amazon_price, actual_price, competitor_price,
        discount_percentage, price_diff_vs_competitor, price_diff_percentage,
        stock_status
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	latestObservationSQL = `SELECT
        id, product_id, amazon_price, actual_price, competitor_price,
        discount_percentage, price_diff_vs_competitor, price_diff_percentage,
        stock_status, recorded_at
    FROM price_history
    WHERE product_id = $1
    ORDER BY recorded_at DESC, id DESC
    LIMIT 1;`

	priceTrendsSQL = `SELECT recorded_at, amazon_price, competitor_price
    FROM price_history
    WHERE product_id = $1
      AND recorded_at >= $2
    ORDER BY recorded_at, id;`

	competitorAnalysisSQL = `SELECT
        p.product_id, p.name, ph.amazon_price, ph.competitor_price,
        ph.price_diff_percentage
    FROM products p
    JOIN LATERAL (
        SELECT amazon_price, competitor_price, price_diff_percentage
        FROM price_history
        WHERE product_id = p.product_id
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    ) ph ON TRUE
    WHERE ph.competitor_price > 0
    ORDER BY ph.price_diff_percentage DESC
    LIMIT $1;`

	// Latest observation per product joined back to the catalog row.
	currentPricesSQL = `SELECT
        p.product_id, p.name, p.brand, p.main_category, p.sub_category,
        p.product_category, p.ratings, p.no_of_ratings, p.stock_availability,
        ph.amazon_price, ph.actual_price, ph.competitor_price,
        ph.discount_percentage, ph.stock_status, ph.recorded_at
    FROM products p
    JOIN LATERAL (
        SELECT amazon_price, actual_price, competitor_price,
               discount_percentage, stock_status, recorded_at
        FROM price_history
        WHERE product_id = p.product_id
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    ) ph ON TRUE
    ORDER BY p.product_id;`

	latestPricesSQL = `SELECT
        p.product_id, p.name, p.brand, p.main_category, p.sub_category,
        p.product_category, p.ratings, p.no_of_ratings, p.stock_availability,
        ph.amazon_price, ph.actual_price, ph.competitor_price,
        ph.discount_percentage, ph.stock_status, ph.recorded_at
    FROM products p
    JOIN LATERAL (
        SELECT amazon_price, actual_price, competitor_price,
               discount_percentage, stock_status, recorded_at
        FROM price_history
        WHERE product_id = p.product_id
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    ) ph ON TRUE
    ORDER BY p.product_id
    LIMIT $1;`
)

// UpsertProduct creates or refreshes a catalog row.
func (s *Store) UpsertProduct(ctx context.Context, product Product) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertProductSQL,
		product.ProductID,
		product.Name,
		product.Brand,
		product.MainCategory,
		product.SubCategory,
		product.ProductCategory,
		product.Ratings,
		product.NoOfRatings,
		product.StockAvailability,
	)
	if execErr != nil {
		return fmt.Errorf("upsert product: %w", execErr)
	}
	return nil
}

// GetProduct fetches one catalog row.
func (s *Store) GetProduct(ctx context.Context, productID int64) (Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return Product{}, err
	}

	var p Product
	scanErr := pool.QueryRow(ctx, getProductSQL, productID).Scan(
		&p.ProductID,
		&p.Name,
		&p.Brand,
		&p.MainCategory,
		&p.SubCategory,
		&p.ProductCategory,
		&p.Ratings,
		&p.NoOfRatings,
		&p.StockAvailability,
	)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", scanErr)
	}
	return p, nil
}

// UpdateStockAvailability mirrors the latest simulated stock label onto the product.
func (s *Store) UpdateStockAvailability(ctx context.Context, productID int64, status string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, updateStockAvailabilitySQL, productID, status)
	if execErr != nil {
		return fmt.Errorf("update stock availability: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProducts lists catalog rows with their latest prices, filtered.
func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]ProductPrice, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query := `SELECT
        p.product_id, p.name, p.brand, p.main_category, p.sub_category,
        p.product_category, p.ratings, p.no_of_ratings, p.stock_availability,
        ph.amazon_price, ph.actual_price, ph.competitor_price,
        ph.discount_percentage, ph.stock_status, ph.recorded_at
    FROM products p
    JOIN LATERAL (
        SELECT amazon_price, actual_price, competitor_price,
               discount_percentage, stock_status, recorded_at
        FROM price_history
        WHERE product_id = p.product_id
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    ) ph ON TRUE
    WHERE 1=1`

	args := make([]any, 0, 5)
	if filter.MinPrice != nil {
		args = append(args, filter.MinPrice.String())
		query += fmt.Sprintf(" AND ph.amazon_price >= $%d", len(args))
	}
	if filter.MaxPrice != nil {
		args = append(args, filter.MaxPrice.String())
		query += fmt.Sprintf(" AND ph.amazon_price <= $%d", len(args))
	}
	if filter.MinRatings != nil {
		args = append(args, *filter.MinRatings)
		query += fmt.Sprintf(" AND p.no_of_ratings >= $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND p.name ILIKE $%d", len(args))
	}
	query += " ORDER BY p.product_id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list products: %w", queryErr)
	}
	defer rows.Close()

	return collectProductPrices(rows)
}

// ProductStats aggregates catalog-wide figures.
func (s *Store) ProductStats(ctx context.Context) (CatalogStats, error) {
	pool, err := s.getPool()
	if err != nil {
		return CatalogStats{}, err
	}

	var stats CatalogStats
	var avgAmazon, avgActual string
	if scanErr := pool.QueryRow(ctx, catalogStatsSQL).Scan(
		&stats.ProductCount,
		&avgAmazon,
		&avgActual,
		&stats.AvgRatingCount,
	); scanErr != nil {
		return CatalogStats{}, fmt.Errorf("catalog stats: %w", scanErr)
	}

	var convErr error
	stats.AvgAmazonPrice, convErr = decimal.NewFromString(avgAmazon)
	if convErr != nil {
		return CatalogStats{}, fmt.Errorf("parse avg amazon price: %w", convErr)
	}
	stats.AvgActualPrice, convErr = decimal.NewFromString(avgActual)
	if convErr != nil {
		return CatalogStats{}, fmt.Errorf("parse avg actual price: %w", convErr)
	}

	rows, queryErr := pool.Query(ctx, topReviewedSQL)
	if queryErr != nil {
		return CatalogStats{}, fmt.Errorf("top reviewed products: %w", queryErr)
	}
	defer rows.Close()

	for rows.Next() {
		var top TopProduct
		if err := rows.Scan(&top.Name, &top.NoOfRatings); err != nil {
			return CatalogStats{}, err
		}
		stats.TopReviewedProducts = append(stats.TopReviewedProducts, top)
	}
	if rows.Err() != nil {
		return CatalogStats{}, rows.Err()
	}
	return stats, nil
}

// ListCategories returns the distinct main categories in the catalog.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCategoriesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list categories: %w", queryErr)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return categories, nil
}

// deriveObservation computes the derived history columns. Discount is
// defined as zero when actual_price is zero, likewise the competitor
// percentage when amazon_price is zero.
func deriveObservation(obs NewObservation) (discount, diff, diffPct decimal.Decimal) {
	hundred := decimal.NewFromInt(100)

	if obs.ActualPrice.IsPositive() {
		discount = obs.ActualPrice.Sub(obs.AmazonPrice).Div(obs.ActualPrice).Mul(hundred)
	}
	if !obs.CompetitorPrice.IsZero() {
		diff = obs.CompetitorPrice.Sub(obs.AmazonPrice)
		if obs.AmazonPrice.IsPositive() {
			diffPct = diff.Div(obs.AmazonPrice).Mul(hundred)
		}
	}
	return discount, diff, diffPct
}

// InsertObservation appends one price history row, deriving discount and
// competitor difference columns.
func (s *Store) InsertObservation(ctx context.Context, obs NewObservation) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	discount, diff, diffPct := deriveObservation(obs)

	_, execErr := pool.Exec(ctx, insertObservationSQL,
		obs.ProductID,
		obs.AmazonPrice.String(),
		obs.ActualPrice.String(),
		obs.CompetitorPrice.String(),
		discount.String(),
		diff.String(),
		diffPct.String(),
		obs.StockStatus,
	)
	if execErr != nil {
		return fmt.Errorf("insert observation: %w", execErr)
	}
	return nil
}

// LatestObservation returns the most recent history row for a product.
func (s *Store) LatestObservation(ctx context.Context, productID int64) (PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceObservation{}, err
	}

	var (
		obs                                                  PriceObservation
		amazonStr, actualStr, competitorStr                  string
		discountStr, diffStr, diffPctStr                     string
	)
	scanErr := pool.QueryRow(ctx, latestObservationSQL, productID).Scan(
		&obs.ID,
		&obs.ProductID,
		&amazonStr,
		&actualStr,
		&competitorStr,
		&discountStr,
		&diffStr,
		&diffPctStr,
		&obs.StockStatus,
		&obs.RecordedAt,
	)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return PriceObservation{}, ErrNotFound
		}
		return PriceObservation{}, fmt.Errorf("latest observation: %w", scanErr)
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&obs.AmazonPrice, amazonStr},
		{&obs.ActualPrice, actualStr},
		{&obs.CompetitorPrice, competitorStr},
		{&obs.DiscountPercentage, discountStr},
		{&obs.PriceDiff, diffStr},
		{&obs.PriceDiffPct, diffPctStr},
	} {
		value, convErr := decimal.NewFromString(field.src)
		if convErr != nil {
			return PriceObservation{}, fmt.Errorf("parse observation value: %w", convErr)
		}
		*field.dst = value
	}
	return obs, nil
}

// ListCurrentPrices returns every product joined with its latest observation.
func (s *Store) ListCurrentPrices(ctx context.Context) ([]ProductPrice, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, currentPricesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list current prices: %w", queryErr)
	}
	defer rows.Close()

	return collectProductPrices(rows)
}

// ListLatestPrices returns a bounded set of products with latest observations.
func (s *Store) ListLatestPrices(ctx context.Context, limit int) ([]ProductPrice, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, latestPricesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list latest prices: %w", queryErr)
	}
	defer rows.Close()

	return collectProductPrices(rows)
}

// PriceTrends returns a product's time series from the given instant onward.
func (s *Store) PriceTrends(ctx context.Context, productID int64, since time.Time) ([]TrendPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, priceTrendsSQL, productID, since)
	if queryErr != nil {
		return nil, fmt.Errorf("price trends: %w", queryErr)
	}
	defer rows.Close()

	points := make([]TrendPoint, 0)
	for rows.Next() {
		var (
			point                   TrendPoint
			amazonStr, competitorStr string
		)
		if err := rows.Scan(&point.RecordedAt, &amazonStr, &competitorStr); err != nil {
			return nil, err
		}

		var convErr error
		point.AmazonPrice, convErr = decimal.NewFromString(amazonStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse trend amazon price: %w", convErr)
		}
		point.CompetitorPrice, convErr = decimal.NewFromString(competitorStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse trend competitor price: %w", convErr)
		}
		points = append(points, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

// CompetitorAnalysis ranks latest rows by price difference vs competitor.
func (s *Store) CompetitorAnalysis(ctx context.Context, limit int) ([]CompetitorGap, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, competitorAnalysisSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("competitor analysis: %w", queryErr)
	}
	defer rows.Close()

	gaps := make([]CompetitorGap, 0, limit)
	for rows.Next() {
		var (
			gap                                    CompetitorGap
			amazonStr, competitorStr, diffPctStr   string
		)
		if err := rows.Scan(&gap.ProductID, &gap.Name, &amazonStr, &competitorStr, &diffPctStr); err != nil {
			return nil, err
		}

		var convErr error
		gap.AmazonPrice, convErr = decimal.NewFromString(amazonStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse gap amazon price: %w", convErr)
		}
		gap.CompetitorPrice, convErr = decimal.NewFromString(competitorStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse gap competitor price: %w", convErr)
		}
		gap.PriceDiffPct, convErr = decimal.NewFromString(diffPctStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse gap percentage: %w", convErr)
		}
		gaps = append(gaps, gap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return gaps, nil
}

func collectProductPrices(rows pgx.Rows) ([]ProductPrice, error) {
	prices := make([]ProductPrice, 0)
	for rows.Next() {
		var (
			pp                                  ProductPrice
			amazonStr, actualStr, competitorStr string
			discountStr                         string
		)
		if err := rows.Scan(
			&pp.ProductID,
			&pp.Name,
			&pp.Brand,
			&pp.MainCategory,
			&pp.SubCategory,
			&pp.ProductCategory,
			&pp.Ratings,
			&pp.NoOfRatings,
			&pp.StockAvailability,
			&amazonStr,
			&actualStr,
			&competitorStr,
			&discountStr,
			&pp.StockStatus,
			&pp.RecordedAt,
		); err != nil {
			return nil, err
		}

		for _, field := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&pp.AmazonPrice, amazonStr},
			{&pp.ActualPrice, actualStr},
			{&pp.CompetitorPrice, competitorStr},
			{&pp.DiscountPercentage, discountStr},
		} {
			value, convErr := decimal.NewFromString(field.src)
			if convErr != nil {
				return nil, fmt.Errorf("parse product price: %w", convErr)
			}
			*field.dst = value
		}
		prices = append(prices, pp)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return prices, nil
}
