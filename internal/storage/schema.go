package storage

import (
	"context"
	"fmt"
)

// Schema is bootstrapped in code rather than via migration files; the
// deployment story is a single schema version (no historical migration).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
        product_id BIGINT PRIMARY KEY,
        name TEXT NOT NULL,
        brand TEXT NOT NULL DEFAULT '',
        main_category TEXT NOT NULL DEFAULT '',
        sub_category TEXT NOT NULL DEFAULT '',
        product_category TEXT NOT NULL DEFAULT '',
        ratings DOUBLE PRECISION NOT NULL DEFAULT 0,
        no_of_ratings BIGINT NOT NULL DEFAULT 0,
        stock_availability TEXT NOT NULL DEFAULT 'In Stock'
    );`,

	`CREATE TABLE IF NOT EXISTS price_history (
        id BIGSERIAL PRIMARY KEY,
        product_id BIGINT NOT NULL REFERENCES products (product_id),
        amazon_price NUMERIC(12,2) NOT NULL,
        actual_price NUMERIC(12,2) NOT NULL,
        competitor_price NUMERIC(12,2) NOT NULL DEFAULT 0,
        discount_percentage NUMERIC(8,4) NOT NULL DEFAULT 0,
        price_diff_vs_competitor NUMERIC(12,2) NOT NULL DEFAULT 0,
        price_diff_percentage NUMERIC(8,4) NOT NULL DEFAULT 0,
        stock_status TEXT NOT NULL DEFAULT 'In Stock',
        recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,

	// Latest-observation lookup is the hot path.
	`CREATE INDEX IF NOT EXISTS idx_price_history_product_recorded
        ON price_history (product_id, recorded_at DESC, id DESC);`,

	`CREATE TABLE IF NOT EXISTS price_alerts (
        id BIGSERIAL PRIMARY KEY,
        product_id BIGINT NOT NULL REFERENCES products (product_id),
        alert_type TEXT NOT NULL,
        threshold_value NUMERIC(12,2) NOT NULL,
        comparison_type TEXT NOT NULL,
        notification_frequency TEXT NOT NULL,
        last_triggered TIMESTAMPTZ,
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,

	`CREATE TABLE IF NOT EXISTS alert_history (
        id BIGSERIAL PRIMARY KEY,
        alert_id BIGINT NOT NULL REFERENCES price_alerts (id),
        product_id BIGINT NOT NULL REFERENCES products (product_id),
        alert_type TEXT NOT NULL,
        threshold_value NUMERIC(12,2) NOT NULL,
        comparison_type TEXT NOT NULL,
        triggered_value NUMERIC(12,2) NOT NULL,
        triggered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        details TEXT NOT NULL DEFAULT ''
    );`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, stmt := range schemaStatements {
		if _, execErr := pool.Exec(ctx, stmt); execErr != nil {
			return fmt.Errorf("ensure schema: %w", execErr)
		}
	}
	return nil
}
