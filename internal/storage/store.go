package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pricewatch/internal/config"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested product or alert does not exist.
	ErrNotFound = errors.New("storage: not found")
)

// ProductStore defines catalog read/write operations.
type ProductStore interface {
	UpsertProduct(ctx context.Context, product Product) error
	GetProduct(ctx context.Context, productID int64) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]ProductPrice, error)
	ProductStats(ctx context.Context) (CatalogStats, error)
	ListCategories(ctx context.Context) ([]string, error)
	UpdateStockAvailability(ctx context.Context, productID int64, status string) error
}

// ObservationStore defines price history operations.
type ObservationStore interface {
	InsertObservation(ctx context.Context, obs NewObservation) error
	LatestObservation(ctx context.Context, productID int64) (PriceObservation, error)
	ListCurrentPrices(ctx context.Context) ([]ProductPrice, error)
	ListLatestPrices(ctx context.Context, limit int) ([]ProductPrice, error)
	PriceTrends(ctx context.Context, productID int64, since time.Time) ([]TrendPoint, error)
	CompetitorAnalysis(ctx context.Context, limit int) ([]CompetitorGap, error)
}

// AlertStore defines alert rule operations.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert NewAlert) (AlertRule, error)
	GetAlert(ctx context.Context, alertID int64) (AlertRule, error)
	DeactivateAlert(ctx context.Context, alertID int64) error
	ListActiveAlerts(ctx context.Context) ([]ActiveAlertRow, error)
	UpdateAlertThreshold(ctx context.Context, alertID int64, threshold decimal.Decimal) (decimal.Decimal, error)
}

// HistoryStore defines alert trigger auditing operations.
type HistoryStore interface {
	RecordTrigger(ctx context.Context, event TriggerEvent) error
	ListAlertHistory(ctx context.Context, limit int) ([]AlertTriggerRecord, error)
	ListAlertHistoryByAlert(ctx context.Context, alertID int64) ([]AlertTriggerRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// Store aggregates access to products, price history, and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

const (
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

var (
	_ ProductStore     = (*Store)(nil)
	_ ObservationStore = (*Store)(nil)
	_ AlertStore       = (*Store)(nil)
	_ HistoryStore     = (*Store)(nil)
	_ AdvisoryLocker   = (*Store)(nil)
)
