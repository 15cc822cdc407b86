package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertAlertSQL = `INSERT INTO price_alerts (
        product_id, alert_type, threshold_value, comparison_type,
        notification_frequency
    ) VALUES ($1,$2,$3,$4,$5)
    RETURNING id, product_id, alert_type, threshold_value, comparison_type,
        notification_frequency, last_triggered, is_active, created_at;`

	getAlertSQL = `SELECT
        id, product_id, alert_type, threshold_value, comparison_type,
        notification_frequency, last_triggered, is_active, created_at
    FROM price_alerts
    WHERE id = $1;`

	deactivateAlertSQL = `UPDATE price_alerts
    SET is_active = FALSE
    WHERE id = $1;`

	// Each active rule joined with its product's latest observation and the
	// stock label of the observation before it (for stock-change detection).
	listActiveAlertsSQL = `SELECT
        a.id, a.product_id, a.alert_type, a.threshold_value, a.comparison_type,
        a.notification_frequency, a.last_triggered, a.is_active, a.created_at,
        p.name,
        ph.amazon_price, ph.competitor_price, ph.discount_percentage,
        ph.price_diff_percentage, ph.stock_status,
        prev.stock_status
    FROM price_alerts a
    JOIN products p ON p.product_id = a.product_id
    JOIN LATERAL (
        SELECT id, amazon_price, competitor_price, discount_percentage,
               price_diff_percentage, stock_status
        FROM price_history
        WHERE product_id = a.product_id
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    ) ph ON TRUE
    LEFT JOIN LATERAL (
        SELECT stock_status
        FROM price_history
        WHERE product_id = a.product_id AND id <> ph.id
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    ) prev ON TRUE
    WHERE a.is_active
    ORDER BY a.created_at DESC, a.id DESC;`

	lockAlertThresholdSQL = `SELECT threshold_value
    FROM price_alerts
    WHERE id = $1
    FOR UPDATE;`

	updateAlertThresholdSQL = `UPDATE price_alerts
    SET threshold_value = $2
    WHERE id = $1;`

	lockAlertForTriggerSQL = `SELECT product_id
    FROM price_alerts
    WHERE id = $1
    FOR UPDATE;`

	insertTriggerSQL = `INSERT INTO alert_history (
        alert_id, product_id, alert_type, threshold_value, comparison_type,
        triggered_value, details
    ) VALUES ($1,$2,$3,$4,$5,$6,$7);`

	touchLastTriggeredSQL = `UPDATE price_alerts
    SET last_triggered = now()
    WHERE id = $1;`

	listAlertHistorySQL = `SELECT
        h.id, h.alert_id, h.product_id, p.name, h.alert_type,
        h.threshold_value, h.comparison_type, h.triggered_value,
        h.triggered_at, h.details
    FROM alert_history h
    JOIN products p ON p.product_id = h.product_id
    ORDER BY h.triggered_at DESC, h.id DESC
    LIMIT $1;`

	listAlertHistoryByAlertSQL = `SELECT
        h.id, h.alert_id, h.product_id, p.name, h.alert_type,
        h.threshold_value, h.comparison_type, h.triggered_value,
        h.triggered_at, h.details
    FROM alert_history h
    JOIN products p ON p.product_id = h.product_id
    WHERE h.alert_id = $1
    ORDER BY h.triggered_at DESC, h.id DESC;`
)

// InsertAlert creates an active alert rule with last_triggered unset.
func (s *Store) InsertAlert(ctx context.Context, alert NewAlert) (AlertRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRule{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.ProductID,
		alert.AlertType,
		alert.ThresholdValue.String(),
		alert.ComparisonType,
		alert.NotificationFrequency,
	)

	rule, scanErr := scanAlertRule(row)
	if scanErr != nil {
		return AlertRule{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rule, nil
}

// GetAlert fetches one alert rule.
func (s *Store) GetAlert(ctx context.Context, alertID int64) (AlertRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRule{}, err
	}

	rule, scanErr := scanAlertRule(pool.QueryRow(ctx, getAlertSQL, alertID))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return AlertRule{}, ErrNotFound
		}
		return AlertRule{}, fmt.Errorf("get alert: %w", scanErr)
	}
	return rule, nil
}

// DeactivateAlert clears the active flag; the row is kept for history.
func (s *Store) DeactivateAlert(ctx context.Context, alertID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, deactivateAlertSQL, alertID)
	if execErr != nil {
		return fmt.Errorf("deactivate alert: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveAlerts returns every active rule with the evaluation context.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]ActiveAlertRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveAlertsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]ActiveAlertRow, 0)
	for rows.Next() {
		var (
			row                                 ActiveAlertRow
			thresholdStr, amazonStr             string
			competitorStr, discountStr          string
			diffPctStr                          string
			prevStock                           *string
		)
		if err := rows.Scan(
			&row.ID,
			&row.ProductID,
			&row.AlertType,
			&thresholdStr,
			&row.ComparisonType,
			&row.NotificationFrequency,
			&row.LastTriggered,
			&row.IsActive,
			&row.CreatedAt,
			&row.ProductName,
			&amazonStr,
			&competitorStr,
			&discountStr,
			&diffPctStr,
			&row.StockStatus,
			&prevStock,
		); err != nil {
			return nil, err
		}
		row.PrevStockStatus = prevStock

		for _, field := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&row.ThresholdValue, thresholdStr},
			{&row.AmazonPrice, amazonStr},
			{&row.CompetitorPrice, competitorStr},
			{&row.DiscountPercentage, discountStr},
			{&row.PriceDiffPct, diffPctStr},
		} {
			value, convErr := decimal.NewFromString(field.src)
			if convErr != nil {
				return nil, fmt.Errorf("parse active alert value: %w", convErr)
			}
			*field.dst = value
		}
		alerts = append(alerts, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// UpdateAlertThreshold replaces a rule's threshold under a row lock and
// returns the previous value. Serialized against concurrent trigger writes.
func (s *Store) UpdateAlertThreshold(ctx context.Context, alertID int64, threshold decimal.Decimal) (decimal.Decimal, error) {
	pool, err := s.getPool()
	if err != nil {
		return decimal.Zero, err
	}

	tx, txErr := pool.Begin(ctx)
	if txErr != nil {
		return decimal.Zero, fmt.Errorf("begin threshold update: %w", txErr)
	}
	defer tx.Rollback(ctx)

	var previousStr string
	if scanErr := tx.QueryRow(ctx, lockAlertThresholdSQL, alertID).Scan(&previousStr); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("lock alert threshold: %w", scanErr)
	}

	previous, convErr := decimal.NewFromString(previousStr)
	if convErr != nil {
		return decimal.Zero, fmt.Errorf("parse previous threshold: %w", convErr)
	}

	if _, execErr := tx.Exec(ctx, updateAlertThresholdSQL, alertID, threshold.String()); execErr != nil {
		return decimal.Zero, fmt.Errorf("update alert threshold: %w", execErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return decimal.Zero, fmt.Errorf("commit threshold update: %w", commitErr)
	}
	return previous, nil
}

// RecordTrigger appends one alert_history row and stamps last_triggered,
// holding a row lock on the rule so racing evaluations serialize.
func (s *Store) RecordTrigger(ctx context.Context, event TriggerEvent) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, txErr := pool.Begin(ctx)
	if txErr != nil {
		return fmt.Errorf("begin trigger record: %w", txErr)
	}
	defer tx.Rollback(ctx)

	var productID int64
	if scanErr := tx.QueryRow(ctx, lockAlertForTriggerSQL, event.AlertID).Scan(&productID); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock alert for trigger: %w", scanErr)
	}

	if _, execErr := tx.Exec(ctx, insertTriggerSQL,
		event.AlertID,
		event.ProductID,
		event.AlertType,
		event.ThresholdValue.String(),
		event.ComparisonType,
		event.TriggeredValue.String(),
		event.Details,
	); execErr != nil {
		return fmt.Errorf("insert trigger record: %w", execErr)
	}

	if _, execErr := tx.Exec(ctx, touchLastTriggeredSQL, event.AlertID); execErr != nil {
		return fmt.Errorf("stamp last_triggered: %w", execErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("commit trigger record: %w", commitErr)
	}
	return nil
}

// ListAlertHistory lists the most recent trigger records.
func (s *Store) ListAlertHistory(ctx context.Context, limit int) ([]AlertTriggerRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertHistorySQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list alert history: %w", queryErr)
	}
	defer rows.Close()

	return collectTriggerRecords(rows)
}

// ListAlertHistoryByAlert lists every trigger record for one rule.
func (s *Store) ListAlertHistoryByAlert(ctx context.Context, alertID int64) ([]AlertTriggerRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertHistoryByAlertSQL, alertID)
	if queryErr != nil {
		return nil, fmt.Errorf("list alert history by alert: %w", queryErr)
	}
	defer rows.Close()

	return collectTriggerRecords(rows)
}

func scanAlertRule(row pgx.Row) (AlertRule, error) {
	var (
		rule         AlertRule
		thresholdStr string
	)
	if err := row.Scan(
		&rule.ID,
		&rule.ProductID,
		&rule.AlertType,
		&thresholdStr,
		&rule.ComparisonType,
		&rule.NotificationFrequency,
		&rule.LastTriggered,
		&rule.IsActive,
		&rule.CreatedAt,
	); err != nil {
		return AlertRule{}, err
	}

	threshold, convErr := decimal.NewFromString(thresholdStr)
	if convErr != nil {
		return AlertRule{}, fmt.Errorf("parse threshold: %w", convErr)
	}
	rule.ThresholdValue = threshold
	return rule, nil
}

func collectTriggerRecords(rows pgx.Rows) ([]AlertTriggerRecord, error) {
	records := make([]AlertTriggerRecord, 0)
	for rows.Next() {
		var (
			rec                        AlertTriggerRecord
			thresholdStr, triggeredStr string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.AlertID,
			&rec.ProductID,
			&rec.ProductName,
			&rec.AlertType,
			&thresholdStr,
			&rec.ComparisonType,
			&triggeredStr,
			&rec.TriggeredAt,
			&rec.Details,
		); err != nil {
			return nil, err
		}

		var convErr error
		rec.ThresholdValue, convErr = decimal.NewFromString(thresholdStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse history threshold: %w", convErr)
		}
		rec.TriggeredValue, convErr = decimal.NewFromString(triggeredStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse triggered value: %w", convErr)
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}
