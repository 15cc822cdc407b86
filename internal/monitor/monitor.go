// Package monitor evaluates active alert rules against each product's
// latest price observation. Evaluation is read-only; persisting a trigger
// is an explicit separate step so a tick queried twice never double-counts.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/storage"
)

// Store is the persistence surface the monitor reads and records through.
type Store interface {
	ListActiveAlerts(ctx context.Context) ([]storage.ActiveAlertRow, error)
	InsertAlert(ctx context.Context, alert storage.NewAlert) (storage.AlertRule, error)
	RecordTrigger(ctx context.Context, event storage.TriggerEvent) error
	PriceTrends(ctx context.Context, productID int64, since time.Time) ([]storage.TrendPoint, error)
}

// TriggeredAlert describes one rule found satisfied during evaluation.
type TriggeredAlert struct {
	AlertID               int64           `json:"alert_id"`
	ProductID             int64           `json:"product_id"`
	ProductName           string          `json:"product_name"`
	AlertType             string          `json:"alert_type"`
	ThresholdValue        decimal.Decimal `json:"threshold_value"`
	ComparisonType        string          `json:"comparison_type"`
	NotificationFrequency string          `json:"notification_frequency"`
	LastTriggered         *time.Time      `json:"last_triggered"`
	TriggeredValue        decimal.Decimal `json:"triggered_value"`
	Description           string          `json:"description"`
}

// Monitor checks alert rules and manages their lifecycle.
type Monitor struct {
	store  Store
	logger zerolog.Logger
}

// New constructs a Monitor.
func New(store Store, logger zerolog.Logger) *Monitor {
	return &Monitor{
		store:  store,
		logger: logger.With().Str("component", "monitor").Logger(),
	}
}

// CheckAlerts evaluates every active rule against its product's latest
// observation. No state is mutated.
func (m *Monitor) CheckAlerts(ctx context.Context) ([]TriggeredAlert, error) {
	rows, err := m.store.ListActiveAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}

	triggered := make([]TriggeredAlert, 0)
	for _, row := range rows {
		hit, value, description := Evaluate(row)
		if !hit {
			continue
		}
		triggered = append(triggered, TriggeredAlert{
			AlertID:               row.ID,
			ProductID:             row.ProductID,
			ProductName:           row.ProductName,
			AlertType:             row.AlertType,
			ThresholdValue:        row.ThresholdValue,
			ComparisonType:        row.ComparisonType,
			NotificationFrequency: row.NotificationFrequency,
			LastTriggered:         row.LastTriggered,
			TriggeredValue:        value,
			Description:           description,
		})
	}
	return triggered, nil
}

// Evaluate applies one rule's predicate to its latest-observation context.
// It returns whether the rule fired, the observed triggering value, and a
// human-readable description.
func Evaluate(row storage.ActiveAlertRow) (bool, decimal.Decimal, string) {
	switch row.AlertType {
	case KindPriceDrop:
		if row.AmazonPrice.LessThanOrEqual(row.ThresholdValue) {
			return true, row.AmazonPrice, fmt.Sprintf(
				"Price Drop Alert: %s is now Rs. %s (below Rs. %s)",
				row.ProductName, row.AmazonPrice.StringFixed(2), row.ThresholdValue.StringFixed(2))
		}
	case KindCompetitorCheaper:
		if row.CompetitorPrice.IsPositive() && row.CompetitorPrice.LessThan(row.AmazonPrice) {
			return true, row.CompetitorPrice, fmt.Sprintf(
				"Competitor Alert: %s is cheaper at competitor (Rs. %s vs Rs. %s)",
				row.ProductName, row.CompetitorPrice.StringFixed(2), row.AmazonPrice.StringFixed(2))
		}
	case KindCompetitorHigher:
		if row.CompetitorPrice.GreaterThan(row.AmazonPrice) {
			return true, row.CompetitorPrice, fmt.Sprintf(
				"Competitor Alert: %s is dearer at competitor (Rs. %s vs Rs. %s)",
				row.ProductName, row.CompetitorPrice.StringFixed(2), row.AmazonPrice.StringFixed(2))
		}
	case KindPriceVolatility:
		if row.PriceDiffPct.Abs().GreaterThanOrEqual(row.ThresholdValue) {
			return true, row.PriceDiffPct, fmt.Sprintf(
				"Volatility Alert: %s price differs %s%% from competitor (threshold %s%%)",
				row.ProductName, row.PriceDiffPct.StringFixed(2), row.ThresholdValue.StringFixed(2))
		}
	case KindDiscountIncrease:
		if row.DiscountPercentage.GreaterThanOrEqual(row.ThresholdValue) {
			return true, row.DiscountPercentage, fmt.Sprintf(
				"Discount Alert: %s discounted %s%% (threshold %s%%)",
				row.ProductName, row.DiscountPercentage.StringFixed(2), row.ThresholdValue.StringFixed(2))
		}
	case KindStockStatus:
		if row.PrevStockStatus != nil && *row.PrevStockStatus != row.StockStatus {
			return true, decimal.Zero, fmt.Sprintf(
				"Stock Alert: %s changed from %q to %q",
				row.ProductName, *row.PrevStockStatus, row.StockStatus)
		}
	case KindCustomThreshold:
		if row.AmazonPrice.LessThan(row.ThresholdValue) {
			return true, row.AmazonPrice, fmt.Sprintf(
				"Threshold Alert: %s is now Rs. %s (below Rs. %s)",
				row.ProductName, row.AmazonPrice.StringFixed(2), row.ThresholdValue.StringFixed(2))
		}
	case KindPriceTrend, KindMarketPosition:
		// TODO: needs a windowed trend slope / catalog-wide market average;
		// neither input is available from a single latest observation.
	}
	return false, decimal.Zero, ""
}

// AddAlert creates a new active rule with last_triggered unset.
func (m *Monitor) AddAlert(ctx context.Context, alert storage.NewAlert) (storage.AlertRule, error) {
	if !KnownKind(alert.AlertType) {
		return storage.AlertRule{}, fmt.Errorf("unknown alert type %q", alert.AlertType)
	}
	rule, err := m.store.InsertAlert(ctx, alert)
	if err != nil {
		return storage.AlertRule{}, fmt.Errorf("add alert: %w", err)
	}
	m.logger.Info().
		Int64("alert_id", rule.ID).
		Int64("product_id", rule.ProductID).
		Str("alert_type", rule.AlertType).
		Msg("alert rule created")
	return rule, nil
}

// RecordTrigger persists one trigger event. The caller decides when a
// trigger observed by CheckAlerts becomes a recorded fact.
func (m *Monitor) RecordTrigger(ctx context.Context, alert TriggeredAlert) error {
	event := storage.TriggerEvent{
		AlertID:        alert.AlertID,
		ProductID:      alert.ProductID,
		AlertType:      alert.AlertType,
		ThresholdValue: alert.ThresholdValue,
		ComparisonType: alert.ComparisonType,
		TriggeredValue: alert.TriggeredValue,
		Details:        alert.Description,
	}
	if err := m.store.RecordTrigger(ctx, event); err != nil {
		return fmt.Errorf("record trigger: %w", err)
	}
	return nil
}

// PriceTrends returns a product's price series over the trailing window.
func (m *Monitor) PriceTrends(ctx context.Context, productID int64, days int) ([]storage.TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return m.store.PriceTrends(ctx, productID, since)
}

// ShouldNotify reports whether a rule's cadence permits acting on a trigger
// now. Immediate always notifies; daily and weekly gate on last_triggered.
func ShouldNotify(frequency string, lastTriggered *time.Time, now time.Time) bool {
	if lastTriggered == nil {
		return true
	}
	switch frequency {
	case FrequencyDaily:
		return now.Sub(*lastTriggered) >= 24*time.Hour
	case FrequencyWeekly:
		return now.Sub(*lastTriggered) >= 7*24*time.Hour
	default:
		return true
	}
}
