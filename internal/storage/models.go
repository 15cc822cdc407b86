package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock availability labels used across the catalog.
const (
	StockInStock    = "In Stock"
	StockOutOfStock = "Out of Stock"
)

// Product is a catalog entry. Immutable once seeded except for
// StockAvailability, which tracks the latest simulated observation.
type Product struct {
	ProductID         int64   `json:"product_id"`
	Name              string  `json:"name"`
	Brand             string  `json:"brand"`
	MainCategory      string  `json:"main_category"`
	SubCategory       string  `json:"sub_category"`
	ProductCategory   string  `json:"product_category"`
	Ratings           float64 `json:"ratings"`
	NoOfRatings       int64   `json:"no_of_ratings"`
	StockAvailability string  `json:"stock_availability"`
}

// PriceObservation is one append-only price history row.
type PriceObservation struct {
	ID                 int64           `json:"id"`
	ProductID          int64           `json:"product_id"`
	AmazonPrice        decimal.Decimal `json:"amazon_price"`
	ActualPrice        decimal.Decimal `json:"actual_price"`
	CompetitorPrice    decimal.Decimal `json:"competitor_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	PriceDiff          decimal.Decimal `json:"price_diff_vs_competitor"`
	PriceDiffPct       decimal.Decimal `json:"price_diff_percentage"`
	StockStatus        string          `json:"stock_status"`
	RecordedAt         time.Time       `json:"recorded_at"`
}

// NewObservation carries caller-supplied values for a history insert.
// Derived columns (discount, competitor diffs) are computed on write.
type NewObservation struct {
	ProductID       int64
	AmazonPrice     decimal.Decimal
	ActualPrice     decimal.Decimal
	CompetitorPrice decimal.Decimal
	StockStatus     string
}

// ProductPrice joins a product with its latest observation.
type ProductPrice struct {
	Product
	AmazonPrice        decimal.Decimal `json:"amazon_price"`
	ActualPrice        decimal.Decimal `json:"actual_price"`
	CompetitorPrice    decimal.Decimal `json:"competitor_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	StockStatus        string          `json:"stock_status"`
	RecordedAt         time.Time       `json:"recorded_at"`
}

// AlertRule is a standing monitored condition. Deactivation is logical;
// rows are never deleted so alert history keeps referential integrity.
type AlertRule struct {
	ID                    int64           `json:"id"`
	ProductID             int64           `json:"product_id"`
	AlertType             string          `json:"alert_type"`
	ThresholdValue        decimal.Decimal `json:"threshold_value"`
	ComparisonType        string          `json:"comparison_type"`
	NotificationFrequency string          `json:"notification_frequency"`
	LastTriggered         *time.Time      `json:"last_triggered"`
	IsActive              bool            `json:"is_active"`
	CreatedAt             time.Time       `json:"created_at"`
}

// NewAlert carries the fields required to create an alert rule.
type NewAlert struct {
	ProductID             int64
	AlertType             string
	ThresholdValue        decimal.Decimal
	ComparisonType        string
	NotificationFrequency string
}

// ActiveAlertRow joins an active rule with its product and the product's
// latest observation, which is all the evaluator needs for one pass.
// PrevStockStatus is nil when the product has a single observation.
type ActiveAlertRow struct {
	AlertRule
	ProductName        string          `json:"product_name"`
	AmazonPrice        decimal.Decimal `json:"current_price"`
	CompetitorPrice    decimal.Decimal `json:"competitor_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	PriceDiffPct       decimal.Decimal `json:"price_diff_percentage"`
	StockStatus        string          `json:"stock_status"`
	PrevStockStatus    *string         `json:"-"`
}

// AlertTriggerRecord is an immutable alert_history fact.
type AlertTriggerRecord struct {
	ID             int64           `json:"id"`
	AlertID        int64           `json:"alert_id"`
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name"`
	AlertType      string          `json:"alert_type"`
	ThresholdValue decimal.Decimal `json:"threshold_value"`
	ComparisonType string          `json:"comparison_type"`
	TriggeredValue decimal.Decimal `json:"triggered_value"`
	TriggeredAt    time.Time       `json:"triggered_at"`
	Details        string          `json:"details"`
}

// TriggerEvent carries the fields persisted when a rule fires.
type TriggerEvent struct {
	AlertID        int64
	ProductID      int64
	AlertType      string
	ThresholdValue decimal.Decimal
	ComparisonType string
	TriggeredValue decimal.Decimal
	Details        string
}

// TrendPoint is one sample of a product's bounded price time series.
type TrendPoint struct {
	RecordedAt      time.Time       `json:"recorded_at"`
	AmazonPrice     decimal.Decimal `json:"amazon_price"`
	CompetitorPrice decimal.Decimal `json:"competitor_price"`
}

// TopProduct summarises a highly reviewed catalog entry.
type TopProduct struct {
	Name        string `json:"name"`
	NoOfRatings int64  `json:"no_of_ratings"`
}

// CatalogStats aggregates catalog-wide pricing figures.
type CatalogStats struct {
	ProductCount        int64           `json:"product_count"`
	AvgAmazonPrice      decimal.Decimal `json:"average_amazon_price"`
	AvgActualPrice      decimal.Decimal `json:"average_actual_price"`
	AvgRatingCount      float64         `json:"average_rating_count"`
	TopReviewedProducts []TopProduct    `json:"top_reviewed_products"`
}

// CompetitorGap ranks a product by latest price difference vs competitor.
type CompetitorGap struct {
	ProductID       int64           `json:"product_id"`
	Name            string          `json:"name"`
	AmazonPrice     decimal.Decimal `json:"amazon_price"`
	CompetitorPrice decimal.Decimal `json:"competitor_price"`
	PriceDiffPct    decimal.Decimal `json:"price_difference_percent"`
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	MinRatings *int64
	Search     string
	Limit      int
}
