package monitor

// Alert kinds. PriceTrend and MarketPosition are part of the public
// taxonomy but are never triggered by single-observation evaluation.
const (
	KindPriceDrop         = "price_drop"
	KindCompetitorCheaper = "competitor_cheaper"
	KindCompetitorHigher  = "competitor_higher"
	KindPriceVolatility   = "price_volatility"
	KindDiscountIncrease  = "discount_increase"
	KindStockStatus       = "stock_status"
	KindPriceTrend        = "price_trend"
	KindMarketPosition    = "market_position"
	KindCustomThreshold   = "custom_threshold"
)

// Comparison modes.
const (
	ComparePercentage   = "percentage"
	CompareAbsolute     = "absolute"
	CompareStatusChange = "status_change"
	CompareTrendChange  = "trend_change"
)

// Notification cadences.
const (
	FrequencyImmediate = "immediate"
	FrequencyDaily     = "daily"
	FrequencyWeekly    = "weekly"
)

// AlertTypeDef describes one alert kind for API consumers.
type AlertTypeDef struct {
	Type            string   `json:"type"`
	Description     string   `json:"description"`
	ComparisonTypes []string `json:"comparison_types"`
	Frequencies     []string `json:"frequencies"`
}

// AlertTypes returns the static alert-kind taxonomy.
func AlertTypes() []AlertTypeDef {
	return []AlertTypeDef{
		{
			Type:            KindPriceDrop,
			Description:     "Alert when price drops below threshold",
			ComparisonTypes: []string{ComparePercentage, CompareAbsolute},
			Frequencies:     []string{FrequencyImmediate, FrequencyDaily, FrequencyWeekly},
		},
		{
			Type:            KindCompetitorCheaper,
			Description:     "Alert when competitor price is lower",
			ComparisonTypes: []string{ComparePercentage, CompareAbsolute},
			Frequencies:     []string{FrequencyImmediate, FrequencyDaily, FrequencyWeekly},
		},
		{
			Type:            KindCompetitorHigher,
			Description:     "Alert when competitor price is higher",
			ComparisonTypes: []string{ComparePercentage, CompareAbsolute},
			Frequencies:     []string{FrequencyImmediate, FrequencyDaily, FrequencyWeekly},
		},
		{
			Type:            KindPriceVolatility,
			Description:     "Alert on significant price changes",
			ComparisonTypes: []string{ComparePercentage},
			Frequencies:     []string{FrequencyDaily, FrequencyWeekly},
		},
		{
			Type:            KindStockStatus,
			Description:     "Alert on stock status changes",
			ComparisonTypes: []string{CompareStatusChange},
			Frequencies:     []string{FrequencyImmediate},
		},
		{
			Type:            KindDiscountIncrease,
			Description:     "Alert on discount threshold",
			ComparisonTypes: []string{ComparePercentage},
			Frequencies:     []string{FrequencyImmediate, FrequencyDaily},
		},
		{
			Type:            KindPriceTrend,
			Description:     "Alert on price trend changes",
			ComparisonTypes: []string{CompareTrendChange},
			Frequencies:     []string{FrequencyDaily, FrequencyWeekly},
		},
		{
			Type:            KindMarketPosition,
			Description:     "Alert on market position changes",
			ComparisonTypes: []string{ComparePercentage},
			Frequencies:     []string{FrequencyDaily, FrequencyWeekly},
		},
		{
			Type:            KindCustomThreshold,
			Description:     "Alert on custom price threshold",
			ComparisonTypes: []string{CompareAbsolute},
			Frequencies:     []string{FrequencyImmediate, FrequencyDaily, FrequencyWeekly},
		},
	}
}

// KnownKind reports whether the alert kind is part of the taxonomy.
func KnownKind(kind string) bool {
	for _, def := range AlertTypes() {
		if def.Type == kind {
			return true
		}
	}
	return false
}
