package predictor

// Feature names shared by all model stages.
const (
	featHour            = "hour"
	featDayOfWeek       = "day_of_week"
	featMonth           = "month"
	featRatings         = "ratings"
	featRatingCount     = "no_of_ratings"
	featAmazonPrice     = "amazon_price"
	featCompetitorPrice = "competitor_price"
	featVolatility      = "price_volatility"
	featBrand           = "brand_encoded"
	featMainCategory    = "main_category_encoded"
	featSubCategory     = "sub_category_encoded"
	featProductCategory = "product_category_encoded"
)

// Per-stage feature columns. Order is part of the artifact contract: the
// scalers and models are exported against these exact column sequences, so
// changing them silently breaks inference.
var (
	volatilityColumns = []string{
		featRatings, featRatingCount,
		featAmazonPrice, featCompetitorPrice,
		featBrand, featMainCategory, featSubCategory, featProductCategory,
	}

	priceColumns = []string{
		featHour, featDayOfWeek, featMonth,
		featRatings, featRatingCount,
		featCompetitorPrice, featVolatility,
		featBrand, featMainCategory, featSubCategory, featProductCategory,
	}

	discountColumns = []string{
		featHour, featDayOfWeek, featMonth,
		featRatings, featRatingCount,
		featAmazonPrice, featCompetitorPrice, featVolatility,
		featBrand, featMainCategory, featSubCategory, featProductCategory,
	}
)

// Ensemble blend weights for the price stage.
const (
	weightRF = 0.4
	weightGB = 0.4
	weightLR = 0.2
)

// Encoding used for categorical values unseen at training time.
const unknownCategory = -1.0

func vector(features map[string]float64, columns []string) []float64 {
	out := make([]float64, len(columns))
	for i, name := range columns {
		out[i] = features[name]
	}
	return out
}
