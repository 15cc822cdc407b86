// Package predictor serves price, discount, and volatility forecasts from a
// fixed ensemble of offline-trained model artifacts. Construction loads every
// artifact up front and fails fast when any is missing; a predictor with a
// partial artifact set must not exist. Prediction is stateless and safe to
// run concurrently.
package predictor

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// ProductInfo carries the static product attributes used as model inputs.
type ProductInfo struct {
	Brand           string
	MainCategory    string
	SubCategory     string
	ProductCategory string
	Ratings         float64
	RatingCount     float64
}

// PricePrediction is the output of the price ensemble stage.
type PricePrediction struct {
	PredictedPrice      float64            `json:"predicted_price"`
	ModelPredictions    map[string]float64 `json:"model_predictions"`
	PredictedVolatility float64            `json:"predicted_volatility"`
}

// Insights bundles every derived forecast for one product.
type Insights struct {
	CurrentPrice          float64            `json:"current_price"`
	PredictedPrice        float64            `json:"predicted_price"`
	PriceChange           float64            `json:"price_change"`
	PriceChangePercentage float64            `json:"price_change_percentage"`
	PriceTrend            string             `json:"price_trend"`
	PredictedDiscount     float64            `json:"predicted_discount"`
	PriceVolatility       float64            `json:"price_volatility"`
	ModelConfidence       map[string]float64 `json:"model_confidence"`
	CompetitivePosition   string             `json:"competitive_position"`
	PriceGap              float64            `json:"price_gap"`
}

// Predictor holds the loaded artifact set.
type Predictor struct {
	priceRF    regressor
	priceGB    regressor
	priceLR    regressor
	discount   regressor
	volatility regressor

	priceScaler      *standardScaler
	discountScaler   *standardScaler
	volatilityScaler *standardScaler

	brandEnc           *labelEncoder
	mainCategoryEnc    *labelEncoder
	subCategoryEnc     *labelEncoder
	productCategoryEnc *labelEncoder

	now    func() time.Time
	logger zerolog.Logger
}

// New loads all artifacts from dir. Any missing or undecodable artifact
// fails construction.
func New(dir string, logger zerolog.Logger) (*Predictor, error) {
	p := &Predictor{
		now:    time.Now,
		logger: logger.With().Str("component", "predictor").Logger(),
	}

	var err error
	if p.priceRF, err = loadModel(dir, fileModelPriceRF); err != nil {
		return nil, err
	}
	if p.priceGB, err = loadModel(dir, fileModelPriceGB); err != nil {
		return nil, err
	}
	if p.priceLR, err = loadModel(dir, fileModelPriceLR); err != nil {
		return nil, err
	}
	if p.discount, err = loadModel(dir, fileModelDiscount); err != nil {
		return nil, err
	}
	if p.volatility, err = loadModel(dir, fileModelVolatility); err != nil {
		return nil, err
	}

	if p.priceScaler, err = loadScaler(dir, fileScalerPrice); err != nil {
		return nil, err
	}
	if p.discountScaler, err = loadScaler(dir, fileScalerDiscount); err != nil {
		return nil, err
	}
	if p.volatilityScaler, err = loadScaler(dir, fileScalerVolatility); err != nil {
		return nil, err
	}

	if p.brandEnc, err = loadEncoder(dir, fileEncoderBrand); err != nil {
		return nil, err
	}
	if p.mainCategoryEnc, err = loadEncoder(dir, fileEncoderMainCategory); err != nil {
		return nil, err
	}
	if p.subCategoryEnc, err = loadEncoder(dir, fileEncoderSubCategory); err != nil {
		return nil, err
	}
	if p.productCategoryEnc, err = loadEncoder(dir, fileEncoderProductCategory); err != nil {
		return nil, err
	}

	p.logger.Info().Str("models_dir", dir).Msg("model artifacts loaded")
	return p, nil
}

// prepareFeatures assembles the full named feature map with a volatility
// placeholder of zero. Unknown categorical values encode to the sentinel.
func (p *Predictor) prepareFeatures(product ProductInfo, currentPrice, competitorPrice float64) map[string]float64 {
	now := p.now()
	return map[string]float64{
		featHour:            float64(now.Hour()),
		featDayOfWeek:       float64(now.Weekday()),
		featMonth:           float64(now.Month()),
		featRatings:         product.Ratings,
		featRatingCount:     product.RatingCount,
		featAmazonPrice:     currentPrice,
		featCompetitorPrice: competitorPrice,
		featVolatility:      0,
		featBrand:           p.brandEnc.Encode(product.Brand),
		featMainCategory:    p.mainCategoryEnc.Encode(product.MainCategory),
		featSubCategory:     p.subCategoryEnc.Encode(product.SubCategory),
		featProductCategory: p.productCategoryEnc.Encode(product.ProductCategory),
	}
}

// predictVolatility runs the volatility stage and writes the result back
// into the feature map, replacing the placeholder.
func (p *Predictor) predictVolatility(features map[string]float64) (float64, error) {
	scaled, err := p.volatilityScaler.Transform(vector(features, volatilityColumns))
	if err != nil {
		return 0, fmt.Errorf("volatility stage: %w", err)
	}
	volatility := p.volatility.Predict(scaled)
	features[featVolatility] = volatility
	return volatility, nil
}

// PredictPrice blends the three price regressors with fixed weights.
func (p *Predictor) PredictPrice(product ProductInfo, currentPrice, competitorPrice float64) (PricePrediction, error) {
	features := p.prepareFeatures(product, currentPrice, competitorPrice)

	volatility, err := p.predictVolatility(features)
	if err != nil {
		return PricePrediction{}, err
	}

	scaled, err := p.priceScaler.Transform(vector(features, priceColumns))
	if err != nil {
		return PricePrediction{}, fmt.Errorf("price stage: %w", err)
	}

	predictions := map[string]float64{
		"rf": p.priceRF.Predict(scaled),
		"gb": p.priceGB.Predict(scaled),
		"lr": p.priceLR.Predict(scaled),
	}
	blended := weightRF*predictions["rf"] + weightGB*predictions["gb"] + weightLR*predictions["lr"]

	return PricePrediction{
		PredictedPrice:      blended,
		ModelPredictions:    predictions,
		PredictedVolatility: volatility,
	}, nil
}

// PredictDiscount forecasts the discount percentage, clipped to [0, 100].
func (p *Predictor) PredictDiscount(product ProductInfo, currentPrice, competitorPrice float64) (float64, error) {
	features := p.prepareFeatures(product, currentPrice, competitorPrice)

	if _, err := p.predictVolatility(features); err != nil {
		return 0, err
	}

	scaled, err := p.discountScaler.Transform(vector(features, discountColumns))
	if err != nil {
		return 0, fmt.Errorf("discount stage: %w", err)
	}

	discount := p.discount.Predict(scaled)
	return math.Min(100, math.Max(0, discount)), nil
}

// Insights runs the full pipeline and derives the comparison fields. The
// caller always wants the complete bundle; partial results are not returned.
func (p *Predictor) Insights(product ProductInfo, currentPrice, competitorPrice float64) (Insights, error) {
	pricePred, err := p.PredictPrice(product, currentPrice, competitorPrice)
	if err != nil {
		return Insights{}, err
	}
	discountPred, err := p.PredictDiscount(product, currentPrice, competitorPrice)
	if err != nil {
		return Insights{}, err
	}

	priceChange := pricePred.PredictedPrice - currentPrice
	priceChangePct := 0.0
	if currentPrice != 0 {
		priceChangePct = priceChange / currentPrice * 100
	}

	trend := "stable"
	if math.Abs(priceChangePct) >= 1 {
		if priceChange > 0 {
			trend = "increasing"
		} else {
			trend = "decreasing"
		}
	}

	position := "below"
	if currentPrice > competitorPrice {
		position = "above"
	}

	confidence := make(map[string]float64, len(pricePred.ModelPredictions))
	for model, pred := range pricePred.ModelPredictions {
		confidence[model] = math.Abs(pred - pricePred.PredictedPrice)
	}

	return Insights{
		CurrentPrice:          currentPrice,
		PredictedPrice:        pricePred.PredictedPrice,
		PriceChange:           priceChange,
		PriceChangePercentage: priceChangePct,
		PriceTrend:            trend,
		PredictedDiscount:     discountPred,
		PriceVolatility:       pricePred.PredictedVolatility,
		ModelConfidence:       confidence,
		CompetitivePosition:   position,
		PriceGap:              math.Abs(currentPrice - competitorPrice),
	}, nil
}
