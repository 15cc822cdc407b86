package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"pricewatch/internal/monitor"
	"pricewatch/internal/predictor"
	"pricewatch/internal/storage"
)

var errInvalidID = errors.New("invalid id")

// timeNow is swapped in tests that pin the trend window.
var timeNow = time.Now

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProducts(c echo.Context) error {
	var filter storage.ProductFilter

	if raw := c.QueryParam("min_price"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return badRequest(c, "min_price must be a number")
		}
		filter.MinPrice = &v
	}
	if raw := c.QueryParam("max_price"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return badRequest(c, "max_price must be a number")
		}
		filter.MaxPrice = &v
	}
	if raw := c.QueryParam("min_ratings"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return badRequest(c, "min_ratings must be a non-negative integer")
		}
		filter.MinRatings = &v
	}
	filter.Search = c.QueryParam("search")
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		filter.Limit = v
	}

	products, err := s.stores.Products.ListProducts(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":    len(products),
		"products": products,
	})
}

func (s *Server) handleProductStats(c echo.Context) error {
	stats, err := s.stores.Products.ProductStats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleListCategories(c echo.Context) error {
	categories, err := s.stores.Products.ListCategories(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) handlePriceTrends(c echo.Context) error {
	productID, err := pathID(c)
	if err != nil {
		return badRequest(c, "id must be a positive integer")
	}

	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return badRequest(c, "days must be a positive integer")
		}
	}
	if days > s.cfg.TrendDaysMax {
		days = s.cfg.TrendDaysMax
	}

	ctx := c.Request().Context()
	if _, err := s.stores.Products.GetProduct(ctx, productID); err != nil {
		return writeError(c, err)
	}

	points, err := s.trends(c, productID, days)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"product_id": productID,
		"days":       days,
		"trends":     points,
	})
}

func (s *Server) trends(c echo.Context, productID int64, days int) ([]storage.TrendPoint, error) {
	since := timeNow().UTC().AddDate(0, 0, -days)
	return s.stores.Observations.PriceTrends(c.Request().Context(), productID, since)
}

func (s *Server) handleProductInsights(c echo.Context) error {
	if s.insights == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "insights unavailable", Details: "no trained models loaded"})
	}
	productID, err := pathID(c)
	if err != nil {
		return badRequest(c, "id must be a positive integer")
	}

	ctx := c.Request().Context()
	product, err := s.stores.Products.GetProduct(ctx, productID)
	if err != nil {
		return writeError(c, err)
	}
	obs, err := s.stores.Observations.LatestObservation(ctx, productID)
	if err != nil {
		return writeError(c, err)
	}

	bundle, err := s.insights.Insights(productInfo(product), obs.AmazonPrice.InexactFloat64(), obs.CompetitorPrice.InexactFloat64())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"product_id":   productID,
		"product_name": product.Name,
		"insights":     bundle,
	})
}

func (s *Server) handleBulkInsights(c echo.Context) error {
	if s.insights == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "insights unavailable", Details: "no trained models loaded"})
	}

	limit := s.cfg.BulkLimit
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		if v < limit {
			limit = v
		}
	}

	ctx := c.Request().Context()
	rows, err := s.stores.Observations.ListLatestPrices(ctx, limit)
	if err != nil {
		return writeError(c, err)
	}

	type bulkItem struct {
		ProductID   int64              `json:"product_id"`
		ProductName string             `json:"product_name"`
		Insights    predictor.Insights `json:"insights"`
	}

	items := make([]bulkItem, 0, len(rows))
	for _, row := range rows {
		bundle, err := s.insights.Insights(productInfo(row.Product), row.AmazonPrice.InexactFloat64(), row.CompetitorPrice.InexactFloat64())
		if err != nil {
			s.logger.Error().Err(err).Int64("product_id", row.ProductID).Msg("bulk insight failed")
			continue
		}
		items = append(items, bulkItem{ProductID: row.ProductID, ProductName: row.Name, Insights: bundle})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":    len(items),
		"insights": items,
	})
}

func (s *Server) handleCompetitorAnalysis(c echo.Context) error {
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = v
	}

	gaps, err := s.stores.Observations.CompetitorAnalysis(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":    len(gaps),
		"products": gaps,
	})
}

func (s *Server) handleListAlerts(c echo.Context) error {
	rows, err := s.stores.Alerts.ListActiveAlerts(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	type alertItem struct {
		storage.ActiveAlertRow
		IsTriggered bool `json:"is_triggered"`
	}

	items := make([]alertItem, 0, len(rows))
	for _, row := range rows {
		hit, _, _ := monitor.Evaluate(row)
		items = append(items, alertItem{ActiveAlertRow: row, IsTriggered: hit})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":  len(items),
		"alerts": items,
	})
}

func (s *Server) handleAlertTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"alert_types": monitor.AlertTypes()})
}

type createAlertRequest struct {
	ProductID             int64   `json:"product_id"`
	AlertType             string  `json:"alert_type"`
	ThresholdValue        float64 `json:"threshold_value"`
	ComparisonType        string  `json:"comparison_type"`
	NotificationFrequency string  `json:"notification_frequency"`
}

func (s *Server) handleCreateAlert(c echo.Context) error {
	var req createAlertRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "request body must be valid JSON")
	}
	if req.ProductID <= 0 {
		return badRequest(c, "product_id must be positive")
	}
	if !monitor.KnownKind(req.AlertType) {
		return badRequest(c, "unknown alert_type")
	}
	if req.ComparisonType == "" {
		return badRequest(c, "comparison_type is required")
	}
	if req.NotificationFrequency == "" {
		return badRequest(c, "notification_frequency is required")
	}

	ctx := c.Request().Context()
	if _, err := s.stores.Products.GetProduct(ctx, req.ProductID); err != nil {
		return writeError(c, err)
	}

	rule, err := s.stores.Alerts.InsertAlert(ctx, storage.NewAlert{
		ProductID:             req.ProductID,
		AlertType:             req.AlertType,
		ThresholdValue:        decimal.NewFromFloat(req.ThresholdValue),
		ComparisonType:        req.ComparisonType,
		NotificationFrequency: req.NotificationFrequency,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, rule)
}

func (s *Server) handleDeleteAlert(c echo.Context) error {
	alertID, err := pathID(c)
	if err != nil {
		return badRequest(c, "id must be a positive integer")
	}
	if err := s.stores.Alerts.DeactivateAlert(c.Request().Context(), alertID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"deleted": alertID})
}

func (s *Server) handleAlertHistory(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = v
	}

	records, err := s.stores.History.ListAlertHistory(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":   len(records),
		"history": records,
	})
}

func (s *Server) handleAlertHistoryByAlert(c echo.Context) error {
	alertID, err := pathID(c)
	if err != nil {
		return badRequest(c, "id must be a positive integer")
	}

	ctx := c.Request().Context()
	if _, err := s.stores.Alerts.GetAlert(ctx, alertID); err != nil {
		return writeError(c, err)
	}
	records, err := s.stores.History.ListAlertHistoryByAlert(ctx, alertID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"alert_id": alertID,
		"count":    len(records),
		"history":  records,
	})
}

func (s *Server) handleOptimizeAlert(c echo.Context) error {
	if s.insights == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "insights unavailable", Details: "no trained models loaded"})
	}
	alertID, err := pathID(c)
	if err != nil {
		return badRequest(c, "id must be a positive integer")
	}

	ctx := c.Request().Context()
	rule, err := s.stores.Alerts.GetAlert(ctx, alertID)
	if err != nil {
		return writeError(c, err)
	}
	product, err := s.stores.Products.GetProduct(ctx, rule.ProductID)
	if err != nil {
		return writeError(c, err)
	}
	obs, err := s.stores.Observations.LatestObservation(ctx, rule.ProductID)
	if err != nil {
		return writeError(c, err)
	}

	bundle, err := s.insights.Insights(productInfo(product), obs.AmazonPrice.InexactFloat64(), obs.CompetitorPrice.InexactFloat64())
	if err != nil {
		return writeError(c, err)
	}

	newThreshold, ok := optimizedThreshold(rule.AlertType, bundle)
	if !ok {
		return unprocessable(c, "alert type "+rule.AlertType+" has no optimization strategy")
	}

	previous, err := s.stores.Alerts.UpdateAlertThreshold(ctx, alertID, newThreshold)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"alert_id":      alertID,
		"alert_type":    rule.AlertType,
		"old_threshold": previous,
		"new_threshold": newThreshold,
		"insights":      bundle,
	})
}

// optimizedThreshold derives a new threshold from the insight bundle.
// Kinds without a model-driven strategy report ok=false.
func optimizedThreshold(kind string, bundle predictor.Insights) (decimal.Decimal, bool) {
	switch kind {
	case monitor.KindPriceDrop:
		return decimal.NewFromFloat(bundle.PredictedPrice * 1.05).Round(2), true
	case monitor.KindDiscountIncrease:
		return decimal.NewFromFloat(bundle.PredictedDiscount * 0.95).Round(2), true
	case monitor.KindCompetitorCheaper:
		return decimal.NewFromFloat(bundle.PriceGap * 0.9).Round(2), true
	case monitor.KindCompetitorHigher:
		return decimal.NewFromFloat(bundle.PriceGap * 1.1).Round(2), true
	default:
		return decimal.Zero, false
	}
}

func productInfo(p storage.Product) predictor.ProductInfo {
	return predictor.ProductInfo{
		Brand:           p.Brand,
		MainCategory:    p.MainCategory,
		SubCategory:     p.SubCategory,
		ProductCategory: p.ProductCategory,
		Ratings:         p.Ratings,
		RatingCount:     float64(p.NoOfRatings),
	}
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
