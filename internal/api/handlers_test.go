package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/config"
	"pricewatch/internal/monitor"
	"pricewatch/internal/predictor"
	"pricewatch/internal/storage"
)

type fakeProducts struct {
	products map[int64]storage.Product
	listed   []storage.ProductPrice
	filter   storage.ProductFilter
}

func (f *fakeProducts) UpsertProduct(ctx context.Context, p storage.Product) error { return nil }

func (f *fakeProducts) GetProduct(ctx context.Context, id int64) (storage.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return storage.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]storage.ProductPrice, error) {
	f.filter = filter
	return f.listed, nil
}

func (f *fakeProducts) ProductStats(ctx context.Context) (storage.CatalogStats, error) {
	return storage.CatalogStats{ProductCount: int64(len(f.products))}, nil
}

func (f *fakeProducts) ListCategories(ctx context.Context) ([]string, error) {
	return []string{"electronics"}, nil
}

func (f *fakeProducts) UpdateStockAvailability(ctx context.Context, id int64, status string) error {
	return nil
}

type fakeObservations struct {
	latest map[int64]storage.PriceObservation
	prices []storage.ProductPrice
}

func (f *fakeObservations) InsertObservation(ctx context.Context, obs storage.NewObservation) error {
	return nil
}

func (f *fakeObservations) LatestObservation(ctx context.Context, id int64) (storage.PriceObservation, error) {
	obs, ok := f.latest[id]
	if !ok {
		return storage.PriceObservation{}, storage.ErrNotFound
	}
	return obs, nil
}

func (f *fakeObservations) ListCurrentPrices(ctx context.Context) ([]storage.ProductPrice, error) {
	return f.prices, nil
}

func (f *fakeObservations) ListLatestPrices(ctx context.Context, limit int) ([]storage.ProductPrice, error) {
	if limit < len(f.prices) {
		return f.prices[:limit], nil
	}
	return f.prices, nil
}

func (f *fakeObservations) PriceTrends(ctx context.Context, id int64, since time.Time) ([]storage.TrendPoint, error) {
	return []storage.TrendPoint{{RecordedAt: since.Add(time.Hour), AmazonPrice: decimal.NewFromInt(100)}}, nil
}

func (f *fakeObservations) CompetitorAnalysis(ctx context.Context, limit int) ([]storage.CompetitorGap, error) {
	return []storage.CompetitorGap{{ProductID: 1, Name: "p"}}, nil
}

type fakeAlerts struct {
	rules     map[int64]storage.AlertRule
	active    []storage.ActiveAlertRow
	inserted  []storage.NewAlert
	updatedTo decimal.Decimal
}

func (f *fakeAlerts) InsertAlert(ctx context.Context, alert storage.NewAlert) (storage.AlertRule, error) {
	f.inserted = append(f.inserted, alert)
	return storage.AlertRule{
		ID:             int64(len(f.inserted)),
		ProductID:      alert.ProductID,
		AlertType:      alert.AlertType,
		ThresholdValue: alert.ThresholdValue,
		IsActive:       true,
	}, nil
}

func (f *fakeAlerts) GetAlert(ctx context.Context, id int64) (storage.AlertRule, error) {
	rule, ok := f.rules[id]
	if !ok {
		return storage.AlertRule{}, storage.ErrNotFound
	}
	return rule, nil
}

func (f *fakeAlerts) DeactivateAlert(ctx context.Context, id int64) error {
	if _, ok := f.rules[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeAlerts) ListActiveAlerts(ctx context.Context) ([]storage.ActiveAlertRow, error) {
	return f.active, nil
}

func (f *fakeAlerts) UpdateAlertThreshold(ctx context.Context, id int64, threshold decimal.Decimal) (decimal.Decimal, error) {
	rule, ok := f.rules[id]
	if !ok {
		return decimal.Zero, storage.ErrNotFound
	}
	f.updatedTo = threshold
	return rule.ThresholdValue, nil
}

type fakeHistory struct {
	records []storage.AlertTriggerRecord
}

func (f *fakeHistory) RecordTrigger(ctx context.Context, event storage.TriggerEvent) error { return nil }

func (f *fakeHistory) ListAlertHistory(ctx context.Context, limit int) ([]storage.AlertTriggerRecord, error) {
	return f.records, nil
}

func (f *fakeHistory) ListAlertHistoryByAlert(ctx context.Context, id int64) ([]storage.AlertTriggerRecord, error) {
	return f.records, nil
}

type fakeInsights struct {
	bundle predictor.Insights
}

func (f *fakeInsights) Insights(p predictor.ProductInfo, current, competitor float64) (predictor.Insights, error) {
	return f.bundle, nil
}

func testServer(t *testing.T) (*Server, *fakeProducts, *fakeObservations, *fakeAlerts) {
	t.Helper()
	products := &fakeProducts{products: map[int64]storage.Product{
		42: {ProductID: 42, Name: "Test Headphones", Brand: "sony", Ratings: 4.2, NoOfRatings: 1200},
	}}
	observations := &fakeObservations{latest: map[int64]storage.PriceObservation{
		42: {
			ProductID:       42,
			AmazonPrice:     decimal.NewFromInt(100),
			CompetitorPrice: decimal.NewFromInt(90),
		},
	}}
	alerts := &fakeAlerts{rules: map[int64]storage.AlertRule{
		7: {ID: 7, ProductID: 42, AlertType: monitor.KindPriceDrop, ThresholdValue: decimal.NewFromInt(80), IsActive: true},
		8: {ID: 8, ProductID: 42, AlertType: monitor.KindStockStatus, ThresholdValue: decimal.Zero, IsActive: true},
	}}
	insights := &fakeInsights{bundle: predictor.Insights{
		CurrentPrice:      100,
		PredictedPrice:    110,
		PredictedDiscount: 20,
		PriceGap:          10,
	}}

	cfg := config.APIConfig{ListenAddr: ":0", ShutdownTimeout: time.Second, BulkLimit: 50, TrendDaysMax: 365}
	srv := NewServer(cfg, Stores{
		Products:     products,
		Observations: observations,
		Alerts:       alerts,
		History:      &fakeHistory{},
	}, insights, zerolog.Nop())
	return srv, products, observations, alerts
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echoContentType, echoJSONType)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

const (
	echoContentType = "Content-Type"
	echoJSONType    = "application/json"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListProductsParsesFilters(t *testing.T) {
	srv, products, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/products?min_price=50&max_price=200&min_ratings=100&search=head", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, products.filter.MinPrice)
	assert.True(t, products.filter.MinPrice.Equal(decimal.NewFromInt(50)))
	require.NotNil(t, products.filter.MaxPrice)
	assert.True(t, products.filter.MaxPrice.Equal(decimal.NewFromInt(200)))
	require.NotNil(t, products.filter.MinRatings)
	assert.Equal(t, int64(100), *products.filter.MinRatings)
	assert.Equal(t, "head", products.filter.Search)
}

func TestListProductsRejectsBadFilter(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/products?min_price=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "invalid request", body["error"])
}

func TestProductInsightsNotFound(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/products/999/insights", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductInsightsSuccess(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/products/42/insights", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Test Headphones", body["product_name"])
	insights, ok := body["insights"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 110.0, insights["predicted_price"])
}

func TestAlertTypesTaxonomy(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/alerts/types", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	types, ok := body["alert_types"].([]any)
	require.True(t, ok)
	assert.Len(t, types, 9)
}

func TestCreateAlertValidation(t *testing.T) {
	srv, _, _, _ := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing product", body: `{"alert_type":"price_drop","threshold_value":10,"comparison_type":"absolute","notification_frequency":"immediate"}`},
		{name: "unknown kind", body: `{"product_id":42,"alert_type":"price_rocket","threshold_value":10,"comparison_type":"absolute","notification_frequency":"immediate"}`},
		{name: "missing comparison", body: `{"product_id":42,"alert_type":"price_drop","threshold_value":10,"notification_frequency":"immediate"}`},
		{name: "missing frequency", body: `{"product_id":42,"alert_type":"price_drop","threshold_value":10,"comparison_type":"absolute"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/alerts", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateAlertUnknownProduct(t *testing.T) {
	srv, _, _, _ := testServer(t)
	body := `{"product_id":999,"alert_type":"price_drop","threshold_value":10,"comparison_type":"absolute","notification_frequency":"immediate"}`
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/alerts", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAlertSuccess(t *testing.T) {
	srv, _, _, alerts := testServer(t)
	body := `{"product_id":42,"alert_type":"price_drop","threshold_value":95,"comparison_type":"absolute","notification_frequency":"immediate"}`
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/alerts", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, alerts.inserted, 1)
	assert.Equal(t, int64(42), alerts.inserted[0].ProductID)
}

func TestDeleteAlertNotFound(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/alerts/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAlertsCarriesTriggeredFlag(t *testing.T) {
	srv, _, _, alerts := testServer(t)
	row := storage.ActiveAlertRow{
		ProductName: "Test Headphones",
		AmazonPrice: decimal.NewFromInt(90),
	}
	row.ID = 7
	row.ProductID = 42
	row.AlertType = monitor.KindPriceDrop
	row.ThresholdValue = decimal.NewFromInt(95)
	row.IsActive = true
	alerts.active = []storage.ActiveAlertRow{row}

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	items, ok := body["alerts"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	first, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, first["is_triggered"])
}

func TestOptimizeAlertPriceDrop(t *testing.T) {
	srv, _, _, alerts := testServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/alerts/7/optimize", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	// predicted 110 * 1.05 = 115.5
	assert.Equal(t, "115.5", body["new_threshold"])
	assert.Equal(t, "80", body["old_threshold"])
	assert.True(t, alerts.updatedTo.Equal(decimal.NewFromFloat(115.5)))
}

func TestOptimizeAlertUnsupportedKind(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/alerts/8/optimize", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOptimizeAlertNotFound(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/alerts/999/optimize", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkInsightsRespectsLimit(t *testing.T) {
	srv, _, observations, _ := testServer(t)
	for i := int64(1); i <= 3; i++ {
		pp := storage.ProductPrice{}
		pp.ProductID = i
		pp.Name = "p"
		pp.AmazonPrice = decimal.NewFromInt(100)
		pp.CompetitorPrice = decimal.NewFromInt(95)
		observations.prices = append(observations.prices, pp)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/insights/bulk?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, 2.0, body["count"])
}
