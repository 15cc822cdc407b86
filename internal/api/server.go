// Package api exposes the catalog, insight, and alert operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"pricewatch/internal/config"
	"pricewatch/internal/predictor"
	"pricewatch/internal/storage"
)

// InsightProvider produces the model-driven insight bundle for one product.
type InsightProvider interface {
	Insights(product predictor.ProductInfo, currentPrice, competitorPrice float64) (predictor.Insights, error)
}

// Stores groups the persistence surfaces the API reads and writes.
type Stores struct {
	Products     storage.ProductStore
	Observations storage.ObservationStore
	Alerts       storage.AlertStore
	History      storage.HistoryStore
}

// Server hosts the HTTP API.
type Server struct {
	echo     *echo.Echo
	cfg      config.APIConfig
	stores   Stores
	insights InsightProvider
	logger   zerolog.Logger
}

// NewServer builds the echo instance with middleware and routes. The insight
// provider may be nil, in which case insight endpoints return 503.
func NewServer(cfg config.APIConfig, stores Stores, insights InsightProvider, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		cfg:      cfg,
		stores:   stores,
		insights: insights,
		logger:   logger.With().Str("component", "api").Logger(),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(s.requestLogger())

	s.registerRoutes()
	return s
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info().
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/products", s.handleListProducts)
	v1.GET("/products/stats", s.handleProductStats)
	v1.GET("/categories", s.handleListCategories)
	v1.GET("/products/:id/trends", s.handlePriceTrends)
	v1.GET("/products/:id/insights", s.handleProductInsights)
	v1.GET("/insights/bulk", s.handleBulkInsights)
	v1.GET("/competitors/analysis", s.handleCompetitorAnalysis)

	v1.GET("/alerts", s.handleListAlerts)
	v1.GET("/alerts/types", s.handleAlertTypes)
	v1.POST("/alerts", s.handleCreateAlert)
	v1.DELETE("/alerts/:id", s.handleDeleteAlert)
	v1.GET("/alerts/history", s.handleAlertHistory)
	v1.GET("/alerts/:id/history", s.handleAlertHistoryByAlert)
	v1.POST("/alerts/:id/optimize", s.handleOptimizeAlert)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info().Str("listen_addr", s.cfg.ListenAddr).Msg("http server started")

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
