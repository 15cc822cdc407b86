// Package app wires configuration, storage, and domain components into the
// operations exposed by the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pricewatch/internal/alerting"
	"pricewatch/internal/api"
	"pricewatch/internal/config"
	"pricewatch/internal/monitor"
	"pricewatch/internal/predictor"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/service"
	"pricewatch/internal/simulator"
	"pricewatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

// newInsights loads the trained model artifacts. A partial artifact set is
// a deployment fault, so serving starts only with the full set present.
func (a *App) newInsights() (api.InsightProvider, error) {
	p, err := predictor.New(a.Config.Predictor.ModelsDir, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("load model artifacts from %s: %w", a.Config.Predictor.ModelsDir, err)
	}
	return p, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store *storage.Store) *service.Service {
	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	sim := simulator.New(store, nil, a.Logger)
	mon := monitor.New(store, a.Logger)
	notifier := a.newNotifier()

	return service.New(a.Config, sched, sim, mon, store, notifier, a.Logger)
}

// Run executes the long-running simulate-and-alert loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// Serve runs the HTTP API, optionally alongside the tick loop.
func (a *App) Serve(ctx context.Context, withTicker bool) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	insights, err := a.newInsights()
	if err != nil {
		return err
	}

	server := api.NewServer(a.Config.API, api.Stores{
		Products:     store,
		Observations: store,
		Alerts:       store,
		History:      store,
	}, insights, a.Logger)

	if withTicker {
		svc := a.newService(store)
		go func() {
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("tick loop terminated with error")
			}
		}()
	}

	err = server.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// TickOnce executes a single simulate-and-alert cycle and exits.
func (a *App) TickOnce(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)
	return svc.ProcessTick(ctx, time.Now().UTC())
}

// Seed loads the product catalog CSV into the database.
func (a *App) Seed(ctx context.Context, catalogPath string) error {
	if catalogPath == "" {
		return errors.New("--catalog is required")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := store.SeedFromCatalog(ctx, catalogPath, a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int("loaded", result.Loaded).
		Int("skipped", result.Skipped).
		Msg("catalog seeded")
	return nil
}

// ExportOptions hold parameters for exporting a product's price history.
type ExportOptions struct {
	ProductID int64
	Days      int
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
