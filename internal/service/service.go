// Package service orchestrates the periodic market tick: simulate price
// movements, evaluate alert rules, and dispatch notifications.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pricewatch/internal/alerting"
	"pricewatch/internal/config"
	"pricewatch/internal/monitor"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/storage"
)

// Ticker advances the simulated market by one step.
type Ticker interface {
	Tick(ctx context.Context) (int, error)
}

// AlertChecker evaluates and records alert triggers.
type AlertChecker interface {
	CheckAlerts(ctx context.Context) ([]monitor.TriggeredAlert, error)
	RecordTrigger(ctx context.Context, alert monitor.TriggeredAlert) error
}

// Service drives the simulate-then-alert loop.
type Service struct {
	scheduler *scheduler.Scheduler
	simulator Ticker
	monitor   AlertChecker
	notifier  alerting.Notifier
	logger    zerolog.Logger

	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
	now      func() time.Time
}

// New constructs the monitoring service. The locker is optional; without it
// concurrent instances may double-process a tick.
func New(cfg *config.Config, sched *scheduler.Scheduler, sim Ticker, mon AlertChecker, locker storage.AdvisoryLocker, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		simulator: sim,
		monitor:   mon,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),
		alertsOn:  cfg.Alerting.Enabled,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the scheduled tick loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick executes one full simulate-and-alert cycle. The advisory lock
// serialises ticks across instances sharing a database.
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", at).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeTick(ctx, at)
}

func (s *Service) executeTick(ctx context.Context, at time.Time) error {
	updated, err := s.simulator.Tick(ctx)
	if err != nil {
		return fmt.Errorf("simulate market tick: %w", err)
	}

	triggered, err := s.monitor.CheckAlerts(ctx)
	if err != nil {
		return fmt.Errorf("check alerts: %w", err)
	}

	s.logger.Info().Time("tick", at).
		Int("products_updated", updated).
		Int("alerts_triggered", len(triggered)).
		Msg("tick processed")

	for _, alert := range triggered {
		s.handleTrigger(ctx, alert)
	}
	return nil
}

// handleTrigger records and dispatches one trigger. Failures are logged so a
// bad rule or an unreachable channel never stalls the remaining alerts.
func (s *Service) handleTrigger(ctx context.Context, alert monitor.TriggeredAlert) {
	now := s.now()
	if !monitor.ShouldNotify(alert.NotificationFrequency, alert.LastTriggered, now) {
		s.logger.Debug().
			Int64("alert_id", alert.AlertID).
			Str("frequency", alert.NotificationFrequency).
			Msg("trigger suppressed by notification frequency")
		return
	}

	if err := s.monitor.RecordTrigger(ctx, alert); err != nil {
		s.logger.Error().Err(err).
			Int64("alert_id", alert.AlertID).
			Msg("failed to record alert trigger")
		return
	}

	if !s.alertsOn || s.notifier == nil {
		return
	}

	note := alerting.Notification{
		TriggeredAt: now,
		ProductName: alert.ProductName,
		AlertType:   alert.AlertType,
		Threshold:   alert.ThresholdValue,
		Value:       alert.TriggeredValue,
		Description: alert.Description,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).
			Int64("alert_id", alert.AlertID).
			Msg("failed to dispatch alert notification")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
