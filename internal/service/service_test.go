package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/alerting"
	"pricewatch/internal/config"
	"pricewatch/internal/monitor"
)

type fakeTicker struct {
	updated int
	err     error
}

func (f *fakeTicker) Tick(ctx context.Context) (int, error) { return f.updated, f.err }

type fakeChecker struct {
	triggered []monitor.TriggeredAlert
	recorded  []monitor.TriggeredAlert
}

func (f *fakeChecker) CheckAlerts(ctx context.Context) ([]monitor.TriggeredAlert, error) {
	return f.triggered, nil
}

func (f *fakeChecker) RecordTrigger(ctx context.Context, alert monitor.TriggeredAlert) error {
	f.recorded = append(f.recorded, alert)
	return nil
}

type fakeNotifier struct {
	sent []alerting.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, n alerting.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

func newService(t *testing.T, sim *fakeTicker, mon *fakeChecker, notifier *fakeNotifier) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Alerting.Enabled = true
	svc := New(cfg, nil, sim, mon, nil, notifier, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func trigger(id int64, frequency string, lastTriggered *time.Time) monitor.TriggeredAlert {
	return monitor.TriggeredAlert{
		AlertID:               id,
		ProductID:             42,
		ProductName:           "Test Headphones",
		AlertType:             monitor.KindPriceDrop,
		ThresholdValue:        decimal.NewFromInt(95),
		ComparisonType:        monitor.CompareAbsolute,
		NotificationFrequency: frequency,
		LastTriggered:         lastTriggered,
		TriggeredValue:        decimal.NewFromInt(90),
		Description:           "Price Drop Alert",
	}
}

func TestProcessTickRecordsAndNotifies(t *testing.T) {
	mon := &fakeChecker{triggered: []monitor.TriggeredAlert{trigger(1, monitor.FrequencyImmediate, nil)}}
	notifier := &fakeNotifier{}
	svc := newService(t, &fakeTicker{updated: 3}, mon, notifier)

	err := svc.ProcessTick(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, mon.recorded, 1)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Test Headphones", notifier.sent[0].ProductName)
}

func TestProcessTickSuppressesByFrequency(t *testing.T) {
	recent := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	mon := &fakeChecker{triggered: []monitor.TriggeredAlert{trigger(1, monitor.FrequencyDaily, &recent)}}
	notifier := &fakeNotifier{}
	svc := newService(t, &fakeTicker{}, mon, notifier)

	err := svc.ProcessTick(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, mon.recorded, "suppressed trigger must not be recorded")
	assert.Empty(t, notifier.sent)
}

func TestProcessTickNotifierDisabledStillRecords(t *testing.T) {
	mon := &fakeChecker{triggered: []monitor.TriggeredAlert{trigger(1, monitor.FrequencyImmediate, nil)}}
	notifier := &fakeNotifier{}
	svc := newService(t, &fakeTicker{}, mon, notifier)
	svc.alertsOn = false

	err := svc.ProcessTick(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, mon.recorded, 1)
	assert.Empty(t, notifier.sent)
}

func TestProcessTickSimulatorErrorAborts(t *testing.T) {
	mon := &fakeChecker{triggered: []monitor.TriggeredAlert{trigger(1, monitor.FrequencyImmediate, nil)}}
	svc := newService(t, &fakeTicker{err: context.DeadlineExceeded}, mon, &fakeNotifier{})

	err := svc.ProcessTick(context.Background(), time.Now())
	require.Error(t, err)
	assert.Empty(t, mon.recorded)
}
