package replay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	alerts "coldchain-bridge/internal/alerts/domain"
	"coldchain-bridge/internal/broker"
	"coldchain-bridge/internal/observability/metrics"
	telemetry "coldchain-bridge/internal/telemetry/domain"
)

const (
	defaultRowSweepInterval = 30 * time.Second
	defaultRowSweepLimit    = 50
)

// RowSweeper pages unsynced store rows to the cloud broker and marks the
// published ones synced. It runs independently of the Coordinator's ring:
// the two paths are never reconciled, so an item the ring already delivered
// may be published a second time. The cloud side upserts idempotently.
type RowSweeper struct {
	restaurantID string
	readings     telemetry.ReadingRepository
	alerts       alerts.AlertRepository
	cloud        CloudPublisher
	interval     time.Duration
	limit        int
	logger       *log.Logger
}

// RowSweeperOption customizes the sweeper.
type RowSweeperOption func(*RowSweeper)

// WithRowSweepInterval overrides the sweep cadence.
func WithRowSweepInterval(interval time.Duration) RowSweeperOption {
	return func(s *RowSweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithRowSweepLimit overrides the page size per sweep.
func WithRowSweepLimit(limit int) RowSweeperOption {
	return func(s *RowSweeper) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// NewRowSweeper constructs a sweeper.
func NewRowSweeper(restaurantID string, readings telemetry.ReadingRepository, alertRepo alerts.AlertRepository, cloud CloudPublisher, logger *log.Logger, opts ...RowSweeperOption) (*RowSweeper, error) {
	if restaurantID == "" {
		return nil, errors.New("replay: empty restaurant id")
	}
	if readings == nil || alertRepo == nil {
		return nil, errors.New("replay: nil repository")
	}
	if cloud == nil {
		return nil, errors.New("replay: nil cloud publisher")
	}
	if logger == nil {
		return nil, errors.New("replay: nil logger")
	}
	sweeper := &RowSweeper{
		restaurantID: restaurantID,
		readings:     readings,
		alerts:       alertRepo,
		cloud:        cloud,
		interval:     defaultRowSweepInterval,
		limit:        defaultRowSweepLimit,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(sweeper)
	}
	return sweeper, nil
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *RowSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Printf("replay: row sweep: %v", err)
			}
		}
	}
}

// Sweep publishes one page of unsynced readings and alerts. Rows whose
// publish fails stay unsynced and are retried next sweep.
func (s *RowSweeper) Sweep(ctx context.Context) error {
	if !s.cloud.Connected() {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.ObserveSweep("rows", time.Since(start))
	}()

	if err := s.sweepReadings(ctx); err != nil {
		return err
	}
	return s.sweepAlerts(ctx)
}

func (s *RowSweeper) sweepReadings(ctx context.Context) error {
	rows, err := s.readings.Unsynced(ctx, s.limit)
	if err != nil {
		return err
	}
	var synced []int64
	for _, reading := range rows {
		payload, err := json.Marshal(reading.Envelope(s.restaurantID))
		if err != nil {
			s.logger.Printf("replay: encode reading %d: %v", reading.ID, err)
			continue
		}
		topic := broker.SensorTopic(s.restaurantID, reading.DeviceID)
		if err := s.cloud.Publish(ctx, topic, payload); err != nil {
			metrics.IncCloudPublish(metrics.ResultError)
			break
		}
		metrics.IncCloudPublish(metrics.ResultSuccess)
		synced = append(synced, reading.ID)
	}
	if len(synced) == 0 {
		return nil
	}
	if err := s.readings.MarkSynced(ctx, synced); err != nil {
		// Rows stay unsynced and will replay again; harmless because the
		// cloud upsert is idempotent.
		return err
	}
	metrics.AddReplaySynced(string(KindReading), len(synced))
	return nil
}

func (s *RowSweeper) sweepAlerts(ctx context.Context) error {
	rows, err := s.alerts.Unsynced(ctx, s.limit)
	if err != nil {
		return err
	}
	topic := broker.CriticalAlertsTopic(s.restaurantID)
	var synced []int64
	for _, alert := range rows {
		payload, err := json.Marshal(alert)
		if err != nil {
			s.logger.Printf("replay: encode alert %d: %v", alert.ID, err)
			continue
		}
		if err := s.cloud.Publish(ctx, topic, payload); err != nil {
			metrics.IncCloudPublish(metrics.ResultError)
			break
		}
		metrics.IncCloudPublish(metrics.ResultSuccess)
		synced = append(synced, alert.ID)
	}
	if len(synced) == 0 {
		return nil
	}
	if err := s.alerts.MarkSynced(ctx, synced); err != nil {
		return err
	}
	metrics.AddReplaySynced(string(KindAlert), len(synced))
	return nil
}
