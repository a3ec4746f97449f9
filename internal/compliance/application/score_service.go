package application

import (
	"context"
	"errors"
	"math"
	"time"

	compliance "coldchain-bridge/internal/compliance/domain"
	devices "coldchain-bridge/internal/devices/domain"
	telemetry "coldchain-bridge/internal/telemetry/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// ConfigSource resolves the current config for a device.
type ConfigSource interface {
	Get(deviceID string) (devices.Config, bool)
}

// ReadingSource loads historical readings for scoring.
type ReadingSource interface {
	Recent(ctx context.Context, deviceID string, since time.Time) ([]telemetry.Reading, error)
}

// ScoreService computes rolling compliance scores from persisted readings.
type ScoreService struct {
	readings ReadingSource
	configs  ConfigSource
	clock    Clock
}

// ScoreOption customizes the score service.
type ScoreOption func(*ScoreService)

// WithClock assigns a clock.
func WithClock(clock Clock) ScoreOption {
	return func(s *ScoreService) {
		s.clock = clock
	}
}

// NewScoreService constructs a score service.
func NewScoreService(readings ReadingSource, configs ConfigSource, opts ...ScoreOption) (*ScoreService, error) {
	if readings == nil {
		return nil, errors.New("compliance: nil reading source")
	}
	if configs == nil {
		return nil, errors.New("compliance: nil config source")
	}
	service := &ScoreService{readings: readings, configs: configs, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Score returns the percentage of readings inside the device's safe range
// over the trailing window, rounded to one decimal. A window with no
// readings scores 100.0: no data is treated as compliant.
func (s *ScoreService) Score(ctx context.Context, deviceID string, window time.Duration) (float64, error) {
	if s == nil {
		return 0, errors.New("compliance: nil service")
	}
	if deviceID == "" {
		return 0, errors.New("compliance: empty device id")
	}
	since := s.clock.Now().UTC().Add(-window)
	readings, err := s.readings.Recent(ctx, deviceID, since)
	if err != nil {
		return 0, err
	}
	if len(readings) == 0 {
		return 100.0, nil
	}
	cfg, ok := s.configs.Get(deviceID)
	if !ok {
		// Unconfigured devices have no range to violate.
		return 100.0, nil
	}
	violations := 0
	for _, reading := range readings {
		temperature, ok := reading.Temperature()
		if !ok {
			continue
		}
		if len(compliance.Evaluate(temperature, cfg)) > 0 {
			violations++
		}
	}
	score := float64(len(readings)-violations) / float64(len(readings)) * 100
	return math.Round(score*10) / 10, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
