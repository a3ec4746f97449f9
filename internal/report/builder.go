package report

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	compliance "coldchain-bridge/internal/compliance/domain"
	devices "coldchain-bridge/internal/devices/domain"
	telemetry "coldchain-bridge/internal/telemetry/domain"
)

// DeviceDay summarizes one device's readings for a report day.
type DeviceDay struct {
	DeviceID   string
	Name       string
	Location   string
	Readings   int
	Violations int
	MinTempF   float64
	MaxTempF   float64
	Score      float64
}

// DailyReport is the per-restaurant daily temperature log, the digital
// replacement for the paper HACCP sheet.
type DailyReport struct {
	RestaurantID string
	Day          time.Time
	Devices      []DeviceDay
}

// ReadingSource loads readings for the report window.
type ReadingSource interface {
	Recent(ctx context.Context, deviceID string, since time.Time) ([]telemetry.Reading, error)
}

// Builder assembles daily compliance reports from the durable store.
type Builder struct {
	restaurantID string
	readings     ReadingSource
	configs      *devices.Registry
}

// NewBuilder constructs a builder.
func NewBuilder(restaurantID string, readings ReadingSource, configs *devices.Registry) (*Builder, error) {
	if restaurantID == "" {
		return nil, errors.New("report: empty restaurant id")
	}
	if readings == nil {
		return nil, errors.New("report: nil reading source")
	}
	if configs == nil {
		return nil, errors.New("report: nil device registry")
	}
	return &Builder{restaurantID: restaurantID, readings: readings, configs: configs}, nil
}

// Build assembles the report for the calendar day containing day (UTC).
func (b *Builder) Build(ctx context.Context, day time.Time) (DailyReport, error) {
	if b == nil {
		return DailyReport{}, errors.New("report: nil builder")
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	configs := b.configs.Snapshot()
	ids := make([]string, 0, len(configs))
	for id := range configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := DailyReport{RestaurantID: b.restaurantID, Day: dayStart}
	for _, id := range ids {
		cfg := configs[id]
		readings, err := b.readings.Recent(ctx, id, dayStart)
		if err != nil {
			return DailyReport{}, err
		}
		result.Devices = append(result.Devices, summarize(cfg, readings, dayEnd))
	}
	return result, nil
}

func summarize(cfg devices.Config, readings []telemetry.Reading, dayEnd time.Time) DeviceDay {
	day := DeviceDay{
		DeviceID: cfg.DeviceID,
		Name:     cfg.Name,
		Location: cfg.Location,
		Score:    100.0,
	}
	first := true
	for _, reading := range readings {
		if !reading.Timestamp.Before(dayEnd) {
			continue
		}
		temperature, ok := reading.Temperature()
		if !ok {
			continue
		}
		day.Readings++
		if first || temperature < day.MinTempF {
			day.MinTempF = temperature
		}
		if first || temperature > day.MaxTempF {
			day.MaxTempF = temperature
		}
		first = false
		if len(compliance.Evaluate(temperature, cfg)) > 0 {
			day.Violations++
		}
	}
	if day.Readings > 0 {
		score := float64(day.Readings-day.Violations) / float64(day.Readings) * 100
		day.Score = math.Round(score*10) / 10
	}
	return day
}
