package telemetry

import (
	"context"
	"encoding/json"
	"time"
)

// Reading is a sensor reading persisted by the bridge. Rows are immutable
// once written except for the synced transition.
type Reading struct {
	ID        int64
	DeviceID  string
	Timestamp time.Time
	Data      map[string]any
	Synced    bool
}

// Temperature extracts the numeric temperature from the payload. Devices in
// the field report either "temperature_f" or the bare "temperature" key.
func (r Reading) Temperature() (float64, bool) {
	for _, key := range []string{"temperature_f", "temperature"} {
		value, ok := r.Data[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case float64:
			return v, true
		case json.Number:
			f, err := v.Float64()
			if err == nil {
				return f, true
			}
		case int:
			return float64(v), true
		}
	}
	return 0, false
}

// Envelope is the canonical wire wrapper for a reading on its way to the
// cloud broker.
type Envelope struct {
	RestaurantID     string         `json:"restaurant_id"`
	DeviceID         string         `json:"device_id"`
	Timestamp        time.Time      `json:"timestamp"`
	Data             map[string]any `json:"data"`
	ProcessedLocally bool           `json:"processed_locally"`
}

// Envelope builds the wire envelope for a persisted reading.
func (r Reading) Envelope(restaurantID string) Envelope {
	return Envelope{
		RestaurantID:     restaurantID,
		DeviceID:         r.DeviceID,
		Timestamp:        r.Timestamp,
		Data:             r.Data,
		ProcessedLocally: true,
	}
}

// ReadingRepository persists sensor readings.
type ReadingRepository interface {
	Insert(ctx context.Context, reading *Reading) error
	Recent(ctx context.Context, deviceID string, since time.Time) ([]Reading, error)
	Unsynced(ctx context.Context, limit int) ([]Reading, error)
	MarkSynced(ctx context.Context, ids []int64) error
}
