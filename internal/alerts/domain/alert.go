package alerts

import "context"

// Severity classifies how far out of range a reading was.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// TypeTemperatureViolation is the alert type raised by the compliance
// evaluator.
const TypeTemperatureViolation = "temperature_violation"

// Alert is a persisted safety alert. Same synced lifecycle as a reading.
type Alert struct {
	ID           int64    `json:"id,omitempty"`
	Type         string   `json:"alert_type"`
	Severity     Severity `json:"severity"`
	DeviceID     string   `json:"device_id"`
	Location     string   `json:"location"`
	Temperature  float64  `json:"temperature"`
	ThresholdMin float64  `json:"threshold_min"`
	ThresholdMax float64  `json:"threshold_max"`
	Message      string   `json:"message"`
	Synced       bool     `json:"-"`
}

// AlertRepository persists alerts.
type AlertRepository interface {
	Insert(ctx context.Context, alert *Alert) error
	Unsynced(ctx context.Context, limit int) ([]Alert, error)
	MarkSynced(ctx context.Context, ids []int64) error
}
