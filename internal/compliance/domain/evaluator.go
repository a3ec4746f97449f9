package compliance

import (
	"fmt"

	alerts "coldchain-bridge/internal/alerts/domain"
	devices "coldchain-bridge/internal/devices/domain"
)

// CriticalMarginF is the deviation past a bound, in degrees Fahrenheit,
// beyond which a violation escalates from WARNING to CRITICAL.
const CriticalMarginF = 10.0

// Bound identifies which side of the safe range was violated.
type Bound string

const (
	BoundMin Bound = "min"
	BoundMax Bound = "max"
)

// Violation describes a reading outside the device's safe range.
type Violation struct {
	Bound       Bound
	Limit       float64
	Temperature float64
	Deviation   float64
}

// Severity classifies the violation by how far past the bound it landed.
func (v Violation) Severity() alerts.Severity {
	if v.Deviation > CriticalMarginF {
		return alerts.SeverityCritical
	}
	return alerts.SeverityWarning
}

// Evaluate checks a temperature against a device's safe range. A reading
// exactly on a bound is compliant.
func Evaluate(temperature float64, cfg devices.Config) []Violation {
	var violations []Violation
	if temperature < cfg.TempMinF {
		violations = append(violations, Violation{
			Bound:       BoundMin,
			Limit:       cfg.TempMinF,
			Temperature: temperature,
			Deviation:   cfg.TempMinF - temperature,
		})
	}
	if temperature > cfg.TempMaxF {
		violations = append(violations, Violation{
			Bound:       BoundMax,
			Limit:       cfg.TempMaxF,
			Temperature: temperature,
			Deviation:   temperature - cfg.TempMaxF,
		})
	}
	return violations
}

// NewTemperatureAlert builds the alert raised for a violation.
func NewTemperatureAlert(cfg devices.Config, v Violation) alerts.Alert {
	direction := "below"
	if v.Bound == BoundMax {
		direction = "above"
	}
	name := cfg.Name
	if name == "" {
		name = cfg.DeviceID
	}
	return alerts.Alert{
		Type:         alerts.TypeTemperatureViolation,
		Severity:     v.Severity(),
		DeviceID:     cfg.DeviceID,
		Location:     cfg.Location,
		Temperature:  v.Temperature,
		ThresholdMin: cfg.TempMinF,
		ThresholdMax: cfg.TempMaxF,
		Message: fmt.Sprintf("%s reported %.1f°F, %.1f°F %s the safe range %.1f-%.1f°F",
			name, v.Temperature, v.Deviation, direction, cfg.TempMinF, cfg.TempMaxF),
	}
}
