package compliance

import (
	"testing"

	alerts "coldchain-bridge/internal/alerts/domain"
	devices "coldchain-bridge/internal/devices/domain"
)

func fridgeConfig() devices.Config {
	return devices.Config{
		DeviceID: "fridge-1",
		Name:     "Walk-in Fridge",
		Location: "kitchen",
		TempMinF: 35,
		TempMaxF: 41,
	}
}

func TestEvaluateInRange(t *testing.T) {
	cfg := fridgeConfig()
	for _, temperature := range []float64{35, 38, 41} {
		if violations := Evaluate(temperature, cfg); len(violations) != 0 {
			t.Fatalf("expected no violations at %.1f, got %d", temperature, len(violations))
		}
	}
}

func TestEvaluateBelowMin(t *testing.T) {
	cfg := fridgeConfig()
	violations := Evaluate(30, cfg)
	if len(violations) != 1 {
		t.Fatalf("expected one violation, got %d", len(violations))
	}
	v := violations[0]
	if v.Bound != BoundMin {
		t.Fatalf("expected min bound, got %s", v.Bound)
	}
	if v.Deviation != 5 {
		t.Fatalf("expected deviation 5, got %.1f", v.Deviation)
	}
}

func TestEvaluateSeverity(t *testing.T) {
	cfg := fridgeConfig()
	tests := []struct {
		name        string
		temperature float64
		want        alerts.Severity
	}{
		{"five below min", 30, alerts.SeverityWarning},
		{"exactly margin below min", 25, alerts.SeverityWarning},
		{"eleven below min", 24, alerts.SeverityCritical},
		{"five above max", 46, alerts.SeverityWarning},
		{"eleven above max", 52, alerts.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := Evaluate(tt.temperature, cfg)
			if len(violations) != 1 {
				t.Fatalf("expected one violation, got %d", len(violations))
			}
			if got := violations[0].Severity(); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewTemperatureAlert(t *testing.T) {
	cfg := fridgeConfig()
	violations := Evaluate(20, cfg)
	if len(violations) != 1 {
		t.Fatalf("expected one violation, got %d", len(violations))
	}
	alert := NewTemperatureAlert(cfg, violations[0])
	if alert.Type != alerts.TypeTemperatureViolation {
		t.Fatalf("unexpected type %s", alert.Type)
	}
	if alert.Severity != alerts.SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", alert.Severity)
	}
	if alert.DeviceID != "fridge-1" || alert.Location != "kitchen" {
		t.Fatalf("unexpected identity: %s %s", alert.DeviceID, alert.Location)
	}
	if alert.Temperature != 20 || alert.ThresholdMin != 35 || alert.ThresholdMax != 41 {
		t.Fatalf("unexpected thresholds: %+v", alert)
	}
	if alert.Message == "" {
		t.Fatal("expected a message")
	}
	if alert.Synced {
		t.Fatal("new alert must start unsynced")
	}
}
