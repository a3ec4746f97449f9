package broker

import (
	"fmt"
	"strings"
)

// DefaultTelemetryFilter subscribes to every device telemetry topic on the
// local broker.
const DefaultTelemetryFilter = "sensors/+"

// DeviceFromTelemetryTopic extracts the device id from a local telemetry
// topic of the form "sensors/{device_id}".
func DeviceFromTelemetryTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] != "sensors" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// CriticalAlertsTopic is published on both brokers.
func CriticalAlertsTopic(restaurantID string) string {
	return fmt.Sprintf("restaurant/%s/alerts/critical", restaurantID)
}

// HealthTopic carries the bridge's periodic status message on the local
// broker.
func HealthTopic(restaurantID string) string {
	return fmt.Sprintf("restaurant/%s/health", restaurantID)
}

// SensorTopic carries canonical reading envelopes to the cloud broker.
func SensorTopic(restaurantID, deviceID string) string {
	return fmt.Sprintf("restaurant/%s/sensor/%s", restaurantID, deviceID)
}

// CommandsFilter subscribes to every remote command for this restaurant.
func CommandsFilter(restaurantID string) string {
	return fmt.Sprintf("restaurant/%s/commands/#", restaurantID)
}
