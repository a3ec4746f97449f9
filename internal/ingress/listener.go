package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	alerts "coldchain-bridge/internal/alerts/domain"
	"coldchain-bridge/internal/broker"
	compliance "coldchain-bridge/internal/compliance/domain"
	devices "coldchain-bridge/internal/devices/domain"
	"coldchain-bridge/internal/observability/metrics"
	telemetry "coldchain-bridge/internal/telemetry/domain"
)

// State is the listener's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Forwarder hands finished work to the replay path.
type Forwarder interface {
	ForwardEnvelope(ctx context.Context, env telemetry.Envelope)
	ForwardAlert(ctx context.Context, alert alerts.Alert)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Listener reacts to discrete local-broker events: connected,
// message(topic, payload), disconnected. Reconnects are the underlying
// client's responsibility, not the listener's.
type Listener struct {
	restaurantID string
	readings     telemetry.ReadingRepository
	alerts       alerts.AlertRepository
	configs      *devices.Registry
	local        broker.Publisher
	forward      Forwarder
	clock        Clock
	logger       *log.Logger

	mu    sync.Mutex
	state State
}

// ListenerOption customizes the listener.
type ListenerOption func(*Listener)

// WithClock assigns a clock.
func WithClock(clock Clock) ListenerOption {
	return func(l *Listener) {
		l.clock = clock
	}
}

// NewListener constructs a listener.
func NewListener(restaurantID string, readings telemetry.ReadingRepository, alertRepo alerts.AlertRepository, configs *devices.Registry, local broker.Publisher, forward Forwarder, logger *log.Logger, opts ...ListenerOption) (*Listener, error) {
	if restaurantID == "" {
		return nil, errors.New("ingress: empty restaurant id")
	}
	if readings == nil || alertRepo == nil {
		return nil, errors.New("ingress: nil repository")
	}
	if configs == nil {
		return nil, errors.New("ingress: nil device registry")
	}
	if local == nil {
		return nil, errors.New("ingress: nil local publisher")
	}
	if forward == nil {
		return nil, errors.New("ingress: nil forwarder")
	}
	if logger == nil {
		return nil, errors.New("ingress: nil logger")
	}
	listener := &Listener{
		restaurantID: restaurantID,
		readings:     readings,
		alerts:       alertRepo,
		configs:      configs,
		local:        local,
		forward:      forward,
		clock:        systemClock{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(listener)
	}
	return listener, nil
}

// State returns the current connection state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// HandleConnecting marks a connection attempt in progress.
func (l *Listener) HandleConnecting() {
	l.setState(StateConnecting)
}

// HandleConnected marks the telemetry subscription live.
func (l *Listener) HandleConnected() {
	l.setState(StateSubscribed)
	l.logger.Printf("ingress: subscribed to local telemetry")
}

// HandleDisconnected records a dropped local connection. The broker client
// retries on its own.
func (l *Listener) HandleDisconnected(err error) {
	l.setState(StateDisconnected)
	l.logger.Printf("ingress: local connection lost: %v", err)
}

// HandleMessage processes one inbound device message: persist the reading,
// evaluate compliance, raise alerts, then hand the envelope to the replay
// path. A bad message is logged and dropped, never fatal.
func (l *Listener) HandleMessage(ctx context.Context, topic string, payload []byte) {
	deviceID, ok := broker.DeviceFromTelemetryTopic(topic)
	if !ok {
		l.logger.Printf("ingress: unrecognized topic %q, dropped", topic)
		metrics.IncIngestDropped("bad_topic")
		return
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		l.logger.Printf("ingress: malformed payload from %s, dropped: %v", deviceID, err)
		metrics.IncIngestDropped("malformed")
		return
	}

	// Ingestion time, not device time: field clocks drift and some
	// devices do not report one at all.
	reading := telemetry.Reading{
		DeviceID:  deviceID,
		Timestamp: l.clock.Now().UTC(),
		Data:      data,
	}

	// Local durability comes first; nothing is forwarded for a reading
	// that could not be persisted.
	if err := l.readings.Insert(ctx, &reading); err != nil {
		l.logger.Printf("ingress: persist reading from %s failed, message lost: %v", deviceID, err)
		metrics.IncStorageError("sensor_readings")
		metrics.IncIngest(metrics.ResultError)
		return
	}

	l.evaluate(ctx, reading)
	l.forward.ForwardEnvelope(ctx, reading.Envelope(l.restaurantID))
	metrics.IncIngest(metrics.ResultSuccess)
}

func (l *Listener) evaluate(ctx context.Context, reading telemetry.Reading) {
	cfg, ok := l.configs.Get(reading.DeviceID)
	if !ok {
		return
	}
	temperature, ok := reading.Temperature()
	if !ok {
		return
	}
	for _, violation := range compliance.Evaluate(temperature, cfg) {
		alert := compliance.NewTemperatureAlert(cfg, violation)
		if err := l.alerts.Insert(ctx, &alert); err != nil {
			l.logger.Printf("ingress: persist alert for %s failed: %v", reading.DeviceID, err)
			metrics.IncStorageError("alerts")
		}
		metrics.IncAlert(string(alert.Severity))
		l.publishLocalAlert(ctx, alert)
		l.forward.ForwardAlert(ctx, alert)
	}
}

// publishLocalAlert notifies on-site staff immediately, independent of
// cloud reachability.
func (l *Listener) publishLocalAlert(ctx context.Context, alert alerts.Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		l.logger.Printf("ingress: encode alert: %v", err)
		return
	}
	topic := broker.CriticalAlertsTopic(l.restaurantID)
	if err := l.local.Publish(ctx, topic, payload); err != nil {
		l.logger.Printf("ingress: local alert publish failed: %v", err)
	}
}

func (l *Listener) setState(state State) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
