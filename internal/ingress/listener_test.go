package ingress

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	alerts "coldchain-bridge/internal/alerts/domain"
	devices "coldchain-bridge/internal/devices/domain"
	telemetry "coldchain-bridge/internal/telemetry/domain"
)

type stubReadings struct {
	inserted []telemetry.Reading
	failNext bool
}

func (s *stubReadings) Insert(_ context.Context, reading *telemetry.Reading) error {
	if s.failNext {
		return errors.New("disk full")
	}
	reading.ID = int64(len(s.inserted) + 1)
	s.inserted = append(s.inserted, *reading)
	return nil
}

func (s *stubReadings) Recent(context.Context, string, time.Time) ([]telemetry.Reading, error) {
	return nil, nil
}

func (s *stubReadings) Unsynced(context.Context, int) ([]telemetry.Reading, error) {
	return nil, nil
}

func (s *stubReadings) MarkSynced(context.Context, []int64) error { return nil }

type stubAlerts struct {
	inserted []alerts.Alert
}

func (s *stubAlerts) Insert(_ context.Context, alert *alerts.Alert) error {
	alert.ID = int64(len(s.inserted) + 1)
	s.inserted = append(s.inserted, *alert)
	return nil
}

func (s *stubAlerts) Unsynced(context.Context, int) ([]alerts.Alert, error) { return nil, nil }

func (s *stubAlerts) MarkSynced(context.Context, []int64) error { return nil }

type stubLocal struct {
	published map[string][][]byte
}

func (s *stubLocal) Publish(_ context.Context, topic string, payload []byte) error {
	if s.published == nil {
		s.published = map[string][][]byte{}
	}
	s.published[topic] = append(s.published[topic], payload)
	return nil
}

type stubForwarder struct {
	envelopes []telemetry.Envelope
	alerts    []alerts.Alert
}

func (s *stubForwarder) ForwardEnvelope(_ context.Context, env telemetry.Envelope) {
	s.envelopes = append(s.envelopes, env)
}

func (s *stubForwarder) ForwardAlert(_ context.Context, alert alerts.Alert) {
	s.alerts = append(s.alerts, alert)
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type fixture struct {
	listener *Listener
	readings *stubReadings
	alertLog *stubAlerts
	local    *stubLocal
	forward  *stubForwarder
	registry *devices.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		readings: &stubReadings{},
		alertLog: &stubAlerts{},
		local:    &stubLocal{},
		forward:  &stubForwarder{},
		registry: devices.NewRegistry(),
	}
	f.registry.Replace(map[string]devices.Config{
		"fridge-1": {Name: "Walk-in fridge", TempMinF: 35, TempMaxF: 41},
	})
	logger := log.New(io.Discard, "", 0)
	clock := fixedClock{at: time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)}
	listener, err := NewListener("rest-1", f.readings, f.alertLog, f.registry, f.local, f.forward, logger, WithClock(clock))
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	f.listener = listener
	return f
}

func TestHandleMessagePersistsThenForwards(t *testing.T) {
	f := newFixture(t)
	f.listener.HandleMessage(context.Background(), "sensors/fridge-1", []byte(`{"temperature_f": 38.0}`))

	if len(f.readings.inserted) != 1 {
		t.Fatalf("expected 1 stored reading, got %d", len(f.readings.inserted))
	}
	if len(f.forward.envelopes) != 1 {
		t.Fatalf("expected 1 forwarded envelope, got %d", len(f.forward.envelopes))
	}
	env := f.forward.envelopes[0]
	if env.RestaurantID != "rest-1" || env.DeviceID != "fridge-1" || !env.ProcessedLocally {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if len(f.forward.alerts) != 0 {
		t.Fatalf("in-range reading must not alert, got %d", len(f.forward.alerts))
	}
}

func TestHandleMessageDropsUnrecognizedTopic(t *testing.T) {
	f := newFixture(t)
	f.listener.HandleMessage(context.Background(), "other/fridge-1/extra", []byte(`{"temperature_f": 38.0}`))
	if len(f.readings.inserted) != 0 || len(f.forward.envelopes) != 0 {
		t.Fatal("unrecognized topic must be dropped entirely")
	}
}

func TestHandleMessageDropsMalformedPayload(t *testing.T) {
	f := newFixture(t)
	f.listener.HandleMessage(context.Background(), "sensors/fridge-1", []byte(`{not json`))
	if len(f.readings.inserted) != 0 || len(f.forward.envelopes) != 0 {
		t.Fatal("malformed payload must be dropped entirely")
	}
}

func TestHandleMessageStorageFailureStopsForwarding(t *testing.T) {
	f := newFixture(t)
	f.readings.failNext = true
	f.listener.HandleMessage(context.Background(), "sensors/fridge-1", []byte(`{"temperature_f": 20.0}`))

	if len(f.forward.envelopes) != 0 {
		t.Fatal("a reading that was not persisted must not be forwarded")
	}
	if len(f.forward.alerts) != 0 || len(f.local.published) != 0 {
		t.Fatal("no alert path for an unpersisted reading")
	}
}

func TestHandleMessageCriticalViolation(t *testing.T) {
	f := newFixture(t)
	// 20°F against a 35°F floor is 15 units past the bound.
	f.listener.HandleMessage(context.Background(), "sensors/fridge-1", []byte(`{"temperature_f": 20.0}`))

	if len(f.alertLog.inserted) != 1 {
		t.Fatalf("expected 1 stored alert, got %d", len(f.alertLog.inserted))
	}
	alert := f.alertLog.inserted[0]
	if alert.Severity != alerts.SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", alert.Severity)
	}
	// On-site staff are notified even if the cloud broker is unreachable.
	if got := len(f.local.published["restaurant/rest-1/alerts/critical"]); got != 1 {
		t.Fatalf("expected 1 local alert publish, got %d", got)
	}
	if len(f.forward.alerts) != 1 {
		t.Fatalf("expected alert forwarded to replay path, got %d", len(f.forward.alerts))
	}
}

func TestHandleMessageWarningViolation(t *testing.T) {
	f := newFixture(t)
	// 43°F against a 41°F ceiling is 2 units over, inside the margin.
	f.listener.HandleMessage(context.Background(), "sensors/fridge-1", []byte(`{"temperature_f": 43.0}`))

	if len(f.alertLog.inserted) != 1 {
		t.Fatalf("expected 1 stored alert, got %d", len(f.alertLog.inserted))
	}
	if f.alertLog.inserted[0].Severity != alerts.SeverityWarning {
		t.Fatalf("expected WARNING, got %s", f.alertLog.inserted[0].Severity)
	}
}

func TestHandleMessageUnconfiguredDevice(t *testing.T) {
	f := newFixture(t)
	f.listener.HandleMessage(context.Background(), "sensors/mystery-9", []byte(`{"temperature_f": 120.0}`))

	if len(f.readings.inserted) != 1 {
		t.Fatal("readings from unconfigured devices are still stored and forwarded")
	}
	if len(f.alertLog.inserted) != 0 {
		t.Fatal("no thresholds, no alert")
	}
}

func TestConfigChangeAppliesToNextReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.listener.HandleMessage(ctx, "sensors/fridge-1", []byte(`{"temperature_f": 43.0}`))
	if len(f.alertLog.inserted) != 1 {
		t.Fatalf("expected a violation under the old limits, got %d alerts", len(f.alertLog.inserted))
	}

	f.registry.Replace(map[string]devices.Config{
		"fridge-1": {TempMinF: 35, TempMaxF: 45},
	})
	f.listener.HandleMessage(ctx, "sensors/fridge-1", []byte(`{"temperature_f": 43.0}`))
	if len(f.alertLog.inserted) != 1 {
		t.Fatal("widened limits must apply to the next reading")
	}
}

func TestStateTransitions(t *testing.T) {
	f := newFixture(t)
	if f.listener.State() != StateDisconnected {
		t.Fatalf("expected initial disconnected, got %s", f.listener.State())
	}
	f.listener.HandleConnecting()
	if f.listener.State() != StateConnecting {
		t.Fatalf("expected connecting, got %s", f.listener.State())
	}
	f.listener.HandleConnected()
	if f.listener.State() != StateSubscribed {
		t.Fatalf("expected subscribed, got %s", f.listener.State())
	}
	f.listener.HandleDisconnected(errors.New("broker gone"))
	if f.listener.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", f.listener.State())
	}

	// A reconnect passes through connecting again before resubscribing.
	f.listener.HandleConnecting()
	if f.listener.State() != StateConnecting {
		t.Fatalf("expected connecting on reconnect, got %s", f.listener.State())
	}
	f.listener.HandleConnected()
	if f.listener.State() != StateSubscribed {
		t.Fatalf("expected subscribed after reconnect, got %s", f.listener.State())
	}
}
