package egress

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"coldchain-bridge/internal/broker"
	devices "coldchain-bridge/internal/devices/domain"
)

func newTestConnector(t *testing.T) *Connector {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	dispatcher, err := NewCommandDispatcher(devices.NewRegistry(), &stubConfigRepo{}, logger)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	connector, err := NewConnector("rest-1", broker.Options{
		URL:      "tcp://127.0.0.1:1883",
		ClientID: "bridge-test",
	}, dispatcher, logger)
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}
	return connector
}

func TestPublishWhileDisconnected(t *testing.T) {
	connector := newTestConnector(t)
	if connector.Connected() {
		t.Fatal("connector must start disconnected")
	}
	err := connector.Publish(context.Background(), "restaurant/rest-1/sensor/fridge-1", []byte("{}"))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestNewConnectorValidation(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	dispatcher, err := NewCommandDispatcher(devices.NewRegistry(), &stubConfigRepo{}, logger)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if _, err := NewConnector("", broker.Options{URL: "tcp://127.0.0.1:1883"}, dispatcher, logger); err == nil {
		t.Fatal("expected error for empty restaurant id")
	}
	if _, err := NewConnector("rest-1", broker.Options{URL: "tcp://127.0.0.1:1883"}, nil, logger); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}
}
