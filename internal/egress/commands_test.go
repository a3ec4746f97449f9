package egress

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	devices "coldchain-bridge/internal/devices/domain"
)

type stubConfigRepo struct {
	saved    map[string]devices.Config
	failSave bool
}

func (s *stubConfigRepo) Load(context.Context) (map[string]devices.Config, error) {
	return s.saved, nil
}

func (s *stubConfigRepo) Save(_ context.Context, configs map[string]devices.Config) error {
	if s.failSave {
		return errors.New("disk full")
	}
	s.saved = configs
	return nil
}

func newDispatcher(t *testing.T, repo *stubConfigRepo) (*CommandDispatcher, *devices.Registry) {
	t.Helper()
	registry := devices.NewRegistry()
	registry.Replace(map[string]devices.Config{
		"fridge-1": {TempMinF: 35, TempMaxF: 41},
		"old-unit": {TempMinF: 0, TempMaxF: 10},
	})
	dispatcher, err := NewCommandDispatcher(registry, repo, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return dispatcher, registry
}

func TestHandleUpdateConfigReplacesAll(t *testing.T) {
	repo := &stubConfigRepo{}
	dispatcher, registry := newDispatcher(t, repo)

	payload := []byte(`{
		"command": "update_config",
		"configs": {
			"fridge-1": {"name": "Walk-in fridge", "temp_min_f": 33, "temp_max_f": 40},
			"freezer-1": {"temp_min_f": -10, "temp_max_f": 0}
		}
	}`)
	dispatcher.Handle(context.Background(), "restaurant/r1/commands/config", payload)

	if registry.Len() != 2 {
		t.Fatalf("expected 2 configs after replace, got %d", registry.Len())
	}
	// The update is a full replacement, not a merge.
	if _, ok := registry.Get("old-unit"); ok {
		t.Fatal("old-unit should be gone after full replace")
	}
	fridge, ok := registry.Get("fridge-1")
	if !ok || fridge.TempMinF != 33 || fridge.TempMaxF != 40 {
		t.Fatalf("unexpected fridge-1 config: %+v", fridge)
	}
	if fridge.DeviceID != "fridge-1" {
		t.Fatalf("device id should come from the map key, got %q", fridge.DeviceID)
	}
	if len(repo.saved) != 2 {
		t.Fatalf("expected configs persisted, saved %d", len(repo.saved))
	}
}

func TestHandleUpdateConfigSaveFailureKeepsInMemory(t *testing.T) {
	repo := &stubConfigRepo{failSave: true}
	dispatcher, registry := newDispatcher(t, repo)

	payload := []byte(`{"command": "update_config", "configs": {"freezer-1": {"temp_min_f": -10, "temp_max_f": 0}}}`)
	dispatcher.Handle(context.Background(), "restaurant/r1/commands/config", payload)

	// The live registry swaps even when persistence fails.
	if _, ok := registry.Get("freezer-1"); !ok {
		t.Fatal("in-memory config must be live despite save failure")
	}
}

func TestHandleMalformedCommand(t *testing.T) {
	dispatcher, registry := newDispatcher(t, &stubConfigRepo{})
	dispatcher.Handle(context.Background(), "restaurant/r1/commands/config", []byte(`{not json`))
	if registry.Len() != 2 {
		t.Fatal("malformed command must leave configs untouched")
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	dispatcher, registry := newDispatcher(t, &stubConfigRepo{})
	dispatcher.Handle(context.Background(), "restaurant/r1/commands/other", []byte(`{"command": "reboot"}`))
	if registry.Len() != 2 {
		t.Fatal("unknown command must leave configs untouched")
	}
}

func TestHandleUpdateConfigSkipsEmptyIDs(t *testing.T) {
	dispatcher, registry := newDispatcher(t, &stubConfigRepo{})
	payload := []byte(`{"command": "update_config", "configs": {"": {"temp_min_f": 1, "temp_max_f": 2}, "fridge-2": {"temp_min_f": 33, "temp_max_f": 40}}}`)
	dispatcher.Handle(context.Background(), "restaurant/r1/commands/config", payload)
	if registry.Len() != 1 {
		t.Fatalf("expected only fridge-2, got %d configs", registry.Len())
	}
}
