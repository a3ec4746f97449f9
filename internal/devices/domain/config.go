package devices

import (
	"context"
	"sync"
)

// Config is the safe operating range for a single device. One row per
// device, last-writer-wins.
type Config struct {
	DeviceID string  `json:"device_id" yaml:"-"`
	Name     string  `json:"name" yaml:"name"`
	Location string  `json:"location" yaml:"location"`
	TempMinF float64 `json:"temp_min_f" yaml:"temp_min_f"`
	TempMaxF float64 `json:"temp_max_f" yaml:"temp_max_f"`
}

// ConfigRepository persists the full device configuration map.
type ConfigRepository interface {
	Load(ctx context.Context) (map[string]Config, error)
	Save(ctx context.Context, configs map[string]Config) error
}

// Registry is the in-memory device configuration shared by the ingress
// listener (reads) and the egress command dispatcher (wholesale replace).
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]Config)}
}

// Get returns the config for a device.
func (r *Registry) Get(deviceID string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[deviceID]
	return cfg, ok
}

// Replace swaps in a complete new configuration map. This is a full
// replace, not a merge: devices absent from the new map are forgotten.
func (r *Registry) Replace(configs map[string]Config) {
	next := make(map[string]Config, len(configs))
	for id, cfg := range configs {
		cfg.DeviceID = id
		next[id] = cfg
	}
	r.mu.Lock()
	r.configs = next
	r.mu.Unlock()
}

// Snapshot returns a copy of the current configuration map.
func (r *Registry) Snapshot() map[string]Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Config, len(r.configs))
	for id, cfg := range r.configs {
		out[id] = cfg
	}
	return out
}

// Len returns the number of configured devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}
