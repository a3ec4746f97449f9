package egress

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	devices "coldchain-bridge/internal/devices/domain"
	"coldchain-bridge/internal/observability/metrics"
)

// CommandUpdateConfig replaces the full device configuration map.
const CommandUpdateConfig = "update_config"

// commandMessage is the inbound remote command wire format.
type commandMessage struct {
	Command string                    `json:"command"`
	Configs map[string]devices.Config `json:"configs"`
}

// CommandDispatcher routes inbound remote commands.
type CommandDispatcher struct {
	configs *devices.Registry
	repo    devices.ConfigRepository
	logger  *log.Logger
}

// NewCommandDispatcher constructs a dispatcher.
func NewCommandDispatcher(configs *devices.Registry, repo devices.ConfigRepository, logger *log.Logger) (*CommandDispatcher, error) {
	if configs == nil {
		return nil, errors.New("egress: nil device registry")
	}
	if repo == nil {
		return nil, errors.New("egress: nil config repository")
	}
	if logger == nil {
		return nil, errors.New("egress: nil logger")
	}
	return &CommandDispatcher{configs: configs, repo: repo, logger: logger}, nil
}

// Handle processes one remote command message. Malformed or unknown
// commands are logged and discarded.
func (d *CommandDispatcher) Handle(ctx context.Context, topic string, payload []byte) {
	var msg commandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		d.logger.Printf("egress: malformed command on %s, dropped: %v", topic, err)
		metrics.IncCommand("malformed")
		return
	}
	switch msg.Command {
	case CommandUpdateConfig:
		d.handleUpdateConfig(ctx, msg.Configs)
	default:
		d.logger.Printf("egress: unknown command %q on %s, dropped", msg.Command, topic)
		metrics.IncCommand("unknown")
	}
}

// handleUpdateConfig replaces the in-memory configuration wholesale and
// persists it. The swap takes effect on the very next reading evaluated.
func (d *CommandDispatcher) handleUpdateConfig(ctx context.Context, configs map[string]devices.Config) {
	next := make(map[string]devices.Config, len(configs))
	for id, cfg := range configs {
		if id == "" {
			continue
		}
		cfg.DeviceID = id
		next[id] = cfg
	}
	d.configs.Replace(next)
	if err := d.repo.Save(ctx, next); err != nil {
		// In-memory config is already live; the persisted copy catches
		// up on the next update.
		d.logger.Printf("egress: persist device configs failed: %v", err)
		metrics.IncStorageError("device_configs")
		metrics.IncCommand(metrics.ResultError)
		return
	}
	d.logger.Printf("egress: device configs replaced: %d devices", len(next))
	metrics.IncCommand(metrics.ResultSuccess)
}
