package health

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"coldchain-bridge/internal/broker"
)

const defaultInterval = 60 * time.Second

// Status is the periodic liveness message published on the local broker.
type Status struct {
	RestaurantID   string    `json:"restaurant_id"`
	Timestamp      time.Time `json:"timestamp"`
	CloudConnected bool      `json:"cloud_connected"`
	BufferedCount  int       `json:"buffered_count"`
	UptimeSeconds  float64   `json:"uptime"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemPercent     float64   `json:"mem_percent"`
}

// ConnectivitySource reports cloud reachability.
type ConnectivitySource interface {
	Connected() bool
}

// BacklogSource reports the replay buffer depth.
type BacklogSource interface {
	Buffered() int
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Reporter publishes bridge liveness and backlog on a fixed interval. It is
// read-only with respect to every other component; a failed publish is
// logged and nothing else.
type Reporter struct {
	restaurantID string
	local        broker.Publisher
	cloud        ConnectivitySource
	backlog      BacklogSource
	interval     time.Duration
	startedAt    time.Time
	clock        Clock
	logger       *log.Logger
}

// ReporterOption customizes the reporter.
type ReporterOption func(*Reporter)

// WithInterval overrides the publish cadence.
func WithInterval(interval time.Duration) ReporterOption {
	return func(r *Reporter) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ReporterOption {
	return func(r *Reporter) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewReporter constructs a reporter.
func NewReporter(restaurantID string, local broker.Publisher, cloud ConnectivitySource, backlog BacklogSource, logger *log.Logger, opts ...ReporterOption) (*Reporter, error) {
	if restaurantID == "" {
		return nil, errors.New("health: empty restaurant id")
	}
	if local == nil {
		return nil, errors.New("health: nil local publisher")
	}
	if cloud == nil {
		return nil, errors.New("health: nil connectivity source")
	}
	if backlog == nil {
		return nil, errors.New("health: nil backlog source")
	}
	if logger == nil {
		return nil, errors.New("health: nil logger")
	}
	reporter := &Reporter{
		restaurantID: restaurantID,
		local:        local,
		cloud:        cloud,
		backlog:      backlog,
		interval:     defaultInterval,
		clock:        systemClock{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(reporter)
	}
	reporter.startedAt = reporter.clock.Now()
	return reporter, nil
}

// Run publishes status on a fixed interval until the context is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Report(ctx)
		}
	}
}

// Report publishes one status message.
func (r *Reporter) Report(ctx context.Context) {
	status := r.Snapshot()
	payload, err := json.Marshal(status)
	if err != nil {
		r.logger.Printf("health: encode status: %v", err)
		return
	}
	topic := broker.HealthTopic(r.restaurantID)
	if err := r.local.Publish(ctx, topic, payload); err != nil {
		r.logger.Printf("health: publish failed: %v", err)
	}
}

// Snapshot assembles the current status.
func (r *Reporter) Snapshot() Status {
	now := r.clock.Now().UTC()
	status := Status{
		RestaurantID:   r.restaurantID,
		Timestamp:      now,
		CloudConnected: r.cloud.Connected(),
		BufferedCount:  r.backlog.Buffered(),
		UptimeSeconds:  now.Sub(r.startedAt).Seconds(),
	}
	// Host metrics are best-effort; a probe failure leaves them at zero.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		status.MemPercent = vm.UsedPercent
	}
	return status
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
