package replay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	alerts "coldchain-bridge/internal/alerts/domain"
	"coldchain-bridge/internal/broker"
	"coldchain-bridge/internal/observability/metrics"
	telemetry "coldchain-bridge/internal/telemetry/domain"
)

const (
	defaultSweepInterval = 10 * time.Second
	defaultItemDelay     = 100 * time.Millisecond
)

// CloudPublisher is the cloud egress surface the coordinator forwards
// through.
type CloudPublisher interface {
	Connected() bool
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Coordinator decides, for every newly produced item, whether to forward it
// immediately or buffer it, and periodically drains the buffer once
// connectivity returns.
type Coordinator struct {
	restaurantID  string
	ring          *Ring
	cloud         CloudPublisher
	sweepInterval time.Duration
	itemDelay     time.Duration
	logger        *log.Logger
}

// CoordinatorOption customizes the coordinator.
type CoordinatorOption func(*Coordinator)

// WithSweepInterval overrides the drain cadence.
func WithSweepInterval(interval time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if interval > 0 {
			c.sweepInterval = interval
		}
	}
}

// WithItemDelay overrides the pause between drained items.
func WithItemDelay(delay time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if delay >= 0 {
			c.itemDelay = delay
		}
	}
}

// NewCoordinator constructs a coordinator.
func NewCoordinator(restaurantID string, ring *Ring, cloud CloudPublisher, logger *log.Logger, opts ...CoordinatorOption) (*Coordinator, error) {
	if restaurantID == "" {
		return nil, errors.New("replay: empty restaurant id")
	}
	if ring == nil {
		return nil, errors.New("replay: nil ring")
	}
	if cloud == nil {
		return nil, errors.New("replay: nil cloud publisher")
	}
	if logger == nil {
		return nil, errors.New("replay: nil logger")
	}
	coordinator := &Coordinator{
		restaurantID:  restaurantID,
		ring:          ring,
		cloud:         cloud,
		sweepInterval: defaultSweepInterval,
		itemDelay:     defaultItemDelay,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(coordinator)
	}
	return coordinator, nil
}

// ForwardEnvelope forwards a reading envelope, buffering it when the cloud
// broker is down.
func (c *Coordinator) ForwardEnvelope(ctx context.Context, env telemetry.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		c.logger.Printf("replay: encode envelope: %v", err)
		return
	}
	c.forward(ctx, Item{
		Kind:    KindReading,
		Topic:   broker.SensorTopic(c.restaurantID, env.DeviceID),
		Payload: payload,
	})
}

// ForwardAlert forwards an alert, buffering it when the cloud broker is
// down.
func (c *Coordinator) ForwardAlert(ctx context.Context, alert alerts.Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		c.logger.Printf("replay: encode alert: %v", err)
		return
	}
	c.forward(ctx, Item{
		Kind:    KindAlert,
		Topic:   broker.CriticalAlertsTopic(c.restaurantID),
		Payload: payload,
	})
}

func (c *Coordinator) forward(ctx context.Context, item Item) {
	if !c.cloud.Connected() {
		c.buffer(item)
		return
	}
	if err := c.cloud.Publish(ctx, item.Topic, item.Payload); err != nil {
		c.logger.Printf("replay: publish %s failed, buffering: %v", item.Topic, err)
		metrics.IncCloudPublish(metrics.ResultError)
		c.buffer(item)
		return
	}
	metrics.IncCloudPublish(metrics.ResultSuccess)
}

func (c *Coordinator) buffer(item Item) {
	if c.ring.Push(item) {
		c.logger.Printf("replay: ring full, oldest %s dropped", item.Kind)
	}
}

// Run drains the ring on a fixed interval until the context is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep drains the ring FIFO while the cloud broker stays reachable. An
// item whose publish fails stays at the head and the sweep ends for this
// cycle.
func (c *Coordinator) Sweep(ctx context.Context) {
	if !c.cloud.Connected() || c.ring.Len() == 0 {
		return
	}
	start := time.Now()
	defer func() {
		metrics.ObserveSweep("ring", time.Since(start))
	}()

	for c.cloud.Connected() {
		var topic string
		processed, err := c.ring.ProcessHead(func(item Item) error {
			topic = item.Topic
			return c.cloud.Publish(ctx, item.Topic, item.Payload)
		})
		if err != nil {
			c.logger.Printf("replay: sweep publish %s failed, kept at head: %v", topic, err)
			metrics.IncCloudPublish(metrics.ResultError)
			return
		}
		if !processed {
			return
		}
		metrics.IncCloudPublish(metrics.ResultSuccess)

		// Small pause between items so a long drain does not saturate
		// the cloud broker.
		if c.itemDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.itemDelay):
			}
		}
	}
}

// Buffered returns the current ring depth, for the health reporter.
func (c *Coordinator) Buffered() int {
	return c.ring.Len()
}
