package egress

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"coldchain-bridge/internal/broker"
	"coldchain-bridge/internal/observability/metrics"
)

const defaultRetryInterval = 30 * time.Second

// ErrNotConnected is returned for publishes attempted while the cloud
// broker is unreachable.
var ErrNotConnected = errors.New("egress: cloud broker not connected")

// Connector maintains the cloud broker connection with a supervised,
// fixed-interval reconnect loop and exposes publish plus a live
// connectivity flag.
type Connector struct {
	restaurantID  string
	client        *broker.Client
	dispatcher    *CommandDispatcher
	retryInterval time.Duration
	logger        *log.Logger

	connected atomic.Bool
	lost      chan struct{}
}

// ConnectorOption customizes the connector.
type ConnectorOption func(*Connector)

// WithRetryInterval overrides the reconnect cadence.
func WithRetryInterval(interval time.Duration) ConnectorOption {
	return func(c *Connector) {
		if interval > 0 {
			c.retryInterval = interval
		}
	}
}

// NewConnector constructs a connector and its broker client. Reconnect is
// owned here, so the client's own auto-reconnect stays off.
func NewConnector(restaurantID string, clientOpts broker.Options, dispatcher *CommandDispatcher, logger *log.Logger, opts ...ConnectorOption) (*Connector, error) {
	if restaurantID == "" {
		return nil, errors.New("egress: empty restaurant id")
	}
	if dispatcher == nil {
		return nil, errors.New("egress: nil command dispatcher")
	}
	if logger == nil {
		return nil, errors.New("egress: nil logger")
	}

	connector := &Connector{
		restaurantID:  restaurantID,
		dispatcher:    dispatcher,
		retryInterval: defaultRetryInterval,
		logger:        logger,
		lost:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(connector)
	}

	clientOpts.AutoReconnect = false
	clientOpts.OnConnectionLost = func(err error) {
		connector.logger.Printf("egress: cloud connection lost: %v", err)
		connector.signalLost()
	}
	client, err := broker.NewClient(clientOpts)
	if err != nil {
		return nil, err
	}
	connector.client = client
	return connector, nil
}

// Connected reports whether the cloud broker connection is live.
func (c *Connector) Connected() bool {
	return c.connected.Load()
}

// Publish sends a payload to the cloud broker. A failure flips the
// connectivity flag and hands control back to the reconnect loop.
func (c *Connector) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if err := c.client.Publish(ctx, topic, payload); err != nil {
		c.setConnected(false)
		c.signalLost()
		return err
	}
	return nil
}

// Run supervises the connection until the context is cancelled: connect,
// subscribe to remote commands, then wait for the connection to drop and
// start over. Failed attempts retry on a fixed interval.
func (c *Connector) Run(ctx context.Context) {
	defer func() {
		c.setConnected(false)
		c.client.Disconnect(250 * time.Millisecond)
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		c.logger.Printf("egress: connecting to cloud broker")
		if err := c.client.Connect(ctx); err != nil {
			c.logger.Printf("egress: cloud connect failed: %v", err)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		filter := broker.CommandsFilter(c.restaurantID)
		err := c.client.Subscribe(ctx, filter, func(topic string, payload []byte) {
			c.dispatcher.Handle(ctx, topic, payload)
		})
		if err != nil {
			c.logger.Printf("egress: command subscribe failed: %v", err)
			c.client.Disconnect(250 * time.Millisecond)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		c.setConnected(true)
		c.logger.Printf("egress: cloud broker connected")

		select {
		case <-ctx.Done():
			return
		case <-c.lost:
			c.setConnected(false)
			c.client.Disconnect(250 * time.Millisecond)
			if !c.sleep(ctx) {
				return
			}
		}
	}
}

// sleep waits one retry interval, returning false when cancelled.
func (c *Connector) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retryInterval):
		return true
	}
}

func (c *Connector) setConnected(connected bool) {
	c.connected.Store(connected)
	metrics.SetCloudConnected(connected)
}

func (c *Connector) signalLost() {
	c.connected.Store(false)
	metrics.SetCloudConnected(false)
	select {
	case c.lost <- struct{}{}:
	default:
	}
}
