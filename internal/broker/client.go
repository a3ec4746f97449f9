package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const defaultOpTimeout = 10 * time.Second

// Publisher publishes a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// MessageHandler receives an inbound message.
type MessageHandler func(topic string, payload []byte)

// Options configures a broker connection.
type Options struct {
	URL      string
	ClientID string
	Username string
	Password string

	// CredentialsProvider overrides Username/Password per connection
	// attempt. Used for expiring cloud tokens.
	CredentialsProvider func() (string, string)

	// AutoReconnect delegates retry to the paho client. The cloud
	// connector leaves this off and supervises reconnects itself.
	AutoReconnect bool

	// OnConnect fires on every successful (re)connection.
	OnConnect func(c *Client)
	// OnConnectionLost fires when an established connection drops.
	OnConnectionLost func(err error)
	// OnReconnecting fires when the client begins an automatic reconnect
	// attempt. Only meaningful with AutoReconnect on.
	OnReconnecting func()

	// OpTimeout bounds connect/publish/subscribe token waits.
	OpTimeout time.Duration
}

// Client wraps a paho MQTT client with bounded, error-returning operations.
type Client struct {
	mqtt    mqtt.Client
	timeout time.Duration
}

// NewClient builds a client without connecting.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("broker: empty url")
	}
	if opts.ClientID == "" {
		return nil, errors.New("broker: empty client id")
	}
	timeout := opts.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	client := &Client{timeout: timeout}

	pahoOpts := mqtt.NewClientOptions().
		AddBroker(opts.URL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(opts.AutoReconnect).
		SetConnectTimeout(timeout).
		SetWriteTimeout(timeout).
		SetCleanSession(false).
		SetOrderMatters(true)
	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username)
		pahoOpts.SetPassword(opts.Password)
	}
	if opts.CredentialsProvider != nil {
		provider := opts.CredentialsProvider
		pahoOpts.SetCredentialsProvider(func() (string, string) {
			return provider()
		})
	}
	if opts.OnConnect != nil {
		onConnect := opts.OnConnect
		pahoOpts.SetOnConnectHandler(func(mqtt.Client) {
			onConnect(client)
		})
	}
	if opts.OnConnectionLost != nil {
		onLost := opts.OnConnectionLost
		pahoOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			onLost(err)
		})
	}
	if opts.OnReconnecting != nil {
		onReconnecting := opts.OnReconnecting
		pahoOpts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			onReconnecting()
		})
	}

	client.mqtt = mqtt.NewClient(pahoOpts)
	return client, nil
}

// Connect establishes the connection, honoring the op timeout and context.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil || c.mqtt == nil {
		return errors.New("broker: nil client")
	}
	return c.wait(ctx, "connect", c.mqtt.Connect())
}

// Publish sends a payload at QoS 1.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if c == nil || c.mqtt == nil {
		return errors.New("broker: nil client")
	}
	if topic == "" {
		return errors.New("broker: empty topic")
	}
	return c.wait(ctx, "publish", c.mqtt.Publish(topic, 1, false, payload))
}

// Subscribe registers a handler for a topic filter at QoS 1.
func (c *Client) Subscribe(ctx context.Context, filter string, handler MessageHandler) error {
	if c == nil || c.mqtt == nil {
		return errors.New("broker: nil client")
	}
	if filter == "" {
		return errors.New("broker: empty topic filter")
	}
	if handler == nil {
		return errors.New("broker: nil handler")
	}
	token := c.mqtt.Subscribe(filter, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	return c.wait(ctx, "subscribe", token)
}

// IsConnected reports the underlying connection state.
func (c *Client) IsConnected() bool {
	return c != nil && c.mqtt != nil && c.mqtt.IsConnected()
}

// Disconnect closes the connection, allowing quiesce for in-flight work.
func (c *Client) Disconnect(quiesce time.Duration) {
	if c == nil || c.mqtt == nil {
		return
	}
	c.mqtt.Disconnect(uint(quiesce.Milliseconds()))
}

func (c *Client) wait(ctx context.Context, op string, token mqtt.Token) error {
	deadline := c.timeout
	if ctxDeadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(ctxDeadline); remaining < deadline {
			deadline = remaining
		}
	}
	if deadline <= 0 {
		return fmt.Errorf("broker: %s: %w", op, ctx.Err())
	}
	if !token.WaitTimeout(deadline) {
		return fmt.Errorf("broker: %s timeout after %s", op, deadline)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("broker: %s: %w", op, err)
	}
	return nil
}
