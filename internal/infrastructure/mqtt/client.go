package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/remo-relay/internal/infrastructure/config"
)

// Client is the relay's link to the broker. It announces the relay on the
// system status topic, keeps the send-command subscriptions alive across
// reconnects and stops a failing handler from taking paho down with it.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// up is set while the broker link is established.
	up atomic.Bool

	// sessions counts established links, the first connect included.
	// It is carried in the online status so watchers can spot flapping.
	sessions atomic.Int64

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	hookMu       sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is the subset of logging.Logger used by the client.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives the concrete topic and raw payload of one message.
// A returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker and blocks until the first session is up or
// the connect timeout passes. Returns ErrDisabled when cfg.Enabled is false.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	c := newClient(cfg)

	// paho keeps redialling a failed first connect when ConnectRetry is on;
	// Disconnect stops that loop.
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: timeout after %v", ErrConnectionFailed, brokerURL(cfg.Broker), defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg.Broker), err)
	}

	// The connect hook runs on its own goroutine; IsConnected must hold
	// as soon as Connect returns.
	c.up.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig) *Client {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.linkUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.linkLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if l := c.getLogger(); l != nil {
			l.Warn("MQTT reconnecting", "broker", brokerURL(cfg.Broker))
		}
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// linkUp runs on every established session: resubscribe, announce, notify.
func (c *Client) linkUp() {
	c.up.Store(true)
	session := c.sessions.Add(1)

	c.resubscribe()
	if err := c.PublishRetained(Topics{}.SystemStatus(), buildOnlinePayload(c.cfg.Broker.ClientID, session)); err != nil {
		if l := c.getLogger(); l != nil {
			l.Warn("MQTT online status not published", "error", err)
		}
	}

	c.hookMu.RLock()
	hook := c.onConnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) linkLost(err error) {
	c.up.Store(false)

	c.hookMu.RLock()
	hook, l := c.onDisconnect, c.logger
	c.hookMu.RUnlock()

	if l != nil {
		l.Warn("MQTT connection lost", "error", err)
	}
	if hook != nil {
		hook(err)
	}
}

// resubscribe replays every tracked subscription on a fresh session.
// Clean sessions mean the broker has forgotten them.
func (c *Client) resubscribe() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Sessions returns how many times the link has been established.
func (c *Client) Sessions() int64 {
	return c.sessions.Load()
}

// Close replaces the retained status with a graceful offline one and
// disconnects. Safe on a nil or never-connected client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		offline := buildOfflinePayload(c.cfg.Broker.ClientID, c.sessions.Load())
		if err := c.PublishRetained(Topics{}.SystemStatus(), offline); err != nil {
			if l := c.getLogger(); l != nil {
				l.Warn("MQTT offline status not published", "error", err)
			}
		}
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.up.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the link is up, as seen by both the relay
// and paho.
func (c *Client) IsConnected() bool {
	return c.up.Load() && c.client.IsConnected()
}

// SetOnConnect registers a hook run after every established session.
func (c *Client) SetOnConnect(hook func()) {
	c.hookMu.Lock()
	c.onConnect = hook
	c.hookMu.Unlock()
}

// SetOnDisconnect registers a hook run when the link drops.
func (c *Client) SetOnDisconnect(hook func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = hook
	c.hookMu.Unlock()
}

// SetLogger sets the logger for link events and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.logger = logger
	c.hookMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho. Errors are logged as
// warnings and panics are recovered and logged as errors.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		topic := msg.Topic()
		defer func() {
			if r := recover(); r != nil {
				if l := c.getLogger(); l != nil {
					l.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
				}
			}
		}()

		if err := handler(topic, msg.Payload()); err != nil {
			if l := c.getLogger(); l != nil {
				l.Warn("MQTT handler returned error", "topic", topic, "error", err)
			}
		}
	}
}
