package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mysnode/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for a single MySensors node.
//
// Inbound messages are delivered through per-pattern routes (Route) and a
// fallback handler (SetDefaultHandler). Subscribing only tells the broker
// what to send; it never installs a callback of its own.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are restored after an automatic reconnect.
type Client struct {
	client   pahomqtt.Client
	options  *pahomqtt.ClientOptions
	cfg      config.MQTTConfig
	clientID string
	qos      byte

	// subscriptions tracks broker subscriptions for restoration on reconnect.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect      func()
	onDisconnect   func(err error)
	defaultHandler MessageHandler
	callbackMu     sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the subset of logging.Logger the client needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Message is an inbound MQTT message.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho's delivery goroutines and should not block for long.
// A returned error is logged at warn and otherwise ignored.
type MessageHandler func(msg Message) error

// New builds a client from configuration without connecting.
//
// Routes and the default handler may be installed before Connect.
//
// Parameters:
//   - cfg: MQTT section of config.yaml; an empty client_id gets a generated one
//
// Returns:
//   - *Client: Disconnected client
func New(cfg config.MQTTConfig) *Client {
	clientID := resolveClientID(cfg.Broker.ClientID)
	opts := buildClientOptions(cfg, clientID)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		clientID:      clientID,
		qos:           byte(cfg.QoS),
		subscriptions: make(map[string]byte),
	}

	// paho captures the default handler when the client is created, so the
	// indirection lets SetDefaultHandler be called at any time.
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.callbackMu.RLock()
		handler := c.defaultHandler
		c.callbackMu.RUnlock()
		if handler != nil {
			c.invoke(handler, msg)
		}
	})

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect establishes the broker connection.
//
// Once connected, paho reconnects on its own after a connection loss.
//
// Parameters:
//   - ctx: Context for cancellation while waiting for the broker
//
// Returns:
//   - error: nil on success, ErrConnectionFailed wrapping the broker's
//     reason or a timeout, or the context error
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()

	timer := time.NewTimer(defaultConnectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback runs asynchronously and may not have fired yet.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return nil
}

// ClientID returns the MQTT client identifier in use.
func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes tracked patterns. The session is clean,
// so the broker has forgotten them.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for pattern, qos := range c.subscriptions {
		c.client.Subscribe(pattern, qos, nil)
	}
}

// Close disconnects from the broker, allowing pending operations to drain.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the broker link is up.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: nil if connected, ErrNotConnected otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on the initial connect and on every
// reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetDefaultHandler sets the handler for messages no route matches.
func (c *Client) SetDefaultHandler(handler MessageHandler) {
	c.callbackMu.Lock()
	c.defaultHandler = handler
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler errors and recovered panics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho's callback signature.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.invoke(handler, msg)
	}
}

// invoke runs handler with panic recovery and error logging.
func (c *Client) invoke(handler MessageHandler, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}
	}()

	err := handler(Message{
		Topic:    msg.Topic(),
		Payload:  msg.Payload(),
		QoS:      msg.Qos(),
		Retained: msg.Retained(),
	})
	if err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}
