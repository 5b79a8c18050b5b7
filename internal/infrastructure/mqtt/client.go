package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/logger"
)

const (
	// defaultConnectTimeout is the maximum time to wait for the initial connection.
	defaultConnectTimeout = 10 * time.Second
	// defaultTokenTimeout is the maximum time to wait for publish and subscribe acknowledgments.
	defaultTokenTimeout = 5 * time.Second
	// defaultDisconnectQuiesce is the time in milliseconds to wait for pending work on disconnect.
	defaultDisconnectQuiesce = 1000
	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second
	// maxReconnectInterval caps the exponential reconnect backoff.
	maxReconnectInterval = time.Minute
	// maxQoS is the maximum QoS level supported.
	maxQoS = 2
	// maxPayloadSize prevents oversized messages.
	maxPayloadSize = 1 << 20
)

// MessageHandler is invoked for every message received on a subscription.
// Returned errors are logged.
type MessageHandler func(ctx context.Context, topic string, payload []byte) error

// subscription is remembered so that it can be restored after a reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is a connected MQTT client.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	// ctx carries the logger used by callbacks.
	ctx context.Context //nolint:containedctx // Callbacks from paho have no context of their own.

	subscriptions map[string]subscription
	subMu         sync.RWMutex
}

// statusPayload is published to the system status topic.
type statusPayload struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Connect establishes a connection to the broker and publishes the online status.
func Connect(ctx context.Context, cfg config.MQTTConfig) (*Client, error) {
	ctx = logger.WithName(ctx, "mqtt")

	c := &Client{
		cfg:           cfg,
		topics:        Topics{Prefix: cfg.TopicPrefix},
		ctx:           ctx,
		subscriptions: make(map[string]subscription),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(maxReconnectInterval).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive).
		// Handlers publish and wait for tokens, which deadlocks with ordered delivery.
		SetOrderMatters(false).
		SetOnConnectHandler(func(pahomqtt.Client) {
			c.handleConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logger.WarnKV(c.ctx, "MQTT connection lost", "error", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	will, err := json.Marshal(statusPayload{
		Status:    "offline",
		ClientID:  cfg.ClientID,
		Reason:    "unexpected_disconnect",
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode last will: %w", err)
	}

	opts.SetBinaryWill(c.topics.SystemStatus(), will, 1, true)

	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}

	if err = token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	logger.InfoKV(ctx, "Connected to MQTT broker", "broker", cfg.Broker, "client_id", cfg.ClientID)

	return c, nil
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured quality of service.
func (c *Client) QoS() byte {
	return c.cfg.QoS
}

// IsConnected reports whether the client is currently connected.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Publish sends a message and waits for the acknowledgment.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	if qos > maxQoS {
		return ErrInvalidQoS
	}

	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return waitToken(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// Subscribe registers a handler for a topic pattern. The subscription is
// restored after reconnects.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	if qos > maxQoS {
		return ErrInvalidQoS
	}

	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := waitToken(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		return err
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	return nil
}

// Close publishes the graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		payload, err := json.Marshal(statusPayload{
			Status:    "offline",
			ClientID:  c.cfg.ClientID,
			Reason:    "graceful_shutdown",
			Timestamp: time.Now().UTC(),
		})
		if err == nil {
			c.client.Publish(c.topics.SystemStatus(), 1, true, payload).WaitTimeout(defaultTokenTimeout)
		}
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	return nil
}

// handleConnect restores subscriptions and announces the online status.
func (c *Client) handleConnect() {
	c.subMu.RLock()
	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subMu.RUnlock()

	payload, err := json.Marshal(statusPayload{
		Status:    "online",
		ClientID:  c.cfg.ClientID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	c.client.Publish(c.topics.SystemStatus(), 1, true, payload)
}

// wrapHandler adapts a MessageHandler with panic recovery and error logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		ctx := logger.WithKV(c.ctx, "topic", msg.Topic())

		defer func() {
			if r := recover(); r != nil {
				logger.ErrorKV(ctx, "MQTT handler panic recovered", "panic", r)
			}
		}()

		if err := handler(ctx, msg.Topic(), msg.Payload()); err != nil {
			logger.WarnKV(ctx, "MQTT handler returned error", "error", err)
		}
	}
}

// waitToken waits for a paho token and wraps failures with sentinel.
func waitToken(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultTokenTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultTokenTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}

	return nil
}
