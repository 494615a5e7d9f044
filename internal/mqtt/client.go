// Package mqtt publishes barometer state and health to a broker and
// receives the external air temperature.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"cloudpico-baro/internal/config"
	"cloudpico-baro/internal/telemetry"
)

const publishTimeout = 5 * time.Second

// Topics are the per-vehicle topic names.
type Topics struct {
	State               string
	Health              string
	ExternalTemperature string
}

func TopicsFor(prefix, vehicleID string) Topics {
	base := vehicleID + "/baro"
	if prefix != "" {
		base = prefix + "/" + base
	}
	return Topics{
		State:               base + "/state",
		Health:              base + "/health",
		ExternalTemperature: base + "/external_temperature",
	}
}

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	topics    Topics
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	// onTemperature receives every valid external temperature. It is called
	// from paho's goroutines.
	onTemperature func(celsius float64)
}

// NewClient configures the connection. onTemperature may be nil.
func NewClient(cfg config.Config, logger *slog.Logger, onTemperature func(celsius float64)) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:           cfg,
		topics:        TopicsFor(cfg.MQTTTopicPrefix, cfg.VehicleID),
		logger:        logger,
		stopCh:        make(chan struct{}),
		onTemperature: onTemperature,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Resubscribe on every (re)connect; the session is clean.
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		if err := c.subscribe(); err != nil {
			logger.Error("mqtt subscribe failed", "topic", c.topics.ExternalTemperature, "error", err)
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Topics returns the topics this client uses.
func (c *Client) Topics() Topics { return c.topics }

// Connect waits for the initial connection, respecting ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

func (c *Client) subscribe() error {
	topic := c.topics.ExternalTemperature
	token := c.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", 1)
	return nil
}

func (c *Client) handleMessage(topic string, payload []byte) {
	var msg telemetry.ExternalTemperature
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("failed to parse external temperature",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}
	if err := msg.Validate(); err != nil {
		c.logger.Warn("invalid external temperature", "topic", topic, "error", err)
		return
	}
	c.logger.Debug("external temperature", "topic", topic, "temperature_c", *msg.Temperature)
	if c.onTemperature != nil {
		c.onTemperature(*msg.Temperature)
	}
}

// PublishState publishes a state message at QoS 0; the next one supersedes it.
func (c *Client) PublishState(st telemetry.State) error {
	return c.publish(c.topics.State, 0, false, st)
}

// PublishHealth publishes a retained health message at QoS 1.
func (c *Client) PublishHealth(h telemetry.Health) error {
	return c.publish(c.topics.Health, 1, true, h)
}

func (c *Client) publish(topic string, qos byte, retained bool, v any) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	token := c.client.Publish(topic, qos, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	c.logger.Debug("published", "topic", topic, "qos", qos, "retained", retained, "size", len(data))
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client. It is idempotent; Connect fails afterwards.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil && c.IsConnected() {
		c.client.Unsubscribe(c.topics.ExternalTemperature).WaitTimeout(2 * time.Second)
	}
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
