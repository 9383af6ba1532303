package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/MrWong99/gazevoice/internal/observe"
)

// Default MQTT settings.
const (
	DefaultTopic          = "gazevoice/actions"
	DefaultQueueSize      = 64
	DefaultPublishTimeout = 2 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// MQTTConfig configures an [MQTT] publisher.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string

	// Topic is the topic actions are published to. Default: [DefaultTopic].
	Topic string

	// ClientID identifies this client to the broker. Empty generates a
	// random "gazevoice_<uuid>" ID.
	ClientID string

	Username string
	Password string

	// QoS is the MQTT quality-of-service level (0, 1 or 2).
	QoS byte

	// Retain sets the retained flag on every message.
	Retain bool

	// QueueSize bounds the number of undelivered messages.
	// Default: [DefaultQueueSize].
	QueueSize int

	// PublishTimeout bounds how long the delivery goroutine waits for the
	// broker to acknowledge one message. Default: [DefaultPublishTimeout].
	PublishTimeout time.Duration

	// ConnectTimeout bounds the initial connection attempt.
	// Default: [DefaultConnectTimeout].
	ConnectTimeout time.Duration
}

func (c MQTTConfig) withDefaults() MQTTConfig {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.ClientID == "" {
		c.ClientID = "gazevoice_" + uuid.NewString()
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// MQTTOption is a functional option for [NewMQTT].
type MQTTOption func(*MQTT)

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) MQTTOption {
	return func(p *MQTT) {
		if m != nil {
			p.metrics = m
		}
	}
}

// MQTT publishes action messages as JSON to an MQTT broker.
type MQTT struct {
	client  mqtt.Client
	cfg     MQTTConfig
	metrics *observe.Metrics

	mu     sync.Mutex
	closed bool
	queue  chan []byte
	done   chan struct{}
}

// NewMQTT connects to the broker in cfg and starts the delivery goroutine.
// The client reconnects automatically after the initial connection.
func NewMQTT(cfg MQTTConfig, opts ...MQTTOption) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("publish: mqtt broker must not be empty")
	}
	cfg = cfg.withDefaults()

	co := mqtt.NewClientOptions()
	co.AddBroker(cfg.Broker)
	co.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		co.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		co.SetPassword(cfg.Password)
	}
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(10 * time.Second)
	co.SetKeepAlive(60 * time.Second)
	co.SetPingTimeout(10 * time.Second)
	co.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("publish: connected to broker", "broker", cfg.Broker)
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("publish: connection lost", "broker", cfg.Broker, "err", err)
	})
	co.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		slog.Info("publish: reconnecting", "broker", cfg.Broker)
	})

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		// SetConnectRetry keeps trying in the background; messages queue
		// until the broker is reachable.
		slog.Warn("publish: broker not reachable yet", "broker", cfg.Broker, "timeout", cfg.ConnectTimeout)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("publish: connect to %s: %w", cfg.Broker, err)
	}
	return newMQTT(client, cfg, opts...), nil
}

// newMQTT wraps an already constructed client.
func newMQTT(client mqtt.Client, cfg MQTTConfig, opts ...MQTTOption) *MQTT {
	cfg = cfg.withDefaults()
	p := &MQTT{
		client: client,
		cfg:    cfg,
		queue:  make(chan []byte, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	go p.deliver()
	return p
}

// Publish encodes msg and queues it. It never waits for the broker.
func (p *MQTT) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		p.metrics.RecordPublish(ctx, "error")
		return fmt.Errorf("publish: encode message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- data:
		return nil
	default:
		p.metrics.RecordPublish(ctx, "dropped")
		return ErrQueueFull
	}
}

func (p *MQTT) deliver() {
	defer close(p.done)
	for data := range p.queue {
		token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retain, data)
		switch {
		case !token.WaitTimeout(p.cfg.PublishTimeout):
			slog.Warn("publish: broker did not acknowledge in time", "topic", p.cfg.Topic, "timeout", p.cfg.PublishTimeout)
			p.metrics.RecordPublish(context.Background(), "timeout")
		case token.Error() != nil:
			slog.Error("publish: publish failed", "topic", p.cfg.Topic, "err", token.Error())
			p.metrics.RecordPublish(context.Background(), "error")
		default:
			p.metrics.RecordPublish(context.Background(), "ok")
		}
	}
}

// Connected reports whether the client currently holds a broker connection.
func (p *MQTT) Connected() bool {
	return p.client.IsConnectionOpen()
}

// Close stops accepting messages, waits for queued messages to be handed to
// the broker and disconnects.
func (p *MQTT) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	p.client.Disconnect(250)
	return nil
}

var _ Publisher = (*MQTT)(nil)
