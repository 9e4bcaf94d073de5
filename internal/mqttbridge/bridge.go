// Package mqttbridge feeds OSC packets carried as MQTT payloads into the
// same handler the UDP server uses.
package mqttbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/cwbudde/algo-oscfx/internal/oscio"
)

const (
	clientIDPrefix    = "oscfx-"
	defaultTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// Config selects the broker and topic.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Timeout  time.Duration
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// WithDropObserver reports undecodable payloads to obs.
func WithDropObserver(obs oscio.DropObserver) Option {
	return func(b *Bridge) { b.drops = obs }
}

// Bridge subscribes to one topic and dispatches each payload as an OSC
// packet.
type Bridge struct {
	cfg     Config
	handler oscio.Handler
	log     *slog.Logger
	drops   oscio.DropObserver
}

// New validates cfg and returns a bridge. An empty ClientID becomes
// "oscfx-<uuid>".
func New(cfg Config, h oscio.Handler, opts ...Option) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqttbridge: broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqttbridge: topic is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqttbridge: invalid qos %d", cfg.QoS)
	}
	if h == nil {
		return nil, errors.New("mqttbridge: nil handler")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = clientIDPrefix + uuid.NewString()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	b := &Bridge{cfg: cfg, handler: h, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.log = b.log.With("component", "mqttbridge", "broker", cfg.Broker, "topic", cfg.Topic)

	return b, nil
}

// ClientID returns the MQTT client identifier in use.
func (b *Bridge) ClientID() string { return b.cfg.ClientID }

// Run connects, subscribes and blocks until ctx is cancelled. The
// subscription is renewed on every (re)connect.
func (b *Bridge) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(b.cfg.Timeout)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.log.Warn("connection to MQTT broker lost", "error", err)
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(b.cfg.Timeout) {
		return fmt.Errorf("mqttbridge: connect to %s: timeout", b.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttbridge: connect to %s: %w", b.cfg.Broker, err)
	}

	<-ctx.Done()

	client.Unsubscribe(b.cfg.Topic).WaitTimeout(b.cfg.Timeout)
	client.Disconnect(disconnectQuiesce)
	b.log.Info("MQTT bridge stopped")

	return nil
}

func (b *Bridge) onConnect(client mqtt.Client) {
	token := client.Subscribe(b.cfg.Topic, b.cfg.QoS, b.onMessage)
	if !token.WaitTimeout(b.cfg.Timeout) {
		b.log.Error("subscribe timed out")
		return
	}
	if err := token.Error(); err != nil {
		b.log.Error("subscribe failed", "error", err)
		return
	}
	b.log.Info("subscribed to control topic", "client_id", b.cfg.ClientID)
}

func (b *Bridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	n, err := oscio.HandleBytes(msg.Payload(), b.handler)
	if err != nil {
		reason := oscio.DropMalformed
		if errors.Is(err, oscio.ErrEmptyPacket) {
			reason = oscio.DropEmpty
		}
		if b.drops != nil {
			b.drops.PacketDropped(reason)
		}
		b.log.Warn("dropping MQTT payload", "reason", reason, "error", err)
		return
	}
	b.log.Debug("dispatched MQTT payload", "messages", n)
}
