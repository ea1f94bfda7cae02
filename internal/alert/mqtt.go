package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the MQTT channel.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	Topic    string `json:"topic"`
	ClientID string `json:"clientId"`
	Username string `json:"username"`
	Password string `json:"password"`
	QoS      *byte  `json:"qos"`
	Retained bool   `json:"retained"`
}

// Validate checks the broker and topic are set and QoS is 0-2.
func (c MQTTConfig) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt: broker is required")
	}
	if c.Topic == "" {
		return errors.New("mqtt: topic is required")
	}
	if c.QoS != nil && *c.QoS > 2 {
		return fmt.Errorf("mqtt: invalid qos %d", *c.QoS)
	}
	return nil
}

func (c MQTTConfig) qos() byte {
	if c.QoS == nil {
		return 1
	}
	return *c.QoS
}

// MQTTDispatcher publishes the alert as JSON to a topic.
// The broker connection is opened on first dispatch and reconnects automatically.
type MQTTDispatcher struct {
	name   string
	cfg    MQTTConfig
	client mqtt.Client
}

// NewMQTTDispatcher creates an MQTT channel without connecting.
func NewMQTTDispatcher(name string, cfg MQTTConfig) (*MQTTDispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "sosfinder-" + name
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	return &MQTTDispatcher{name: name, cfg: cfg, client: mqtt.NewClient(opts)}, nil
}

func (d *MQTTDispatcher) Name() string { return d.name }

func (d *MQTTDispatcher) Dispatch(ctx context.Context, a Alert) error {
	if !d.client.IsConnectionOpen() {
		if err := waitToken(ctx, d.client.Connect()); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	}

	payload, err := a.Payload()
	if err != nil {
		return err
	}

	if err := waitToken(ctx, d.client.Publish(d.cfg.Topic, d.cfg.qos(), d.cfg.Retained, payload)); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (d *MQTTDispatcher) Close() error {
	if d.client.IsConnected() {
		d.client.Disconnect(250)
	}
	return nil
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
