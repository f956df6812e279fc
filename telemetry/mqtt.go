package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var ErrTimeout = errors.New("mqtt operation timed out")

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTOpts struct {
	broker   string
	clientID string
	topic    string
	qos      byte
	timeout  time.Duration
	encoder  Encoder
}

type MQTTOpt func(o *MQTTOpts)

func WithClientID(id string) MQTTOpt {
	return func(o *MQTTOpts) { o.clientID = id }
}

func WithQoS(qos byte) MQTTOpt {
	return func(o *MQTTOpts) { o.qos = qos }
}

func WithTimeout(d time.Duration) MQTTOpt {
	return func(o *MQTTOpts) { o.timeout = d }
}

func WithEncoder(e Encoder) MQTTOpt {
	return func(o *MQTTOpts) { o.encoder = e }
}

// MQTTPublisher sends every reading to a single topic.
type MQTTPublisher struct {
	client  client
	topic   string
	qos     byte
	timeout time.Duration
	encoder Encoder
}

func defaultMQTTOpts(broker, topic string) *MQTTOpts {
	return &MQTTOpts{
		broker:   broker,
		clientID: "tofpanel",
		topic:    topic,
		timeout:  5 * time.Second,
		encoder:  TextEncoder{},
	}
}

// NewMQTTPublisher connects to broker (e.g. tcp://localhost:1883).
func NewMQTTPublisher(ctx context.Context, broker, topic string, opts ...MQTTOpt) (*MQTTPublisher, error) {
	o := defaultMQTTOpts(broker, topic)
	for _, opt := range opts {
		opt(o)
	}
	co := mqtt.NewClientOptions().
		AddBroker(o.broker).
		SetClientID(o.clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(o.timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("mqtt connection lost", "broker", broker, "error", err)
		})
	p := newPublisher(mqtt.NewClient(co), o)
	if err := p.connect(ctx); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "connected to mqtt broker", "broker", broker, "topic", topic)
	return p, nil
}

func newPublisher(c client, o *MQTTOpts) *MQTTPublisher {
	return &MQTTPublisher{
		client:  c,
		topic:   o.topic,
		qos:     o.qos,
		timeout: o.timeout,
		encoder: o.encoder,
	}
}

func (p *MQTTPublisher) connect(ctx context.Context) error {
	if err := p.wait(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("could not connect to mqtt broker: %w", err)
	}
	return nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, r Reading) error {
	payload, err := p.encoder.Encode(r)
	if err != nil {
		return fmt.Errorf("could not encode reading: %w", err)
	}
	if err := p.wait(ctx, p.client.Publish(p.topic, p.qos, false, payload)); err != nil {
		return fmt.Errorf("could not publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *MQTTPublisher) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(uint(p.timeout.Milliseconds()))
	return nil
}

// PublishDistance publishes a single sample taken at the given time.
func (p *MQTTPublisher) PublishDistance(ctx context.Context, mm uint16, at time.Time) error {
	return p.Publish(ctx, NewReading(mm, at))
}
