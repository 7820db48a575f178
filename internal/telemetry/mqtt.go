package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/speedwagon-io/envmon/internal/config"
	"github.com/speedwagon-io/envmon/internal/lib/logger/sl"
	"github.com/speedwagon-io/envmon/internal/model"
)

// publisher is the part of mqtt.Client the forwarder uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// MQTTForwarder publishes samples over the ThingSpeak MQTT API.
type MQTTForwarder struct {
	log     *slog.Logger
	client  publisher
	topic   string
	timeout time.Duration
}

func NewMQTTForwarder(log *slog.Logger, cfg *config.TelemetryConfig) (*MQTTForwarder, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("mqtt connection established", slog.String("broker", cfg.MQTT.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", sl.Err(err))
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("failed to connect to mqtt broker: timed out after %s", cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}

	return newMQTTForwarder(log, client, cfg.ChannelID, cfg.Timeout), nil
}

func newMQTTForwarder(log *slog.Logger, client publisher, channelID string, timeout time.Duration) *MQTTForwarder {
	return &MQTTForwarder{
		log:     log,
		client:  client,
		topic:   fmt.Sprintf("channels/%s/publish", channelID),
		timeout: timeout,
	}
}

func (f *MQTTForwarder) Push(ctx context.Context, sample model.Sample) error {
	logMasked(f.log, "mqtt", sample)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrForward, err)
	}

	temperature, humidity, airQuality := sample.Fields()
	payload := fmt.Sprintf("field1=%s&field2=%s&field3=%s", temperature, humidity, airQuality)

	token := f.client.Publish(f.topic, 0, false, payload)
	if !token.WaitTimeout(f.timeout) {
		return fmt.Errorf("%w: publish timed out after %s", ErrForward, f.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: failed to publish: %w", ErrForward, err)
	}

	f.log.Info("telemetry published", slog.String("topic", f.topic))
	return nil
}

func (f *MQTTForwarder) Health(context.Context) error {
	if !f.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt connection is not open")
	}
	return nil
}

func (f *MQTTForwarder) Close() error {
	f.client.Disconnect(250)
	return nil
}
