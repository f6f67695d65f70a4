// Package mqttingest feeds access point observations published on an MQTT
// topic into the ingestion controller.
package mqttingest

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sebasr/wifi-registry/internal/config"
	"github.com/sebasr/wifi-registry/internal/ingest"
)

const disconnectQuiesceMillis = 250

// DocumentIngester stores one decoded document, single record or batch
type DocumentIngester interface {
	IngestDocument(ctx context.Context, raw []byte, opts ...ingest.CallOption) (*ingest.DocumentResult, error)
}

// Subscriber consumes the configured topic. Each message is one JSON
// document, either a record object or an array of records.
type Subscriber struct {
	cfg      *config.MQTTConfig
	ingester DocumentIngester
	logger   *zap.Logger
	client   mqtt.Client
}

// NewSubscriber creates a subscriber; Start connects it
func NewSubscriber(cfg *config.MQTTConfig, ingester DocumentIngester, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Subscriber{
		cfg:      cfg,
		ingester: ingester,
		logger:   logger,
	}
	s.client = mqtt.NewClient(s.ClientOptions())
	return s
}

// ClientOptions builds the paho options from configuration
func (s *Subscriber) ClientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("MQTT connection lost", zap.Error(err))
	})
	return opts
}

// Start connects, subscribes and blocks until ctx is cancelled
func (s *Subscriber) Start(ctx context.Context) error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		s.HandleMessage(ctx, msg.Topic(), msg.Payload())
	}
	if token := s.client.Subscribe(s.cfg.Topic, byte(s.cfg.QoS), handler); token.Wait() && token.Error() != nil {
		s.client.Disconnect(disconnectQuiesceMillis)
		return fmt.Errorf("failed to subscribe to topic %s: %w", s.cfg.Topic, token.Error())
	}

	s.logger.Info("MQTT subscriber started",
		zap.String("broker", s.cfg.Broker),
		zap.String("topic", s.cfg.Topic),
		zap.Int("qos", s.cfg.QoS))

	<-ctx.Done()

	if token := s.client.Unsubscribe(s.cfg.Topic); token.Wait() && token.Error() != nil {
		s.logger.Error("Failed to unsubscribe", zap.Error(token.Error()))
	}
	s.client.Disconnect(disconnectQuiesceMillis)
	s.logger.Info("MQTT subscriber stopped")
	return nil
}

// HandleMessage ingests one message payload. Failures are logged and
// returned; a bad message never stops the subscription.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) (*ingest.DocumentResult, error) {
	s.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)))

	result, err := s.ingester.IngestDocument(ctx, payload)
	if err != nil {
		s.logger.Warn("MQTT message rejected",
			zap.String("topic", topic),
			zap.String("kind", ingest.Kind(err)),
			zap.Error(err))
		return result, err
	}

	if result.Batch != nil {
		s.logger.Info("MQTT batch ingested",
			zap.String("topic", topic),
			zap.String("summary", result.Batch.Summary()))
	} else {
		s.logger.Info("MQTT record ingested",
			zap.String("topic", topic),
			zap.String("bssid", result.BSSID))
	}
	return result, nil
}
