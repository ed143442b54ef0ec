package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/akeren/lasting-loves-waitlist/internal/log"
)

const DefaultWaitlistTopic = "waitlist-events"

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

// KafkaPublisher writes events keyed by email so one signup's events stay on a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *log.Logger
}

// SaramaConfig is the producer configuration used by NewKafkaPublisher.
func SaramaConfig(cfg KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Producer.Retry.Max = 0
	if cfg.Timeout > 0 {
		sc.Producer.Timeout = cfg.Timeout
		sc.Net.DialTimeout = cfg.Timeout
	}
	return sc
}

func NewKafkaPublisher(cfg KafkaConfig, logger *log.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("events: at least one kafka broker is required")
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, SaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("events: create kafka producer: %w", err)
	}

	return NewKafkaPublisherWithProducer(producer, cfg.Topic, logger), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *log.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultWaitlistTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishWaitlistJoined(ctx context.Context, event *WaitlistJoined) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := event.Encode()
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", event.Type, err)
	}

	headers := []sarama.RecordHeader{{Key: []byte("event-type"), Value: []byte(event.Type)}}
	if id, ok := ctx.Value(log.CorrelatedIDKey).(string); ok && id != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte("correlation-id"), Value: []byte(id)})
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.Key()),
		Value:     sarama.ByteEncoder(payload),
		Headers:   headers,
		Timestamp: event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", event.Type, err)
	}

	log.GetLoggerInstanceFromContext(ctx, p.logger).Debug("Event published",
		"type", event.Type, "topic", p.topic, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
