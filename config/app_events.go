package config

import (
	"time"

	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/pkg/constants"
	"github.com/akeren/lasting-loves-waitlist/pkg/events"
	"github.com/akeren/lasting-loves-waitlist/pkg/utils"
)

func NewKafkaConfig() events.KafkaConfig {
	return events.KafkaConfig{
		Brokers:  utils.GetEnvList("KAFKA_BROKERS"),
		Topic:    utils.GetEnvTrimmedOrDefault("KAFKA_WAITLIST_TOPIC", events.DefaultWaitlistTopic),
		ClientID: utils.GetEnvTrimmedOrDefault("KAFKA_CLIENT_ID", constants.DefaultServiceName),
		Timeout:  utils.GetEnvDuration("KAFKA_TIMEOUT", 10*time.Second),
	}
}

// NewEventPublisher returns a Kafka publisher when KAFKA_BROKERS is set. Events
// are best-effort, so a broker that cannot be reached at startup downgrades to
// the no-op publisher instead of failing boot.
func NewEventPublisher(logger *log.Logger) events.Publisher {
	cfg := NewKafkaConfig()
	if len(cfg.Brokers) == 0 {
		logger.Info("KAFKA_BROKERS not set; signup events disabled")
		return events.NoopPublisher{}
	}

	publisher, err := events.NewKafkaPublisher(cfg, logger)
	if err != nil {
		logger.Error("Kafka publisher unavailable; signup events disabled", "error", err, "brokers", cfg.Brokers)
		return events.NoopPublisher{}
	}

	logger.Info("Kafka publisher ready", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return publisher
}
