package broker

import (
	"fmt"

	"mailedge/internal/config"
	"mailedge/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "kafka", "":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka producer requires at least one broker")
		}
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
