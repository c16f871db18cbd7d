package queue

import (
	"fmt"

	"mailedge/internal/broker"
	"mailedge/internal/config"
	"mailedge/internal/constants"
	"mailedge/internal/logger"
	"mailedge/internal/relay"
)

// New builds the queue selected by cfg.Queue.Type. Only the dependency that
// type needs has to be non-nil.
func New(cfg *config.Config, producer broker.Producer, r relay.Relay, log logger.Logger) (Queue, error) {
	var policies []Policy
	if len(cfg.Queue.Policies) > 0 {
		p, err := NewRulePolicy(cfg.Queue.Policies, log)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	switch cfg.Queue.Type {
	case constants.QueueTypeKafka:
		if producer == nil {
			return nil, fmt.Errorf("kafka queue requires a producer")
		}
		return NewKafkaQueue(producer, cfg.Broker.Kafka, log, policies...), nil
	case constants.QueueTypeProxy:
		if r == nil {
			return nil, fmt.Errorf("proxy queue requires a relay")
		}
		return NewProxyQueue(r, log, policies...), nil
	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Queue.Type)
	}
}
