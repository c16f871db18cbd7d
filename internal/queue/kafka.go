package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mailedge/internal/broker"
	"mailedge/internal/config"
	"mailedge/internal/constants"
	"mailedge/internal/envelope"
	"mailedge/internal/logger"
	"mailedge/pkg/metrics"
	"mailedge/pkg/retry"
)

// KafkaQueue persists envelopes as JSON records on a Kafka topic. A record is
// written once for all recipients, so every recipient shares one outcome.
type KafkaQueue struct {
	producer broker.Producer
	topic    string
	retry    retry.Policy
	policies []Policy
	logger   logger.Logger
}

func NewKafkaQueue(producer broker.Producer, cfg config.KafkaConfig, log logger.Logger, policies ...Policy) *KafkaQueue {
	topic := cfg.Topic
	if topic == "" {
		topic = constants.DefaultEnvelopeTopic
	}

	policy := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy = retry.Policy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Multiplier:      cfg.Retry.Multiplier,
			MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
		}
	}

	return &KafkaQueue{
		producer: producer,
		topic:    topic,
		retry:    policy,
		policies: policies,
		logger:   log,
	}
}

func (q *KafkaQueue) Handoff(ctx context.Context, env *envelope.Envelope) ([]Result, error) {
	if err := applyPolicies(ctx, q.policies, env); err != nil {
		return resultsFor(env, err), nil
	}

	record, err := env.Record()
	if err != nil {
		return nil, err
	}
	value, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope %s: %w", env.ID, err)
	}

	msg := broker.Message{
		Key:   []byte(env.ID),
		Value: value,
		Headers: map[string]string{
			"content_type": "application/json",
			"client_ip":    env.Client.IP,
		},
	}

	err = retry.Do(ctx, q.retry, func() error {
		return q.producer.Publish(ctx, q.topic, msg)
	}, func(attempt int, err error, next time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(constants.ServiceName, q.topic).Inc()
		q.logger.WarnwCtx(ctx, "Retrying envelope publish",
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
	if err != nil {
		q.logger.ErrorwCtx(ctx, "Failed to queue envelope", "topic", q.topic, "error", err)
		return resultsFor(env, &Error{Reason: "publish failed", Err: err}), nil
	}

	q.logger.InfowCtx(ctx, "Queued envelope",
		"topic", q.topic,
		"recipients", len(env.Recipients),
		"bytes", len(record.Message),
	)
	return resultsFor(env, nil), nil
}
