package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"mailedge/internal/config"
	"mailedge/internal/constants"
	"mailedge/internal/logger"
	"mailedge/pkg/metrics"
	"mailedge/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer messageWriter
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

// Publish writes msg synchronously; it returns once the broker acknowledged
// the write or ctx is done.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg Message) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = tracing.InjectTraceContext(ctx, headers)

	start := time.Now()
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    start,
	})
	metrics.ObserveKafkaWriteDuration(constants.ServiceName, topic, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(constants.ServiceName, topic)
	metrics.ObserveKafkaMessageSize(constants.ServiceName, topic, len(msg.Value))
	p.logger.DebugwCtx(ctx, "Published message",
		"topic", topic,
		"key", string(msg.Key),
		"bytes", len(msg.Value),
	)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
