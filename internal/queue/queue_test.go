package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailedge/internal/broker"
	"mailedge/internal/config"
	"mailedge/internal/envelope"
	"mailedge/internal/logger"
	"mailedge/internal/relay"
	"mailedge/internal/reply"
)

type fakeProducer struct {
	failures int
	calls    int
	topic    string
	msg      broker.Message
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, msg broker.Message) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("leader not available")
	}
	p.topic = topic
	p.msg = msg
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type fakeRelay struct {
	err  error
	seen *envelope.Envelope
}

func (r *fakeRelay) Attempt(ctx context.Context, env *envelope.Envelope) error {
	r.seen = env
	return r.err
}

func testEnvelope(t *testing.T, recipients ...string) *envelope.Envelope {
	t.Helper()
	env := envelope.New("sender@example.com", recipients)
	env.Client = envelope.Client{IP: "192.0.2.1", Name: "[192.0.2.1]", Protocol: "HTTP"}
	require.NoError(t, env.Parse([]byte("Subject: hi\r\n\r\nbody\r\n")))
	return env
}

func kafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		Topic: "edge_envelopes",
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      1,
		},
	}
}

func TestKafkaQueue_Handoff(t *testing.T) {
	p := &fakeProducer{}
	q := NewKafkaQueue(p, kafkaConfig(), logger.NopLogger())
	env := testEnvelope(t, "a@example.com", "b@example.com")

	results, err := q.Handoff(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	assert.Equal(t, "a@example.com", results[0].Recipient)

	assert.Equal(t, "edge_envelopes", p.topic)
	assert.Equal(t, []byte(env.ID), p.msg.Key)

	var record envelope.Record
	require.NoError(t, json.Unmarshal(p.msg.Value, &record))
	assert.Equal(t, env.ID, record.ID)
	assert.Equal(t, env.Recipients, record.Recipients)
	assert.Equal(t, "192.0.2.1", record.Client.IP)
}

func TestKafkaQueue_RetriesThenSucceeds(t *testing.T) {
	p := &fakeProducer{failures: 2}
	q := NewKafkaQueue(p, kafkaConfig(), logger.NopLogger())

	results, err := q.Handoff(context.Background(), testEnvelope(t, "a@example.com"))
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 3, p.calls)
}

func TestKafkaQueue_PublishFailure(t *testing.T) {
	p := &fakeProducer{failures: 10}
	q := NewKafkaQueue(p, kafkaConfig(), logger.NopLogger())

	results, err := q.Handoff(context.Background(), testEnvelope(t, "a@example.com", "b@example.com"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		var qErr *Error
		assert.True(t, errors.As(r.Err, &qErr))
	}
	assert.Equal(t, 3, p.calls)
}

func TestKafkaQueue_NoRecipients(t *testing.T) {
	q := NewKafkaQueue(&fakeProducer{}, kafkaConfig(), logger.NopLogger())

	results, err := q.Handoff(context.Background(), testEnvelope(t))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Recipient)
	assert.NoError(t, results[0].Err)
}

func TestProxyQueue_PassesRelayReply(t *testing.T) {
	relayErr := &relay.Error{Reply: reply.New("450", "4.2.1 Mailbox busy")}
	r := &fakeRelay{err: relayErr}
	q := NewProxyQueue(r, logger.NopLogger())
	env := testEnvelope(t, "a@example.com")

	results, err := q.Handoff(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, relayErr)
	assert.Same(t, env, r.seen)
}

func TestRulePolicy(t *testing.T) {
	policy, err := NewRulePolicy([]config.PolicyRuleConfig{
		{Name: "blocked_sender", Expression: `sender.endsWith("@spam.example")`},
		{Name: "no_subject", Expression: `!("subject" in headers)`},
	}, logger.NopLogger())
	require.NoError(t, err)

	ok := testEnvelope(t, "a@example.com")
	assert.NoError(t, policy.Apply(context.Background(), ok))

	spam := testEnvelope(t, "a@example.com")
	spam.Sender = "bulk@spam.example"
	err = policy.Apply(context.Background(), spam)
	var qErr *Error
	require.True(t, errors.As(err, &qErr))
	assert.Contains(t, qErr.Reason, "blocked_sender")

	noSubject := envelope.New("a@example.com", []string{"b@example.com"})
	require.NoError(t, noSubject.Parse([]byte("From: a@example.com\r\n\r\nbody")))
	assert.Error(t, policy.Apply(context.Background(), noSubject))
}

func TestRulePolicy_InvalidExpression(t *testing.T) {
	_, err := NewRulePolicy([]config.PolicyRuleConfig{{Name: "bad", Expression: `sender ==`}}, logger.NopLogger())
	assert.ErrorContains(t, err, "bad")
}

func TestPolicyRefusalSkipsHandoff(t *testing.T) {
	policy, err := NewRulePolicy([]config.PolicyRuleConfig{
		{Name: "everything", Expression: `true`},
	}, logger.NopLogger())
	require.NoError(t, err)

	p := &fakeProducer{}
	r := &fakeRelay{}
	queues := []Queue{
		NewKafkaQueue(p, kafkaConfig(), logger.NopLogger(), policy),
		NewProxyQueue(r, logger.NopLogger(), policy),
	}
	for _, q := range queues {
		results, err := q.Handoff(context.Background(), testEnvelope(t, "a@example.com"))
		require.NoError(t, err)
		var qErr *Error
		assert.True(t, errors.As(results[0].Err, &qErr))
	}
	assert.Zero(t, p.calls)
	assert.Nil(t, r.seen)
}

func TestNew(t *testing.T) {
	cfg := &config.Config{}
	cfg.Queue.Type = "kafka"
	_, err := New(cfg, nil, nil, logger.NopLogger())
	assert.Error(t, err)

	q, err := New(cfg, &fakeProducer{}, nil, logger.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &KafkaQueue{}, q)

	cfg.Queue.Type = "proxy"
	q, err = New(cfg, nil, &fakeRelay{}, logger.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &ProxyQueue{}, q)

	cfg.Queue.Type = "redis"
	_, err = New(cfg, nil, nil, logger.NopLogger())
	assert.Error(t, err)
}
