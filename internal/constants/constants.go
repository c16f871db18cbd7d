package constants

import "time"

const (
	ServiceName = "http-edge"
)

const (
	SubmissionMethod = "POST"
	MessageMediaType = "message/rfc822"
)

const (
	DefaultSenderHeader = "X-Envelope-Sender"
	DefaultRcptHeader   = "X-Envelope-Recipient"
	DefaultEhloHeader   = "X-Ehlo"

	DefaultMaxMessageSize = 50 << 20
)

const (
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 60 * time.Second
	DefaultLookupTimeout = 5 * time.Second
	DefaultRelayTimeout  = 60 * time.Second
	ShutdownTimeout      = 10 * time.Second
	HealthCheckTimeout   = 5 * time.Second
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultEnvelopeTopic = "edge_envelopes"
)

const (
	QueueTypeKafka = "kafka"
	QueueTypeProxy = "proxy"
)

const (
	CacheKeyPrefixPTR = "ptr:"
	DefaultPTRTTL     = time.Hour
)
