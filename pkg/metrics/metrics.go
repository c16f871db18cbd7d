package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EdgeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_requests_total",
			Help: "Total number of submissions handled by the edge, by HTTP status (count)",
		},
		[]string{"status"},
	)

	EdgeRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_rejections_total",
			Help: "Total number of submissions rejected before envelope construction (count)",
		},
		[]string{"reason"},
	)

	EdgeFaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_faults_total",
			Help: "Total number of submissions that failed with an unexpected error, by error code (count)",
		},
		[]string{"code"},
	)

	EdgeRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_replies_total",
			Help: "Total number of SMTP replies translated to HTTP responses (count)",
		},
		[]string{"code"},
	)

	EdgeHandoffDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_handoff_duration_ms",
			Help:    "Duration of the blocking queue handoff in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	EdgeMessageSizeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edge_message_size_bytes",
			Help:    "Size of submitted messages in bytes",
			Buckets: []float64{1000, 5000, 10000, 50000, 100000, 500000, 1000000, 10000000},
		},
	)

	ReverseLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverse_lookups_total",
			Help: "Total number of reverse DNS enrichment lookups by result (count)",
		},
		[]string{"result"},
	)

	ReverseLookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reverse_lookup_duration_ms",
			Help:    "Duration of reverse DNS lookups in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	ReverseLookupCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverse_lookup_cache_total",
			Help: "Reverse DNS cache lookups by outcome (count)",
		},
		[]string{"outcome"},
	)

	RelayAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_attempts_total",
			Help: "Total number of relay attempts by reply class (count)",
		},
		[]string{"result"},
	)

	PolicyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_policy_rejections_total",
			Help: "Total number of envelopes refused by a queue policy rule (count)",
		},
		[]string{"rule"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EdgeRequestsTotal,
			EdgeRejectionsTotal,
			EdgeFaultsTotal,
			EdgeRepliesTotal,
			EdgeHandoffDuration,
			EdgeMessageSizeBytes,
			ReverseLookupsTotal,
			ReverseLookupDuration,
			ReverseLookupCacheTotal,
			RelayAttemptsTotal,
			PolicyRejectionsTotal,
			RetryAttemptsTotal,
			KafkaMessagesWrittenTotal,
			KafkaMessageSizeBytes,
			KafkaWriteDuration,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			RateLimitRequestsTotal,
		)
	})
}

func ObserveHandoffDuration(duration time.Duration, status string) {
	EdgeHandoffDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveReverseLookupDuration(duration time.Duration) {
	ReverseLookupDuration.Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic).Observe(float64(sizeBytes))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
