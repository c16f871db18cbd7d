package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Edge           EdgeConfig           `mapstructure:"edge"`
	ReverseLookup  ReverseLookupConfig  `mapstructure:"reverse_lookup"`
	Queue          QueueConfig          `mapstructure:"queue"`
	Relay          RelayConfig          `mapstructure:"relay"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

// EdgeConfig controls how submissions are accepted.
type EdgeConfig struct {
	Hostname       string `mapstructure:"hostname"`
	URIPattern     string `mapstructure:"uri_pattern"`
	SenderHeader   string `mapstructure:"sender_header"`
	RcptHeader     string `mapstructure:"rcpt_header"`
	EhloHeader     string `mapstructure:"ehlo_header"`
	MaxMessageSize int64  `mapstructure:"max_message_size"` // bytes, 0 = unlimited
}

type ReverseLookupConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CacheTTLSeconds int           `mapstructure:"cache_ttl_seconds"`
}

type QueueConfig struct {
	Type     string             `mapstructure:"type"` // "kafka" or "proxy"
	Policies []PolicyRuleConfig `mapstructure:"policies"`
}

// PolicyRuleConfig refuses an envelope when Expression evaluates to true.
type PolicyRuleConfig struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
}

type RelayConfig struct {
	SMTP SMTPRelayConfig `mapstructure:"smtp"`
}

type SMTPRelayConfig struct {
	Address string        `mapstructure:"address"`
	Helo    string        `mapstructure:"helo"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string    `mapstructure:"brokers"`
	Topic   string      `mapstructure:"topic"`
	Retry   RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RPS             float64       `mapstructure:"rps"`
	Burst           int           `mapstructure:"burst"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxAge          time.Duration `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
