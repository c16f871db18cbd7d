package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"mailedge/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateEdge(cfg.Edge); err != nil {
		errors = append(errors, err)
	}

	if err := validateReverseLookup(cfg.ReverseLookup); err != nil {
		errors = append(errors, err)
	}

	if err := validateQueue(cfg); err != nil {
		errors = append(errors, err)
	}

	if err := validateRedis(cfg.Database.Redis); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	for i, proxy := range cfg.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("server.trusted_proxies[%d]", i),
				Message: fmt.Sprintf("not an IP address or CIDR: %s", proxy),
			}
		}
	}

	return nil
}

func validateEdge(cfg EdgeConfig) error {
	if cfg.URIPattern != "" {
		if _, err := regexp.Compile(cfg.URIPattern); err != nil {
			return &ValidationError{
				Field:   "edge.uri_pattern",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			}
		}
	}

	headers := map[string]string{
		"edge.sender_header": cfg.SenderHeader,
		"edge.rcpt_header":   cfg.RcptHeader,
		"edge.ehlo_header":   cfg.EhloHeader,
	}
	for field, name := range headers {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{
				Field:   field,
				Message: "header name is required",
			}
		}
	}

	if cfg.MaxMessageSize < 0 {
		return &ValidationError{
			Field:   "edge.max_message_size",
			Message: "max message size must be non-negative",
		}
	}

	return nil
}

func validateReverseLookup(cfg ReverseLookupConfig) error {
	if cfg.Timeout < 0 {
		return &ValidationError{
			Field:   "reverse_lookup.timeout",
			Message: "timeout must be non-negative",
		}
	}

	if cfg.CacheTTLSeconds < 0 {
		return &ValidationError{
			Field:   "reverse_lookup.cache_ttl_seconds",
			Message: "TTL must be non-negative",
		}
	}

	return nil
}

func validateQueue(cfg *Config) error {
	switch cfg.Queue.Type {
	case constants.QueueTypeKafka:
		if err := validateKafka(cfg.Broker.Kafka); err != nil {
			return err
		}
	case constants.QueueTypeProxy:
		if cfg.Relay.SMTP.Address == "" {
			return &ValidationError{
				Field:   "relay.smtp.address",
				Message: "smarthost address is required for the proxy queue",
			}
		}
		if _, _, err := net.SplitHostPort(cfg.Relay.SMTP.Address); err != nil {
			return &ValidationError{
				Field:   "relay.smtp.address",
				Message: fmt.Sprintf("address must be host:port: %v", err),
			}
		}
	default:
		return &ValidationError{
			Field:   "queue.type",
			Message: fmt.Sprintf("unknown queue type: %s (supported: kafka, proxy)", cfg.Queue.Type),
		}
	}

	for i, rule := range cfg.Queue.Policies {
		if rule.Name == "" || rule.Expression == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("queue.policies[%d]", i),
				Message: "policy rules need both name and expression",
			}
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.Topic == "" {
		return &ValidationError{
			Field:   "broker.kafka.topic",
			Message: "topic is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" && cfg.Port == 0 {
		return nil
	}

	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}
