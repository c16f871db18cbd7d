package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"mailedge/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8025)
	v.SetDefault("server.read_timeout", constants.DefaultReadTimeout)
	v.SetDefault("server.write_timeout", constants.DefaultWriteTimeout)

	v.SetDefault("edge.sender_header", constants.DefaultSenderHeader)
	v.SetDefault("edge.rcpt_header", constants.DefaultRcptHeader)
	v.SetDefault("edge.ehlo_header", constants.DefaultEhloHeader)
	v.SetDefault("edge.max_message_size", constants.DefaultMaxMessageSize)

	v.SetDefault("reverse_lookup.enabled", true)
	v.SetDefault("reverse_lookup.timeout", constants.DefaultLookupTimeout)

	v.SetDefault("queue.type", constants.QueueTypeKafka)
	v.SetDefault("broker.type", "kafka")
	v.SetDefault("broker.kafka.topic", constants.DefaultEnvelopeTopic)
	v.SetDefault("broker.kafka.retry.max_attempts", 3)
	v.SetDefault("broker.kafka.retry.initial_interval", "100ms")
	v.SetDefault("broker.kafka.retry.max_interval", "2s")
	v.SetDefault("broker.kafka.retry.multiplier", 2.0)

	v.SetDefault("relay.smtp.timeout", constants.DefaultRelayTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	v.BindEnv("broker.kafka.topic", "BROKER_KAFKA_TOPIC")

	v.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	v.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	v.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	v.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("edge.hostname", "EDGE_HOSTNAME")
	v.BindEnv("edge.uri_pattern", "EDGE_URI_PATTERN")
	v.BindEnv("queue.type", "QUEUE_TYPE")
	v.BindEnv("relay.smtp.address", "RELAY_SMTP_ADDRESS")

	v.BindEnv("logging.level", "LOGGING_LEVEL")
	v.BindEnv("logging.format", "LOGGING_FORMAT")

	v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
}

// applyEnvOverrides handles values viper cannot unmarshal from a plain
// environment string, such as comma-separated lists.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := splitList(brokersEnv)
		if len(brokers) > 0 {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
