package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	WHOBaseURL string
	WHOTimeout time.Duration

	DBPath     string
	Indicators []string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka fact-event publishing configuration.
	KafkaBrokers    []string
	KafkaFactsTopic string
	KafkaEnabled    bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	whoTimeout, err := parseDuration("WHO_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		WHOBaseURL:      envOrDefault("WHO_BASE_URL", "https://ghoapi.azureedge.net/api"),
		WHOTimeout:      whoTimeout,
		DBPath:          envOrDefault("DB_PATH", "health_data.db"),
		Indicators:      parseList(envOrDefault("INDICATORS", "WHOSIS_000001")),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:    parseList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaFactsTopic: envOrDefault("KAFKA_FACTS_TOPIC", "health-facts"),
		KafkaEnabled:    kafkaEnabled,
	}

	if cfg.WHOBaseURL == "" {
		return nil, errors.New("WHO_BASE_URL is required")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaFactsTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_FACTS_TOPIC is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

// parseList splits a comma-separated env value, trimming whitespace and
// dropping empty entries.
func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
