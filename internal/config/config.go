package config

import (
	"log/slog"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the ingestion service.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"`
	DBURL         string `env:"DB_URL"`

	// Event delivery
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"nats"` // "nats" or "none" (HTTP-only ingestion)
	QueueURL      string `env:"QUEUE_URL"`

	// Ownership-lookup cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"none"` // "redis" or "none"
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// AWS
	Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	UploadBucket    string `env:"UPLOAD_BUCKET"`
	SNSTopicARN     string `env:"SNS_TOPIC_ARN"`
	TextractRoleARN string `env:"TEXTRACT_ROLE_ARN"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
