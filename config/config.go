// Package config loads the service configuration from the environment and
// fails fast at startup on anything malformed.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full service configuration.
type Config struct {
	// LLM provider settings.
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64

	// Embedding settings.
	EmbeddingModel     string
	EmbeddingDimension int

	// Evaluation loop settings.
	Threshold   float64
	MaxAttempts int

	// HTTP server.
	ListenAddr string

	// Stores. Empty values disable the corresponding integration.
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	SessionTTL       time.Duration
	TelemetryDisable bool
}

// Load reads configuration from the environment with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Provider:    envOr("PRISM_PROVIDER", "openai"),
		APIKey:      os.Getenv("PRISM_API_KEY"),
		Model:       os.Getenv("PRISM_MODEL"),
		Temperature: envFloat("PRISM_TEMPERATURE", 0.7),
		MaxTokens:   int64(envInt("PRISM_MAX_TOKENS", 2048)),

		EmbeddingModel:     envOr("PRISM_EMBEDDING_MODEL", "text-embedding-3-large"),
		EmbeddingDimension: envInt("PRISM_EMBEDDING_DIMENSION", 3072),

		Threshold:   envFloat("PRISM_EVAL_THRESHOLD", 0.70),
		MaxAttempts: envInt("PRISM_MAX_ATTEMPTS", 3),

		ListenAddr: envOr("PRISM_LISTEN_ADDR", ":8080"),

		PostgresHost:     os.Getenv("PRISM_PG_HOST"),
		PostgresPort:     envInt("PRISM_PG_PORT", 5432),
		PostgresUser:     envOr("PRISM_PG_USER", "postgres"),
		PostgresPassword: os.Getenv("PRISM_PG_PASSWORD"),
		PostgresDB:       envOr("PRISM_PG_DATABASE", "prism"),
		PostgresSSLMode:  envOr("PRISM_PG_SSLMODE", "disable"),

		RedisAddr:     os.Getenv("PRISM_REDIS_ADDR"),
		RedisPassword: os.Getenv("PRISM_REDIS_PASSWORD"),
		RedisDB:       envInt("PRISM_REDIS_DB", 0),

		MongoURI:        os.Getenv("PRISM_MONGO_URI"),
		MongoDatabase:   envOr("PRISM_MONGO_DATABASE", "prism"),
		MongoCollection: envOr("PRISM_MONGO_COLLECTION", "runs"),

		SessionTTL:       envDuration("PRISM_SESSION_TTL", 24*time.Hour),
		TelemetryDisable: envBool("PRISM_TELEMETRY_DISABLE", false),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration. Violations are fatal at startup.
func (c *Config) Validate() error {
	v := NewValidator()
	v.ValidateOneOf("provider", c.Provider, "openai", "claude", "gemini")
	v.RequireNonEmpty("api_key", c.APIKey)
	v.ValidateFloatRange("threshold", c.Threshold, 0.0, 1.0)
	v.RequirePositive("max_attempts", c.MaxAttempts)
	v.RequirePositive("embedding_dimension", c.EmbeddingDimension)
	v.RequireNonEmpty("listen_addr", c.ListenAddr)
	if c.PostgresHost != "" {
		v.ValidatePort("pg_port", c.PostgresPort)
		v.RequireNonEmpty("pg_user", c.PostgresUser)
		v.ValidateOneOf("pg_sslmode", c.PostgresSSLMode, "disable", "require", "verify-ca", "verify-full")
	}
	return v.Error()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
