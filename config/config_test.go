package config

import (
	"errors"
	"testing"
	"time"

	prismerrors "github.com/ravivarmakumar/prism/errors"
)

func validConfig() *Config {
	return &Config{
		Provider:           "openai",
		APIKey:             "sk-test",
		Threshold:          0.70,
		MaxAttempts:        3,
		EmbeddingDimension: 3072,
		ListenAddr:         ":8080",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "cohere" }},
		{"missing api key", func(c *Config) { c.APIKey = "" }},
		{"threshold above one", func(c *Config) { c.Threshold = 1.5 }},
		{"threshold below zero", func(c *Config) { c.Threshold = -0.1 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"zero embedding dimension", func(c *Config) { c.EmbeddingDimension = 0 }},
		{"missing listen addr", func(c *Config) { c.ListenAddr = "" }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !errors.Is(err, prismerrors.ErrConfiguration) {
			t.Errorf("%s: expected ErrConfiguration, got %v", tc.name, err)
		}
	}
}

func TestValidatePostgresSettingsOnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresHost = ""
	cfg.PostgresPort = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("postgres settings should be ignored when host is empty: %v", err)
	}

	cfg.PostgresHost = "localhost"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid pg_port to fail once postgres is enabled")
	}

	cfg.PostgresPort = 5432
	cfg.PostgresUser = "postgres"
	cfg.PostgresSSLMode = "disable"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete postgres settings rejected: %v", err)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PRISM_API_KEY", "sk-env")
	t.Setenv("PRISM_PROVIDER", "claude")
	t.Setenv("PRISM_EVAL_THRESHOLD", "0.8")
	t.Setenv("PRISM_MAX_ATTEMPTS", "5")
	t.Setenv("PRISM_SESSION_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Provider != "claude" {
		t.Errorf("provider = %q", cfg.Provider)
	}
	if cfg.APIKey != "sk-env" {
		t.Errorf("api key = %q", cfg.APIKey)
	}
	if cfg.Threshold != 0.8 {
		t.Errorf("threshold = %v", cfg.Threshold)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("max attempts = %v", cfg.MaxAttempts)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("session ttl = %v", cfg.SessionTTL)
	}
}

func TestLoadFallsBackToOpenAIKey(t *testing.T) {
	t.Setenv("PRISM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.APIKey != "sk-openai" {
		t.Errorf("expected OPENAI_API_KEY fallback, got %q", cfg.APIKey)
	}
}

func TestLoadMalformedEnvValuesUseDefaults(t *testing.T) {
	t.Setenv("PRISM_API_KEY", "sk-test")
	t.Setenv("PRISM_EVAL_THRESHOLD", "not-a-number")
	t.Setenv("PRISM_MAX_ATTEMPTS", "three")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Threshold != 0.70 {
		t.Errorf("expected default threshold, got %v", cfg.Threshold)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected default max attempts, got %v", cfg.MaxAttempts)
	}
}
