package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Identity IdentityConfig
	Confirm  ConfirmConfig
	Otel     OtelConfig
}

type AppConfig struct {
	DBPath       string
	Conversation string
	MaxHistory   int
	Environment  string
	LogFilePath  string
}

type IdentityConfig struct {
	AgentID     string
	DisplayName string
}

type ConfirmConfig struct {
	Timeout  time.Duration
	Latency  time.Duration
	FailRate float64
}

type OtelConfig struct {
	Enabled  bool
	Endpoint string
	// MetricsPath receives periodic metric exports as JSON.
	MetricsPath string
}

// IsProduction reports whether GO_ENV is "production".
func (c *Config) IsProduction() bool { return c.App.Environment == "production" }

// Load reads .env (if present) and the process environment.
func Load() *Config {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	return &Config{
		App: AppConfig{
			DBPath:       getEnv("OPTIMIST_DB", ".optimist/optimist.db"),
			Conversation: getEnv("OPTIMIST_CONVERSATION", "general"),
			MaxHistory:   getEnvAsInt("OPTIMIST_MAX_HISTORY", 50),
			Environment:  getEnv("GO_ENV", "development"),
			LogFilePath:  getEnv("LOG_FILE_PATH", ".optimist/optimist.log"),
		},
		Identity: IdentityConfig{
			AgentID:     getEnv("OPTIMIST_AGENT", ""),
			DisplayName: getEnv("OPTIMIST_NAME", ""),
		},
		Confirm: ConfirmConfig{
			Timeout:  getEnvAsDuration("OPTIMIST_CONFIRM_TIMEOUT", 10*time.Second),
			Latency:  getEnvAsDuration("OPTIMIST_LATENCY", 0),
			FailRate: getEnvAsFloat("OPTIMIST_FAIL_RATE", 0),
		},
		Otel: OtelConfig{
			Enabled:     getEnv("OTEL_ENABLED", "") == "true",
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			MetricsPath: getEnv("OTEL_METRICS_PATH", ".optimist/metrics.jsonl"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
