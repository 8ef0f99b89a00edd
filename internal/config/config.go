package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the data chat service.
type Config struct {
	BindAddr                      string
	ShutdownTimeout               time.Duration
	ConversationInactivityTimeout time.Duration
	MetricsNamespace              string

	AllowAnyOrigin bool

	MemorySize     int
	EnforcePrivacy bool

	BackendMode    string
	BackendHTTPURL string

	ModelMode     string
	ModelHTTPURL  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                      envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:              envOrDefault("APP_METRICS_NAMESPACE", "tabula"),
		AllowAnyOrigin:                false,
		MemorySize:                    10,
		BackendMode:                   envOrDefault("BACKEND_MODE", "auto"),
		BackendHTTPURL:                stringsTrimSpace("BACKEND_HTTP_URL"),
		ModelMode:                     envOrDefault("MODEL_MODE", "auto"),
		ModelHTTPURL:                  stringsTrimSpace("MODEL_HTTP_URL"),
		OpenAIAPIKey:                  stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:                 stringsTrimSpace("OPENAI_BASE_URL"),
		OpenAIModel:                   envOrDefault("OPENAI_MODEL", ""),
		DatabaseURL:                   stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:               15 * time.Second,
		ConversationInactivityTimeout: 10 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ConversationInactivityTimeout, err = durationFromEnv("APP_CONVERSATION_INACTIVITY_TIMEOUT", cfg.ConversationInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MemorySize, err = intFromEnv("AGENT_MEMORY_SIZE", cfg.MemorySize)
	if err != nil {
		return Config{}, err
	}
	cfg.EnforcePrivacy, err = boolFromEnv("AGENT_ENFORCE_PRIVACY", cfg.EnforcePrivacy)
	if err != nil {
		return Config{}, err
	}

	if cfg.ConversationInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_CONVERSATION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.MemorySize <= 0 {
		return Config{}, fmt.Errorf("AGENT_MEMORY_SIZE must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
