package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice coordination service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	WakeKeyword string
	Locale      string

	SessionMaxDuration  time.Duration
	SilenceWindow       time.Duration
	SessionHistoryLimit int

	BackendBaseURL   string
	BackendTransport string
	NetworkTimeout   time.Duration
	ProbeInterval    time.Duration

	SyncEndpoint      string
	SyncBatchSize     int
	SyncFlushInterval time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "clara"),
		AllowAnyOrigin:   false,
		WakeKeyword:      envOrDefault("VOICE_WAKE_KEYWORD", "clara"),
		Locale:           envOrDefault("VOICE_LOCALE", "en-US"),
		BackendBaseURL:   envOrDefault("BACKEND_BASE_URL", "http://localhost:8000"),
		BackendTransport: envOrDefault("BACKEND_TRANSPORT", "http"),
		SyncEndpoint:     stringsTrimSpace("SYNC_ENDPOINT_BASE"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),

		ShutdownTimeout:     15 * time.Second,
		SessionMaxDuration:  30 * time.Second,
		SilenceWindow:       4 * time.Second,
		SessionHistoryLimit: 50,
		NetworkTimeout:      10 * time.Second,
		ProbeInterval:       15 * time.Second,
		SyncBatchSize:       25,
		SyncFlushInterval:   30 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionMaxDuration, err = durationFromEnv("VOICE_SESSION_MAX_DURATION", cfg.SessionMaxDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceWindow, err = durationFromEnv("VOICE_SILENCE_WINDOW", cfg.SilenceWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionHistoryLimit, err = intFromEnv("VOICE_SESSION_HISTORY_LIMIT", cfg.SessionHistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.NetworkTimeout, err = durationFromEnv("BACKEND_NETWORK_TIMEOUT", cfg.NetworkTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ProbeInterval, err = durationFromEnv("BACKEND_PROBE_INTERVAL", cfg.ProbeInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.SyncBatchSize, err = intFromEnv("SYNC_BATCH_SIZE", cfg.SyncBatchSize)
	if err != nil {
		return Config{}, err
	}
	cfg.SyncFlushInterval, err = durationFromEnv("SYNC_FLUSH_INTERVAL", cfg.SyncFlushInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.BackendTransport)) {
	case "http", "ws":
		cfg.BackendTransport = strings.ToLower(strings.TrimSpace(cfg.BackendTransport))
	default:
		return Config{}, fmt.Errorf("BACKEND_TRANSPORT must be http or ws, got %q", cfg.BackendTransport)
	}
	if strings.TrimSpace(cfg.BackendBaseURL) == "" {
		return Config{}, fmt.Errorf("BACKEND_BASE_URL must not be empty")
	}
	if cfg.SilenceWindow <= 0 {
		return Config{}, fmt.Errorf("VOICE_SILENCE_WINDOW must be positive")
	}
	if cfg.SessionMaxDuration <= cfg.SilenceWindow {
		return Config{}, fmt.Errorf("VOICE_SESSION_MAX_DURATION must exceed VOICE_SILENCE_WINDOW")
	}
	if cfg.SessionHistoryLimit <= 0 {
		return Config{}, fmt.Errorf("VOICE_SESSION_HISTORY_LIMIT must be positive")
	}
	if cfg.NetworkTimeout <= 0 {
		return Config{}, fmt.Errorf("BACKEND_NETWORK_TIMEOUT must be positive")
	}
	if cfg.SyncBatchSize <= 0 {
		return Config{}, fmt.Errorf("SYNC_BATCH_SIZE must be positive")
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
