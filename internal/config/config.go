// Package config loads runtime configuration from the environment, with an
// optional .env file for development setups.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root runtime configuration.
type Config struct {
	// DataDir is the root for durable state files (cron store, mute
	// ledger, lockout counters, metrics snapshots, sessions).
	DataDir string

	// RedisURL enables Redis-backed outbound lanes and inbound dedup when
	// non-empty.
	RedisURL string

	// RedisNamespace prefixes every Redis key. Default "zapista".
	RedisNamespace string

	// BridgeURL is the WhatsApp bridge WebSocket endpoint.
	BridgeURL string

	// StrictHandlers makes handler panics and errors fail the turn instead
	// of being skipped. Used in tests.
	StrictHandlers bool

	// GodModePasswordHash is the SHA-256 hex of GOD_MODE_PASSWORD. The
	// cleartext is discarded after hashing and never logged.
	GodModePasswordHash string
	GodModeMaxAttempts  int
	GodModeLockout      time.Duration

	// AllowedNumbers is the static allow-list of phone digits. Empty means
	// everyone is allowed.
	AllowedNumbers []string

	// Rate limiting per (channel, chat).
	RateLimitBurst  int
	RateLimitWindow time.Duration

	// LLM provider settings.
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// MetricsAddr serves Prometheus metrics when non-empty, e.g. ":9090".
	MetricsAddr string

	// STTEnabled toggles voice transcription.
	STTEnabled bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:         envOr("ZAPISTA_DATA", ""),
		RedisURL:        os.Getenv("REDIS_URL"),
		RedisNamespace:  envOr("REDIS_NAMESPACE", "zapista"),
		BridgeURL:       envOr("BRIDGE_URL", "ws://localhost:8765/ws"),
		StrictHandlers:  envBool("STRICT_HANDLERS"),
		RateLimitBurst:  envInt("RATE_LIMIT_BURST", 15),
		RateLimitWindow: time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMBaseURL:      envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:        envOr("LLM_MODEL", "gpt-4o-mini"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		STTEnabled:      envBool("STT_ENABLED"),
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".zapista")
	}

	if pw := os.Getenv("GOD_MODE_PASSWORD"); pw != "" {
		sum := sha256.Sum256([]byte(pw))
		cfg.GodModePasswordHash = hex.EncodeToString(sum[:])
	}
	cfg.GodModeMaxAttempts = envInt("GOD_MODE_MAX_ATTEMPTS", 5)
	cfg.GodModeLockout = time.Duration(envInt("GOD_MODE_LOCKOUT_MINUTES", 15)) * time.Minute

	if raw := os.Getenv("ALLOWED_NUMBERS"); raw != "" {
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(n); n != "" {
				cfg.AllowedNumbers = append(cfg.AllowedNumbers, n)
			}
		}
	}

	if cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", cfg.RateLimitBurst)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be positive")
	}

	return cfg, nil
}

// EnsureDataDirs creates the durable-state directory tree.
func (c *Config) EnsureDataDirs() error {
	for _, sub := range []string{"", "cron", "security", "sessions"} {
		if err := os.MkdirAll(filepath.Join(c.DataDir, sub), 0o755); err != nil {
			return fmt.Errorf("create data dir %s: %w", sub, err)
		}
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
