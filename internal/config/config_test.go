package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ZAPISTA_DATA", t.TempDir())
	t.Setenv("GOD_MODE_PASSWORD", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateLimitBurst != 15 {
		t.Errorf("RateLimitBurst = %d, want 15", cfg.RateLimitBurst)
	}
	if cfg.RateLimitWindow != 60*time.Second {
		t.Errorf("RateLimitWindow = %v, want 60s", cfg.RateLimitWindow)
	}
	if cfg.GodModeMaxAttempts != 5 {
		t.Errorf("GodModeMaxAttempts = %d, want 5", cfg.GodModeMaxAttempts)
	}
	if cfg.GodModeLockout != 15*time.Minute {
		t.Errorf("GodModeLockout = %v, want 15m", cfg.GodModeLockout)
	}
	if cfg.RedisNamespace != "zapista" {
		t.Errorf("RedisNamespace = %q", cfg.RedisNamespace)
	}
}

func TestPasswordIsHashedOnLoad(t *testing.T) {
	t.Setenv("ZAPISTA_DATA", t.TempDir())
	t.Setenv("GOD_MODE_PASSWORD", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// sha256("hunter2")
	want := "f52fbd32b2b3b86ff88ef6c490628285f482af15ddcb29541f94bcf526a3f6c7"
	if cfg.GodModePasswordHash != want {
		t.Errorf("hash = %q, want %q", cfg.GodModePasswordHash, want)
	}
}

func TestAllowedNumbersParsing(t *testing.T) {
	t.Setenv("ZAPISTA_DATA", t.TempDir())
	t.Setenv("ALLOWED_NUMBERS", "5511999990000, 351912345678 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AllowedNumbers) != 2 {
		t.Fatalf("AllowedNumbers = %v, want 2 entries", cfg.AllowedNumbers)
	}
	if cfg.AllowedNumbers[0] != "5511999990000" || cfg.AllowedNumbers[1] != "351912345678" {
		t.Errorf("AllowedNumbers = %v", cfg.AllowedNumbers)
	}
}

func TestInvalidRateLimit(t *testing.T) {
	t.Setenv("ZAPISTA_DATA", t.TempDir())
	t.Setenv("RATE_LIMIT_BURST", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative burst")
	}
}
