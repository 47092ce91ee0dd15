package app

import (
	"testing"
	"time"
)

func TestGetDurationEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset", "", time.Minute},
		{"valid", "30s", 30 * time.Second},
		{"invalid", "soon", time.Minute},
		{"negative", "-5s", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := GetDurationEnv("TEST_DURATION", time.Minute); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !GetBoolEnv("TEST_BOOL", false) {
		t.Error("Expected true")
	}

	t.Setenv("TEST_BOOL", "maybe")
	if !GetBoolEnv("TEST_BOOL", true) {
		t.Error("Expected default for unparsable value")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("MARKET_API_URL", "https://market.example/prices")
	t.Setenv("POLL_INTERVAL", "2m")
	t.Setenv("POLL_TIMEOUT", "")
	t.Setenv("PREFS_BACKEND", "sqlite")
	t.Setenv("PREFS_DIR", "/tmp/prefs")
	t.Setenv("SHEETS_EXPORT_ENABLED", "1")
	t.Setenv("PUSH_TOPIC", "")

	cfg := LoadConfig()

	if cfg.MarketAPIURL != "https://market.example/prices" {
		t.Errorf("Unexpected MarketAPIURL %q", cfg.MarketAPIURL)
	}
	if cfg.PollInterval != 2*time.Minute {
		t.Errorf("Expected 2m poll interval, got %v", cfg.PollInterval)
	}
	if cfg.PollTimeout != 15*time.Second {
		t.Errorf("Expected default poll timeout, got %v", cfg.PollTimeout)
	}
	if cfg.PrefsBackend != "sqlite" || cfg.PrefsDir != "/tmp/prefs" {
		t.Errorf("Unexpected preferences config %q %q", cfg.PrefsBackend, cfg.PrefsDir)
	}
	if !cfg.SheetsExportEnabled {
		t.Error("Expected sheets export enabled")
	}
	if cfg.PushTopic != "prices" {
		t.Errorf("Expected default push topic, got %q", cfg.PushTopic)
	}
}

func TestInitializeNotificationClientDisabledByDefault(t *testing.T) {
	t.Setenv("NTFY_ENABLED", "")
	if InitializeNotificationClient().Enabled() {
		t.Error("Expected notifications to be disabled by default")
	}
}
