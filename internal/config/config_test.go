package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/micutio/metarwatch/internal/format"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv(EnvLogLevel, "")

	got, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if got.Wx != want.Wx {
		t.Errorf("Wx = %+v, want %+v", got.Wx, want.Wx)
	}
	if got.Wx.StaleAfter() != 30*time.Minute || got.Wx.RefreshInterval() != 10*time.Second {
		t.Errorf("stale after %v, refresh every %v", got.Wx.StaleAfter(), got.Wx.RefreshInterval())
	}
	if got.LogLevel() != slog.LevelInfo {
		t.Errorf("LogLevel() = %v, want info", got.LogLevel())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(EnvLogLevel, "")

	path := writeConfig(t, `
[wx]
stale_after_minutes = 45
history_limit = 4

[storage]
db_path = "/tmp/wx.db"

[display]
temperature_unit = "f"
altimeter_unit = "hPa"

[logging]
level = "debug"

[notifications]
enabled = true
`)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.Wx.StaleAfter() != 45*time.Minute || got.Wx.HistoryLimit != 4 {
		t.Errorf("Wx = %+v", got.Wx)
	}
	if got.Wx.RefreshIntervalSecs != 10 {
		t.Errorf("unset refresh interval = %d, want default 10", got.Wx.RefreshIntervalSecs)
	}
	if got.Storage.DBPath != "/tmp/wx.db" || !got.Notifications.Enabled {
		t.Errorf("Storage = %+v, Notifications = %+v", got.Storage, got.Notifications)
	}
	if got.LogLevel() != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, want debug", got.LogLevel())
	}

	units, err := got.Units()
	if err != nil {
		t.Fatalf("Units() error = %v", err)
	}
	if units.Temperature != format.Fahrenheit || units.Altimeter != format.Hectopascal {
		t.Errorf("Units() = %+v", units)
	}
}

func TestLoadEnvLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")

	got, err := Load(writeConfig(t, "[logging]\nlevel = \"debug\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.LogLevel() != slog.LevelWarn {
		t.Errorf("LogLevel() = %v, want warn", got.LogLevel())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"malformed toml", "[wx\nmax_retries = 1", false},
		{"bad log level", "[logging]\nlevel = \"chatty\"", true},
		{"bad temperature unit", "[display]\ntemperature_unit = \"K\"", true},
		{"bad altimeter unit", "[display]\naltimeter_unit = \"mmHg\"", true},
		{"zero refresh interval", "[wx]\nrefresh_interval_seconds = 0", true},
		{"zero stale threshold", "[wx]\nstale_after_minutes = 0", true},
		{"negative retries", "[wx]\nmax_retries = -1", true},
		{"zero retry delay", "[wx]\nretry_after_seconds = 0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLogLevel, "")

			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() error = nil, want non-nil")
			}
			if tt.invalid && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("ParseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseLogLevel("trace"); err == nil {
		t.Error("ParseLogLevel(\"trace\") error = nil, want non-nil")
	}
}
