// Package config loads the metarwatch configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/micutio/metarwatch/internal/format"
)

// EnvLogLevel overrides the configured log level when set.
const EnvLogLevel = "METARWATCH_LOG_LEVEL"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the application configuration, one struct per file section.
type Config struct {
	Wx            WxConfig            `toml:"wx"`            // weather data fetching
	Storage       StorageConfig       `toml:"storage"`       // preferences database
	Display       DisplayConfig       `toml:"display"`       // units
	Logging       LoggingConfig       `toml:"logging"`       // log level and file
	Notifications NotificationsConfig `toml:"notifications"` // desktop notifications
}

type WxConfig struct {
	APIBaseURL          string `toml:"api_base_url"`
	RequestTimeoutSecs  int    `toml:"request_timeout_seconds"`
	MaxRetries          int    `toml:"max_retries"`
	HoursBeforeNow      int    `toml:"hours_before_now"`         // history window of one request
	RefreshIntervalSecs int    `toml:"refresh_interval_seconds"` // period of the staleness check
	StaleAfterMinutes   int    `toml:"stale_after_minutes"`      // age after which a station is fetched again
	RetryAfterSecs      int    `toml:"retry_after_seconds"`      // wait before retrying a failed station
	HistoryLimit        int    `toml:"history_limit"`            // reports kept per station
}

type StorageConfig struct {
	DBPath string `toml:"db_path"` // empty keeps preferences in memory
}

type DisplayConfig struct {
	TemperatureUnit string `toml:"temperature_unit"` // "C" or "F"
	AltimeterUnit   string `toml:"altimeter_unit"`   // "inHg" or "hPa"
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // log file used in TUI mode
}

type NotificationsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Wx: WxConfig{
			APIBaseURL:          "https://aviationweather.gov/api/data",
			RequestTimeoutSecs:  10,
			MaxRetries:          2,
			HoursBeforeNow:      3,
			RefreshIntervalSecs: 10,
			StaleAfterMinutes:   30,
			RetryAfterSecs:      60,
			HistoryLimit:        12,
		},
		Storage: StorageConfig{DBPath: filepath.Join(dataDir, "metarwatch.db")},
		Display: DisplayConfig{
			TemperatureUnit: string(format.Celsius),
			AltimeterUnit:   string(format.InchesOfMercury),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "metarwatch.log"),
		},
	}
}

// DefaultPath returns the config file location below the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "metarwatch", "config.toml")
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "metarwatch")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "metarwatch")
	}
	return "."
}

// Load reads the configuration at path on top of the defaults. A missing file yields the
// defaults. The log level can be overridden by the METARWATCH_LOG_LEVEL environment variable.
func Load(path string) (Config, error) {
	config := Default()

	if _, err := toml.DecodeFile(path, &config); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config.Load: failed to decode %s: %w", path, err)
		}
	}

	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		config.Logging.Level = level
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("validate: %w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Units(); err != nil {
		return fmt.Errorf("validate: %w: %w", ErrInvalidConfig, err)
	}

	switch {
	case c.Wx.APIBaseURL == "":
		return fmt.Errorf("validate: %w: wx.api_base_url is required", ErrInvalidConfig)
	case c.Wx.RefreshIntervalSecs <= 0:
		return fmt.Errorf("validate: %w: wx.refresh_interval_seconds must be positive", ErrInvalidConfig)
	case c.Wx.StaleAfterMinutes <= 0:
		return fmt.Errorf("validate: %w: wx.stale_after_minutes must be positive", ErrInvalidConfig)
	case c.Wx.RetryAfterSecs <= 0:
		return fmt.Errorf("validate: %w: wx.retry_after_seconds must be positive", ErrInvalidConfig)
	case c.Wx.MaxRetries < 0 || c.Wx.HistoryLimit < 0:
		return fmt.Errorf("validate: %w: negative wx setting", ErrInvalidConfig)
	}
	return nil
}

// LogLevel returns the parsed log level, info if the configuration was not validated.
func (c Config) LogLevel() slog.Level {
	level, _ := ParseLogLevel(c.Logging.Level)
	return level
}

// Units returns the display units.
func (c Config) Units() (format.Units, error) {
	units := format.DefaultUnits()

	switch format.TemperatureUnit(strings.ToUpper(c.Display.TemperatureUnit)) {
	case "":
	case format.Celsius:
		units.Temperature = format.Celsius
	case format.Fahrenheit:
		units.Temperature = format.Fahrenheit
	default:
		return units, fmt.Errorf("unknown temperature unit %q (allowed: C, F)", c.Display.TemperatureUnit)
	}

	switch strings.ToLower(c.Display.AltimeterUnit) {
	case "":
	case "inhg":
		units.Altimeter = format.InchesOfMercury
	case "hpa":
		units.Altimeter = format.Hectopascal
	default:
		return units, fmt.Errorf("unknown altimeter unit %q (allowed: inHg, hPa)", c.Display.AltimeterUnit)
	}
	return units, nil
}

func (w WxConfig) RequestTimeout() time.Duration {
	return time.Duration(w.RequestTimeoutSecs) * time.Second
}

func (w WxConfig) RefreshInterval() time.Duration {
	return time.Duration(w.RefreshIntervalSecs) * time.Second
}

func (w WxConfig) StaleAfter() time.Duration {
	return time.Duration(w.StaleAfterMinutes) * time.Minute
}

func (w WxConfig) RetryAfter() time.Duration {
	return time.Duration(w.RetryAfterSecs) * time.Second
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (allowed: debug, info, warn, error)", s)
	}
}
