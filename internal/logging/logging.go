// Package logging builds the loggers for both run modes.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
)

// LogParams contains the writers for console output and log records.
// These vary depending on whether metarwatch runs in ticker or tui mode.
// # Ticker mode
// - console output goes to stdout
// - log records go to stderr, colored
// # TUI mode
// - console output is discarded, the terminal belongs to the dashboard
// - log records go to the configured log file
// .
type LogParams struct {
	ConsoleOut io.Writer
	ErrorOut   io.Writer
	Level      slog.Level
	colored    bool
	closer     io.Closer
}

// ForTicker returns log parameters writing to stdout and stderr.
func ForTicker(level slog.Level) *LogParams {
	return &LogParams{
		ConsoleOut: os.Stdout,
		ErrorOut:   os.Stderr,
		Level:      level,
		colored:    true,
	}
}

// ForTUI returns log parameters writing log records to the file at logPath. An empty path
// discards all log records.
func ForTUI(level slog.Level, logPath string) (*LogParams, error) {
	params := &LogParams{
		ConsoleOut: io.Discard,
		ErrorOut:   io.Discard,
		Level:      level,
	}
	if logPath == "" {
		return params, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("logging.ForTUI: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging.ForTUI: %w", err)
	}

	params.ErrorOut = file
	params.closer = file
	return params, nil
}

// Logger returns a logger writing to ErrorOut.
func (p *LogParams) Logger() *slog.Logger {
	if p.colored {
		return slog.New(tint.NewHandler(p.ErrorOut, &tint.Options{
			Level:      p.Level,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewTextHandler(p.ErrorOut, &slog.HandlerOptions{Level: p.Level}))
}

// Close releases the log file, if any.
func (p *LogParams) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}
