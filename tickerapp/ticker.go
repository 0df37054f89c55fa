// Package tickerapp launches the ticker application which writes out all updates to stdout and
// can be piped into other programs and processed further.
// This is in contrast to the TUI app, which works more like htop.
package tickerapp

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/micutio/metarwatch/internal/notify"
	"github.com/micutio/metarwatch/internal/refresh"
	"github.com/micutio/metarwatch/internal/store"
)

// DefaultSummaryInterval is how often the summary of all stations is printed.
const DefaultSummaryInterval = 30 * time.Minute

var ErrNoStations = errors.New("no stations to watch, add some with --station")

type Options struct {
	Store           *store.MetarStore
	Refresher       *refresh.Refresher
	Notify          *notify.Notify
	RefreshInterval time.Duration
	SummaryInterval time.Duration
	Logger          *slog.Logger
}

// Run refreshes the stations until SIGINT or SIGTERM is received.
func Run(appName string, options Options) error {
	if options.Store.Len() == 0 {
		return ErrNoStations
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options.Logger.Info(appName+" launching", slog.Any("stations", options.Store.StationIDs()))
	run(ctx, options)
	options.Logger.Info("Shutdown signal received, stopping...")
	return nil
}

func run(ctx context.Context, options Options) {
	summaryInterval := options.SummaryInterval
	if summaryInterval <= 0 {
		summaryInterval = DefaultSummaryInterval
	}

	// Create a summary ticker that fires in a given interval
	summaryTicker := time.NewTicker(summaryInterval)
	defer summaryTicker.Stop()

	done := make(chan struct{})

	// Start a goroutine to print the summaries
	go func() {
		for {
			select {
			case <-summaryTicker.C:
				options.Notify.PrintSummary(options.Store.Snapshot())
			case <-done:
				return
			}
		}
	}()

	options.Refresher.Run(ctx, options.RefreshInterval, options.Notify.EmitUpdates)
	close(done)
}
