// Package refresh keeps the METAR store up to date by fetching stations whose data went stale.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/micutio/metarwatch/internal/avwx"
	"github.com/micutio/metarwatch/internal/store"
)

// DefaultInterval is the period of the staleness check.
const DefaultInterval = 10 * time.Second

// Fetcher retrieves reports for many stations in one request.
type Fetcher interface {
	FetchMetars(ctx context.Context, stationIDs ...string) (map[string][]avwx.Metar, error)
}

// Update describes the outcome of one station's fetch.
type Update struct {
	StationID string
	Previous  avwx.FlightCategory
	Current   avwx.FlightCategory
	Metar     avwx.Metar // most recent report after the fetch, if any
	Err       error
}

// CategoryChanged reports whether a successful fetch moved the station to another category.
func (u Update) CategoryChanged() bool {
	return u.Err == nil &&
		u.Previous != avwx.Unknown &&
		u.Current != avwx.Unknown &&
		u.Previous != u.Current
}

// Refresher fetches due stations and records the results in the store.
type Refresher struct {
	Store   *store.MetarStore
	Fetcher Fetcher
	Logger  *slog.Logger
}

// New returns a refresher. A nil logger uses the default logger.
func New(metarStore *store.MetarStore, fetcher Fetcher, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		Store:   metarStore,
		Fetcher: fetcher,
		Logger:  logger.With("component", "refresh"),
	}
}

// Tick fetches all stations due at now in one batched request. It returns one update per
// fetched station, in list order. Nothing is fetched when no station is due.
func (r *Refresher) Tick(ctx context.Context, now time.Time) []Update {
	due := r.Store.StationsDue(now)
	if len(due) == 0 {
		return nil
	}

	r.Store.BeginFetch(due, now)

	previous := make(map[string]avwx.FlightCategory, len(due))
	for _, stationID := range due {
		if metar, ok := r.Store.CurrentMetar(stationID); ok {
			previous[stationID] = metar.FlightCategory
		}
	}

	r.Logger.Debug("fetching stations", slog.Any("stations", due))
	results, fetchErr := r.Fetcher.FetchMetars(ctx, due...)
	if fetchErr != nil {
		r.Logger.Warn("fetch failed", slog.Any("stations", due), slog.Any("error", fetchErr))
	}

	updates := make([]Update, 0, len(due))
	for _, stationID := range due {
		if _, tracked := r.Store.Station(stationID); !tracked {
			continue
		}
		update := Update{StationID: stationID, Previous: previous[stationID]}

		metars := results[stationID]
		switch {
		case fetchErr != nil:
			update.Err = fetchErr
		case len(metars) == 0:
			update.Err = fmt.Errorf("refresh: %w: %s", avwx.ErrStationNotFound, stationID)
		default:
			if err := r.Store.UpdateMetars(stationID, metars, now); err != nil {
				if errors.Is(err, store.ErrStationIDDoesNotExist) {
					// removed while the request was in flight
					continue
				}
				update.Err = err
			}
		}

		if update.Err != nil {
			r.Store.MarkFailed(stationID, update.Err, now)
		}
		if metar, ok := r.Store.CurrentMetar(stationID); ok {
			update.Metar = metar
			update.Current = metar.FlightCategory
		}

		updates = append(updates, update)
	}

	return updates
}

// Run calls Tick right away and then every interval until ctx is done. Non-empty results are
// passed to onUpdate.
func (r *Refresher) Run(ctx context.Context, interval time.Duration, onUpdate func([]Update)) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	now := time.Now()
	for {
		if updates := r.Tick(ctx, now); len(updates) > 0 && onUpdate != nil {
			onUpdate(updates)
		}

		select {
		case <-ctx.Done():
			r.Logger.Info("stopping refresh loop")
			return
		case now = <-ticker.C:
		}
	}
}
