// Package main provides the METAR watching application
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/micutio/metarwatch/internal/avwx"
	"github.com/micutio/metarwatch/internal/config"
	"github.com/micutio/metarwatch/internal/geo"
	"github.com/micutio/metarwatch/internal/logging"
	"github.com/micutio/metarwatch/internal/notify"
	"github.com/micutio/metarwatch/internal/prefs"
	"github.com/micutio/metarwatch/internal/refresh"
	"github.com/micutio/metarwatch/internal/store"
	"github.com/micutio/metarwatch/tickerapp"
	"github.com/micutio/metarwatch/tuiapp"
	"github.com/spf13/pflag"
)

const (
	// thisAppName is the name of this application as shown on notifications.
	thisAppName = "metarwatch"
)

type arguments struct {
	isUseTicker bool
	configPath  string
	stations    []string
	latLon      []float32
	logLevel    string
}

func main() {
	var args arguments

	setupCommandLineFlags(&args)

	// Parse all arguments provided to the program on launch.
	pflag.Parse()

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", thisAppName, err)
		os.Exit(1)
	}
}

func run(args arguments) error {
	cfg, err := config.Load(args.configPath)
	if err != nil {
		return err
	}
	if args.logLevel != "" {
		cfg.Logging.Level = args.logLevel
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	level := cfg.LogLevel()
	units, err := cfg.Units()
	if err != nil {
		return err
	}

	var logParams *logging.LogParams
	if args.isUseTicker {
		logParams = logging.ForTicker(level)
	} else if logParams, err = logging.ForTUI(level, cfg.Logging.File); err != nil {
		return err
	}
	defer logParams.Close()

	logger := logParams.Logger()
	slog.SetDefault(logger)

	preferences, closePrefs, err := openPreferences(cfg.Storage.DBPath, logger)
	if err != nil {
		return err
	}
	defer closePrefs()

	metarStore, err := store.New(preferences,
		store.WithStaleAfter(cfg.Wx.StaleAfter()),
		store.WithRetryInterval(cfg.Wx.RetryAfter()),
		store.WithHistoryLimit(cfg.Wx.HistoryLimit),
		store.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	addLaunchStations(metarStore, args.stations, logger)

	client := avwx.NewClient(avwx.Config{
		BaseURL:        cfg.Wx.APIBaseURL,
		Timeout:        cfg.Wx.RequestTimeout(),
		MaxRetries:     cfg.Wx.MaxRetries,
		HoursBeforeNow: cfg.Wx.HoursBeforeNow,
	}, logger)
	refresher := refresh.New(metarStore, client, logger)

	if args.isUseTicker {
		return tickerapp.Run(thisAppName, tickerapp.Options{
			Store:           metarStore,
			Refresher:       refresher,
			Notify:          notify.NewNotify(thisAppName, logParams.ConsoleOut, units, cfg.Notifications.Enabled),
			RefreshInterval: cfg.Wx.RefreshInterval(),
			Logger:          logger,
		})
	}

	return tuiapp.Run(thisAppName, tuiapp.Options{
		Store:           metarStore,
		Refresher:       refresher,
		Units:           units,
		Home:            homeLocation(args.latLon),
		RefreshInterval: cfg.Wx.RefreshInterval(),
		Logger:          logger,
	})
}

// openPreferences opens the SQLite preferences at dbPath. An empty path keeps them in memory.
func openPreferences(dbPath string, logger *slog.Logger) (store.Preferences, func(), error) {
	if dbPath == "" {
		logger.Info("no database configured, station list will not be saved")
		return store.NewMemoryPreferences(), func() {}, nil
	}

	sqlitePrefs, err := prefs.Open(dbPath, logger)
	if err != nil {
		return nil, nil, err
	}
	return sqlitePrefs, func() {
		if err := sqlitePrefs.Close(); err != nil {
			logger.Warn("unable to close preferences", slog.Any("error", err))
		}
	}, nil
}

func addLaunchStations(metarStore *store.MetarStore, stationIDs []string, logger *slog.Logger) {
	for _, stationID := range stationIDs {
		_, err := metarStore.AddStation(stationID)
		switch {
		case errors.Is(err, store.ErrDuplicateStation):
			logger.Debug("station already watched", slog.String("station", stationID))
		case err != nil:
			logger.Error("unable to add station", slog.String("station", stationID), slog.Any("error", err))
		}
	}
}

func homeLocation(latLon []float32) geo.Coordinates {
	if len(latLon) < 2 {
		return geo.Coordinates{}
	}
	return geo.NewCoordinates(float64(latLon[0]), float64(latLon[1]))
}

func setupCommandLineFlags(args *arguments) {
	// Whether to launch the Ticker or TUI app.
	pflag.BoolVarP(
		&args.isUseTicker,
		"ticker",
		"t",
		false,
		"print station updates on the command line without TUI")
	pflag.Lookup("ticker").NoOptDefVal = "true"

	pflag.StringVarP(
		&args.configPath,
		"config",
		"c",
		config.DefaultPath(),
		"path of the configuration file")

	// Stations to add to the watch list on launch, e.g. -s KBWI,KDCA
	pflag.StringSliceVarP(
		&args.stations,
		"station",
		"s",
		nil,
		"add stations to the watch list")

	// Home location, provided as lat,lon coordinates
	pflag.Float32SliceVarP(
		&args.latLon,
		"latlon",
		"l",
		[]float32{0, 0},
		"show distance and bearing of each station from this location")

	pflag.StringVar(
		&args.logLevel,
		"log-level",
		"",
		"log level: debug, info, warn or error")
}
