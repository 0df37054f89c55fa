package store

import (
	"slices"
	"sync"
	"time"

	"github.com/micutio/metarwatch/internal/avwx"
)

// Preferences persists the user's station list across runs.
type Preferences interface {
	LoadStations() ([]string, error)
	SaveStations(stationIDs []string) error
}

// MetarCache is implemented by preferences backends which also keep the last fetched reports.
type MetarCache interface {
	LoadMetars(stationID string) ([]avwx.Metar, time.Time, error)
	SaveMetars(stationID string, metars []avwx.Metar, savedAt time.Time) error
	DeleteMetars(stationID string) error
}

type cachedMetars struct {
	metars  []avwx.Metar
	savedAt time.Time
}

// MemoryPreferences keeps preferences in memory, e.g. for tests or when persistence is off.
type MemoryPreferences struct {
	mu       sync.Mutex
	stations []string
	metars   map[string]cachedMetars
}

// NewMemoryPreferences returns empty in-memory preferences, optionally with initial stations.
func NewMemoryPreferences(stationIDs ...string) *MemoryPreferences {
	return &MemoryPreferences{
		stations: slices.Clone(stationIDs),
		metars:   make(map[string]cachedMetars),
	}
}

func (mp *MemoryPreferences) LoadStations() ([]string, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return slices.Clone(mp.stations), nil
}

func (mp *MemoryPreferences) SaveStations(stationIDs []string) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.stations = slices.Clone(stationIDs)
	return nil
}

func (mp *MemoryPreferences) LoadMetars(stationID string) ([]avwx.Metar, time.Time, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	cached := mp.metars[stationID]
	return slices.Clone(cached.metars), cached.savedAt, nil
}

func (mp *MemoryPreferences) SaveMetars(stationID string, metars []avwx.Metar, savedAt time.Time) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.metars[stationID] = cachedMetars{metars: slices.Clone(metars), savedAt: savedAt}
	return nil
}

func (mp *MemoryPreferences) DeleteMetars(stationID string) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	delete(mp.metars, stationID)
	return nil
}
