// Package store holds the METAR model: the ordered list of watched stations and the reports
// fetched for each of them.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/micutio/metarwatch/internal/avwx"
)

const (
	// DefaultStaleAfter is the age after which a station's data gets fetched again.
	DefaultStaleAfter = 30 * time.Minute
	// DefaultRetryInterval is the minimum time between two fetch attempts for the same station.
	DefaultRetryInterval = 1 * time.Minute
	// DefaultHistoryLimit is how many reports are kept per station.
	DefaultHistoryLimit = 12
)

var (
	ErrStationIDDoesNotExist = errors.New("station id does not exist")
	ErrDuplicateStation      = errors.New("station is already watched")
	ErrIndexOutOfRange       = errors.New("station index out of range")
)

// LoadingState tracks where a station is in its fetch cycle.
type LoadingState int

const (
	Loading LoadingState = iota
	Loaded
	Failed
)

func (s LoadingState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// StationData is everything the store knows about one station.
type StationData struct {
	StationID    string
	LoadingState LoadingState
	LastUpdated  time.Time    // time of the last successful fetch
	LastAttempt  time.Time    // time of the last fetch attempt, successful or not
	Metars       []avwx.Metar // most recent first
	Err          error        // error of the last failed attempt
}

// Current returns the most recent report.
func (sd *StationData) Current() (avwx.Metar, bool) {
	if len(sd.Metars) == 0 {
		return avwx.Metar{}, false
	}
	return sd.Metars[0], true
}

func (sd *StationData) clone() StationData {
	c := *sd
	c.Metars = slices.Clone(sd.Metars)
	return c
}

// Option configures a MetarStore.
type Option func(*MetarStore)

// WithStaleAfter sets the age after which data is fetched again.
func WithStaleAfter(d time.Duration) Option {
	return func(ms *MetarStore) { ms.staleAfter = d }
}

// WithRetryInterval sets the minimum time between attempts for one station. Non-positive values
// are ignored, the interval also keeps in-flight stations from being requested twice.
func WithRetryInterval(d time.Duration) Option {
	return func(ms *MetarStore) {
		if d > 0 {
			ms.retryInterval = d
		}
	}
}

// WithHistoryLimit sets how many reports are kept per station.
func WithHistoryLimit(n int) Option {
	return func(ms *MetarStore) {
		if n > 0 {
			ms.historyLimit = n
		}
	}
}

// WithLogger sets the logger for persistence errors.
func WithLogger(logger *slog.Logger) Option {
	return func(ms *MetarStore) { ms.logger = logger }
}

// MetarStore stores and updates all METAR data. It is safe for concurrent use.
type MetarStore struct {
	mu            sync.RWMutex
	cacheMu       sync.Mutex // orders cache writes and deletions
	stationList   []string
	stationData   map[string]*StationData
	prefs         Preferences
	cache         MetarCache
	staleAfter    time.Duration
	retryInterval time.Duration
	historyLimit  int
	logger        *slog.Logger
}

func newStore(prefs Preferences, opts []Option) *MetarStore {
	ms := &MetarStore{
		stationList:   []string{},
		stationData:   make(map[string]*StationData),
		prefs:         prefs,
		staleAfter:    DefaultStaleAfter,
		retryInterval: DefaultRetryInterval,
		historyLimit:  DefaultHistoryLimit,
		logger:        slog.Default(),
	}
	if cache, ok := prefs.(MetarCache); ok {
		ms.cache = cache
	}

	for _, opt := range opts {
		opt(ms)
	}
	ms.logger = ms.logger.With("component", "store")
	return ms
}

// New creates a store populated with the stations persisted in prefs. Stations with cached
// reports start out loaded, all others start out loading.
func New(prefs Preferences, opts ...Option) (*MetarStore, error) {
	ms := newStore(prefs, opts)

	stationIDs, err := prefs.LoadStations()
	if err != nil {
		return nil, fmt.Errorf("store.New: couldn't load station ids: %w", err)
	}

	for _, stationID := range stationIDs {
		normalized, normErr := avwx.NormalizeStationID(stationID)
		if normErr != nil {
			ms.logger.Warn("ignoring persisted station", slog.Any("error", normErr))
			continue
		}
		if _, exists := ms.stationData[normalized]; exists {
			continue
		}

		data := &StationData{StationID: normalized, LoadingState: Loading}
		if ms.cache != nil {
			metars, savedAt, cacheErr := ms.cache.LoadMetars(normalized)
			if cacheErr != nil {
				ms.logger.Warn("couldn't load cached reports",
					slog.String("station", normalized), slog.Any("error", cacheErr))
			} else if len(metars) > 0 {
				data.Metars = metars
				data.LastUpdated = savedAt
				data.LoadingState = Loaded
			}
		}

		ms.stationList = append(ms.stationList, normalized)
		ms.stationData[normalized] = data
	}

	return ms, nil
}

// NewWithData creates a store seeded with example data. The order of stations and data must
// match. Invalid and repeated station ids are skipped together with their data. The store
// persists to memory only.
func NewWithData(stations []string, data [][]avwx.Metar, at time.Time, opts ...Option) *MetarStore {
	ms := newStore(NewMemoryPreferences(), opts)

	for index, station := range stations {
		normalized, err := avwx.NormalizeStationID(station)
		if err != nil {
			ms.logger.Warn("ignoring example station", slog.Any("error", err))
			continue
		}
		if _, exists := ms.stationData[normalized]; exists {
			continue
		}

		var metars []avwx.Metar
		if index < len(data) {
			metars = data[index]
		}

		ms.stationList = append(ms.stationList, normalized)
		ms.stationData[normalized] = &StationData{
			StationID:    normalized,
			LoadingState: Loaded,
			LastUpdated:  at,
			LastAttempt:  at,
			Metars:       ms.limitHistory(metars),
		}
	}

	return ms
}

// AddStation adds a new station id for the store to track. It is fetched on the next refresh.
func (ms *MetarStore) AddStation(stationID string) (string, error) {
	normalized, err := avwx.NormalizeStationID(stationID)
	if err != nil {
		return "", fmt.Errorf("addStation: %w", err)
	}

	ms.mu.Lock()
	if _, exists := ms.stationData[normalized]; exists {
		ms.mu.Unlock()
		return "", fmt.Errorf("addStation: %w: %s", ErrDuplicateStation, normalized)
	}

	ms.stationList = append(ms.stationList, normalized)
	ms.stationData[normalized] = &StationData{StationID: normalized, LoadingState: Loading}
	stations := slices.Clone(ms.stationList)
	ms.mu.Unlock()

	return normalized, ms.saveStations(stations)
}

// RemoveStation removes a station and all its data.
func (ms *MetarStore) RemoveStation(stationID string) error {
	ms.mu.Lock()
	index := slices.Index(ms.stationList, stationID)
	if index < 0 {
		ms.mu.Unlock()
		return fmt.Errorf("removeStation: %w: %s", ErrStationIDDoesNotExist, stationID)
	}
	stations := ms.removeLocked(index)
	ms.mu.Unlock()

	return ms.afterRemove(stationID, stations)
}

// RemoveAt removes the station at the given list position.
func (ms *MetarStore) RemoveAt(index int) error {
	ms.mu.Lock()
	if index < 0 || index >= len(ms.stationList) {
		ms.mu.Unlock()
		return fmt.Errorf("removeAt: %w: %d", ErrIndexOutOfRange, index)
	}
	stationID := ms.stationList[index]
	stations := ms.removeLocked(index)
	ms.mu.Unlock()

	return ms.afterRemove(stationID, stations)
}

// removeLocked drops the station at index and returns a copy of the remaining list.
func (ms *MetarStore) removeLocked(index int) []string {
	stationID := ms.stationList[index]
	ms.stationList = slices.Delete(ms.stationList, index, index+1)
	delete(ms.stationData, stationID)
	return slices.Clone(ms.stationList)
}

func (ms *MetarStore) afterRemove(stationID string, stations []string) error {
	if ms.cache != nil {
		ms.cacheMu.Lock()
		if err := ms.cache.DeleteMetars(stationID); err != nil {
			ms.logger.Warn("couldn't delete cached reports",
				slog.String("station", stationID), slog.Any("error", err))
		}
		ms.cacheMu.Unlock()
	}

	return ms.saveStations(stations)
}

// MoveStation moves the station at position from to position to.
func (ms *MetarStore) MoveStation(from, to int) error {
	ms.mu.Lock()
	count := len(ms.stationList)
	if from < 0 || from >= count || to < 0 || to >= count {
		ms.mu.Unlock()
		return fmt.Errorf("moveStation: %w: %d -> %d", ErrIndexOutOfRange, from, to)
	}
	if from == to {
		ms.mu.Unlock()
		return nil
	}

	stationID := ms.stationList[from]
	ms.stationList = slices.Delete(ms.stationList, from, from+1)
	ms.stationList = slices.Insert(ms.stationList, to, stationID)
	stations := slices.Clone(ms.stationList)
	ms.mu.Unlock()

	return ms.saveStations(stations)
}

// StoreMetars stores new reports for a station and marks it loaded. A station that is not yet
// tracked is appended to the list.
func (ms *MetarStore) StoreMetars(stationID string, metars []avwx.Metar, at time.Time) error {
	return ms.InsertMetars(stationID, metars, at, -1)
}

// InsertMetars is StoreMetars with a list position for stations that are not yet tracked. A
// negative index appends.
func (ms *MetarStore) InsertMetars(stationID string, metars []avwx.Metar, at time.Time, index int) error {
	return ms.insertMetars(stationID, metars, at, index, true)
}

// UpdateMetars stores new reports for a station that is already tracked. Stations removed in the
// meantime yield ErrStationIDDoesNotExist.
func (ms *MetarStore) UpdateMetars(stationID string, metars []avwx.Metar, at time.Time) error {
	return ms.insertMetars(stationID, metars, at, -1, false)
}

func (ms *MetarStore) insertMetars(
	stationID string,
	metars []avwx.Metar,
	at time.Time,
	index int,
	allowNew bool,
) error {
	stationID, err := avwx.NormalizeStationID(stationID)
	if err != nil {
		return fmt.Errorf("insertMetars: %w", err)
	}

	ms.mu.Lock()
	data, exists := ms.stationData[stationID]
	if !exists && !allowNew {
		ms.mu.Unlock()
		return fmt.Errorf("updateMetars: %w: %s", ErrStationIDDoesNotExist, stationID)
	}
	if !exists {
		data = &StationData{StationID: stationID}
		ms.stationData[stationID] = data
		if index < 0 || index > len(ms.stationList) {
			ms.stationList = append(ms.stationList, stationID)
		} else {
			ms.stationList = slices.Insert(ms.stationList, index, stationID)
		}
	}

	data.Metars = ms.limitHistory(mergeMetars(metars, data.Metars))
	data.LastUpdated = at
	data.LastAttempt = at
	data.LoadingState = Loaded
	data.Err = nil

	stations := slices.Clone(ms.stationList)
	ms.mu.Unlock()

	ms.cacheMetars(stationID, data)

	if !exists {
		return ms.saveStations(stations)
	}
	return nil
}

// cacheMetars writes the reports of a station to the cache unless it was removed in the meantime.
func (ms *MetarStore) cacheMetars(stationID string, data *StationData) {
	if ms.cache == nil {
		return
	}

	ms.cacheMu.Lock()
	defer ms.cacheMu.Unlock()

	ms.mu.RLock()
	tracked := ms.stationData[stationID] == data
	history := slices.Clone(data.Metars)
	savedAt := data.LastUpdated
	ms.mu.RUnlock()
	if !tracked {
		return
	}

	if err := ms.cache.SaveMetars(stationID, history, savedAt); err != nil {
		ms.logger.Warn("couldn't cache reports",
			slog.String("station", stationID), slog.Any("error", err))
	}
}

// MarkFailed records a failed fetch attempt. Previously fetched reports are kept.
func (ms *MetarStore) MarkFailed(stationID string, fetchErr error, at time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	data, exists := ms.stationData[stationID]
	if !exists {
		return
	}

	data.LoadingState = Failed
	data.LastAttempt = at
	data.Err = fetchErr
}

// BeginFetch records a fetch attempt for the stations so they are not requested twice while the
// request is in flight.
func (ms *MetarStore) BeginFetch(stationIDs []string, at time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, stationID := range stationIDs {
		if data, exists := ms.stationData[stationID]; exists {
			data.LastAttempt = at
		}
	}
}

// Invalidate makes a station due for the next refresh regardless of its age.
func (ms *MetarStore) Invalidate(stationID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	data, exists := ms.stationData[stationID]
	if !exists {
		return fmt.Errorf("invalidate: %w: %s", ErrStationIDDoesNotExist, stationID)
	}

	data.LastUpdated = time.Time{}
	data.LastAttempt = time.Time{}
	if data.LoadingState == Failed {
		data.LoadingState = Loading
	}
	return nil
}

// StationsDue returns the stations which need a fetch at time now: stations whose data is older
// than the stale threshold or that have never loaded. Stations attempted within the retry
// interval are skipped.
func (ms *MetarStore) StationsDue(now time.Time) []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var due []string
	for _, stationID := range ms.stationList {
		data := ms.stationData[stationID]
		if !data.LastAttempt.IsZero() && now.Sub(data.LastAttempt) < ms.retryInterval {
			continue
		}

		if data.LoadingState != Loaded || now.Sub(data.LastUpdated) > ms.staleAfter {
			due = append(due, stationID)
		}
	}
	return due
}

// CurrentMetar returns the most recent report of a station.
func (ms *MetarStore) CurrentMetar(stationID string) (avwx.Metar, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, exists := ms.stationData[stationID]
	if !exists {
		return avwx.Metar{}, false
	}
	return data.Current()
}

// Station returns a copy of the data stored for one station.
func (ms *MetarStore) Station(stationID string) (StationData, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, exists := ms.stationData[stationID]
	if !exists {
		return StationData{}, false
	}
	return data.clone(), true
}

// StationIDs returns the ordered station list.
func (ms *MetarStore) StationIDs() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return slices.Clone(ms.stationList)
}

// Snapshot returns copies of all station data in list order.
func (ms *MetarStore) Snapshot() []StationData {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	snapshot := make([]StationData, 0, len(ms.stationList))
	for _, stationID := range ms.stationList {
		snapshot = append(snapshot, ms.stationData[stationID].clone())
	}
	return snapshot
}

// Len returns the number of tracked stations.
func (ms *MetarStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return len(ms.stationList)
}

func (ms *MetarStore) saveStations(stations []string) error {
	if err := ms.prefs.SaveStations(stations); err != nil {
		return fmt.Errorf("saveStations: %w", err)
	}
	return nil
}

func (ms *MetarStore) limitHistory(metars []avwx.Metar) []avwx.Metar {
	if len(metars) > ms.historyLimit {
		return metars[:ms.historyLimit]
	}
	return metars
}

// mergeMetars combines fresh and previously stored reports, newest first, without duplicates.
func mergeMetars(fresh, stored []avwx.Metar) []avwx.Metar {
	merged := make([]avwx.Metar, 0, len(fresh)+len(stored))
	seen := make(map[string]struct{}, len(fresh)+len(stored))

	for _, group := range [][]avwx.Metar{fresh, stored} {
		for _, metar := range group {
			key := metar.ObservationTime.String() + metar.RawText
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, metar)
		}
	}

	slices.SortStableFunc(merged, func(a, b avwx.Metar) int {
		return b.ObservationTime.Compare(a.ObservationTime)
	})
	return merged
}
