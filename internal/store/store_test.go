package store

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/micutio/metarwatch/internal/avwx"
)

var baseTime = time.Date(2020, 2, 26, 13, 48, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func metarAt(stationID string, observed time.Time, category avwx.FlightCategory) avwx.Metar {
	return avwx.Metar{
		StationID:       stationID,
		RawText:         stationID + " " + observed.Format("021504Z"),
		ObservationTime: observed,
		FlightCategory:  category,
	}
}

func TestNewLoadsPersistedStations(t *testing.T) {
	prefs := NewMemoryPreferences("KBWI", "kfme", "bad id", "KBWI")
	if err := prefs.SaveMetars("KFME", []avwx.Metar{metarAt("KFME", baseTime, avwx.VFR)}, baseTime); err != nil {
		t.Fatalf("SaveMetars() error = %v", err)
	}

	ms, err := New(prefs, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := ms.StationIDs(); !slices.Equal(got, []string{"KBWI", "KFME"}) {
		t.Errorf("StationIDs() = %v, want [KBWI KFME]", got)
	}

	bwi, _ := ms.Station("KBWI")
	if bwi.LoadingState != Loading {
		t.Errorf("KBWI LoadingState = %v, want loading", bwi.LoadingState)
	}

	fme, _ := ms.Station("KFME")
	if fme.LoadingState != Loaded || !fme.LastUpdated.Equal(baseTime) {
		t.Errorf("KFME = %v at %v, want loaded from cache", fme.LoadingState, fme.LastUpdated)
	}
}

func TestAddStation(t *testing.T) {
	prefs := NewMemoryPreferences()
	ms, err := New(prefs, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	id, err := ms.AddStation(" kbwi ")
	if err != nil || id != "KBWI" {
		t.Fatalf("AddStation() = %q, %v; want KBWI", id, err)
	}

	if _, err := ms.AddStation("KBWI"); !errors.Is(err, ErrDuplicateStation) {
		t.Errorf("AddStation(duplicate) error = %v, want ErrDuplicateStation", err)
	}
	if _, err := ms.AddStation("K-BWI"); !errors.Is(err, avwx.ErrInvalidStationID) {
		t.Errorf("AddStation(invalid) error = %v, want ErrInvalidStationID", err)
	}

	persisted, _ := prefs.LoadStations()
	if !slices.Equal(persisted, []string{"KBWI"}) {
		t.Errorf("persisted stations = %v, want [KBWI]", persisted)
	}

	if _, ok := ms.CurrentMetar("KBWI"); ok {
		t.Error("CurrentMetar() of a station that never loaded returned a report")
	}
}

func TestRemoveAndMoveStation(t *testing.T) {
	prefs := NewMemoryPreferences("KBWI", "KFME", "KDCA", "KIAD")
	ms, err := New(prefs, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := ms.RemoveStation("KFME"); err != nil {
		t.Fatalf("RemoveStation() error = %v", err)
	}
	if err := ms.RemoveStation("KFME"); !errors.Is(err, ErrStationIDDoesNotExist) {
		t.Errorf("RemoveStation(again) error = %v, want ErrStationIDDoesNotExist", err)
	}

	if err := ms.MoveStation(2, 0); err != nil {
		t.Fatalf("MoveStation() error = %v", err)
	}
	if err := ms.MoveStation(0, 5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("MoveStation(out of range) error = %v, want ErrIndexOutOfRange", err)
	}

	if err := ms.RemoveAt(1); err != nil {
		t.Fatalf("RemoveAt() error = %v", err)
	}
	if err := ms.RemoveAt(7); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("RemoveAt(out of range) error = %v, want ErrIndexOutOfRange", err)
	}

	expected := []string{"KIAD", "KDCA"}
	if got := ms.StationIDs(); !slices.Equal(got, expected) {
		t.Errorf("StationIDs() = %v, want %v", got, expected)
	}
	if persisted, _ := prefs.LoadStations(); !slices.Equal(persisted, expected) {
		t.Errorf("persisted stations = %v, want %v", persisted, expected)
	}
	if _, ok := ms.Station("KBWI"); ok {
		t.Error("KBWI data still present after removal")
	}
}

func TestStoreMetars(t *testing.T) {
	prefs := NewMemoryPreferences("KBWI")
	ms, err := New(prefs, WithHistoryLimit(3), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	first := []avwx.Metar{
		metarAt("KBWI", baseTime, avwx.VFR),
		metarAt("KBWI", baseTime.Add(-time.Hour), avwx.VFR),
	}
	if err := ms.StoreMetars("KBWI", first, baseTime); err != nil {
		t.Fatalf("StoreMetars() error = %v", err)
	}

	second := []avwx.Metar{
		metarAt("KBWI", baseTime.Add(time.Hour), avwx.IFR),
		metarAt("KBWI", baseTime, avwx.VFR),
		metarAt("KBWI", baseTime.Add(-2*time.Hour), avwx.VFR),
	}
	if err := ms.StoreMetars("KBWI", second, baseTime.Add(time.Hour)); err != nil {
		t.Fatalf("StoreMetars() error = %v", err)
	}

	data, _ := ms.Station("KBWI")
	if data.LoadingState != Loaded {
		t.Errorf("LoadingState = %v, want loaded", data.LoadingState)
	}
	if len(data.Metars) != 3 {
		t.Fatalf("kept %d reports, want 3", len(data.Metars))
	}
	if !data.Metars[0].ObservationTime.Equal(baseTime.Add(time.Hour)) ||
		!data.Metars[2].ObservationTime.Equal(baseTime.Add(-time.Hour)) {
		t.Errorf("history not merged newest first: %v", data.Metars)
	}

	current, ok := ms.CurrentMetar("KBWI")
	if !ok || current.FlightCategory != avwx.IFR {
		t.Errorf("CurrentMetar() = %v, %v; want IFR report", current.FlightCategory, ok)
	}

	cached, savedAt, _ := prefs.LoadMetars("KBWI")
	if len(cached) != 3 || !savedAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("cache holds %d reports saved at %v", len(cached), savedAt)
	}
}

func TestInsertMetarsForUnknownStation(t *testing.T) {
	ms := NewWithData([]string{"KBWI", "KDCA"}, nil, baseTime, WithLogger(quietLogger()))

	if err := ms.InsertMetars("KFME", []avwx.Metar{metarAt("KFME", baseTime, avwx.VFR)}, baseTime, 1); err != nil {
		t.Fatalf("InsertMetars() error = %v", err)
	}
	if err := ms.StoreMetars("KIAD", nil, baseTime); err != nil {
		t.Fatalf("StoreMetars() error = %v", err)
	}

	expected := []string{"KBWI", "KFME", "KDCA", "KIAD"}
	if got := ms.StationIDs(); !slices.Equal(got, expected) {
		t.Errorf("StationIDs() = %v, want %v", got, expected)
	}
}

func TestStationsDue(t *testing.T) {
	ms := NewWithData(
		[]string{"KBWI", "KFME"},
		[][]avwx.Metar{
			{metarAt("KBWI", baseTime, avwx.VFR)},
			{metarAt("KFME", baseTime, avwx.VFR)},
		},
		baseTime,
		WithLogger(quietLogger()),
	)
	if _, err := ms.AddStation("KDCA"); err != nil {
		t.Fatalf("AddStation() error = %v", err)
	}

	if got := ms.StationsDue(baseTime.Add(10 * time.Second)); !slices.Equal(got, []string{"KDCA"}) {
		t.Errorf("StationsDue(+10s) = %v, want [KDCA]", got)
	}

	// A fetch in flight is not started twice.
	ms.BeginFetch([]string{"KDCA"}, baseTime.Add(10*time.Second))
	if got := ms.StationsDue(baseTime.Add(20 * time.Second)); len(got) != 0 {
		t.Errorf("StationsDue(+20s) = %v, want none", got)
	}

	// Exactly at the threshold nothing is stale yet.
	ms.MarkFailed("KDCA", avwx.ErrStationNotFound, baseTime.Add(30*time.Minute))
	if got := ms.StationsDue(baseTime.Add(30 * time.Minute)); len(got) != 0 {
		t.Errorf("StationsDue(+30m) = %v, want none", got)
	}

	expected := []string{"KBWI", "KFME", "KDCA"}
	if got := ms.StationsDue(baseTime.Add(31 * time.Minute)); !slices.Equal(got, expected) {
		t.Errorf("StationsDue(+31m) = %v, want %v", got, expected)
	}

	if err := ms.StoreMetars("KFME", []avwx.Metar{metarAt("KFME", baseTime.Add(30*time.Minute), avwx.VFR)},
		baseTime.Add(31*time.Minute)); err != nil {
		t.Fatalf("StoreMetars() error = %v", err)
	}
	if got := ms.StationsDue(baseTime.Add(32 * time.Minute)); !slices.Equal(got, []string{"KBWI", "KDCA"}) {
		t.Errorf("StationsDue(+32m) = %v, want [KBWI KDCA]", got)
	}
}

func TestMarkFailedKeepsData(t *testing.T) {
	ms := NewWithData([]string{"KBWI"}, [][]avwx.Metar{{metarAt("KBWI", baseTime, avwx.MVFR)}}, baseTime)

	fetchErr := errors.New("boom")
	ms.MarkFailed("KBWI", fetchErr, baseTime.Add(time.Hour))
	ms.MarkFailed("KXXX", fetchErr, baseTime.Add(time.Hour))

	data, _ := ms.Station("KBWI")
	if data.LoadingState != Failed || !errors.Is(data.Err, fetchErr) {
		t.Errorf("state = %v err = %v, want failed/boom", data.LoadingState, data.Err)
	}
	if current, ok := data.Current(); !ok || current.FlightCategory != avwx.MVFR {
		t.Errorf("previous report lost after failure")
	}
	if ms.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ms.Len())
	}
}

func TestInvalidate(t *testing.T) {
	ms := NewWithData([]string{"KBWI"}, [][]avwx.Metar{{metarAt("KBWI", baseTime, avwx.VFR)}}, baseTime)

	if err := ms.Invalidate("KBWI"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if got := ms.StationsDue(baseTime.Add(time.Second)); !slices.Equal(got, []string{"KBWI"}) {
		t.Errorf("StationsDue() after Invalidate = %v, want [KBWI]", got)
	}
	if err := ms.Invalidate("KXXX"); !errors.Is(err, ErrStationIDDoesNotExist) {
		t.Errorf("Invalidate(unknown) error = %v, want ErrStationIDDoesNotExist", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ms := NewWithData([]string{"KBWI"}, [][]avwx.Metar{{metarAt("KBWI", baseTime, avwx.VFR)}}, baseTime)

	snapshot := ms.Snapshot()
	snapshot[0].Metars[0].FlightCategory = avwx.LIFR

	if current, _ := ms.CurrentMetar("KBWI"); current.FlightCategory != avwx.VFR {
		t.Errorf("mutating a snapshot changed the store")
	}
}

func TestUpdateMetarsSkipsRemovedStation(t *testing.T) {
	ms := NewWithData([]string{"KBWI"}, nil, baseTime)

	err := ms.UpdateMetars("KFME", []avwx.Metar{metarAt("KFME", baseTime, avwx.VFR)}, baseTime)
	if !errors.Is(err, ErrStationIDDoesNotExist) {
		t.Errorf("UpdateMetars(untracked) error = %v, want ErrStationIDDoesNotExist", err)
	}
	if ms.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ms.Len())
	}

	if err := ms.UpdateMetars("KBWI", []avwx.Metar{metarAt("KBWI", baseTime, avwx.IFR)}, baseTime); err != nil {
		t.Fatalf("UpdateMetars() error = %v", err)
	}
	if current, ok := ms.CurrentMetar("KBWI"); !ok || current.FlightCategory != avwx.IFR {
		t.Errorf("CurrentMetar() = %v, %v", current.FlightCategory, ok)
	}
}

func TestNewWithDataSkipsRepeatedStations(t *testing.T) {
	ms := NewWithData(
		[]string{"KBWI", "kbwi", "bad id", " kfme"},
		[][]avwx.Metar{
			{metarAt("KBWI", baseTime, avwx.VFR)},
			{metarAt("KBWI", baseTime, avwx.LIFR)},
			nil,
			{metarAt("KFME", baseTime, avwx.IFR)},
		},
		baseTime,
		WithLogger(quietLogger()),
	)

	if got := ms.StationIDs(); !slices.Equal(got, []string{"KBWI", "KFME"}) {
		t.Errorf("StationIDs() = %v, want [KBWI KFME]", got)
	}
	if got := len(ms.Snapshot()); got != ms.Len() {
		t.Errorf("Snapshot() holds %d stations, Len() = %d", got, ms.Len())
	}
	if current, _ := ms.CurrentMetar("KBWI"); current.FlightCategory != avwx.VFR {
		t.Errorf("KBWI category = %v, want the first entry's VFR", current.FlightCategory)
	}
	if current, _ := ms.CurrentMetar("KFME"); current.FlightCategory != avwx.IFR {
		t.Errorf("KFME category = %v, want IFR", current.FlightCategory)
	}
}

func TestStoreMetarsNormalizesStationID(t *testing.T) {
	ms := NewWithData([]string{"KBWI"}, nil, baseTime, WithLogger(quietLogger()))

	if err := ms.StoreMetars(" kbwi", []avwx.Metar{metarAt("KBWI", baseTime, avwx.MVFR)}, baseTime); err != nil {
		t.Fatalf("StoreMetars() error = %v", err)
	}
	if got := ms.StationIDs(); !slices.Equal(got, []string{"KBWI"}) {
		t.Errorf("StationIDs() = %v, want [KBWI]", got)
	}
	if current, _ := ms.CurrentMetar("KBWI"); current.FlightCategory != avwx.MVFR {
		t.Errorf("CurrentMetar() category = %v, want MVFR", current.FlightCategory)
	}

	err := ms.StoreMetars("K-BWI", nil, baseTime)
	if !errors.Is(err, avwx.ErrInvalidStationID) {
		t.Errorf("StoreMetars(invalid) error = %v, want ErrInvalidStationID", err)
	}
	if ms.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ms.Len())
	}
}

func TestRetryIntervalStaysPositive(t *testing.T) {
	ms := NewWithData([]string{"KBWI"}, nil, baseTime, WithRetryInterval(0), WithLogger(quietLogger()))
	if err := ms.Invalidate("KBWI"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	now := baseTime.Add(time.Hour)
	ms.BeginFetch(ms.StationsDue(now), now)
	if got := ms.StationsDue(now); len(got) != 0 {
		t.Errorf("StationsDue() while in flight = %v, want none", got)
	}
}

func TestRemovedStationStaysOutOfCache(t *testing.T) {
	prefs := NewMemoryPreferences("KBWI")
	ms, err := New(prefs, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := ms.UpdateMetars("KBWI", []avwx.Metar{metarAt("KBWI", baseTime, avwx.VFR)}, baseTime); err != nil {
		t.Fatalf("UpdateMetars() error = %v", err)
	}

	// A cache write that lost the race against the removal must not bring the row back.
	ms.mu.RLock()
	data := ms.stationData["KBWI"]
	ms.mu.RUnlock()
	if err := ms.RemoveStation("KBWI"); err != nil {
		t.Fatalf("RemoveStation() error = %v", err)
	}
	ms.cacheMetars("KBWI", data)

	if cached, _, _ := prefs.LoadMetars("KBWI"); len(cached) != 0 {
		t.Errorf("cache holds %d reports of a removed station", len(cached))
	}
}

func TestConcurrentUpdateAndRemove(t *testing.T) {
	for range 50 {
		prefs := NewMemoryPreferences("KBWI")
		ms, err := New(prefs, WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = ms.UpdateMetars("KBWI", []avwx.Metar{metarAt("KBWI", baseTime, avwx.VFR)}, baseTime)
		}()
		go func() {
			defer wg.Done()
			_ = ms.RemoveStation("KBWI")
		}()
		wg.Wait()

		if cached, _, _ := prefs.LoadMetars("KBWI"); ms.Len() == 0 && len(cached) != 0 {
			t.Fatal("cache holds reports of a removed station")
		}
	}
}
