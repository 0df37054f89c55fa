// Package notify reports fetch results on the console and raises desktop notifications when a
// station changes its flight category.
package notify

import (
	"fmt"
	"io"
	"log" //nolint:depguard // plain console lines, not log records
	"slices"
	"strings"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/micutio/metarwatch/internal/avwx"
	"github.com/micutio/metarwatch/internal/format"
	"github.com/micutio/metarwatch/internal/refresh"
	"github.com/micutio/metarwatch/internal/store"
)

type desktopNotifyFunc func(title string, message string, icon string) error

type Notify struct {
	Stdout  log.Logger
	units   format.Units
	desktop desktopNotifyFunc // nil when desktop notifications are off
	now     func() time.Time
}

// NewNotify creates a notifier writing console lines to consoleOut. Desktop notifications are
// raised only if enabled.
func NewNotify(appName string, consoleOut io.Writer, units format.Units, enabled bool) *Notify {
	beeep.AppName = appName //nolint:reassign // This is the only way to set app name in beeep.

	notify := &Notify{
		Stdout: *log.New(consoleOut, "", 0),
		units:  units,
		now:    time.Now,
	}
	if enabled {
		notify.desktop = func(title string, message string, icon string) error {
			return beeep.Notify(title, message, icon)
		}
	}
	return notify
}

// EmitUpdates prints one summary line per successful update and a notice for each failure and
// category change.
func (notify *Notify) EmitUpdates(updates []refresh.Update) {
	now := notify.now()
	for _, update := range updates {
		if update.Err != nil {
			notify.Stdout.Printf("%-4s fetch failed: %v\n", update.StationID, update.Err)
			continue
		}

		notify.Stdout.Println(format.Summary(&update.Metar, notify.units, now))
		if update.CategoryChanged() {
			notify.Stdout.Printf("%-4s flight category changed from %s to %s\n",
				update.StationID, update.Previous, update.Current)
			notify.notifyCategoryChange(update)
		}
	}
}

// PrintSummary prints the current report of every station.
func (notify *Notify) PrintSummary(snapshot []store.StationData) {
	now := notify.now()
	notify.Stdout.Println("=== Summary ===")
	for i := range snapshot {
		metar, ok := snapshot[i].Current()
		if !ok {
			notify.Stdout.Printf("%-4s %s\n", snapshot[i].StationID, snapshot[i].LoadingState)
			continue
		}
		notify.Stdout.Println(format.Summary(&metar, notify.units, now))
	}

	counts := make([]string, 0, 5)
	for _, count := range countCategories(snapshot) {
		counts = append(counts, fmt.Sprintf("%s %d", count.Category, count.Count))
	}
	if len(counts) > 0 {
		notify.Stdout.Println("Categories: " + strings.Join(counts, ", "))
	}
	notify.Stdout.Println("=== End Summary ===")
}

type CategoryCount struct {
	Category avwx.FlightCategory
	Count    int
}

// countCategories tallies the current flight categories, most common first. Ties are ordered
// from VFR to LIFR.
func countCategories(snapshot []store.StationData) []CategoryCount {
	tally := make(map[avwx.FlightCategory]int)
	for i := range snapshot {
		if metar, ok := snapshot[i].Current(); ok {
			tally[metar.FlightCategory]++
		}
	}

	counts := make([]CategoryCount, 0, len(tally))
	for category, count := range tally {
		counts = append(counts, CategoryCount{Category: category, Count: count})
	}
	slices.SortFunc(counts, func(a, b CategoryCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return a.Category.Severity() - b.Category.Severity()
	})
	return counts
}

func (notify *Notify) notifyCategoryChange(update refresh.Update) {
	if notify.desktop == nil {
		return
	}

	worse := update.Current.Severity() > update.Previous.Severity()
	msgTitle := fmt.Sprintf("%s is now %s", update.StationID, update.Current)
	if worse {
		msgTitle = fmt.Sprintf("%s dropped to %s", update.StationID, update.Current)
	}
	msgBody := fmt.Sprintf("%s -> %s\n%s", update.Previous, update.Current, update.Metar.RawText)

	if err := notify.desktop(msgTitle, msgBody, ""); err != nil {
		notify.Stdout.Printf("desktop notification failed: %v\n", err)
	}
}
