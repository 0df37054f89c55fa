// Package tuiapp provides the TUI app which displays the watched stations, refreshes them
// continuously and can be interacted with.
// Layout:
// +-------------------------------------------------+
// | metarwatch  3 stations  1:48PM  status          |
// |  ___________________________________________    |
// | | station table                             |   |
// | | entry 0                                   |   |
// | | ...                                       |   |
// |  -------------------------------------------    |
// |  ________________     ____________________      |
// | | overview card  |   | raw METAR history  |     |
// |  ----------------     --------------------      |
// | key help                                        |
// +-------------------------------------------------+
// .
package tuiapp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/micutio/metarwatch/internal/avwx"
	"github.com/micutio/metarwatch/internal/format"
	"github.com/micutio/metarwatch/internal/geo"
	"github.com/micutio/metarwatch/internal/refresh"
	"github.com/micutio/metarwatch/internal/store"
)

// Options holds everything the dashboard needs to run.
type Options struct {
	Store           *store.MetarStore
	Refresher       *refresh.Refresher
	Units           format.Units
	Home            geo.Coordinates // zero hides the distance column
	RefreshInterval time.Duration
	Logger          *slog.Logger
}

// Run starts the dashboard and blocks until the user quits.
func Run(appName string, options Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newModel(ctx, appName, options)

	// Create a new Bubble Tea program with the model and enable alternate screen
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tuiapp.Run: %w", err)
	}
	return nil
}

type Theme struct {
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Red       lipgloss.AdaptiveColor
	VFR       lipgloss.AdaptiveColor
	MVFR      lipgloss.AdaptiveColor
	IFR       lipgloss.AdaptiveColor
	LIFR      lipgloss.AdaptiveColor
}

func defaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"},
		Secondary: lipgloss.AdaptiveColor{Light: "#969B86", Dark: "#696969"},
		Highlight: lipgloss.AdaptiveColor{Light: "#8b2def", Dark: "#8b2def"},
		Border:    lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"},
		Red:       lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF0000"},
		VFR:       lipgloss.AdaptiveColor{Light: "#008000", Dark: "#00FF00"},
		MVFR:      lipgloss.AdaptiveColor{Light: "#B22222", Dark: "#F08080"},
		IFR:       lipgloss.AdaptiveColor{Light: "#9400D3", Dark: "#DDA0DD"},
		LIFR:      lipgloss.AdaptiveColor{Light: "#0000FF", Dark: "#1E90FF"},
	}
}

// categoryColor returns the badge color of a flight category.
func (theme Theme) categoryColor(category avwx.FlightCategory) lipgloss.AdaptiveColor {
	switch category {
	case avwx.VFR:
		return theme.VFR
	case avwx.MVFR:
		return theme.MVFR
	case avwx.IFR:
		return theme.IFR
	case avwx.LIFR:
		return theme.LIFR
	case avwx.Unknown:
	}
	return theme.Secondary
}
