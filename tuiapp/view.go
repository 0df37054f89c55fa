package tuiapp

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/micutio/metarwatch/internal/avwx"
	"github.com/micutio/metarwatch/internal/format"
	"github.com/micutio/metarwatch/internal/geo"
	"github.com/micutio/metarwatch/internal/store"
)

const (
	overviewWidth = 44
	historyLines  = 4
)

func (m *model) View() string {
	// Sets the width of the column to the width of the terminal (m.width) and adds padding of 1 unit
	// on the top.
	column := m.baseStyle.Width(m.width).Padding(1, 0, 0, 0).Render

	var lower string
	switch m.state {
	case addStation:
		lower = m.viewAddStation()
	case stationDetails:
		lower = m.viewHistory(true)
	case stationList:
		lower = lipgloss.JoinHorizontal(lipgloss.Top, m.viewOverview(), m.viewHistory(false))
	}

	return m.baseStyle.
		Width(m.width).
		Height(m.height).
		Render(
			lipgloss.JoinVertical(lipgloss.Left,
				m.viewHeader(),
				column(m.viewStations()),
				column(lower),
				m.viewHelp(),
			),
		)
}

func (m *model) viewHeader() string {
	title := m.baseStyle.Bold(true).Foreground(m.theme.Highlight).Render(m.appName)
	info := fmt.Sprintf("%d stations  %s", m.store.Len(), format.ClockTime(m.now))
	status := m.baseStyle.Foreground(m.theme.Secondary).Render(m.statusMsg)
	return strings.Join([]string{title, info, status}, "  ")
}

func (m *model) viewStations() string {
	if m.store.Len() == 0 {
		return m.card().Render("No stations yet, press 'a' to add one.")
	}
	return m.viewStyle.
		Border(lipgloss.NormalBorder()).
		BorderForeground(m.theme.Border).
		Render(m.stationTbl.table.View())
}

func (m *model) card() lipgloss.Style {
	return m.baseStyle.
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.Border).
		Padding(0, 1)
}

// badge renders the flight category on its category color.
func (m *model) badge(category avwx.FlightCategory) string {
	return m.baseStyle.
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#000000"}).
		Background(m.theme.categoryColor(category)).
		Render(category.String())
}

func (m *model) selectedStation() (store.StationData, bool) {
	stationID := m.selectedStationID()
	if stationID == "" {
		return store.StationData{}, false
	}
	return m.store.Station(stationID)
}

func (m *model) viewOverview() string {
	data, ok := m.selectedStation()
	if !ok {
		return ""
	}

	// Helper function that formats a key-value pair.
	listItem := func(key string, value string) string {
		listItemKey := m.baseStyle.Width(6).Foreground(m.theme.Secondary).Render(key)
		return listItemKey + value
	}

	metar, hasMetar := data.Current()
	if !hasMetar {
		status := "loading..."
		if data.LoadingState == store.Failed {
			status = m.baseStyle.Foreground(m.theme.Red).Render(fmt.Sprintf("failed: %v", data.Err))
		}
		return m.card().Width(overviewWidth).Render(
			lipgloss.JoinVertical(lipgloss.Left, m.badge(avwx.Unknown)+" "+data.StationID, status),
		)
	}

	title := m.badge(metar.FlightCategory) + " " + m.baseStyle.Bold(true).Render(metar.StationID)
	if metar.Name != "" {
		title += " " + metar.Name
	}

	temp, dew := format.TemperatureAndDewpoint(&metar, m.units.Temperature)
	lines := []string{
		title,
		listItem("Obs", fmt.Sprintf("%s (%s)",
			format.ClockTime(metar.ObservationTime),
			format.RelativeTime(metar.ObservationTime, m.now))),
		listItem("Wind", fmt.Sprintf("%s %s from %s",
			format.WindArrow(&metar), format.WindInUnits(&metar, m.units), format.WindFrom(&metar))),
		listItem("Vis", format.Visibility(&metar)),
		listItem("Sky", format.SkyConditions(&metar)),
		listItem("Temp", fmt.Sprintf("%s  dew %s", temp, dew)),
		listItem("Alt", format.Altimeter(metar.Altimeter, m.units.Altimeter)),
	}
	if metar.WxString != "" {
		lines = append(lines, listItem("Wx", metar.WxString))
	}

	station := geo.NewCoordinates(metar.Latitude, metar.Longitude)
	if !m.home.IsZero() && !station.IsZero() {
		distance := geo.Between(m.home, station)
		lines = append(lines, listItem("Dist", fmt.Sprintf("%.0f nm %s",
			distance.NauticalMiles(), geo.CompassPoint(geo.Bearing(m.home, station)))))
	}

	lines = append(lines, m.baseStyle.Foreground(m.theme.Secondary).Render(
		"updated "+format.RelativeTime(data.LastUpdated, m.now)))
	if data.LoadingState == store.Failed {
		lines = append(lines, m.baseStyle.Foreground(m.theme.Red).Render(fmt.Sprintf("last fetch failed: %v", data.Err)))
	}

	return m.card().Width(overviewWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// viewHistory renders the raw text of the latest reports, or of all kept reports when full.
func (m *model) viewHistory(full bool) string {
	data, ok := m.selectedStation()
	if !ok || len(data.Metars) == 0 {
		return ""
	}

	metars := data.Metars
	if !full && len(metars) > historyLines {
		metars = metars[:historyLines]
	}

	width := max(m.width-overviewWidth-6, 20)
	if full {
		width = max(m.width-4, 20)
	}

	header := m.baseStyle.Bold(true).Render("Raw METAR")
	lines := []string{header}
	for i := range metars {
		line := metars[i].RawText
		if i > 0 {
			line = m.baseStyle.Foreground(m.theme.Secondary).Render(line)
		}
		lines = append(lines, line)
	}

	return m.card().Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *model) viewAddStation() string {
	return m.card().
		BorderForeground(m.theme.Highlight).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			m.baseStyle.Bold(true).Render("Add station"),
			m.stationInput.View(),
			m.baseStyle.Foreground(m.theme.Secondary).Render("enter to add, esc to cancel"),
		))
}

func (m *model) viewHelp() string {
	help := "a add • d remove • K/J move • r refresh • enter history • q quit"
	if m.state == addStation {
		help = "enter add • esc cancel"
	}
	return m.baseStyle.Foreground(m.theme.Secondary).Render(help)
}
