package tuiapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/micutio/metarwatch/internal/format"
	"github.com/micutio/metarwatch/internal/geo"
	"github.com/micutio/metarwatch/internal/refresh"
	"github.com/micutio/metarwatch/internal/store"
)

// cardsHeight is the number of lines below the table used by the cards and the help line.
const cardsHeight = 14

// rowView carries what is needed to render table rows.
type rowView struct {
	units format.Units
	home  geo.Coordinates
	now   time.Time
}

// Model implements the bubbletea.Model interface, which requires three methods:
// - Init() Cmd
// - Update(Msg) (Model, Cmd)
// - View() string
// This forms the base for the TUI app.
type model struct {
	ctx             context.Context
	appName         string
	width           int
	height          int
	state           uiState
	baseStyle       lipgloss.Style
	viewStyle       lipgloss.Style
	theme           Theme
	tableStyle      table.Styles
	stationTbl      autoFormatTable
	stationInput    textinput.Model
	store           *store.MetarStore
	refresher       *refresh.Refresher
	units           format.Units
	home            geo.Coordinates
	refreshInterval time.Duration
	now             time.Time
	statusMsg       string
	logger          *slog.Logger
}

func newModel(ctx context.Context, appName string, options Options) *model {
	theme := defaultTheme()
	tableStyle := table.DefaultStyles()
	tableStyle.Selected = lipgloss.NewStyle().Background(theme.Highlight)

	stationInput := textinput.New()
	stationInput.Placeholder = "KBWI"
	stationInput.CharLimit = 4
	stationInput.Width = 6

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = refresh.DefaultInterval
	}

	m := &model{
		ctx:             ctx,
		appName:         appName,
		state:           stationList,
		baseStyle:       lipgloss.NewStyle(),
		viewStyle:       lipgloss.NewStyle(),
		theme:           theme,
		tableStyle:      tableStyle,
		stationTbl:      newStationTable(tableStyle, !options.Home.IsZero()),
		stationInput:    stationInput,
		store:           options.Store,
		refresher:       options.Refresher,
		units:           options.Units,
		home:            options.Home,
		refreshInterval: interval,
		now:             time.Now(),
		logger:          logger.With("component", "tuiapp"),
	}
	m.syncRows()
	return m
}

// Init fetches all stations right away and starts the ui and refresh ticks.
func (m *model) Init() tea.Cmd {
	return tea.Batch(updateTick(), refreshTick(m.refreshInterval), refreshCmd(m.ctx, m.refresher))
}

// Update takes a tea.Msg as input and uses a type switch to handle different types of messages.
// Each case in the switch statement corresponds to a specific message type.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) { //nolint:ireturn // required by interface
	switch thisMsg := msg.(type) {
	// message is sent when the window size changes
	// save to reflect the new dimensions of the terminal window.
	case tea.WindowSizeMsg:
		m.height = thisMsg.Height
		m.width = thisMsg.Width
		if err := m.stationTbl.resize(m.width - 2); err != nil {
			m.logger.Error("unable to resize station table", slog.Any("error", err))
		}
		m.stationTbl.SetHeight(max(m.height-cardsHeight-4, 3))

	// message is sent when a key is pressed.
	case tea.KeyMsg:
		if m.state == addStation {
			return m.updateAddStation(thisMsg)
		}
		return m.updateStationList(thisMsg)

	case UpdateTickMsg:
		m.now = time.Time(thisMsg)
		m.syncRows()
		return m, updateTick()

	case RefreshTickMsg:
		return m, tea.Batch(refreshCmd(m.ctx, m.refresher), refreshTick(m.refreshInterval))

	case RefreshResultMsg:
		m.handleUpdates(thisMsg)
		m.syncRows()
	}

	// If the message type does not match any of the handled cases, the model is returned unchanged,
	// and no new command is issued.
	return m, nil
}

func (m *model) updateStationList(msg tea.KeyMsg) (tea.Model, tea.Cmd) { //nolint:ireturn // see Update
	cursor := m.stationTbl.table.Cursor()

	switch msg.String() {
	// Opens the add station dialog.
	case "a":
		m.state = addStation
		m.stationInput.SetValue("")
		return m, m.stationInput.Focus()
	// Removes the selected station.
	case "d", "x":
		if m.store.Len() == 0 {
			return m, nil
		}
		stationID := m.selectedStationID()
		if err := m.store.RemoveAt(cursor); err != nil {
			m.setStatus(fmt.Sprintf("unable to remove %s: %v", stationID, err))
		} else {
			m.setStatus("removed " + stationID)
		}
		m.syncRows()
	// Moves the selected station up or down the list.
	case "K", "J":
		target := cursor - 1
		if msg.String() == "J" {
			target = cursor + 1
		}
		if target < 0 || target >= m.store.Len() {
			return m, nil
		}
		if err := m.store.MoveStation(cursor, target); err != nil {
			m.setStatus(err.Error())
			return m, nil
		}
		m.syncRows()
		m.stationTbl.table.SetCursor(target)
	// Fetches the selected station on the next refresh, which starts right away.
	case "r":
		stationID := m.selectedStationID()
		if stationID == "" {
			return m, nil
		}
		if err := m.store.Invalidate(stationID); err != nil {
			m.setStatus(err.Error())
			return m, nil
		}
		m.setStatus("refreshing " + stationID)
		m.syncRows()
		return m, refreshCmd(m.ctx, m.refresher)
	// Toggles the history of the selected station.
	case "enter":
		if m.state == stationDetails {
			m.state = stationList
		} else if m.selectedStationID() != "" {
			m.state = stationDetails
		}
	case "esc":
		m.state = stationList
	// Moves the focus up in the station table.
	case "up", "k":
		m.stationTbl.table.MoveUp(1)
	// Moves the focus down in the station table.
	case "down", "j":
		m.stationTbl.table.MoveDown(1)
	// Quits the program by returning the tea.Quit command.
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	return m, nil
}

func (m *model) updateAddStation(msg tea.KeyMsg) (tea.Model, tea.Cmd) { //nolint:ireturn // see Update
	switch msg.String() {
	case "enter":
		stationID, err := m.store.AddStation(m.stationInput.Value())
		switch {
		case errors.Is(err, store.ErrDuplicateStation):
			m.setStatus(fmt.Sprintf("%s is already on the list", strings.ToUpper(m.stationInput.Value())))
			return m, nil
		case err != nil:
			m.setStatus(fmt.Sprintf("unable to add %q: %v", m.stationInput.Value(), err))
			return m, nil
		}

		m.closeAddStation()
		m.setStatus("added " + stationID)
		m.syncRows()
		m.stationTbl.table.SetCursor(m.store.Len() - 1)
		return m, refreshCmd(m.ctx, m.refresher)
	case "esc":
		m.closeAddStation()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.stationInput, cmd = m.stationInput.Update(msg)
	return m, cmd
}

func (m *model) closeAddStation() {
	m.state = stationList
	m.stationInput.Blur()
	m.stationInput.SetValue("")
}

func (m *model) handleUpdates(updates []refresh.Update) {
	var notes []string
	for _, update := range updates {
		switch {
		case update.Err != nil:
			m.logger.Warn("station refresh failed",
				slog.String("station", update.StationID), slog.Any("error", update.Err))
			notes = append(notes, update.StationID+" failed")
		case update.CategoryChanged():
			m.logger.Info("flight category changed",
				slog.String("station", update.StationID),
				slog.String("from", update.Previous.String()),
				slog.String("to", update.Current.String()))
			notes = append(notes, fmt.Sprintf("%s %s → %s", update.StationID, update.Previous, update.Current))
		}
	}
	if len(notes) > 0 {
		m.setStatus(strings.Join(notes, ", "))
	}
}

func (m *model) setStatus(status string) {
	m.statusMsg = status
}

// syncRows rebuilds the table rows from the store and keeps the cursor on the list.
func (m *model) syncRows() {
	snapshot := m.store.Snapshot()
	view := rowView{units: m.units, home: m.home, now: m.now}

	rows := make([]table.Row, 0, len(snapshot))
	for i := range snapshot {
		rows = append(rows, stationToRow(&snapshot[i], view))
	}
	m.stationTbl.table.SetRows(rows)

	if cursor := m.stationTbl.table.Cursor(); len(rows) > 0 && (cursor < 0 || cursor >= len(rows)) {
		m.stationTbl.table.SetCursor(min(max(cursor, 0), len(rows)-1))
	}
	if len(rows) == 0 && m.state == stationDetails {
		m.state = stationList
	}
}

func (m *model) selectedStationID() string {
	row := m.stationTbl.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}
