package tuiapp

import (
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/table"
	"github.com/micutio/metarwatch/internal/format"
	"github.com/micutio/metarwatch/internal/geo"
	"github.com/micutio/metarwatch/internal/store"
)

// Error types

var errColumnMismatch = errors.New("number of columns does not match number of format columns")

// Automated Table Formatting

type tableColumnSizingOption int

const (
	// fixed column width, regardless of table width.
	fixed tableColumnSizingOption = iota
	// relative column with, given as fraction of the usable table width.
	relative
	// fill columns receive any remaining table space, evenly distributed.
	fill
)

// cellPadding is the horizontal padding bubbles/table puts around every cell.
const cellPadding = 2

type columnFormat struct {
	option tableColumnSizingOption
	value  float32
}

type tableFormat struct {
	columnSizes        []columnFormat
	fixedWidth         int     // fixedWidth is the total space taken up by all fixed-width columns.
	fillWidthCount     int     // fillWidthCount indicates how many columns have fill width.
	totalRelativeWidth float32 // how much width is taken by relative columns.
}

func newTableFormat(items ...columnFormat) tableFormat {
	var totalRelativeWidth float32
	fixedWidth := 0
	fillWidthCount := 0

	for _, item := range items {
		switch item.option {
		case relative:
			totalRelativeWidth += item.value
		case fixed:
			fixedWidth += int(item.value)
		case fill:
			fillWidthCount++
		}
	}

	return tableFormat{
		columnSizes:        items,
		fixedWidth:         fixedWidth,
		fillWidthCount:     fillWidthCount,
		totalRelativeWidth: totalRelativeWidth,
	}
}

// Integrated Formatted Table Type

type autoFormatTable struct {
	table  table.Model
	format tableFormat
}

// resize distributes newWidth over the columns: fixed columns keep their width, relative
// columns get their share of the width left after cell padding and fill columns split the rest.
func (aft *autoFormatTable) resize(newWidth int) error {
	columns := slices.Clone(aft.table.Columns())
	columnCount := len(columns)
	if columnCount != len(aft.format.columnSizes) {
		return fmt.Errorf(
			"table.resize: %w -> %d in table, %d in tableFormat",
			errColumnMismatch,
			columnCount,
			len(aft.format.columnSizes))
	}

	usableWidth := max(newWidth-cellPadding*columnCount, 0)
	relativeWidth := 0
	for idx := range columnCount {
		if aft.format.columnSizes[idx].option == relative {
			relativeWidth += int(aft.format.columnSizes[idx].value * float32(usableWidth))
		}
	}

	fillPerColumn := 0
	if aft.format.fillWidthCount > 0 {
		totalFillWidth := usableWidth - relativeWidth - aft.format.fixedWidth
		fillPerColumn = max(totalFillWidth/aft.format.fillWidthCount, 0)
	}

	for idx := range columnCount {
		format := aft.format.columnSizes[idx]
		switch format.option {
		case fixed:
			columns[idx].Width = int(format.value)
		case relative:
			columns[idx].Width = int(format.value * float32(usableWidth))
		case fill:
			columns[idx].Width = fillPerColumn
		}
	}

	aft.table.SetColumns(columns)
	aft.table.SetWidth(newWidth)
	return nil
}

func (aft *autoFormatTable) SetHeight(height int) {
	aft.table.SetHeight(height)
}

func newStationTable(tableStyle table.Styles, withDistance bool) autoFormatTable {
	idLen := 5
	catLen := 5
	visLen := 8
	tempLen := 6
	altLen := 8
	ageLen := 6
	dstLen := 10
	initialTableHeight := 5

	formats := []columnFormat{
		{fixed, float32(idLen)},
		{fixed, float32(catLen)},
		{fill, 0.0},
		{fixed, float32(visLen)},
		{fixed, float32(tempLen)},
		{fixed, float32(altLen)},
		{fixed, float32(ageLen)},
	}
	columns := []table.Column{
		{Title: "ID", Width: idLen},
		{Title: "CAT", Width: catLen},
		{Title: "WIND", Width: 0},
		{Title: "VIS", Width: visLen},
		{Title: "TEMP", Width: tempLen},
		{Title: "ALT", Width: altLen},
		{Title: "AGE", Width: ageLen},
	}
	if withDistance {
		formats = append(formats, columnFormat{fixed, float32(dstLen)})
		columns = append(columns, table.Column{Title: "DST", Width: dstLen})
	}

	stationTbl := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(initialTableHeight),
		table.WithStyles(tableStyle),
	)

	return autoFormatTable{
		table:  stationTbl,
		format: newTableFormat(formats...),
	}
}

// stationToRow renders one table row. Stations without any report show their loading state.
func stationToRow(data *store.StationData, view rowView) table.Row {
	metar, ok := data.Current()
	if !ok {
		status := "..."
		if data.LoadingState == store.Failed {
			status = "ERR"
		}
		row := table.Row{data.StationID, status, "", "", "", "", ""}
		if !view.home.IsZero() {
			row = append(row, "")
		}
		return row
	}

	category := metar.FlightCategory.String()
	if data.LoadingState == store.Failed {
		category += "!"
	}

	temp, _ := format.TemperatureAndDewpoint(&metar, view.units.Temperature)
	row := table.Row{
		data.StationID,
		category,
		format.WindShort(&metar),
		format.Visibility(&metar),
		temp,
		format.Altimeter(metar.Altimeter, view.units.Altimeter),
		format.Age(metar.ObservationTime, view.now),
	}
	if !view.home.IsZero() {
		row = append(row, distanceCell(view.home, metar.Latitude, metar.Longitude))
	}
	return row
}

func distanceCell(home geo.Coordinates, latitude, longitude float64) string {
	station := geo.NewCoordinates(latitude, longitude)
	if station.IsZero() {
		return "n/a"
	}
	distance := geo.Between(home, station)
	return fmt.Sprintf("%4.0fnm %s", distance.NauticalMiles(), geo.CompassPoint(geo.Bearing(home, station)))
}
