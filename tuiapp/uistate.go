package tuiapp

type uiState int

const (
	stationList    uiState = iota // first page on startup, showing all watched stations
	stationDetails                // station list overlaid by the full history of the selected station
	addStation                    // station list with the add station dialog
)
