package avwx

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// See https://aviationweather.gov/data/api/ for the field reference of the METAR endpoint.

var (
	ErrInvalidStationID  = errors.New("invalid station id")
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrInvalidWindDir    = errors.New("invalid wind direction")
)

var stationIDPattern = regexp.MustCompile(`^[A-Z0-9]{3,4}$`)

// NormalizeStationID trims and upper-cases an ICAO station identifier and checks its shape.
func NormalizeStationID(id string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(id))
	if !stationIDPattern.MatchString(normalized) {
		return "", fmt.Errorf("normalizeStationID: %w: %q", ErrInvalidStationID, id)
	}
	return normalized, nil
}

// SkyCondition is a single reported cloud layer.
type SkyCondition struct {
	Cover string `json:"cover"` // SKC, CLR, FEW, SCT, BKN, OVC, OVX
	Base  int    `json:"base"`  // cloud base in [feet] AGL, BaseNotReported if missing
}

// BaseNotReported marks a layer whose base height is missing from the report.
const BaseNotReported = -1

// Metar is one decoded METAR or SPECI report.
type Metar struct {
	StationID          string         `json:"stationId"`
	Name               string         `json:"name"`
	RawText            string         `json:"rawText"`
	MetarType          string         `json:"metarType"` // METAR or SPECI
	ObservationTime    time.Time      `json:"observationTime"`
	Latitude           float64        `json:"latitude"`
	Longitude          float64        `json:"longitude"`
	Elevation          float64        `json:"elevation"` // station elevation in [m]
	HasTemperature     bool           `json:"hasTemperature"`
	Temp               float64        `json:"temp"`     // temperature in [°C]
	Dewpoint           float64        `json:"dewpoint"` // dew point in [°C]
	WindDirection      int            `json:"windDirection"`
	WindVariable       bool           `json:"windVariable"`
	WindSpeed          int            `json:"windSpeed"` // [knots]
	WindGust           int            `json:"windGust"`  // [knots], 0 if no gusts
	Visibility         float64        `json:"visibility"`
	VisibilityPlus     bool           `json:"visibilityPlus"` // visibility is a lower bound, e.g. 10+
	Altimeter          float64        `json:"altimeter"`      // altimeter setting in [hPa], 0 if missing
	VerticalVisibility int            `json:"verticalVisibility"`
	WxString           string         `json:"wxString"`
	SkyConditions      []SkyCondition `json:"skyConditions"`
	FlightCategory     FlightCategory `json:"flightCategory"`
}

// Ceiling returns the height of the lowest broken or overcast layer (or the vertical visibility
// into an obscured sky) in feet, or NoCeiling.
func (m *Metar) Ceiling() int {
	ceiling := NoCeiling
	for _, sky := range m.SkyConditions {
		switch sky.Cover {
		case "BKN", "OVC", "OVX":
			if sky.Base < 0 {
				continue
			}
			if ceiling == NoCeiling || sky.Base < ceiling {
				ceiling = sky.Base
			}
		}
	}

	if m.VerticalVisibility > 0 && (ceiling == NoCeiling || m.VerticalVisibility < ceiling) {
		ceiling = m.VerticalVisibility
	}

	return ceiling
}

// apiMetar mirrors one element of the JSON array returned by the METAR endpoint.
type apiMetar struct {
	IcaoID     string          `json:"icaoId"`
	Name       string          `json:"name"`
	RawOb      string          `json:"rawOb"`
	MetarType  string          `json:"metarType"`
	ObsTime    int64           `json:"obsTime"`    // observation time as unix timestamp
	ReportTime string          `json:"reportTime"` // fallback if obsTime is missing
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
	Elev       float64         `json:"elev"`
	Temp       *float64        `json:"temp"`
	Dewp       *float64        `json:"dewp"`
	Wdir       json.RawMessage `json:"wdir"` // degrees or "VRB"
	Wspd       *float64        `json:"wspd"`
	Wgst       *float64        `json:"wgst"`
	Visib      json.RawMessage `json:"visib"` // statute miles, may be "10+" or "1/2"
	Altim      *float64        `json:"altim"`
	VertVis    *float64        `json:"vertVis"`
	WxString   *string         `json:"wxString"`
	Clouds     []apiCloud      `json:"clouds"`
	FltCat     string          `json:"fltCat"`
}

type apiCloud struct {
	Cover string   `json:"cover"`
	Base  *float64 `json:"base"`
}

func (a *apiMetar) toMetar() (Metar, error) {
	metar := Metar{
		StationID: a.IcaoID,
		Name:      a.Name,
		RawText:   strings.TrimSpace(a.RawOb),
		MetarType: a.MetarType,
		Latitude:  a.Lat,
		Longitude: a.Lon,
		Elevation: a.Elev,
	}

	switch {
	case a.ObsTime > 0:
		metar.ObservationTime = time.Unix(a.ObsTime, 0).UTC()
	case a.ReportTime != "":
		reportTime, err := time.Parse(time.RFC3339, a.ReportTime)
		if err != nil {
			return Metar{}, fmt.Errorf("toMetar: %s: bad report time: %w", a.IcaoID, err)
		}
		metar.ObservationTime = reportTime.UTC()
	}

	if a.Temp != nil {
		metar.HasTemperature = true
		metar.Temp = *a.Temp
		if a.Dewp != nil {
			metar.Dewpoint = *a.Dewp
		}
	}

	dir, variable, dirErr := parseWindDirection(a.Wdir)
	if dirErr != nil {
		return Metar{}, fmt.Errorf("toMetar: %s: %w", a.IcaoID, dirErr)
	}
	metar.WindDirection = dir
	metar.WindVariable = variable
	metar.WindSpeed = roundOrZero(a.Wspd)
	metar.WindGust = roundOrZero(a.Wgst)

	vis, plus, visErr := parseVisibility(a.Visib)
	if visErr != nil {
		return Metar{}, fmt.Errorf("toMetar: %s: %w", a.IcaoID, visErr)
	}
	metar.Visibility = vis
	metar.VisibilityPlus = plus

	if a.Altim != nil {
		metar.Altimeter = *a.Altim
	}
	metar.VerticalVisibility = roundOrZero(a.VertVis)
	if a.WxString != nil {
		metar.WxString = *a.WxString
	}

	for _, cloud := range a.Clouds {
		metar.SkyConditions = append(metar.SkyConditions, SkyCondition{
			Cover: cloud.Cover,
			Base:  roundOrUnreported(cloud.Base),
		})
	}

	metar.FlightCategory = ParseFlightCategory(a.FltCat)
	if metar.FlightCategory == Unknown {
		visibility := metar.Visibility
		if len(a.Visib) == 0 || string(a.Visib) == "null" {
			visibility = -1
		}
		metar.FlightCategory = DeriveFlightCategory(visibility, metar.Ceiling())
	}

	return metar, nil
}

func roundOrZero(value *float64) int {
	if value == nil {
		return 0
	}
	if *value < 0 {
		return int(*value - 0.5)
	}
	return int(*value + 0.5)
}

// roundOrUnreported keeps a missing layer base apart from a layer at ground level.
func roundOrUnreported(value *float64) int {
	if value == nil {
		return BaseNotReported
	}
	return roundOrZero(value)
}

func parseWindDirection(raw json.RawMessage) (int, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}

	var degrees float64
	if err := json.Unmarshal(raw, &degrees); err == nil {
		return int(degrees), false, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false, fmt.Errorf("parseWindDirection: %w: %s", ErrInvalidWindDir, raw)
	}

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "VRB") {
		return 0, true, nil
	}

	degrees, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parseWindDirection: %w: %q", ErrInvalidWindDir, text)
	}
	return int(degrees), false, nil
}

func parseVisibility(raw json.RawMessage) (float64, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}

	var miles float64
	if err := json.Unmarshal(raw, &miles); err == nil {
		return miles, false, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false, fmt.Errorf("parseVisibility: %w: %s", ErrInvalidVisibility, raw)
	}

	return ParseVisibilityText(text)
}

// ParseVisibilityText parses visibility strings such as "10", "10+", "1/2", "1 1/2" or "M1/4".
// The boolean reports whether the value is a lower bound.
func ParseVisibilityText(text string) (float64, bool, error) {
	text = strings.TrimSuffix(strings.TrimSpace(text), "SM")
	plus := false

	switch {
	case strings.HasSuffix(text, "+"):
		plus = true
		text = strings.TrimSuffix(text, "+")
	case strings.HasPrefix(text, "P"):
		plus = true
		text = strings.TrimPrefix(text, "P")
	case strings.HasPrefix(text, "M"):
		text = strings.TrimPrefix(text, "M")
	}

	var total float64
	for _, part := range strings.Fields(text) {
		numerator, denominator, isFraction := strings.Cut(part, "/")
		if !isFraction {
			whole, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return 0, false, fmt.Errorf("parseVisibilityText: %w: %q", ErrInvalidVisibility, text)
			}
			total += whole
			continue
		}

		num, numErr := strconv.Atoi(numerator)
		den, denErr := strconv.Atoi(denominator)
		if numErr != nil || denErr != nil || den == 0 {
			return 0, false, fmt.Errorf("parseVisibilityText: %w: %q", ErrInvalidVisibility, text)
		}
		total += float64(num) / float64(den)
	}

	if strings.TrimSpace(text) == "" {
		return 0, false, fmt.Errorf("parseVisibilityText: %w: empty", ErrInvalidVisibility)
	}

	return total, plus, nil
}
