package avwx

import (
	"errors"
	"testing"
	"time"
)

const sampleResponse = `[
  {"icaoId":"KBWI","name":"Baltimore/Washington Intl, MD, US","rawOb":"KBWI 261354Z 10015G20KT 1/4SM OVC008 03/M13 A2994 RMK AO2",
   "metarType":"SPECI","obsTime":1582725240,"lat":39.18,"lon":-76.67,"elev":143,"temp":3.0,"dewp":-13.0,
   "wdir":100,"wspd":15,"wgst":20,"visib":0.25,"altim":1014.0,"vertVis":null,"wxString":"FG",
   "clouds":[{"cover":"OVC","base":800}],"fltCat":"LIFR"},
  {"icaoId":"KFME","name":"Fort Meade","rawOb":"KFME 261348Z AUTO 25005KT 10SM CLR 01/01 A2994 RMK AO1",
   "metarType":"METAR","obsTime":1582724880,"lat":39.09,"lon":-76.76,"elev":46,"temp":1.0,"dewp":1.0,
   "wdir":250,"wspd":5,"wgst":null,"visib":"10+","altim":1013.9,"clouds":[{"cover":"CLR","base":null}],"fltCat":"VFR"},
  {"icaoId":"KBWI","rawOb":"KBWI 261254Z VRB03KT 3SM BR BKN015 02/M12 A2995","metarType":"METAR",
   "obsTime":1582721640,"temp":2.0,"dewp":-12.0,"wdir":"VRB","wspd":3,"visib":"3","altim":1014.2,
   "clouds":[{"cover":"BKN","base":1500}]}
]`

func TestDecodeMetars(t *testing.T) {
	metars, err := DecodeMetars([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("DecodeMetars() error = %v", err)
	}

	if len(metars) != 3 {
		t.Fatalf("DecodeMetars() returned %d reports, want 3", len(metars))
	}

	bwi := metars[0]
	if bwi.StationID != "KBWI" || bwi.MetarType != "SPECI" {
		t.Errorf("station/type = %s/%s, want KBWI/SPECI", bwi.StationID, bwi.MetarType)
	}
	if !bwi.ObservationTime.Equal(time.Unix(1582725240, 0)) {
		t.Errorf("ObservationTime = %v", bwi.ObservationTime)
	}
	if bwi.WindDirection != 100 || bwi.WindSpeed != 15 || bwi.WindGust != 20 || bwi.WindVariable {
		t.Errorf("wind = %d/%d/%d variable=%v", bwi.WindDirection, bwi.WindSpeed, bwi.WindGust, bwi.WindVariable)
	}
	if bwi.Visibility != 0.25 || bwi.VisibilityPlus {
		t.Errorf("visibility = %v plus=%v, want 0.25", bwi.Visibility, bwi.VisibilityPlus)
	}
	if !bwi.HasTemperature || bwi.Temp != 3 || bwi.Dewpoint != -13 {
		t.Errorf("temp/dew = %v/%v", bwi.Temp, bwi.Dewpoint)
	}
	if bwi.FlightCategory != LIFR {
		t.Errorf("FlightCategory = %v, want LIFR", bwi.FlightCategory)
	}
	if bwi.WxString != "FG" || len(bwi.SkyConditions) != 1 || bwi.SkyConditions[0].Base != 800 {
		t.Errorf("wx/sky = %q/%v", bwi.WxString, bwi.SkyConditions)
	}

	fme := metars[1]
	if fme.Visibility != 10 || !fme.VisibilityPlus {
		t.Errorf("visibility = %v plus=%v, want 10+", fme.Visibility, fme.VisibilityPlus)
	}
	if fme.WindGust != 0 {
		t.Errorf("WindGust = %d, want 0", fme.WindGust)
	}

	// The last record carries no category, so it is derived from the BKN015 ceiling and 3SM.
	older := metars[2]
	if !older.WindVariable || older.WindSpeed != 3 {
		t.Errorf("wind variable = %v speed = %d", older.WindVariable, older.WindSpeed)
	}
	if older.FlightCategory != MVFR {
		t.Errorf("derived FlightCategory = %v, want MVFR", older.FlightCategory)
	}
}

func TestDecodeMetarsEmpty(t *testing.T) {
	metars, err := DecodeMetars([]byte("  "))
	if err != nil {
		t.Fatalf("DecodeMetars() error = %v", err)
	}
	if len(metars) != 0 {
		t.Errorf("DecodeMetars() = %v, want none", metars)
	}
}

func TestDecodeMetarsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>"},
		{name: "bad wind", body: `[{"icaoId":"KBWI","wdir":"ABC"}]`},
		{name: "bad visibility", body: `[{"icaoId":"KBWI","visib":"fog"}]`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			metars, err := DecodeMetars([]byte(test.body))
			if err == nil {
				t.Errorf("DecodeMetars(%s) error = nil, want error", test.body)
			}
			if len(metars) != 0 {
				t.Errorf("DecodeMetars(%s) = %d reports, want none", test.body, len(metars))
			}
		})
	}
}

func TestDecodeMetarsSkipsMalformedRecords(t *testing.T) {
	body := `[{"icaoId":"KBWI","obsTime":1582725240,"visib":10,"fltCat":"VFR"},
		{"icaoId":"KDCA","obsTime":1582725240,"visib":"//"},
		{"icaoId":"KIAD","obsTime":1582725240,"wdir":"ABC"}]`

	metars, err := DecodeMetars([]byte(body))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("DecodeMetars() error = %v, want ErrMalformedRecord", err)
	}
	if len(metars) != 1 || metars[0].StationID != "KBWI" {
		t.Fatalf("DecodeMetars() = %v, want only KBWI", metars)
	}
	if metars[0].FlightCategory != VFR {
		t.Errorf("FlightCategory = %v, want VFR", metars[0].FlightCategory)
	}
}

func TestGroupByStation(t *testing.T) {
	metars, err := DecodeMetars([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("DecodeMetars() error = %v", err)
	}

	grouped := GroupByStation(metars)
	if len(grouped["KBWI"]) != 2 || len(grouped["KFME"]) != 1 {
		t.Fatalf("grouped = %v", grouped)
	}
	if grouped["KBWI"][0].ObservationTime.Before(grouped["KBWI"][1].ObservationTime) {
		t.Errorf("KBWI reports are not sorted newest first")
	}
}

func TestParseVisibilityText(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		plus     bool
	}{
		{input: "10", expected: 10},
		{input: "10+", expected: 10, plus: true},
		{input: "P6SM", expected: 6, plus: true},
		{input: "1/2", expected: 0.5},
		{input: "1 1/2", expected: 1.5},
		{input: "M1/4", expected: 0.25},
		{input: "3/4SM", expected: 0.75},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got, plus, err := ParseVisibilityText(test.input)
			if err != nil {
				t.Fatalf("ParseVisibilityText(%q) error = %v", test.input, err)
			}
			if got != test.expected || plus != test.plus {
				t.Errorf("ParseVisibilityText(%q) = %v, %v; want %v, %v",
					test.input, got, plus, test.expected, test.plus)
			}
		})
	}

	for _, input := range []string{"", "1/0", "abc"} {
		if _, _, err := ParseVisibilityText(input); !errors.Is(err, ErrInvalidVisibility) {
			t.Errorf("ParseVisibilityText(%q) error = %v, want ErrInvalidVisibility", input, err)
		}
	}
}

func TestNormalizeStationID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{input: "kbwi", expected: "KBWI"},
		{input: "  EDDH ", expected: "EDDH"},
		{input: "K1A", expected: "K1A"},
		{input: "", wantErr: true},
		{input: "KBWIX", wantErr: true},
		{input: "KB-I", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got, err := NormalizeStationID(test.input)
			if test.wantErr {
				if !errors.Is(err, ErrInvalidStationID) {
					t.Errorf("NormalizeStationID(%q) error = %v, want ErrInvalidStationID", test.input, err)
				}
				return
			}
			if err != nil || got != test.expected {
				t.Errorf("NormalizeStationID(%q) = %q, %v; want %q", test.input, got, err, test.expected)
			}
		})
	}
}

func TestCeiling(t *testing.T) {
	tests := []struct {
		name     string
		metar    Metar
		expected int
	}{
		{name: "clear", metar: Metar{SkyConditions: []SkyCondition{{Cover: "CLR"}}}, expected: NoCeiling},
		{name: "scattered only", metar: Metar{SkyConditions: []SkyCondition{{Cover: "SCT", Base: 800}}}, expected: NoCeiling},
		{
			name: "lowest broken",
			metar: Metar{SkyConditions: []SkyCondition{
				{Cover: "FEW", Base: 500}, {Cover: "BKN", Base: 2500}, {Cover: "OVC", Base: 4000},
			}},
			expected: 2500,
		},
		{name: "vertical visibility", metar: Metar{VerticalVisibility: 200}, expected: 200},
		{
			name:     "broken layer without base",
			metar:    Metar{SkyConditions: []SkyCondition{{Cover: "BKN", Base: BaseNotReported}}},
			expected: NoCeiling,
		},
		{
			name: "obscured with vertical visibility",
			metar: Metar{
				SkyConditions:      []SkyCondition{{Cover: "OVX", Base: BaseNotReported}},
				VerticalVisibility: 300,
			},
			expected: 300,
		},
		{
			name: "missing base leaves lower layers",
			metar: Metar{SkyConditions: []SkyCondition{
				{Cover: "BKN", Base: BaseNotReported}, {Cover: "OVC", Base: 1200},
			}},
			expected: 1200,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.metar.Ceiling(); got != test.expected {
				t.Errorf("Ceiling() = %d, want %d", got, test.expected)
			}
		})
	}
}

func TestDecodeMetarsMissingCloudBase(t *testing.T) {
	body := `[{"icaoId":"KBWI","obsTime":1582725240,"visib":"10+","clouds":[{"cover":"BKN","base":null}]}]`

	metars, err := DecodeMetars([]byte(body))
	if err != nil {
		t.Fatalf("DecodeMetars() error = %v", err)
	}
	if len(metars) != 1 {
		t.Fatalf("DecodeMetars() returned %d reports, want 1", len(metars))
	}

	metar := metars[0]
	if metar.SkyConditions[0].Base != BaseNotReported {
		t.Errorf("Base = %d, want BaseNotReported", metar.SkyConditions[0].Base)
	}
	if got := metar.Ceiling(); got != NoCeiling {
		t.Errorf("Ceiling() = %d, want NoCeiling", got)
	}
	if metar.FlightCategory != VFR {
		t.Errorf("derived FlightCategory = %v, want VFR", metar.FlightCategory)
	}
}
