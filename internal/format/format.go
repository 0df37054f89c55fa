// Package format turns METAR fields into the strings shown by the dashboard and the ticker.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/martinlindhe/unit"

	"github.com/micutio/metarwatch/internal/avwx"
	"github.com/micutio/metarwatch/internal/geo"
)

// TemperatureUnit selects how temperatures are displayed.
type TemperatureUnit string

// AltimeterUnit selects how the altimeter setting is displayed.
type AltimeterUnit string

const (
	Celsius    TemperatureUnit = "C"
	Fahrenheit TemperatureUnit = "F"

	InchesOfMercury AltimeterUnit = "inHg"
	Hectopascal     AltimeterUnit = "hPa"

	notAvailable = "n/a"
)

// Units bundles the display units.
type Units struct {
	Temperature TemperatureUnit
	Altimeter   AltimeterUnit
}

// Metric reports whether metric units are configured, i.e. the altimeter is shown in hPa.
func (u Units) Metric() bool {
	return u.Altimeter == Hectopascal
}

// DefaultUnits matches the conventions of US METARs.
func DefaultUnits() Units {
	return Units{Temperature: Celsius, Altimeter: InchesOfMercury}
}

// Visibility renders the visibility in statute miles. Values above one mile are rounded to whole
// miles, smaller values are shown as a fraction such as "1/4 SM".
func Visibility(metar *avwx.Metar) string {
	value := metar.Visibility
	switch {
	case value > 1:
		if metar.VisibilityPlus {
			return fmt.Sprintf("%.0f+ SM", value)
		}
		return fmt.Sprintf("%.0f SM", value)
	case value <= 0:
		return "0 SM"
	case value == 1:
		return "1 SM"
	}

	return RationalVisibility(value) + " SM"
}

// RationalVisibility formats a sub-mile visibility as num/den.
func RationalVisibility(value float64) string {
	num, den := RationalApproximation(value, DefaultEpsilon)
	return fmt.Sprintf("%d/%d", num, den)
}

// Wind renders direction, speed and gusts, e.g. "100° @ 15kt, gust 20kt".
func Wind(metar *avwx.Metar) string {
	if metar.WindSpeed == 0 && metar.WindGust == 0 {
		return "calm"
	}

	var direction string
	if metar.WindVariable {
		direction = "VRB"
	} else {
		direction = fmt.Sprintf("%03d°", metar.WindDirection)
	}

	if metar.WindGust > 0 {
		return fmt.Sprintf("%s @ %dkt, gust %dkt", direction, metar.WindSpeed, metar.WindGust)
	}
	return fmt.Sprintf("%s @ %dkt", direction, metar.WindSpeed)
}

// WindShort is the compact table form of Wind, e.g. "100/15G20".
func WindShort(metar *avwx.Metar) string {
	if metar.WindSpeed == 0 && metar.WindGust == 0 {
		return "calm"
	}

	direction := fmt.Sprintf("%03d", metar.WindDirection)
	if metar.WindVariable {
		direction = "VRB"
	}

	if metar.WindGust > 0 {
		return fmt.Sprintf("%s/%dG%d", direction, metar.WindSpeed, metar.WindGust)
	}
	return fmt.Sprintf("%s/%d", direction, metar.WindSpeed)
}

// WindSpeedKmh converts the reported wind speed to kilometres per hour.
func WindSpeedKmh(metar *avwx.Metar) float64 {
	speed := unit.Speed(metar.WindSpeed) * unit.Knot
	return speed.KilometersPerHour()
}

// WindInUnits is Wind followed by the speed in km/h when metric units are configured.
func WindInUnits(metar *avwx.Metar, units Units) string {
	wind := Wind(metar)
	if !units.Metric() || metar.WindSpeed == 0 {
		return wind
	}
	return fmt.Sprintf("%s (%.0f km/h)", wind, WindSpeedKmh(metar))
}

// Temperature renders a temperature given in degrees Celsius.
func Temperature(celsius float64, tempUnit TemperatureUnit) string {
	if tempUnit == Fahrenheit {
		return fmt.Sprintf("%.0f°F", unit.FromCelsius(celsius).Fahrenheit())
	}
	return fmt.Sprintf("%.0f°C", celsius)
}

// TemperatureAndDewpoint renders "temp / dew point" or n/a when the report has no temperature.
func TemperatureAndDewpoint(metar *avwx.Metar, tempUnit TemperatureUnit) (string, string) {
	if !metar.HasTemperature {
		return notAvailable, notAvailable
	}
	return Temperature(metar.Temp, tempUnit), Temperature(metar.Dewpoint, tempUnit)
}

// Altimeter renders an altimeter setting given in hectopascal.
func Altimeter(hectopascal float64, altUnit AltimeterUnit) string {
	if hectopascal <= 0 {
		return notAvailable
	}

	if altUnit == Hectopascal {
		return fmt.Sprintf("%.0f hPa", hectopascal)
	}
	return fmt.Sprintf("%.2f", InchesOfMercuryFromHectopascal(hectopascal))
}

// InchesOfMercuryFromHectopascal converts an altimeter setting from hPa to inHg.
func InchesOfMercuryFromHectopascal(hectopascal float64) float64 {
	pressure := unit.Pressure(hectopascal) * unit.Millibar
	return float64(pressure / unit.InchOfMercury)
}

// RelativeTime renders how long ago t was, relative to now (e.g. "15 minutes ago").
func RelativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return notAvailable
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Age renders the age of an observation compactly for the table, e.g. "15m" or "2h05m".
func Age(t time.Time, now time.Time) string {
	if t.IsZero() {
		return notAvailable
	}

	age := now.Sub(t)
	if age < 0 {
		age = 0
	}

	minutes := int(age.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}

// ClockTime renders t as a short local wall clock time.
func ClockTime(t time.Time) string {
	if t.IsZero() {
		return notAvailable
	}
	return t.Local().Format(time.Kitchen)
}

// ZuluTime renders t as the METAR style "261348Z".
func ZuluTime(t time.Time) string {
	if t.IsZero() {
		return notAvailable
	}
	return t.UTC().Format("021504Z")
}

const arrowCount = 8

// arrows point in the direction the wind blows toward, starting with wind from the north.
var arrows = [arrowCount]string{"↓", "↙", "←", "↖", "↑", "↗", "→", "↘"} //nolint: gochecknoglobals // lookup table

// WindArrow returns an arrow pointing where the wind blows to. Variable or calm wind yields "○".
func WindArrow(metar *avwx.Metar) string {
	if metar.WindVariable || (metar.WindSpeed == 0 && metar.WindGust == 0) {
		return "○"
	}

	sector := 360.0 / arrowCount
	index := int(math.Floor(math.Mod(float64(metar.WindDirection)+sector/2, 360) / sector))
	return arrows[index%arrowCount]
}

// WindFrom names the compass point the wind is coming from.
func WindFrom(metar *avwx.Metar) string {
	if metar.WindVariable {
		return "variable"
	}
	if metar.WindSpeed == 0 && metar.WindGust == 0 {
		return "calm"
	}
	return geo.CompassPoint(float64(metar.WindDirection))
}

// SkyConditions renders the cloud layers, e.g. "FEW050 BKN120".
func SkyConditions(metar *avwx.Metar) string {
	if len(metar.SkyConditions) == 0 {
		if metar.VerticalVisibility > 0 {
			return fmt.Sprintf("VV%03d", metar.VerticalVisibility/100)
		}
		return notAvailable
	}

	layers := make([]string, 0, len(metar.SkyConditions))
	for _, sky := range metar.SkyConditions {
		if sky.Base > 0 {
			layers = append(layers, fmt.Sprintf("%s%03d", sky.Cover, sky.Base/100))
		} else {
			layers = append(layers, sky.Cover)
		}
	}
	return strings.Join(layers, " ")
}

// Summary is the one-line rendition used by ticker mode.
func Summary(metar *avwx.Metar, units Units, now time.Time) string {
	temp, dew := TemperatureAndDewpoint(metar, units.Temperature)
	return fmt.Sprintf("%-4s %-4s %s WIND %s VIS %s SKY %s TEMP %s DEW %s ALT %s (%s)",
		metar.StationID,
		metar.FlightCategory,
		ZuluTime(metar.ObservationTime),
		WindInUnits(metar, units),
		Visibility(metar),
		SkyConditions(metar),
		temp,
		dew,
		Altimeter(metar.Altimeter, units.Altimeter),
		RelativeTime(metar.ObservationTime, now))
}
