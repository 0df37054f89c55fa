// Package geo provides great circle distances and bearings between stations and the observer.
package geo

import (
	"math"
)

// Inspired by https://github.com/LucaTheHacker/go-haversine

const (
	earthRadiusKilometers    float64 = 6371 // Radius of Earth in kilometers
	earthRadiusNauticalMiles float64 = 3443 // Radius of Earth in nautical miles
	degToRad                 float64 = math.Pi / 180
)

// Coordinates is a position in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// NewCoordinates returns a Coordinates struct based on parameters passed.
func NewCoordinates(latitude, longitude float64) Coordinates {
	return Coordinates{
		Latitude:  latitude,
		Longitude: longitude,
	}
}

// IsZero reports whether c is the null island default, used as "no location set".
func (c Coordinates) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

func (c Coordinates) toRadians() Coordinates {
	return Coordinates{
		Latitude:  c.Latitude * degToRad,
		Longitude: c.Longitude * degToRad,
	}
}

// Distance is a central angle; multiply by a radius to obtain a length.
type Distance struct {
	C float64
}

func (d Distance) Kilometers() float64 {
	return d.C * earthRadiusKilometers
}

func (d Distance) NauticalMiles() float64 {
	return d.C * earthRadiusNauticalMiles
}

// Between calculates the distance using the haversine formula.
//
//nolint:mnd // readability of mathmatic formula
func Between(p, q Coordinates) Distance {
	fromPos := p.toRadians()
	toPos := q.toRadians()

	deltaLat := toPos.Latitude - fromPos.Latitude
	deltaLon := toPos.Longitude - fromPos.Longitude

	a := math.Pow(math.Sin(deltaLat/2), 2) +
		math.Cos(fromPos.Latitude)*
			math.Cos(toPos.Latitude)*
			math.Pow(math.Sin(deltaLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return Distance{C: c}
}

// Bearing calculates the initial bearing (forward azimuth) from p to q in degrees [0, 360).
func Bearing(p, q Coordinates) float64 {
	from := p.toRadians()
	to := q.toRadians()

	dLon := to.Longitude - from.Longitude

	y := math.Sin(dLon) * math.Cos(to.Latitude)
	x := math.Cos(from.Latitude)*math.Sin(to.Latitude) -
		math.Sin(from.Latitude)*math.Cos(to.Latitude)*math.Cos(dLon)

	// Atan2 ranges from -180 to +180
	return math.Mod(math.Atan2(y, x)/degToRad+360.0, 360.0) //nolint: mnd // readability
}

var compassPoints = []string{ //nolint: gochecknoglobals // lookup table
	"N", "NNE", "NE", "ENE",
	"E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW",
	"W", "WNW", "NW", "NNW",
}

// CompassPoint names the 16-point compass direction of a bearing in degrees.
func CompassPoint(bearing float64) string {
	step := 360.0 / float64(len(compassPoints))
	normalized := math.Mod(math.Mod(bearing, 360)+360, 360)
	index := int(math.Floor((normalized+step/2)/step)) % len(compassPoints)
	return compassPoints[index]
}
