package avwx

import "strings"

// FlightCategory is the flight rules classification derived from visibility and ceiling.
type FlightCategory string

const (
	VFR     FlightCategory = "VFR"  // visual flight rules
	MVFR    FlightCategory = "MVFR" // marginal visual flight rules
	IFR     FlightCategory = "IFR"  // instrument flight rules
	LIFR    FlightCategory = "LIFR" // low instrument flight rules
	Unknown FlightCategory = ""
)

const (
	// NoCeiling is returned by Metar.Ceiling when no layer constitutes a ceiling.
	NoCeiling = -1

	lifrCeilingFt  = 500
	ifrCeilingFt   = 1000
	mvfrCeilingFt  = 3000
	lifrVisibility = 1.0
	ifrVisibility  = 3.0
	mvfrVisibility = 5.0
)

// ParseFlightCategory maps the service's category string onto a FlightCategory.
func ParseFlightCategory(s string) FlightCategory {
	switch FlightCategory(strings.ToUpper(strings.TrimSpace(s))) {
	case VFR:
		return VFR
	case MVFR:
		return MVFR
	case IFR:
		return IFR
	case LIFR:
		return LIFR
	default:
		return Unknown
	}
}

func (fc FlightCategory) String() string {
	if fc == Unknown {
		return "n/a"
	}
	return string(fc)
}

// Severity orders categories from VFR (1) to LIFR (4). Unknown is 0.
func (fc FlightCategory) Severity() int {
	switch fc {
	case VFR:
		return 1
	case MVFR:
		return 2
	case IFR:
		return 3
	case LIFR:
		return 4
	case Unknown:
		return 0
	}
	return 0
}

// DeriveFlightCategory classifies conditions by the FAA thresholds. A negative ceiling means
// there is no ceiling; a negative visibility means it was not reported.
func DeriveFlightCategory(visibilitySM float64, ceilingFt int) FlightCategory {
	hasCeiling := ceilingFt >= 0
	hasVis := visibilitySM >= 0

	if !hasCeiling && !hasVis {
		return Unknown
	}

	switch {
	case (hasCeiling && ceilingFt < lifrCeilingFt) || (hasVis && visibilitySM < lifrVisibility):
		return LIFR
	case (hasCeiling && ceilingFt < ifrCeilingFt) || (hasVis && visibilitySM < ifrVisibility):
		return IFR
	case (hasCeiling && ceilingFt <= mvfrCeilingFt) || (hasVis && visibilitySM <= mvfrVisibility):
		return MVFR
	default:
		return VFR
	}
}
