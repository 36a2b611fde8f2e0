package domain

import "math"

// FetchOutcome classifies the result of fetching one unit of work.
// Failed is a degraded, non-fatal state: the caller treats it as "no data
// available for this unit" and moves on.
type FetchOutcome int

const (
	OutcomeResults FetchOutcome = iota
	OutcomeEmpty
	OutcomeFailed
)

func (o FetchOutcome) String() string {
	switch o {
	case OutcomeResults:
		return "results"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PointRecord is the canonical flat observation: one coordinate pair, one
// primary value, and optional ancillary fields. Records with invalid
// coordinates or a missing (NaN) primary value carry no aggregable
// information and are dropped before aggregation.
type PointRecord struct {
	Lat       float64
	Lon       float64
	Value     float64
	Date      ObservationDate
	Category  string
	Ancillary map[string]float64
}

// ValidCoordinates reports whether lat/lon fall in the WGS-84 domain.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// GranuleHandle identifies one downloadable raster granule returned by a
// catalog search.
type GranuleHandle struct {
	Name string // producer granule file name, e.g. AQUA_MODIS.20240426.L3m.DAY.SST.sst.4km.nc
	URL  string // direct download link
}

// GranuleQuery is the catalog search filter for one source.
type GranuleQuery struct {
	ShortName      string
	Provider       string
	GranulePattern string
}

// OccurrenceRecord is one point-occurrence row from a paginated occurrence
// API. Coordinates are pointers because upstream records may omit them.
type OccurrenceRecord struct {
	Lat            *float64 `json:"decimalLatitude"`
	Lon            *float64 `json:"decimalLongitude"`
	EventDate      string   `json:"eventDate"`
	ScientificName string   `json:"scientificName"`
}

// UnitRanges holds the global numeric ranges of one raster unit, computed
// before any filtering or aggregation and carried as constant metadata on
// every row derived from that unit.
type UnitRanges struct {
	ValueMin float64
	ValueMax float64
	LatMin   float64
	LatMax   float64
	LonMin   float64
	LonMax   float64
}
