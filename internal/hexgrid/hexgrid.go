// Package hexgrid wraps the fixed-resolution global hexagonal grid used for
// spatial aggregation behind a single interface, so the concrete indexing
// library is chosen once at startup instead of probed at every call site.
package hexgrid

import "errors"

// ErrUnavailable marks a spatial-indexing failure. Unlike fetch or shape
// errors it is fatal to the whole run: every unit needs the index.
var ErrUnavailable = errors.New("spatial index unavailable")

// CellID is the opaque identifier of one grid cell. An id is only meaningful
// paired with the resolution of the Index that produced it; ids from
// different resolutions are not comparable.
type CellID string

// Index assigns points to cells of a fixed-resolution global partition.
type Index interface {
	// Resolution returns the fixed resolution this index was built with.
	Resolution() int
	// Cell maps a coordinate to its cell id. Deterministic: the same
	// (lat, lon) always yields the same id.
	Cell(lat, lon float64) (CellID, error)
	// Centroid returns the canonical center of a cell, independent of
	// whichever points were aggregated into it.
	Centroid(cell CellID) (lat, lon float64, err error)
}
