package hexgrid

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"
)

// MaxResolution is the finest resolution the H3 partition supports.
const MaxResolution = 15

// H3Index implements Index on Uber's H3 grid.
type H3Index struct {
	resolution int
}

// NewH3Index builds the H3-backed index for one fixed resolution. An invalid
// resolution is reported as ErrUnavailable so callers abort the run rather
// than degrade.
func NewH3Index(resolution int) (*H3Index, error) {
	if resolution < 0 || resolution > MaxResolution {
		return nil, fmt.Errorf("%w: resolution %d out of range [0, %d]", ErrUnavailable, resolution, MaxResolution)
	}
	return &H3Index{resolution: resolution}, nil
}

func (x *H3Index) Resolution() int { return x.resolution }

func (x *H3Index) Cell(lat, lon float64) (CellID, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), x.resolution)
	if err != nil {
		return "", fmt.Errorf("%w: cell for (%.6f, %.6f): %v", ErrUnavailable, lat, lon, err)
	}
	return CellID(cell.String()), nil
}

func (x *H3Index) Centroid(cell CellID) (float64, float64, error) {
	c := h3.Cell(h3.IndexFromString(string(cell)))
	if !c.IsValid() {
		return 0, 0, fmt.Errorf("%w: invalid cell id %q", ErrUnavailable, cell)
	}
	ll, err := h3.CellToLatLng(c)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: centroid of %q: %v", ErrUnavailable, cell, err)
	}
	return ll.Lat, ll.Lng, nil
}
