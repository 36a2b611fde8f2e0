package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch marks a raster whose scalar field cannot be reconciled
// with the coordinate mesh, even after transposing. It is fatal to the
// current unit only.
var ErrShapeMismatch = errors.New("scalar field shape does not match coordinate mesh")

// FlattenGrid converts 1-D latitude/longitude coordinate vectors and an
// N-dimensional scalar field into the canonical point sequence:
//
//  1. singleton dimensions are squeezed away;
//  2. the coordinate mesh is (len(lats) x len(lons)) with longitude varying
//     fastest;
//  3. a field matching the transposed mesh is transposed into place, any
//     other mismatch is ErrShapeMismatch;
//  4. points whose primary value is missing (NaN) are dropped.
//
// Global ranges of the primary value and both coordinate vectors are
// computed before any dropping, so they describe the unit as fetched.
// Ancillary grids must flatten to the same mesh and are attached per point.
func FlattenGrid(lats, lons []float64, primary Grid, ancillary map[string]Grid) ([]PointRecord, UnitRanges, error) {
	field := primary.Squeeze()
	if len(field.Shape) != 2 {
		return nil, UnitRanges{}, fmt.Errorf("flatten: scalar field has %d dimensions, expected 2", len(field.Shape))
	}

	var ranges UnitRanges
	ranges.ValueMin, ranges.ValueMax = field.Range()
	ranges.LatMin, ranges.LatMax = vectorRange(lats)
	ranges.LonMin, ranges.LonMax = vectorRange(lons)

	field, err := orientToMesh(field, len(lats), len(lons))
	if err != nil {
		return nil, UnitRanges{}, err
	}

	extra := make(map[string]Grid, len(ancillary))
	for name, g := range ancillary {
		a, err := orientToMesh(g.Squeeze(), len(lats), len(lons))
		if err != nil {
			return nil, UnitRanges{}, fmt.Errorf("flatten: ancillary %q: %w", name, err)
		}
		extra[name] = a
	}

	points := make([]PointRecord, 0, field.Len())
	for i := range lats {
		for j := range lons {
			v := field.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			p := PointRecord{Lat: lats[i], Lon: lons[j], Value: v}
			if len(extra) > 0 {
				p.Ancillary = make(map[string]float64, len(extra))
				for name, g := range extra {
					p.Ancillary[name] = g.At(i, j)
				}
			}
			points = append(points, p)
		}
	}
	return points, ranges, nil
}

// orientToMesh returns the field oriented as (rows x cols), transposing once
// if that reconciles the shapes.
func orientToMesh(field Grid, rows, cols int) (Grid, error) {
	if len(field.Shape) != 2 {
		return Grid{}, fmt.Errorf("%w: field has %d dimensions", ErrShapeMismatch, len(field.Shape))
	}
	if field.Shape[0] == rows && field.Shape[1] == cols {
		return field, nil
	}
	if field.Shape[0] == cols && field.Shape[1] == rows {
		return field.Transpose()
	}
	return Grid{}, fmt.Errorf("%w: field %v vs mesh [%d %d]", ErrShapeMismatch, field.Shape, rows, cols)
}
