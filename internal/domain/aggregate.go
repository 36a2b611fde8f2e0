package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/ocean-data-aggregator/internal/hexgrid"
)

// AggregateOptions controls grouping and filtering of cell statistics.
type AggregateOptions struct {
	// ByCategory additionally groups points by their category label.
	ByCategory bool
	// ByDate additionally groups points by their observation date.
	ByDate bool
	// MinCount drops groups with fewer points after aggregation. It changes
	// output cardinality, never the statistics of retained groups.
	MinCount int
}

// CellStats is the aggregate of one (cell, category, date) group.
//
// Std is the sample standard deviation (ddof=1); a group of one point has
// Std defined as 0. The centroid is the cell's canonical center, not the
// mean of the input points.
type CellStats struct {
	Cell        hexgrid.CellID
	Category    string
	Date        ObservationDate
	Count       int
	Mean        float64
	Min         float64
	Max         float64
	Std         float64
	CentroidLat float64
	CentroidLon float64
}

type groupKey struct {
	cell     hexgrid.CellID
	category string
	date     string
}

// AggregateByCell assigns every point to its grid cell and computes grouped
// statistics. Points with invalid coordinates or a NaN value are skipped.
// Per-group values are summed in sorted order, so the result is identical
// for any permutation of the input. Output rows are sorted by
// (cell, category, date) for deterministic artifacts.
func AggregateByCell(idx hexgrid.Index, points []PointRecord, opts AggregateOptions) ([]CellStats, error) {
	groups := make(map[groupKey][]float64)
	dates := make(map[groupKey]ObservationDate)

	for _, p := range points {
		if !ValidCoordinates(p.Lat, p.Lon) || math.IsNaN(p.Value) {
			continue
		}
		cell, err := idx.Cell(p.Lat, p.Lon)
		if err != nil {
			return nil, err
		}
		key := groupKey{cell: cell}
		if opts.ByCategory {
			key.category = p.Category
		}
		if opts.ByDate {
			key.date = p.Date.String()
			dates[key] = p.Date
		}
		groups[key] = append(groups[key], p.Value)
	}

	stats := make([]CellStats, 0, len(groups))
	for key, values := range groups {
		if len(values) < opts.MinCount {
			continue
		}
		clat, clon, err := idx.Centroid(key.cell)
		if err != nil {
			return nil, fmt.Errorf("aggregate: %w", err)
		}
		s := summarize(values)
		s.Cell = key.cell
		s.Category = key.category
		s.Date = dates[key]
		s.CentroidLat = clat
		s.CentroidLon = clon
		stats = append(stats, s)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Cell != stats[j].Cell {
			return stats[i].Cell < stats[j].Cell
		}
		if stats[i].Category != stats[j].Category {
			return stats[i].Category < stats[j].Category
		}
		return stats[i].Date.String() < stats[j].Date.String()
	})
	return stats, nil
}

// summarize computes order-independent statistics over one group.
func summarize(values []float64) CellStats {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	mean := sum / float64(n)

	std := 0.0
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			d := v - mean
			sq += d * d
		}
		std = math.Sqrt(sq / float64(n-1))
	}

	return CellStats{
		Count: n,
		Mean:  mean,
		Min:   sorted[0],
		Max:   sorted[n-1],
		Std:   std,
	}
}
