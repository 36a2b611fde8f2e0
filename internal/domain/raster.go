package domain

import (
	"fmt"
	"math"
)

// Raster is the contract a raster file container must satisfy: named
// N-dimensional numeric variables plus named global string attributes.
// Missing/masked samples are already represented as NaN by the adapter.
type Raster interface {
	// Variables lists the variable names present in the container.
	Variables() []string
	// Grid reads one numeric variable as an N-dimensional grid.
	Grid(name string) (Grid, error)
	// Attr fetches a global string attribute.
	Attr(name string) (string, bool)
	Close() error
}

// LatVarName and LonVarName pick the coordinate variable names a raster
// exposes, trying the short form first.
func LatVarName(r Raster) (string, bool) { return firstVar(r, "lat", "latitude") }
func LonVarName(r Raster) (string, bool) { return firstVar(r, "lon", "longitude") }

func firstVar(r Raster, names ...string) (string, bool) {
	present := make(map[string]bool)
	for _, v := range r.Variables() {
		present[v] = true
	}
	for _, n := range names {
		if present[n] {
			return n, true
		}
	}
	return "", false
}

// Grid is an N-dimensional numeric array in row-major order. Missing values
// are NaN, never zero, so they can be dropped rather than aggregated.
type Grid struct {
	Shape []int
	Data  []float64
}

// Len returns the number of samples implied by the shape.
func (g Grid) Len() int {
	n := 1
	for _, d := range g.Shape {
		n *= d
	}
	return n
}

// Squeeze removes singleton dimensions, e.g. (1, 180, 360) -> (180, 360).
func (g Grid) Squeeze() Grid {
	shape := make([]int, 0, len(g.Shape))
	for _, d := range g.Shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}
	return Grid{Shape: shape, Data: g.Data}
}

// Vector returns the data of a 1-dimensional grid (after squeezing).
func (g Grid) Vector() ([]float64, error) {
	s := g.Squeeze()
	if len(s.Shape) > 1 {
		return nil, fmt.Errorf("grid: expected 1 dimension, got %d", len(s.Shape))
	}
	return s.Data, nil
}

// At reads element (i, j) of a 2-dimensional grid.
func (g Grid) At(i, j int) float64 {
	return g.Data[i*g.Shape[1]+j]
}

// Transpose swaps the axes of a 2-dimensional grid.
func (g Grid) Transpose() (Grid, error) {
	if len(g.Shape) != 2 {
		return Grid{}, fmt.Errorf("grid: transpose needs 2 dimensions, got %d", len(g.Shape))
	}
	rows, cols := g.Shape[0], g.Shape[1]
	out := Grid{Shape: []int{cols, rows}, Data: make([]float64, len(g.Data))}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Data[j*rows+i] = g.Data[i*cols+j]
		}
	}
	return out, nil
}

// Range returns the NaN-skipping min and max of the data. Both are NaN when
// every sample is missing.
func (g Grid) Range() (min, max float64) {
	min, max = math.NaN(), math.NaN()
	for _, v := range g.Data {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(min) || v < min {
			min = v
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	return min, max
}

func vectorRange(v []float64) (float64, float64) {
	return Grid{Shape: []int{len(v)}, Data: v}.Range()
}
