// Package netcdfraster adapts NetCDF containers to the domain.Raster
// contract using a pure-Go reader, so granule parsing needs no C toolchain.
package netcdfraster

import (
	"fmt"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/ocean-data-aggregator/internal/domain"
)

// Raster wraps one open NetCDF file.
type Raster struct {
	group api.Group
	path  string
}

// Open reads a NetCDF granule. The caller owns Close.
func Open(path string) (domain.Raster, error) {
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("netcdf: open %s: %w", path, err)
	}
	return &Raster{group: group, path: path}, nil
}

func (r *Raster) Variables() []string {
	return r.group.ListVariables()
}

func (r *Raster) Close() error {
	r.group.Close()
	return nil
}

// Attr fetches a global attribute rendered as a string.
func (r *Raster) Attr(name string) (string, bool) {
	val, has := r.group.Attributes().Get(name)
	if !has || val == nil {
		return "", false
	}
	return attrString(val), true
}

// Grid reads a numeric variable as an N-dimensional grid, mapping the
// variable's fill/missing sentinel to NaN so missing never looks like zero.
func (r *Raster) Grid(name string) (domain.Grid, error) {
	v, err := r.group.GetVariable(name)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("netcdf: variable %q: %w", name, err)
	}

	grid, err := toGrid(v.Values)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("netcdf: variable %q: %w", name, err)
	}

	for _, attr := range []string{"_FillValue", "missing_value"} {
		if raw, has := v.Attributes.Get(attr); has {
			if fill, ok := attrFloat(raw); ok {
				maskFill(grid.Data, fill)
			}
		}
	}
	return grid, nil
}

// toGrid flattens an arbitrarily nested numeric slice into row-major data
// plus its shape.
func toGrid(values interface{}) (domain.Grid, error) {
	rv := reflect.ValueOf(values)

	var shape []int
	for probe := rv; probe.Kind() == reflect.Slice; probe = probe.Index(0) {
		shape = append(shape, probe.Len())
		if probe.Len() == 0 {
			break
		}
	}

	size := 1
	for _, d := range shape {
		size *= d
	}
	data := make([]float64, 0, size)
	if err := appendNumeric(&data, rv); err != nil {
		return domain.Grid{}, err
	}
	if len(data) != size {
		return domain.Grid{}, fmt.Errorf("ragged array: %d values for shape %v", len(data), shape)
	}
	return domain.Grid{Shape: shape, Data: data}, nil
}

func appendNumeric(out *[]float64, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Slice:
		for i := 0; i < rv.Len(); i++ {
			if err := appendNumeric(out, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Float32, reflect.Float64:
		*out = append(*out, rv.Float())
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		*out = append(*out, float64(rv.Int()))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		*out = append(*out, float64(rv.Uint()))
		return nil
	default:
		return fmt.Errorf("unsupported element kind %s", rv.Kind())
	}
}

// maskFill replaces exact sentinel matches with NaN in place.
func maskFill(data []float64, fill float64) {
	if math.IsNaN(fill) {
		return
	}
	for i, v := range data {
		if v == fill {
			data[i] = math.NaN()
		}
	}
}

func attrString(val interface{}) string {
	switch s := val.(type) {
	case string:
		return s
	case []string:
		if len(s) > 0 {
			return s[0]
		}
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func attrFloat(val interface{}) (float64, bool) {
	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return 0, false
		}
		rv = rv.Index(0)
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}
