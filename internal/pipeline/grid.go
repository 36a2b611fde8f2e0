package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ocean-data-aggregator/internal/domain"
	"github.com/couchcryptid/ocean-data-aggregator/internal/hexgrid"
	"github.com/couchcryptid/ocean-data-aggregator/internal/sink"
)

// Cataloger is the slice of the granule catalog a grid source needs.
type Cataloger interface {
	Search(ctx context.Context, q domain.GranuleQuery, w domain.TimeWindow) ([]domain.GranuleHandle, domain.FetchOutcome)
	Download(ctx context.Context, h domain.GranuleHandle, dir string) (string, domain.FetchOutcome)
}

// RasterOpener opens a downloaded granule file as a readable raster.
type RasterOpener func(path string) (domain.Raster, error)

// GridConfig describes one raster source.
type GridConfig struct {
	Name        string
	Query       domain.GranuleQuery
	Variable    string // the scalar field to aggregate, e.g. "sst"
	Downsample  int    // keep every Nth granule per window; <=1 keeps all
	Resolution  int
	MinCount    int
	DownloadDir string
}

// GridSource turns catalog granules into per-granule units. Windows are
// calendar months, processed most recent first.
type GridSource struct {
	cfg     GridConfig
	catalog Cataloger
	open    RasterOpener
	index   hexgrid.Index
	logger  *slog.Logger
}

func NewGridSource(cfg GridConfig, catalog Cataloger, open RasterOpener, index hexgrid.Index, logger *slog.Logger) *GridSource {
	return &GridSource{cfg: cfg, catalog: catalog, open: open, index: index, logger: logger}
}

func (s *GridSource) Name() string { return s.cfg.Name }

func (s *GridSource) Windows(start, end time.Time) ([]domain.TimeWindow, error) {
	windows, err := domain.MonthWindows(start, end)
	if err != nil {
		return nil, err
	}
	return domain.Reverse(windows), nil
}

// Units searches the window's granules. An empty window is zero units; a
// failed search is an error the driver counts against the window.
func (s *GridSource) Units(ctx context.Context, w domain.TimeWindow) ([]Unit, error) {
	handles, outcome := s.catalog.Search(ctx, s.cfg.Query, w)
	switch outcome {
	case domain.OutcomeFailed:
		return nil, fmt.Errorf("granule search failed for %s", w.String())
	case domain.OutcomeEmpty:
		s.logger.Debug("no granules in window", "source", s.cfg.Name, "window", w.String())
		return nil, nil
	}

	if s.cfg.Downsample > 1 {
		kept := make([]domain.GranuleHandle, 0, len(handles)/s.cfg.Downsample+1)
		for i := 0; i < len(handles); i += s.cfg.Downsample {
			kept = append(kept, handles[i])
		}
		handles = kept
	}

	units := make([]Unit, len(handles))
	for i, h := range handles {
		units[i] = &gridUnit{source: s, handle: h}
	}
	return units, nil
}

// gridUnit processes one granule into one artifact.
type gridUnit struct {
	source *GridSource
	handle domain.GranuleHandle
	path   string // local granule file, set by Fetch
}

func (u *gridUnit) Key() sink.Key {
	return sink.GridKey(u.source.cfg.Name, u.source.cfg.Resolution, granuleStem(u.handle.Name))
}

func (u *gridUnit) Fetch(ctx context.Context) domain.FetchOutcome {
	path, outcome := u.source.catalog.Download(ctx, u.handle, u.source.cfg.DownloadDir)
	if outcome == domain.OutcomeResults {
		u.path = path
	}
	return outcome
}

// Build reads the granule, flattens the scalar field to points, resolves the
// observation date, and aggregates into cell rows.
func (u *gridUnit) Build(ctx context.Context) (*UnitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := u.source.open(u.path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	lats, lons, err := coordinateVectors(r)
	if err != nil {
		return nil, err
	}
	field, err := r.Grid(u.source.cfg.Variable)
	if err != nil {
		return nil, err
	}

	points, ranges, err := domain.FlattenGrid(lats, lons, field, nil)
	if err != nil {
		return nil, err
	}

	date, strategy := domain.ResolveDate(r.Attr, u.handle.Name)
	if !date.Known() {
		u.source.logger.Warn("granule date unresolved, keeping unit",
			"source", u.source.cfg.Name, "granule", u.handle.Name)
	} else {
		u.source.logger.Debug("granule date resolved",
			"granule", u.handle.Name, "date", date.String(), "strategy", strategy)
	}

	stats, err := domain.AggregateByCell(u.source.index, points, domain.AggregateOptions{
		MinCount: u.source.cfg.MinCount,
	})
	if err != nil {
		return nil, err
	}
	// The date is a property of the whole granule; stamp it on every row.
	for i := range stats {
		stats[i].Date = date
	}

	dateCreated, _ := r.Attr("date_created")
	return &UnitResult{
		Table: gridTable(u.source.cfg.Variable, stats, dateCreated, ranges),
		Stats: stats,
	}, nil
}

// coordinateVectors reads the 1-D latitude and longitude variables.
func coordinateVectors(r domain.Raster) (lats, lons []float64, err error) {
	latName, ok := domain.LatVarName(r)
	if !ok {
		return nil, nil, fmt.Errorf("no latitude variable among %v", r.Variables())
	}
	lonName, ok := domain.LonVarName(r)
	if !ok {
		return nil, nil, fmt.Errorf("no longitude variable among %v", r.Variables())
	}

	latGrid, err := r.Grid(latName)
	if err != nil {
		return nil, nil, err
	}
	if lats, err = latGrid.Vector(); err != nil {
		return nil, nil, fmt.Errorf("latitude: %w", err)
	}
	lonGrid, err := r.Grid(lonName)
	if err != nil {
		return nil, nil, err
	}
	if lons, err = lonGrid.Vector(); err != nil {
		return nil, nil, fmt.Errorf("longitude: %w", err)
	}
	return lats, lons, nil
}

// gridTable renders aggregated rows in the raster artifact schema.
func gridTable(variable string, stats []domain.CellStats, dateCreated string, ranges domain.UnitRanges) sink.Table {
	columns := []string{
		"h3",
		variable + "_mean", variable + "_min", variable + "_max", variable + "_std",
		"n", "centroid_lat", "centroid_lon",
		"date", "date_created", "lat_range", "lon_range",
	}
	latRange := fmt.Sprintf("(%s, %s)", formatFloat(ranges.LatMin), formatFloat(ranges.LatMax))
	lonRange := fmt.Sprintf("(%s, %s)", formatFloat(ranges.LonMin), formatFloat(ranges.LonMax))

	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{
			string(s.Cell),
			formatFloat(s.Mean), formatFloat(s.Min), formatFloat(s.Max), formatFloat(s.Std),
			strconv.Itoa(s.Count), formatFloat(s.CentroidLat), formatFloat(s.CentroidLon),
			s.Date.String(), dateCreated, latRange, lonRange,
		}
	}
	return sink.Table{Columns: columns, Rows: rows}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// granuleStem strips the file extension from a granule name.
func granuleStem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
