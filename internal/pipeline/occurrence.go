package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/ocean-data-aggregator/internal/domain"
	"github.com/couchcryptid/ocean-data-aggregator/internal/hexgrid"
	"github.com/couchcryptid/ocean-data-aggregator/internal/sink"
)

// OccurrenceFetcher is the slice of the occurrence API client a source needs.
type OccurrenceFetcher interface {
	FetchDay(ctx context.Context, category string, day time.Time) ([]domain.OccurrenceRecord, domain.FetchOutcome)
}

// OccurrenceConfig describes one point-occurrence source.
type OccurrenceConfig struct {
	Name       string
	Categories []string // scientific names queried per day
	Resolution int
	MinCount   int
}

// OccurrenceSource produces one unit per calendar day, covering every
// configured category.
type OccurrenceSource struct {
	cfg    OccurrenceConfig
	client OccurrenceFetcher
	index  hexgrid.Index
	logger *slog.Logger
}

func NewOccurrenceSource(cfg OccurrenceConfig, client OccurrenceFetcher, index hexgrid.Index, logger *slog.Logger) *OccurrenceSource {
	return &OccurrenceSource{cfg: cfg, client: client, index: index, logger: logger}
}

func (s *OccurrenceSource) Name() string { return s.cfg.Name }

func (s *OccurrenceSource) Windows(start, end time.Time) ([]domain.TimeWindow, error) {
	return domain.DayWindows(start, end)
}

func (s *OccurrenceSource) Units(_ context.Context, w domain.TimeWindow) ([]Unit, error) {
	return []Unit{&occurrenceUnit{source: s, day: w.Start}}, nil
}

// occurrenceUnit accumulates every category's records for one day.
type occurrenceUnit struct {
	source *OccurrenceSource
	day    time.Time
	points []domain.PointRecord // set by Fetch
}

func (u *occurrenceUnit) Key() sink.Key {
	return sink.DailyKey(u.source.cfg.Name, u.source.cfg.Resolution, u.day.Format("2006-01-02"))
}

// Fetch queries each category in turn. A category that fails after retries
// degrades the day, it does not abort it: the unit fails only when every
// category failed and none returned records.
func (u *occurrenceUnit) Fetch(ctx context.Context) domain.FetchOutcome {
	date := domain.DateOf(u.day)
	anyResults, anyFailed := false, false

	for _, category := range u.source.cfg.Categories {
		records, outcome := u.source.client.FetchDay(ctx, category, u.day)
		switch outcome {
		case domain.OutcomeFailed:
			anyFailed = true
			continue
		case domain.OutcomeEmpty:
			continue
		}
		anyResults = true

		for _, rec := range records {
			if rec.Lat == nil || rec.Lon == nil {
				continue
			}
			label := rec.ScientificName
			if label == "" {
				label = category
			}
			u.points = append(u.points, domain.PointRecord{
				Lat:      *rec.Lat,
				Lon:      *rec.Lon,
				Value:    1, // presence indicator: counts become observation totals
				Date:     date,
				Category: label,
			})
		}
	}

	switch {
	case anyResults:
		return domain.OutcomeResults
	case anyFailed:
		return domain.OutcomeFailed
	default:
		return domain.OutcomeEmpty
	}
}

func (u *occurrenceUnit) Build(ctx context.Context) (*UnitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats, err := domain.AggregateByCell(u.source.index, u.points, domain.AggregateOptions{
		ByCategory: true,
		ByDate:     true,
		MinCount:   u.source.cfg.MinCount,
	})
	if err != nil {
		return nil, err
	}
	return &UnitResult{Table: occurrenceTable(stats), Stats: stats}, nil
}

// occurrenceTable renders aggregated rows in the daily artifact schema.
func occurrenceTable(stats []domain.CellStats) sink.Table {
	columns := []string{"date", "species", "h3", "n_obs", "centroid_lat", "centroid_lon"}
	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{
			s.Date.String(),
			s.Category,
			string(s.Cell),
			strconv.Itoa(s.Count),
			formatFloat(s.CentroidLat),
			formatFloat(s.CentroidLon),
		}
	}
	return sink.Table{Columns: columns, Rows: rows}
}
