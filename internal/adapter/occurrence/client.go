// Package occurrence pages through an OBIS-style occurrence API: fixed-size
// pages advanced by offset until a page comes back empty or the cumulative
// offset reaches the server-reported total.
package occurrence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/ocean-data-aggregator/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

var (
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
)

// Options bounds retry and paging behaviour.
type Options struct {
	PageSize   int           // records per page, e.g. 1000
	MaxRetries int           // attempts per page
	RetryDelay time.Duration // linear backoff: RetryDelay × attempt number
	PageDelay  time.Duration // politeness pause between successive pages
	Timeout    time.Duration // per-request timeout
}

// Client fetches occurrence records for one category and day at a time.
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	clock      clockwork.Clock
	logger     *slog.Logger
	opts       Options
}

// NewClient creates an occurrence client for one API endpoint. The circuit
// breaker trips after consecutive upstream failures so a dead API is not
// hammered across thousands of day units.
func NewClient(endpoint string, opts Options, clock clockwork.Clock, logger *slog.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "occurrence-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
	})
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: opts.Timeout},
		breaker:    cb,
		clock:      clock,
		logger:     logger,
		opts:       opts,
	}
}

type page struct {
	Total   int                       `json:"total"`
	Results []domain.OccurrenceRecord `json:"results"`
}

// FetchDay accumulates every record for one category on one calendar day.
// Paging stops on an empty page or when the offset reaches the reported
// total. A page that fails all retries ends the loop early: whatever was
// accumulated is returned, and the outcome degrades to Failed only when
// nothing at all was fetched.
func (c *Client) FetchDay(ctx context.Context, category string, day time.Time) ([]domain.OccurrenceRecord, domain.FetchOutcome) {
	var (
		records   []domain.OccurrenceRecord
		offset    int
		total     = -1
		truncated bool
	)

	for {
		pg, ok := c.fetchPage(ctx, category, day, offset)
		if !ok {
			truncated = true
			break
		}
		if pg.Total > 0 {
			total = pg.Total
		}
		if len(pg.Results) == 0 {
			break
		}
		records = append(records, pg.Results...)

		offset += c.opts.PageSize
		if total >= 0 && offset >= total {
			break
		}
		if !c.pause(ctx, c.opts.PageDelay) {
			truncated = true
			break
		}
	}

	if len(records) == 0 {
		if truncated {
			return nil, domain.OutcomeFailed
		}
		return nil, domain.OutcomeEmpty
	}
	if truncated {
		c.logger.Warn("occurrence fetch truncated, keeping partial results",
			"category", category, "day", day.Format("2006-01-02"), "records", len(records))
	}
	return records, domain.OutcomeResults
}

// fetchPage requests one page with bounded linear-backoff retries.
func (c *Client) fetchPage(ctx context.Context, category string, day time.Time, offset int) (page, bool) {
	params := url.Values{
		"scientificname": {category},
		"startdate":      {day.Format("2006-01-02")},
		"enddate":        {day.Format("2006-01-02")},
		"size":           {fmt.Sprint(c.opts.PageSize)},
		"from":           {fmt.Sprint(offset)},
	}
	pageURL := c.endpoint + "?" + params.Encode()

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		pg, err := c.getPage(ctx, pageURL)
		if err == nil {
			return pg, true
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("occurrence circuit open, skipping page",
				"category", category, "offset", offset)
			return page{}, false
		}
		c.logger.Warn("occurrence page request failed",
			"category", category, "offset", offset,
			"attempt", attempt, "max_attempts", c.opts.MaxRetries, "error", err)
		if ctx.Err() != nil || !c.pause(ctx, c.opts.RetryDelay*time.Duration(attempt)) {
			return page{}, false
		}
	}
	return page{}, false
}

func (c *Client) getPage(ctx context.Context, pageURL string) (page, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%w: %d: %s", errUnexpected, resp.StatusCode, body)
		}

		var pg page
		if err := json.NewDecoder(resp.Body).Decode(&pg); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		return pg, nil
	})
	if err != nil {
		return page{}, err
	}
	return result.(page), nil
}

func (c *Client) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}
