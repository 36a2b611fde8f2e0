// Package catalog talks to a CMR-style granule catalog: a search call per
// time window followed by bulk download of the granule files it returned.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/ocean-data-aggregator/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Options bounds the retry behaviour of one client.
type Options struct {
	MaxRetries int           // attempts per request, e.g. 3
	BaseDelay  time.Duration // linear backoff: BaseDelay × attempt number
	Timeout    time.Duration // per-request timeout
}

// Client searches and downloads raster granules.
type Client struct {
	baseURL    string
	session    *Session
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
	opts       Options
}

// NewClient creates a catalog client. baseURL is the catalog root, e.g.
// https://cmr.earthdata.nasa.gov/search.
func NewClient(baseURL string, session *Session, opts Options, clock clockwork.Clock, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		session:    session,
		httpClient: &http.Client{Timeout: opts.Timeout},
		clock:      clock,
		logger:     logger,
		opts:       opts,
	}
}

// Search lists the downloadable granules of one source inside a window,
// newest first. No matches is OutcomeEmpty — zero work for the window, not
// an error. Exhausted retries degrade to OutcomeFailed, never an error the
// caller must abort on.
func (c *Client) Search(ctx context.Context, q domain.GranuleQuery, w domain.TimeWindow) ([]domain.GranuleHandle, domain.FetchOutcome) {
	params := url.Values{
		"short_name":   {q.ShortName},
		"provider":     {q.Provider},
		"downloadable": {"true"},
		"temporal":     {w.Start.Format("2006-01-02") + "," + w.End.Format("2006-01-02")},
		"sort_key":     {"-start_date"},
		"page_size":    {"2000"},
	}
	if q.GranulePattern != "" {
		params.Set("options[granule_name][pattern]", "true")
		params.Set("granule_name", q.GranulePattern)
	}
	searchURL := c.baseURL + "/granules.json?" + params.Encode()

	var feed granuleFeed
	if !c.getJSON(ctx, searchURL, &feed) {
		return nil, domain.OutcomeFailed
	}

	handles := make([]domain.GranuleHandle, 0, len(feed.Feed.Entry))
	for _, e := range feed.Feed.Entry {
		href := e.downloadLink()
		if e.name() == "" || href == "" {
			continue
		}
		handles = append(handles, domain.GranuleHandle{Name: e.name(), URL: href})
	}
	if len(handles) == 0 {
		return nil, domain.OutcomeEmpty
	}
	return handles, domain.OutcomeResults
}

// Download fetches one granule into dir, streaming through a temp file so an
// interrupted transfer never leaves a partial granule behind. A granule
// already on disk is reused without network I/O.
func (c *Client) Download(ctx context.Context, h domain.GranuleHandle, dir string) (string, domain.FetchOutcome) {
	target := filepath.Join(dir, h.Name)
	if _, err := os.Stat(target); err == nil {
		return target, domain.OutcomeResults
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Warn("create download dir failed", "dir", dir, "error", err)
		return "", domain.OutcomeFailed
	}

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		err := c.downloadOnce(ctx, h.URL, target)
		if err == nil {
			return target, domain.OutcomeResults
		}
		c.logger.Warn("granule download failed",
			"granule", h.Name, "attempt", attempt, "max_attempts", c.opts.MaxRetries, "error", err)
		if ctx.Err() != nil || !c.sleep(ctx, attempt) {
			return "", domain.OutcomeFailed
		}
	}
	return "", domain.OutcomeFailed
}

func (c *Client) downloadOnce(ctx context.Context, rawURL, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if err := c.session.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("stream body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), target)
}

// DatasetInfo describes one catalog collection matched by keyword search.
type DatasetInfo struct {
	ShortName string
	Version   string
	Provider  string
	Title     string
	Summary   string
}

// Datasets discovers collections by keyword, for picking a source's
// short_name/provider pair.
func (c *Client) Datasets(ctx context.Context, keyword string) ([]DatasetInfo, error) {
	params := url.Values{
		"keyword":   {keyword},
		"page_size": {"100"},
	}
	var feed collectionFeed
	if !c.getJSON(ctx, c.baseURL+"/collections.json?"+params.Encode(), &feed) {
		return nil, fmt.Errorf("catalog: dataset search for %q failed after %d attempts", keyword, c.opts.MaxRetries)
	}

	infos := make([]DatasetInfo, 0, len(feed.Feed.Entry))
	for _, e := range feed.Feed.Entry {
		infos = append(infos, DatasetInfo{
			ShortName: e.ShortName,
			Version:   e.VersionID,
			Provider:  e.DataCenter,
			Title:     e.Title,
			Summary:   e.Summary,
		})
	}
	return infos, nil
}

// getJSON performs a GET with the session token and bounded retries,
// decoding the body into out. Returns false once retries are exhausted.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) bool {
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		err := c.getJSONOnce(ctx, rawURL, out)
		if err == nil {
			return true
		}
		c.logger.Warn("catalog request failed",
			"attempt", attempt, "max_attempts", c.opts.MaxRetries, "error", err)
		if ctx.Err() != nil || !c.sleep(ctx, attempt) {
			return false
		}
	}
	return false
}

func (c *Client) getJSONOnce(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if err := c.session.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sleep blocks for the linear-backoff delay of the given attempt number.
// Returns false if the context was cancelled first.
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(c.opts.BaseDelay * time.Duration(attempt)):
		return true
	}
}

// Catalog wire types (CMR granules.json / collections.json shapes).

type granuleFeed struct {
	Feed struct {
		Entry []granuleEntry `json:"entry"`
	} `json:"feed"`
}

type granuleEntry struct {
	ProducerGranuleID string `json:"producer_granule_id"`
	Title             string `json:"title"`
	Links             []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

func (e granuleEntry) name() string {
	if e.ProducerGranuleID != "" {
		return e.ProducerGranuleID
	}
	return e.Title
}

// downloadLink picks the data link from a granule's link list.
func (e granuleEntry) downloadLink() string {
	for _, l := range e.Links {
		if strings.HasSuffix(l.Rel, "/data#") {
			return l.Href
		}
	}
	return ""
}

type collectionFeed struct {
	Feed struct {
		Entry []struct {
			ShortName  string `json:"short_name"`
			VersionID  string `json:"version_id"`
			DataCenter string `json:"data_center"`
			Title      string `json:"title"`
			Summary    string `json:"summary"`
		} `json:"entry"`
	} `json:"feed"`
}
