package catalog_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/ocean-data-aggregator/internal/adapter/catalog"
	"github.com/couchcryptid/ocean-data-aggregator/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() catalog.Options {
	return catalog.Options{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Timeout:    time.Second,
	}
}

// newAuthedSession authenticates against a stub token endpoint.
func newAuthedSession(t *testing.T) *catalog.Session {
	t.Helper()
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "user", user)
		require.Equal(t, "pass", pass)
		fmt.Fprint(w, `{"access_token": "test-token"}`)
	}))
	t.Cleanup(tokenSrv.Close)

	s := catalog.NewSession("user", "pass", tokenSrv.URL, time.Second)
	require.NoError(t, s.Authenticate(context.Background()))
	return s
}

func newClient(t *testing.T, baseURL string) *catalog.Client {
	t.Helper()
	return catalog.NewClient(baseURL, newAuthedSession(t), testOptions(),
		clockwork.NewRealClock(), discardLogger())
}

func testWindow() domain.TimeWindow {
	return domain.TimeWindow{
		Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestSession_AuthenticateRejectsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"access_token": ""}`)
	}))
	defer srv.Close()

	s := catalog.NewSession("user", "pass", srv.URL, time.Second)
	assert.Error(t, s.Authenticate(context.Background()))
	assert.False(t, s.Authenticated())
}

func TestSession_MissingCredentials(t *testing.T) {
	s := catalog.NewSession("", "", "http://unused", time.Second)
	assert.Error(t, s.Authenticate(context.Background()))
}

func TestSearch_ReturnsDownloadableGranules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/granules.json", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "MODISA_L3m_SST", q.Get("short_name"))
		assert.Equal(t, "OB_DAAC", q.Get("provider"))
		assert.Equal(t, "true", q.Get("downloadable"))
		assert.Equal(t, "2024-04-01,2024-04-30", q.Get("temporal"))
		assert.Equal(t, "-start_date", q.Get("sort_key"))
		assert.Equal(t, "*DAY*", q.Get("granule_name"))
		assert.Equal(t, "true", q.Get("options[granule_name][pattern]"))

		fmt.Fprint(w, `{"feed": {"entry": [
			{"producer_granule_id": "a.nc", "links": [
				{"rel": "http://esipfed.org/ns/fedsearch/1.1/data#", "href": "https://host/a.nc"},
				{"rel": "http://esipfed.org/ns/fedsearch/1.1/browse#", "href": "https://host/a.png"}
			]},
			{"title": "b.nc", "links": [
				{"rel": "http://esipfed.org/ns/fedsearch/1.1/data#", "href": "https://host/b.nc"}
			]},
			{"producer_granule_id": "no-link.nc", "links": []}
		]}}`)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	handles, outcome := client.Search(context.Background(), domain.GranuleQuery{
		ShortName:      "MODISA_L3m_SST",
		Provider:       "OB_DAAC",
		GranulePattern: "*DAY*",
	}, testWindow())

	require.Equal(t, domain.OutcomeResults, outcome)
	require.Len(t, handles, 2)
	assert.Equal(t, domain.GranuleHandle{Name: "a.nc", URL: "https://host/a.nc"}, handles[0])
	assert.Equal(t, domain.GranuleHandle{Name: "b.nc", URL: "https://host/b.nc"}, handles[1])
}

func TestSearch_EmptyWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"feed": {"entry": []}}`)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	handles, outcome := client.Search(context.Background(), domain.GranuleQuery{ShortName: "X"}, testWindow())

	assert.Equal(t, domain.OutcomeEmpty, outcome)
	assert.Empty(t, handles)
}

func TestSearch_RetriesThenFails(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	_, outcome := client.Search(context.Background(), domain.GranuleQuery{ShortName: "X"}, testWindow())

	assert.Equal(t, domain.OutcomeFailed, outcome)
	assert.Equal(t, int64(3), calls.Load())
}

func TestSearch_RecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"feed": {"entry": [
			{"producer_granule_id": "a.nc", "links": [
				{"rel": "http://esipfed.org/ns/fedsearch/1.1/data#", "href": "https://host/a.nc"}
			]}
		]}}`)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	handles, outcome := client.Search(context.Background(), domain.GranuleQuery{ShortName: "X"}, testWindow())

	assert.Equal(t, domain.OutcomeResults, outcome)
	assert.Len(t, handles, 1)
	assert.Equal(t, int64(2), calls.Load())
}

func TestDownload_StreamsGranule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, "netcdf-bytes")
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := newClient(t, srv.URL)
	path, outcome := client.Download(context.Background(),
		domain.GranuleHandle{Name: "a.nc", URL: srv.URL + "/a.nc"}, dir)

	require.Equal(t, domain.OutcomeResults, outcome)
	assert.Equal(t, filepath.Join(dir, "a.nc"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "netcdf-bytes", string(data))
}

func TestDownload_ReusesExistingFile(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, "fresh")
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.nc"), []byte("cached"), 0o644))

	client := newClient(t, srv.URL)
	path, outcome := client.Download(context.Background(),
		domain.GranuleHandle{Name: "a.nc", URL: srv.URL + "/a.nc"}, dir)

	require.Equal(t, domain.OutcomeResults, outcome)
	assert.Zero(t, calls.Load(), "cached granule must not be re-fetched")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(data))
}

func TestDownload_RetriesThenFails(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	path, outcome := client.Download(context.Background(),
		domain.GranuleHandle{Name: "a.nc", URL: srv.URL + "/a.nc"}, t.TempDir())

	assert.Equal(t, domain.OutcomeFailed, outcome)
	assert.Empty(t, path)
	assert.Equal(t, int64(3), calls.Load())
}

func TestDownload_LeavesNoPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := newClient(t, srv.URL)
	_, outcome := client.Download(context.Background(),
		domain.GranuleHandle{Name: "a.nc", URL: srv.URL + "/a.nc"}, dir)
	require.Equal(t, domain.OutcomeFailed, outcome)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDatasets_ListsCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections.json", r.URL.Path)
		assert.Equal(t, "sea surface temperature", r.URL.Query().Get("keyword"))
		fmt.Fprint(w, `{"feed": {"entry": [
			{"short_name": "MODISA_L3m_SST", "version_id": "R2022.0",
			 "data_center": "OB_DAAC", "title": "Aqua MODIS SST", "summary": "Daily SST."}
		]}}`)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	infos, err := client.Datasets(context.Background(), "sea surface temperature")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, catalog.DatasetInfo{
		ShortName: "MODISA_L3m_SST",
		Version:   "R2022.0",
		Provider:  "OB_DAAC",
		Title:     "Aqua MODIS SST",
		Summary:   "Daily SST.",
	}, infos[0])
}

func TestClient_UnauthenticatedSessionFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request must not reach the catalog without a token")
	}))
	defer srv.Close()

	session := catalog.NewSession("user", "pass", "http://unused", time.Second)
	client := catalog.NewClient(srv.URL, session, testOptions(), clockwork.NewRealClock(), discardLogger())

	_, outcome := client.Search(context.Background(), domain.GranuleQuery{ShortName: "X"}, testWindow())
	assert.Equal(t, domain.OutcomeFailed, outcome)
}
