package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.OutputDir)
	assert.Equal(t, "downloads", cfg.DownloadDir)
	assert.Equal(t, "sources.yaml", cfg.SourcesFile)
	assert.Equal(t, time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, 5, cfg.Resolution)
	assert.Equal(t, 0, cfg.MinCellCount)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 1000, cfg.PageSize)
	assert.Equal(t, 200*time.Millisecond, cfg.PageDelay)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "https://cmr.earthdata.nasa.gov/search", cfg.CatalogBaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "/srv/artifacts")
	t.Setenv("START_DATE", "2020-06-01")
	t.Setenv("END_DATE", "2020-06-30")
	t.Setenv("H3_RESOLUTION", "7")
	t.Setenv("MIN_POINTS_PER_HEX", "3")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_BASE_DELAY", "1s")
	t.Setenv("PAGE_SIZE", "500")
	t.Setenv("PAGE_DELAY", "50ms")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "cells")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/artifacts", cfg.OutputDir)
	assert.Equal(t, time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, 7, cfg.Resolution)
	assert.Equal(t, 3, cfg.MinCellCount)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, 50*time.Millisecond, cfg.PageDelay)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "cells", cfg.KafkaTopic)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_InvalidStartDate(t *testing.T) {
	t.Setenv("START_DATE", "01/15/2020")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "START_DATE")
}

func TestLoad_StartAfterEnd(t *testing.T) {
	t.Setenv("START_DATE", "2021-01-01")
	t.Setenv("END_DATE", "2020-01-01")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "START_DATE")
}

func TestLoad_InvalidRetryDelay(t *testing.T) {
	t.Setenv("RETRY_BASE_DELAY", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETRY_BASE_DELAY")
}

func TestLoad_ZeroMaxRetries(t *testing.T) {
	t.Setenv("MAX_RETRIES", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_RETRIES")
}

func TestLoad_ZeroPageSize(t *testing.T) {
	t.Setenv("PAGE_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE")
}

func writeSources(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSources_Valid(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: sst
    kind: grid
    short_name: MODISA_L3m_SST
    provider: OB_DAAC
    granule_pattern: "*DAY*4km*"
    variable: sst
    downsample: 2
  - name: sharks
    kind: occurrence
    endpoint: https://api.obis.org/v3/occurrence
    categories:
      - Carcharodon carcharias
      - Galeocerdo cuvier
    min_count: 1
`)

	defs, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "sst", defs[0].Name)
	assert.Equal(t, KindGrid, defs[0].Kind)
	assert.Equal(t, "MODISA_L3m_SST", defs[0].ShortName)
	assert.Equal(t, "*DAY*4km*", defs[0].GranulePattern)
	assert.Equal(t, 2, defs[0].Downsample)
	assert.Nil(t, defs[0].MinCount)

	assert.Equal(t, KindOccurrence, defs[1].Kind)
	assert.Len(t, defs[1].Categories, 2)
	require.NotNil(t, defs[1].MinCount)
	assert.Equal(t, 1, *defs[1].MinCount)
}

func TestLoadSources_UnknownKind(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: bad
    kind: timeseries
`)
	_, err := LoadSources(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoadSources_GridMissingVariable(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: sst
    kind: grid
    short_name: MODISA_L3m_SST
`)
	_, err := LoadSources(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable")
}

func TestLoadSources_OccurrenceMissingCategories(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: sharks
    kind: occurrence
    endpoint: https://api.obis.org/v3/occurrence
`)
	_, err := LoadSources(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category")
}

func TestLoadSources_DuplicateName(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: sharks
    kind: occurrence
    endpoint: https://api.obis.org/v3/occurrence
    categories: [Galeocerdo cuvier]
  - name: sharks
    kind: occurrence
    endpoint: https://api.obis.org/v3/occurrence
    categories: [Carcharodon carcharias]
`)
	_, err := LoadSources(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadSources_MissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadSources_Empty(t *testing.T) {
	path := writeSources(t, "sources: []\n")
	_, err := LoadSources(path)
	assert.Error(t, err)
}
