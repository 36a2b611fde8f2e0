// Package config loads service settings from environment variables and the
// YAML source-definition file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	OutputDir   string
	DownloadDir string
	SourcesFile string
	LedgerPath  string

	StartDate time.Time
	EndDate   time.Time

	Resolution   int
	MinCellCount int

	MaxRetries     int
	RetryBaseDelay time.Duration
	PageSize       int
	PageDelay      time.Duration
	RequestTimeout time.Duration

	CatalogBaseURL    string
	TokenURL          string
	EarthdataUsername string
	EarthdataPassword string

	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	startDate, err := parseDate("START_DATE", "2015-01-01")
	if err != nil {
		return nil, err
	}
	endDate, err := parseDate("END_DATE", time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if startDate.After(endDate) {
		return nil, errors.New("START_DATE is after END_DATE")
	}

	resolution, err := parseInt("H3_RESOLUTION", 5)
	if err != nil {
		return nil, err
	}
	minCellCount, err := parseInt("MIN_POINTS_PER_HEX", 0)
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	pageSize, err := parseInt("PAGE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	retryDelay, err := parseDuration("RETRY_BASE_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}
	pageDelay, err := parseDuration("PAGE_DELAY", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OutputDir:   envOrDefault("OUTPUT_DIR", "data"),
		DownloadDir: envOrDefault("DOWNLOAD_DIR", "downloads"),
		SourcesFile: envOrDefault("SOURCES_FILE", "sources.yaml"),
		LedgerPath:  envOrDefault("LEDGER_PATH", ""),

		StartDate: startDate,
		EndDate:   endDate,

		Resolution:   resolution,
		MinCellCount: minCellCount,

		MaxRetries:     maxRetries,
		RetryBaseDelay: retryDelay,
		PageSize:       pageSize,
		PageDelay:      pageDelay,
		RequestTimeout: requestTimeout,

		CatalogBaseURL:    envOrDefault("CATALOG_BASE_URL", "https://cmr.earthdata.nasa.gov/search"),
		TokenURL:          envOrDefault("TOKEN_URL", "https://urs.earthdata.nasa.gov/api/users/token"),
		EarthdataUsername: os.Getenv("EARTHDATA_USERNAME"),
		EarthdataPassword: os.Getenv("EARTHDATA_PASSWORD"),

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "aggregated-cells"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.MaxRetries < 1 {
		return nil, errors.New("MAX_RETRIES must be at least 1")
	}
	if cfg.PageSize < 1 {
		return nil, errors.New("PAGE_SIZE must be at least 1")
	}
	return cfg, nil
}

// KafkaEnabled reports whether the optional row feed is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDate(key, fallback string) (time.Time, error) {
	s := envOrDefault(key, fallback)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", key, s)
	}
	return t, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
