// Command datasets searches the granule catalog for collections matching a
// keyword, printing short_name/provider pairs to drop into sources.yaml.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/ocean-data-aggregator/internal/adapter/catalog"
	"github.com/couchcryptid/ocean-data-aggregator/internal/config"
	"github.com/couchcryptid/ocean-data-aggregator/internal/observability"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s <keyword...>\n", os.Args[0])
		os.Exit(2)
	}
	keyword := strings.Join(flag.Args(), " ")

	if err := run(keyword); err != nil {
		slog.Error("dataset search failed", "error", err)
		os.Exit(1)
	}
}

func run(keyword string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	session := catalog.NewSession(cfg.EarthdataUsername, cfg.EarthdataPassword, cfg.TokenURL, cfg.RequestTimeout)
	if err := session.Authenticate(ctx); err != nil {
		return err
	}

	client := catalog.NewClient(cfg.CatalogBaseURL, session, catalog.Options{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		Timeout:    cfg.RequestTimeout,
	}, clockwork.NewRealClock(), logger)

	infos, err := client.Datasets(ctx, keyword)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Printf("no collections match %q\n", keyword)
		return nil
	}

	for _, info := range infos {
		fmt.Printf("%s\n", info.Title)
		fmt.Printf("  short_name: %s\n", info.ShortName)
		fmt.Printf("  provider:   %s\n", info.Provider)
		if info.Version != "" {
			fmt.Printf("  version:    %s\n", info.Version)
		}
		if info.Summary != "" {
			fmt.Printf("  %s\n", firstLine(info.Summary))
		}
		fmt.Println()
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
