// Command aggregator runs the temporal-spatial aggregation pipeline over the
// configured date range and source definitions, then exits.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ocean-data-aggregator/internal/adapter/catalog"
	httpadapter "github.com/couchcryptid/ocean-data-aggregator/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ocean-data-aggregator/internal/adapter/kafka"
	"github.com/couchcryptid/ocean-data-aggregator/internal/adapter/netcdfraster"
	"github.com/couchcryptid/ocean-data-aggregator/internal/adapter/occurrence"
	"github.com/couchcryptid/ocean-data-aggregator/internal/config"
	"github.com/couchcryptid/ocean-data-aggregator/internal/domain"
	"github.com/couchcryptid/ocean-data-aggregator/internal/hexgrid"
	"github.com/couchcryptid/ocean-data-aggregator/internal/ledger"
	"github.com/couchcryptid/ocean-data-aggregator/internal/observability"
	"github.com/couchcryptid/ocean-data-aggregator/internal/pipeline"
	"github.com/couchcryptid/ocean-data-aggregator/internal/sink"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		slog.Error("aggregator failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() // .env is optional; the environment wins

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	defs, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return err
	}

	index, err := hexgrid.NewH3Index(cfg.Resolution)
	if err != nil {
		return err
	}
	store := sink.NewStore(cfg.OutputDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources, err := buildSources(ctx, cfg, defs, index, clock, logger)
	if err != nil {
		return err
	}

	var recorder pipeline.Recorder
	var ldg *ledger.Ledger
	var runID int64
	if cfg.LedgerPath != "" {
		ldg, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer ldg.Close()

		runID, err = ldg.BeginRun(ctx,
			cfg.StartDate.Format("2006-01-02"), cfg.EndDate.Format("2006-01-02"), cfg.Resolution)
		if err != nil {
			return err
		}
		recorder = &runRecorder{ledger: ldg, runID: runID}
	}

	var publisher pipeline.Publisher
	if cfg.KafkaEnabled() {
		kp := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kp.Close()
		publisher = kp
		logger.Info("row publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	driver := pipeline.New(sources, store, logger, metrics, recorder, publisher)

	srv := httpadapter.NewServer(cfg.HTTPAddr, driver, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	counters, runErr := driver.Run(ctx, cfg.StartDate, cfg.EndDate)

	if ldg != nil {
		if err := ldg.FinishRun(context.Background(), runID,
			counters.Fetched, counters.Written, counters.Skipped, counters.Failed); err != nil {
			logger.Warn("run not recorded in ledger", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	logger.Info("run complete",
		"fetched", counters.Fetched, "written", counters.Written,
		"skipped", counters.Skipped, "empty", counters.Empty, "failed", counters.Failed)
	return nil
}

// buildSources wires each source definition to its client. The catalog
// session is created and authenticated once, only when a grid source needs it.
func buildSources(ctx context.Context, cfg *config.Config, defs []config.SourceDef,
	index hexgrid.Index, clock clockwork.Clock, logger *slog.Logger) ([]pipeline.Source, error) {

	var catalogClient *catalog.Client
	for _, def := range defs {
		if def.Kind != config.KindGrid {
			continue
		}
		session := catalog.NewSession(cfg.EarthdataUsername, cfg.EarthdataPassword, cfg.TokenURL, cfg.RequestTimeout)
		if err := session.Authenticate(ctx); err != nil {
			return nil, err
		}
		catalogClient = catalog.NewClient(cfg.CatalogBaseURL, session, catalog.Options{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			Timeout:    cfg.RequestTimeout,
		}, clock, logger)
		break
	}

	sources := make([]pipeline.Source, 0, len(defs))
	for _, def := range defs {
		minCount := cfg.MinCellCount
		if def.MinCount != nil {
			minCount = *def.MinCount
		}

		switch def.Kind {
		case config.KindGrid:
			sources = append(sources, pipeline.NewGridSource(pipeline.GridConfig{
				Name: def.Name,
				Query: domain.GranuleQuery{
					ShortName:      def.ShortName,
					Provider:       def.Provider,
					GranulePattern: def.GranulePattern,
				},
				Variable:    def.Variable,
				Downsample:  def.Downsample,
				Resolution:  cfg.Resolution,
				MinCount:    minCount,
				DownloadDir: cfg.DownloadDir,
			}, catalogClient, netcdfraster.Open, index, logger))

		case config.KindOccurrence:
			client := occurrence.NewClient(def.Endpoint, occurrence.Options{
				PageSize:   cfg.PageSize,
				MaxRetries: cfg.MaxRetries,
				RetryDelay: cfg.RetryBaseDelay,
				PageDelay:  cfg.PageDelay,
				Timeout:    cfg.RequestTimeout,
			}, clock, logger)
			sources = append(sources, pipeline.NewOccurrenceSource(pipeline.OccurrenceConfig{
				Name:       def.Name,
				Categories: def.Categories,
				Resolution: cfg.Resolution,
				MinCount:   minCount,
			}, client, index, logger))
		}
	}
	return sources, nil
}

// runRecorder binds the pipeline's per-unit records to one ledger run.
type runRecorder struct {
	ledger *ledger.Ledger
	runID  int64
}

func (r *runRecorder) RecordUnit(ctx context.Context, source, artifact string, state pipeline.UnitState, errMsg string) error {
	return r.ledger.RecordUnit(ctx, r.runID, source, artifact, string(state), errMsg)
}
