// Command fluxprep converts Fluxnet FULLSET site archives into per-site
// forcing files and daily/monthly benchmark tables.
//
// Usage:
//
//	BASE_DIR=/data/fluxnet go run ./cmd/fluxprep -env-file .env
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/adapter/archive"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/adapter/sitelist"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/adapter/tsv"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/config"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/observability"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/pipeline"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file; existing environment variables take precedence")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx, cfg, logger, metrics)

	if cfg.MetricsFile != "" {
		if err := observability.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("metrics export failed", "error", err)
		}
	}
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) int {
	sites, err := sitelist.Load(cfg.SiteListPath(), logger)
	if err != nil {
		logger.Error("failed to load site list", "error", err)
		return 1
	}
	logger.Info("site list loaded", "sites", sites.Len(), "path", cfg.SiteListPath())

	schema := domain.Schema{Forcing: cfg.ForcingColumns, Benchmark: cfg.BenchmarkColumns}
	reader := archive.NewReader(schema, cfg.DailyMarker, cfg.MonthlyMarker, logger)
	writer := tsv.NewWriter(cfg.OutputPath(), logger)

	r := pipeline.New(sites, reader, writer, pipeline.Options{
		InputDir:        cfg.InputPath(),
		Schema:          schema,
		Rename:          cfg.ColumnMap,
		DailyOutput:     cfg.DailyOutput,
		MonthlyOutput:   cfg.MonthlyOutput,
		ContinueOnError: cfg.ContinueOnError,
	}, logger, metrics, nil)

	summary, err := r.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted", "sites", summary.Sites)
			return 130
		}
		logger.Error("run failed",
			"error", err,
			"sites", summary.Sites,
			"skipped", summary.SkippedSites,
			"run_id", summary.RunID,
		)
		return 1
	}

	logger.Info("finished",
		"sites", summary.Sites,
		"daily_rows", summary.DailyRows,
		"monthly_rows", summary.MonthlyRows,
		"duration", summary.Duration,
		"output_dir", cfg.OutputPath(),
	)
	return 0
}
