package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/observability"
)

// ArchiveReader extracts the daily and monthly tables of one site archive.
type ArchiveReader interface {
	ReadArchive(path string) (domain.ArchiveTables, error)
}

// Sink persists forcing files and aggregate tables.
type Sink interface {
	WriteForcing(siteID string, rows [][]string) (string, error)
	WriteTable(name string, header []string, rows [][]string) (string, error)
}

// Options are the run settings of a Reshaper.
type Options struct {
	InputDir        string
	Schema          domain.Schema
	Rename          map[string]string
	DailyOutput     string
	MonthlyOutput   string
	ContinueOnError bool
}

// Summary describes a completed (or aborted) run.
type Summary struct {
	RunID         string
	Sites         int
	SkippedSites  int
	DailyRows     int
	MonthlyRows   int
	MalformedRows int
	Duration      time.Duration
}

// Reshaper turns a directory of site archives into per-site forcing files
// and the daily and monthly benchmark aggregates.
type Reshaper struct {
	sites   domain.SiteDirectory
	reader  ArchiveReader
	sink    Sink
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// New creates a Reshaper. A nil clock uses real time.
func New(sites domain.SiteDirectory, reader ArchiveReader, sink Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Reshaper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reshaper{
		sites:   sites,
		reader:  reader,
		sink:    sink,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// Run processes every archive in the input directory, in filename order,
// then writes both aggregates. A site error aborts the run unless
// ContinueOnError is set, in which case skipped sites are reported together
// after the aggregates are written. Forcing files written before an abort
// are left in place.
func (r *Reshaper) Run(ctx context.Context) (summary Summary, err error) {
	summary.RunID = uuid.NewString()
	logger := r.logger.With("run_id", summary.RunID)
	start := r.clock.Now()
	defer func() { summary.Duration = r.clock.Since(start) }()

	r.metrics.RunInProgress.Set(1)
	defer r.metrics.RunInProgress.Set(0)

	archives, err := ListArchives(r.opts.InputDir, logger)
	if err != nil {
		return summary, err
	}
	logger.Info("run started", "archives", len(archives), "input_dir", r.opts.InputDir)

	daily := domain.NewAggregate(domain.Daily, r.opts.Schema.Benchmark)
	monthly := domain.NewAggregate(domain.Monthly, r.opts.Schema.Benchmark)

	var skipped *multierror.Error
	for _, path := range archives {
		if err := ctx.Err(); err != nil {
			logger.Info("run cancelled", "reason", err)
			return summary, err
		}

		malformed, err := r.processArchive(logger, path, daily, monthly)
		if err != nil {
			if !domain.IsSiteError(err) {
				return summary, err
			}
			r.metrics.SiteErrors.WithLabelValues(errorReason(err)).Inc()
			if !r.opts.ContinueOnError {
				return summary, err
			}
			logger.Warn("skipping site", "error", err)
			skipped = multierror.Append(skipped, err)
			summary.SkippedSites++
			continue
		}
		summary.Sites++
		summary.MalformedRows += malformed
	}

	if err := r.writeAggregate(daily, r.opts.DailyOutput); err != nil {
		return summary, err
	}
	if err := r.writeAggregate(monthly, r.opts.MonthlyOutput); err != nil {
		return summary, err
	}
	summary.DailyRows = daily.Len()
	summary.MonthlyRows = monthly.Len()

	logger.Info("run finished",
		"sites", summary.Sites,
		"skipped", summary.SkippedSites,
		"daily_rows", summary.DailyRows,
		"monthly_rows", summary.MonthlyRows,
		"malformed_rows", summary.MalformedRows,
	)
	return summary, skipped.ErrorOrNil()
}

// processArchive handles one site end to end and returns the number of
// malformed timestamps it saw.
func (r *Reshaper) processArchive(logger *slog.Logger, path string, daily, monthly *domain.Aggregate) (int, error) {
	start := r.clock.Now()
	base := filepath.Base(path)

	siteID, err := domain.SiteIDFromArchive(path)
	if err != nil {
		return 0, &domain.SiteError{Archive: base, Err: err}
	}
	logger = logger.With("site", siteID)
	logger.Info("extracting site data", "archive", base)

	site, ok := r.sites.Lookup(siteID)
	if !ok {
		return 0, &domain.SiteError{Site: siteID, Archive: base, Err: domain.ErrMissingMetadata}
	}

	tables, err := r.reader.ReadArchive(path)
	if err != nil {
		if domain.IsSiteError(err) {
			return 0, &domain.SiteError{Site: siteID, Archive: base, Err: err}
		}
		return 0, fmt.Errorf("read archive %s: %w", base, err)
	}

	out, err := reshapeSite(site, tables, r.opts.Schema)
	if err != nil {
		return 0, &domain.SiteError{Site: siteID, Archive: base, Err: err}
	}
	for _, w := range out.warnings {
		logger.Warn("invalid timestamp format", "cadence", w.cadence, "error", w.err)
		r.metrics.MalformedRows.WithLabelValues(w.cadence.String()).Inc()
	}

	nDaily, err := daily.Append(out.daily)
	if err != nil {
		return 0, &domain.SiteError{Site: siteID, Archive: base, Err: err}
	}
	nMonthly, err := monthly.Append(out.monthly)
	if err != nil {
		return 0, &domain.SiteError{Site: siteID, Archive: base, Err: err}
	}
	r.metrics.RowsAggregated.WithLabelValues(domain.Daily.String()).Add(float64(nDaily))
	r.metrics.RowsAggregated.WithLabelValues(domain.Monthly.String()).Add(float64(nMonthly))

	if _, err := r.sink.WriteForcing(siteID, out.forcing); err != nil {
		return 0, err
	}
	r.metrics.ForcingFiles.Inc()
	r.metrics.ArchivesProcessed.Inc()
	r.metrics.ArchiveDuration.Observe(r.clock.Since(start).Seconds())

	logger.Debug("site processed", "daily_rows", nDaily, "monthly_rows", nMonthly)
	return len(out.warnings), nil
}

func (r *Reshaper) writeAggregate(agg *domain.Aggregate, name string) error {
	_, err := r.sink.WriteTable(name, agg.Header(r.opts.Rename), agg.Rows())
	return err
}

// ListArchives returns the zip files directly inside dir, sorted by name.
// Subdirectories and other files are skipped.
func ListArchives(dir string, logger *slog.Logger) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list input directory: %w", err)
	}

	// os.ReadDir sorts by filename
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			logger.Debug("skipping non-archive entry", "name", e.Name())
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingMetadata):
		return "missing_metadata"
	case errors.Is(err, domain.ErrMissingTable):
		return "missing_table"
	case errors.Is(err, domain.ErrMissingColumn):
		return "missing_column"
	case errors.Is(err, domain.ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, domain.ErrInvalidArchiveName):
		return "invalid_name"
	default:
		return "other"
	}
}
