// Command tslice collapses a tab-separated table to one record per grid
// cell, averaging the remaining columns over a range of years.
//
// Usage:
//
//	go run ./cmd/tslice [-f 2001] [-t 2010] [-lon Lon] [-lat Lat] [-y Year] [-o out.txt] daily.csv
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/adapter/tsv"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/config"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/observability"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/postproc"
)

func main() {
	var opts postproc.SliceOptions
	out := flag.String("o", "", "output file (default <input stem>_<years>.txt next to the input)")
	flag.StringVar(&opts.Lon, "lon", "", "longitude column label or 1-based number")
	flag.StringVar(&opts.Lat, "lat", "", "latitude column label or 1-based number")
	flag.StringVar(&opts.Year, "y", "", "year column label or 1-based number")
	flag.Func("f", "first year to include", yearFlag(&opts.From))
	flag.Func("t", "last year to include", yearFlag(&opts.To))
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tslice [flags] <input>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	input := flag.Arg(0)
	if *out == "" {
		*out = defaultOutput(input, opts.From, opts.To)
	}
	os.Exit(run(logger, input, *out, opts))
}

func run(logger *slog.Logger, input, output string, opts postproc.SliceOptions) int {
	header, rows, err := tsv.ReadTable(input)
	if err != nil {
		logger.Error("failed to read input", "error", err)
		return 1
	}

	slice, err := postproc.TimeSlice(header, rows, opts, logger)
	if err != nil {
		logger.Error("time slice failed", "input", input, "error", err)
		return 1
	}

	path, err := tsv.NewWriter(filepath.Dir(output), logger).WriteTable(filepath.Base(output), slice.Header, slice.Rows)
	if err != nil {
		logger.Error("failed to write output", "error", err)
		return 1
	}
	logger.Info("time slice written", "path", path, "cells", len(slice.Rows))
	return 0
}

func yearFlag(dst **float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a year: %q", s)
		}
		*dst = &v
		return nil
	}
}

// defaultOutput names the slice after the input stem and the year window,
// e.g. daily_2001-2010.txt, daily_2005.txt or daily_mean.txt.
func defaultOutput(input string, from, to *float64) string {
	stem, _, _ := strings.Cut(filepath.Base(input), ".")
	year := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'g', -1, 64)
	}

	var suffix string
	switch {
	case from == nil && to == nil:
		suffix = "mean"
	case from != nil && to != nil && *from == *to:
		suffix = year(from)
	default:
		suffix = year(from) + "-" + year(to)
	}
	return filepath.Join(filepath.Dir(input), stem+"_"+suffix+".txt")
}
