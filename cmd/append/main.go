// Command append concatenates tables, keeping only the first file's header
// row and dropping blank lines.
//
// Usage:
//
//	go run ./cmd/append [-o out.txt] [-n] a.csv b.csv ...
//	go run ./cmd/append -c a.csv b.csv ...
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/config"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/observability"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/postproc"
)

func main() {
	out := flag.String("o", "", "output file (default <first input stem>_app.txt next to the input)")
	chain := flag.Bool("c", false, "append the remaining files onto the first one in place")
	verbatim := flag.Bool("n", false, "copy every line, keeping headers and blank lines")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: append [flags] <input>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	os.Exit(run(logger, flag.Args(), *out, *chain, *verbatim))
}

func run(logger *slog.Logger, inputs []string, output string, chain, verbatim bool) int {
	opts := postproc.AppendOptions{Verbatim: verbatim}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC

	switch {
	case chain && output != "":
		logger.Error("-c and -o cannot be combined")
		return 2
	case chain:
		output, inputs = inputs[0], inputs[1:]
		opts.Continuation = true
		flags = os.O_WRONLY | os.O_APPEND
	case output == "":
		stem, _, _ := strings.Cut(filepath.Base(inputs[0]), ".")
		output = filepath.Join(filepath.Dir(inputs[0]), stem+"_app.txt")
	}

	if err := checkDistinct(output, inputs); err != nil {
		logger.Error("invalid output", "error", err)
		return 2
	}

	lines, err := appendFiles(output, flags, inputs, opts)
	if err != nil {
		logger.Error("append failed", "output", output, "error", err)
		return 1
	}
	logger.Info("tables appended", "path", output, "inputs", len(inputs), "lines", lines)
	return 0
}

func appendFiles(output string, flags int, inputs []string, opts postproc.AppendOptions) (lines int, err error) {
	readers := make([]io.Reader, 0, len(inputs))
	for _, name := range inputs {
		f, err := os.Open(name)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		readers = append(readers, f)
	}

	f, err := os.OpenFile(output, flags, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return postproc.Append(f, readers, opts)
}

// checkDistinct refuses to write onto one of the files being read.
func checkDistinct(output string, inputs []string) error {
	dst, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	for _, in := range inputs {
		src, err := filepath.Abs(in)
		if err != nil {
			return err
		}
		if src == dst {
			return errors.New("output " + output + " is also an input")
		}
	}
	return nil
}
