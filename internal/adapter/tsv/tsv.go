// Package tsv writes and reads the tab-separated outputs: per-site forcing
// files (no header) and the aggregate benchmark tables (with header).
package tsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// ForcingExt is the extension of per-site forcing files.
const ForcingExt = ".csv"

// Writer places output files in a single directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer for dir. The directory is created on first write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// WriteForcing writes <siteID>.csv without a header and returns its path.
func (w *Writer) WriteForcing(siteID string, rows [][]string) (string, error) {
	path := filepath.Join(w.dir, siteID+ForcingExt)
	if err := w.write(path, nil, rows); err != nil {
		return "", fmt.Errorf("write forcing file for %s: %w", siteID, err)
	}
	w.logger.Debug("forcing file written", "site", siteID, "path", path, "rows", len(rows))
	return path, nil
}

// WriteTable writes name with a header row and returns its path.
func (w *Writer) WriteTable(name string, header []string, rows [][]string) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := w.write(path, header, rows); err != nil {
		return "", fmt.Errorf("write table %s: %w", name, err)
	}
	w.logger.Info("table written", "path", path, "rows", len(rows))
	return path, nil
}

func (w *Writer) write(path string, header []string, rows [][]string) (err error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	cw := newWriter(f)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func newWriter(out io.Writer) *csv.Writer {
	cw := csv.NewWriter(out)
	cw.Comma = '\t'
	return cw
}

func newReader(in io.Reader) *csv.Reader {
	cr := csv.NewReader(in)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	return cr
}

// ForcingRecord is one parsed line of a forcing file.
type ForcingRecord struct {
	Year     string
	MonthDay string
	Values   []float64
}

// ReadForcing parses a forcing file written by WriteForcing.
func ReadForcing(path string) ([]ForcingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []ForcingRecord
	cr := newReader(f)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("%s line %d: want at least 2 fields, got %d", path, line, len(rec))
		}

		r := ForcingRecord{Year: rec[0], MonthDay: rec[1], Values: make([]float64, 0, len(rec)-2)}
		for _, s := range rec[2:] {
			if s == "" {
				r.Values = append(r.Values, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, line, err)
			}
			r.Values = append(r.Values, v)
		}
		out = append(out, r)
	}
}

// ReadTable parses a headered table written by WriteTable.
func ReadTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := newReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("read %s: missing header", path)
	}
	return all[0], all[1:], nil
}
