// Package archive reads Fluxnet site archives: zip files holding one CSV
// member per temporal resolution.
package archive

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"
)

// Default member-name markers of the FULLSET product.
const (
	DailyMarker   = "_FULLSET_DD_"
	MonthlyMarker = "_FULLSET_MM_"
)

// Reader extracts the daily and monthly tables from a site archive,
// restricted to the timestamp and the schema's measurement columns.
type Reader struct {
	schema        domain.Schema
	dailyMarker   string
	monthlyMarker string
	logger        *slog.Logger
}

// NewReader creates a Reader. Empty markers fall back to the FULLSET defaults.
func NewReader(schema domain.Schema, dailyMarker, monthlyMarker string, logger *slog.Logger) *Reader {
	if dailyMarker == "" {
		dailyMarker = DailyMarker
	}
	if monthlyMarker == "" {
		monthlyMarker = MonthlyMarker
	}
	return &Reader{
		schema:        schema,
		dailyMarker:   dailyMarker,
		monthlyMarker: monthlyMarker,
		logger:        logger,
	}
}

// ReadArchive opens the zip at name and parses both member tables.
func (r *Reader) ReadArchive(name string) (domain.ArchiveTables, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return domain.ArchiveTables{}, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	daily, err := r.readMember(zr.File, r.dailyMarker)
	if err != nil {
		return domain.ArchiveTables{}, fmt.Errorf("daily table: %w", err)
	}
	monthly, err := r.readMember(zr.File, r.monthlyMarker)
	if err != nil {
		return domain.ArchiveTables{}, fmt.Errorf("monthly table: %w", err)
	}
	return domain.ArchiveTables{Daily: daily, Monthly: monthly}, nil
}

func (r *Reader) readMember(files []*zip.File, marker string) (domain.RawTable, error) {
	f, err := locate(files, marker)
	if err != nil {
		return domain.RawTable{}, err
	}
	r.logger.Debug("reading archive member", "member", f.Name)

	rc, err := f.Open()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("open member %s: %w", f.Name, err)
	}
	defer rc.Close()

	t, err := ParseTable(rc, r.schema)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("member %s: %w", f.Name, err)
	}
	return t, nil
}

// locate returns the single non-directory member whose base name contains
// marker.
func locate(files []*zip.File, marker string) (*zip.File, error) {
	var found []*zip.File
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.Contains(path.Base(f.Name), marker) {
			found = append(found, f)
		}
	}
	if len(found) != 1 {
		return nil, fmt.Errorf("%w: %d members match %q", domain.ErrMissingTable, len(found), marker)
	}
	return found[0], nil
}

// ParseTable reads a comma-separated table with a header row, keeping only
// the timestamp column and the schema's measurement columns.
func ParseTable(rd io.Reader, schema domain.Schema) (domain.RawTable, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.RawTable{}, fmt.Errorf("%w: empty table", domain.ErrMissingColumn)
	}
	if err != nil {
		return domain.RawTable{}, err
	}

	cols := schema.Measurements()
	tsIdx, idx, err := selectColumns(header, cols)
	if err != nil {
		return domain.RawTable{}, err
	}

	t := domain.RawTable{Columns: cols}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.RawTable{}, err
		}

		vals := make([]float64, len(idx))
		for j, i := range idx {
			v, err := domain.ParseValue(cell(rec, i))
			if err != nil {
				return domain.RawTable{}, fmt.Errorf("line %d column %s: %w", line, cols[j], err)
			}
			vals[j] = v
		}
		t.Timestamps = append(t.Timestamps, strings.TrimSpace(cell(rec, tsIdx)))
		t.Values = append(t.Values, vals)
	}
	return t, nil
}

func selectColumns(header, cols []string) (int, []int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}

	tsIdx, ok := pos[domain.TimestampColumn]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, domain.TimestampColumn)
	}

	var missing []string
	idx := make([]int, len(cols))
	for j, c := range cols {
		i, ok := pos[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		idx[j] = i
	}
	if len(missing) > 0 {
		return 0, nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return tsIdx, idx, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
