package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TimestampColumn is the compact timestamp column of Fluxnet FULLSET tables.
const TimestampColumn = "TIMESTAMP"

// Schema names the measurement columns read from every member table.
type Schema struct {
	Forcing   []string
	Benchmark []string
}

// Measurements returns forcing columns followed by benchmark columns.
func (s Schema) Measurements() []string {
	out := make([]string, 0, len(s.Forcing)+len(s.Benchmark))
	out = append(out, s.Forcing...)
	return append(out, s.Benchmark...)
}

// RawTable is a member table restricted to the timestamp and measurement
// columns, before normalization.
type RawTable struct {
	Columns    []string
	Timestamps []string
	Values     [][]float64 // one slice per row, aligned to Columns
}

// Len returns the number of data rows.
func (t RawTable) Len() int { return len(t.Timestamps) }

// Observation is one normalized row. When Malformed is true Calendar is empty.
type Observation struct {
	RawTimestamp string
	Calendar     Calendar
	Malformed    bool
	Values       []float64
}

// SiteTable is a site's normalized table of one cadence. Site metadata
// applies to every row.
type SiteTable struct {
	Site    Site
	Cadence Cadence
	Columns []string
	Rows    []Observation
}

// Index returns the position of column name in Columns, or -1.
func (t SiteTable) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Require reports ErrMissingColumn if any of names is absent.
func (t SiteTable) Require(names []string) error {
	_, err := columnIndexes(t, names)
	return err
}

// NewSiteTable normalizes every timestamp of raw and attaches site metadata.
// Malformed timestamps do not fail the table; they are returned as warnings
// and the affected rows keep empty calendar fields.
func NewSiteTable(site Site, cadence Cadence, raw RawTable) (SiteTable, []error) {
	t := SiteTable{
		Site:    site,
		Cadence: cadence,
		Columns: raw.Columns,
		Rows:    make([]Observation, 0, raw.Len()),
	}

	var warnings []error
	for i, ts := range raw.Timestamps {
		obs := Observation{RawTimestamp: ts, Values: raw.Values[i]}
		cal, err := NormalizeTimestamp(ts)
		if err != nil {
			var mte *MalformedTimestampError
			if errors.As(err, &mte) {
				mte.Row = i + 1
			}
			warnings = append(warnings, err)
			obs.Malformed = true
		} else {
			obs.Calendar = cal
		}
		t.Rows = append(t.Rows, obs)
	}
	return t, warnings
}

// ParseValue parses a measurement cell. Empty and NA-style cells are NaN.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NA", "N/A", "NaN", "nan", "NAN":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return v, nil
}

// ArchiveTables are the two member tables extracted from one site archive.
type ArchiveTables struct {
	Daily   RawTable
	Monthly RawTable
}
