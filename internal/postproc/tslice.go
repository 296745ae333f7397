package postproc

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/geo"
)

// SliceOptions selects the identifying columns and the time window of
// TimeSlice. A column is given by label or 1-based number; empty means
// detect it from the header.
type SliceOptions struct {
	Lon  string
	Lat  string
	Year string

	From *float64 // inclusive; nil for open
	To   *float64 // inclusive; nil for open
}

// Slice is a table with one row per grid cell, in first-seen order.
type Slice struct {
	Header []string
	Rows   [][]string
}

// cell accumulates the rows of one grid cell.
type cell struct {
	lon, lat string
	sum      []float64
	n        []int
	first    []string
}

// TimeSlice collapses a table to one record per grid cell, averaging every
// other column over the rows whose year lies inside the window. The year
// column is dropped from the output. Empty and NA cells are left out of the
// averages; a column with any non-numeric cell (such as IGBP) keeps the
// cell's first value. Rows without parseable coordinates are ignored.
//
// Averages are printed with as many decimals as the column's most precise
// input, or in shortest form when the column uses exponent notation.
func TimeSlice(header []string, rows [][]string, opts SliceOptions, logger *slog.Logger) (Slice, error) {
	if len(header) < 3 {
		return Slice{}, fmt.Errorf("at least three columns expected, got %d", len(header))
	}
	if opts.From != nil && opts.To != nil && *opts.To < *opts.From {
		return Slice{}, fmt.Errorf("to (%g) is before from (%g)", *opts.To, *opts.From)
	}

	lonCol, latCol, yearCol := detectColumns(header)
	var err error
	if lonCol, err = resolveColumn(header, opts.Lon, lonCol); err != nil {
		return Slice{}, err
	}
	if latCol, err = resolveColumn(header, opts.Lat, latCol); err != nil {
		return Slice{}, err
	}
	if yearCol, err = resolveColumn(header, opts.Year, yearCol); err != nil {
		return Slice{}, err
	}
	if lonCol == latCol || lonCol == yearCol || latCol == yearCol {
		return Slice{}, errors.New("longitude, latitude and year must be separate columns")
	}

	var valueCols []int
	for i := range header {
		if i != lonCol && i != latCol && i != yearCol {
			valueCols = append(valueCols, i)
		}
	}

	places := make([]int, len(valueCols))
	shortest := make([]bool, len(valueCols))
	text := make([]bool, len(valueCols))

	cells := geo.NewSet()
	acc := make(map[string]*cell)
	used := 0
	for i, row := range rows {
		line := i + 2
		if rowBlank(row) {
			continue
		}
		pos, err := geo.Parse(field(row, lonCol), field(row, latCol))
		if err != nil {
			logger.Warn("row has no usable coordinates, ignoring", "line", line, "error", err)
			continue
		}
		if !inWindow(field(row, yearCol), opts) {
			continue
		}

		if cells.Add(pos) {
			acc[pos.Key()] = &cell{
				lon:   strings.TrimSpace(field(row, lonCol)),
				lat:   strings.TrimSpace(field(row, latCol)),
				sum:   make([]float64, len(valueCols)),
				n:     make([]int, len(valueCols)),
				first: make([]string, len(valueCols)),
			}
		}
		c := acc[pos.Key()]
		used++

		for j, col := range valueCols {
			s := strings.TrimSpace(field(row, col))
			if s == "" {
				continue
			}
			if c.first[j] == "" {
				c.first[j] = s
			}
			v, err := domain.ParseValue(s)
			if err != nil {
				text[j] = true
				continue
			}
			if math.IsNaN(v) {
				continue
			}
			c.sum[j] += v
			c.n[j]++
			if strings.ContainsAny(s, "eE") {
				shortest[j] = true
			} else if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s)-dot-1 > places[j] {
				places[j] = len(s) - dot - 1
			}
		}
	}

	out := Slice{Header: []string{label(opts.Lon, "Lon"), label(opts.Lat, "Lat")}}
	for _, col := range valueCols {
		out.Header = append(out.Header, header[col])
	}
	for _, pos := range cells.Positions() {
		c := acc[pos.Key()]
		rec := []string{c.lon, c.lat}
		for j := range valueCols {
			switch {
			case text[j]:
				rec = append(rec, c.first[j])
			case c.n[j] == 0:
				rec = append(rec, "")
			case shortest[j]:
				rec = append(rec, strconv.FormatFloat(c.sum[j]/float64(c.n[j]), 'g', -1, 64))
			default:
				rec = append(rec, strconv.FormatFloat(c.sum[j]/float64(c.n[j]), 'f', places[j], 64))
			}
		}
		out.Rows = append(out.Rows, rec)
	}

	logger.Info("time slice built", "cells", cells.Len(), "rows_used", used, "rows_read", len(rows))
	return out, nil
}

// detectColumns guesses lon, lat and year from the header labels: "year"
// by exact (case-insensitive) match, lon and lat by a three-letter prefix.
// Undetected lon/lat fall back to the first two columns, year to the third.
func detectColumns(header []string) (lon, lat, year int) {
	lon, lat, year = -1, -1, -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case l == "year" && year < 0:
			year = i
		case len(l) > 2:
			if lon < 0 && strings.HasPrefix(l, "lon") {
				lon = i
			}
			if lat < 0 && strings.HasPrefix(l, "lat") {
				lat = i
			}
		}
	}
	if lon < 0 || lat < 0 {
		lon, lat = 0, 1
	}
	if year < 0 {
		year = 2
	}
	return lon, lat, year
}

// resolveColumn maps a label or 1-based column number to an index. Labels
// match exactly first, then case-insensitively.
func resolveColumn(header []string, sel string, detected int) (int, error) {
	if sel == "" {
		return detected, nil
	}
	if n, err := strconv.Atoi(sel); err == nil && n >= 1 {
		if n > len(header) {
			return 0, fmt.Errorf("column %d out of range (%d columns)", n, len(header))
		}
		return n - 1, nil
	}
	for i, h := range header {
		if h == sel {
			return i, nil
		}
	}
	for i, h := range header {
		if strings.EqualFold(h, sel) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", domain.ErrMissingColumn, sel)
}

func label(sel, def string) string {
	if sel == "" {
		return def
	}
	if n, err := strconv.Atoi(sel); err == nil && n >= 1 {
		return def
	}
	return sel
}

func inWindow(raw string, opts SliceOptions) bool {
	if opts.From == nil && opts.To == nil {
		return true
	}
	year, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false
	}
	if opts.From != nil && year < *opts.From {
		return false
	}
	if opts.To != nil && year > *opts.To {
		return false
	}
	return true
}

func rowBlank(row []string) bool {
	for _, s := range row {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
