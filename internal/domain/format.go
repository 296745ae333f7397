package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders v as the shortest decimal that round-trips, always
// with a fractional part (1 -> "1.0", 10.5 -> "10.5"). Values with a decimal
// exponent below -4 or at least 16 use exponent notation instead
// (0.00001 -> "1e-05", 1e16 -> "1e+16"), matching Python's float repr.
// NaN renders empty.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if v != 0 {
		e := strconv.FormatFloat(v, 'e', -1, 64)
		exp, err := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
		if err == nil && (exp < -4 || exp >= 16) {
			return e
		}
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// FormatFixed renders v with three decimals. NaN renders empty.
func FormatFixed(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// ForcingRows renders the per-site forcing file body: year, month-day and
// the forcing columns at three decimals.
func ForcingRows(t SiteTable, forcing []string) ([][]string, error) {
	idx, err := columnIndexes(t, forcing)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, obs := range t.Rows {
		row := make([]string, 0, 2+len(idx))
		row = append(row, obs.Calendar.Year, obs.Calendar.MonthDay)
		for _, i := range idx {
			row = append(row, FormatFixed(obs.Values[i]))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func columnIndexes(t SiteTable, names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j := t.Index(name)
		if j < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		idx[i] = j
	}
	return idx, nil
}
