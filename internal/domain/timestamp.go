package domain

import (
	"strings"
	"time"
)

// Cadence is the reporting frequency of an observation table.
type Cadence int

const (
	Daily Cadence = iota
	Monthly
)

func (c Cadence) String() string {
	switch c {
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// Calendar holds the fields derived from a compact Fluxnet timestamp.
// Day, MonthDay and DOY are only set when HasDay is true.
type Calendar struct {
	Year     string
	Month    string
	Day      string
	MonthDay string
	DOY      int // zero-based day of year
	HasDay   bool
}

// Cadence reports which timestamp shape produced c.
func (c Calendar) Cadence() Cadence {
	if c.HasDay {
		return Daily
	}
	return Monthly
}

// NormalizeTimestamp decomposes a compact timestamp. Accepted shapes:
//
//	YYYYMMDD  daily, must be a real calendar date
//	YYYYMM    monthly, month 01-12
//
// A trailing ".0" is tolerated since some exports write the column as a float.
// Any other input yields a *MalformedTimestampError.
func NormalizeTimestamp(raw string) (Calendar, error) {
	ts := strings.TrimSuffix(strings.TrimSpace(raw), ".0")
	if !allDigits(ts) {
		return Calendar{}, &MalformedTimestampError{Raw: raw}
	}

	switch len(ts) {
	case 8:
		dt, err := time.Parse("20060102", ts)
		if err != nil {
			return Calendar{}, &MalformedTimestampError{Raw: raw}
		}
		return Calendar{
			Year:     ts[:4],
			Month:    ts[4:6],
			Day:      ts[6:],
			MonthDay: ts[4:],
			// the downstream model counts days from 0
			DOY:    dt.YearDay() - 1,
			HasDay: true,
		}, nil
	case 6:
		month := ts[4:]
		if month < "01" || month > "12" {
			return Calendar{}, &MalformedTimestampError{Raw: raw}
		}
		return Calendar{Year: ts[:4], Month: month}, nil
	default:
		return Calendar{}, &MalformedTimestampError{Raw: raw}
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
