package domain

import "strconv"

// Identifying columns of the aggregate tables, before renaming.
const (
	ColLon   = "Lon"
	ColLat   = "Lat"
	ColYear  = "Year"
	ColDOY   = "DOY"
	ColMonth = "Month"
	ColIGBP  = "IGBP"
)

// Aggregate accumulates the benchmark rows of every processed site for one
// cadence. Rows are kept as rendered cells in a single buffer and
// materialized once when written.
type Aggregate struct {
	cadence   Cadence
	benchmark []string
	rows      [][]string
}

// NewAggregate creates an empty aggregate for the given cadence.
func NewAggregate(cadence Cadence, benchmark []string) *Aggregate {
	return &Aggregate{cadence: cadence, benchmark: benchmark}
}

// Columns returns the column names before renaming:
//
//	daily:   Lon Lat Year DOY   IGBP <benchmarks...>
//	monthly: Lon Lat Year Month IGBP <benchmarks...>
func (a *Aggregate) Columns() []string {
	period := ColDOY
	if a.cadence == Monthly {
		period = ColMonth
	}
	cols := []string{ColLon, ColLat, ColYear, period, ColIGBP}
	return append(cols, a.benchmark...)
}

// Header returns Columns with rename applied. Unmapped names pass through.
func (a *Aggregate) Header(rename map[string]string) []string {
	cols := a.Columns()
	for i, c := range cols {
		if to, ok := rename[c]; ok && to != "" {
			cols[i] = to
		}
	}
	return cols
}

// Append adds every row of t and returns the number of rows added.
func (a *Aggregate) Append(t SiteTable) (int, error) {
	idx, err := columnIndexes(t, a.benchmark)
	if err != nil {
		return 0, err
	}

	lon := FormatNumber(t.Site.Position.Lon())
	lat := FormatNumber(t.Site.Position.Lat())
	for _, obs := range t.Rows {
		row := make([]string, 0, 5+len(idx))
		row = append(row, lon, lat, obs.Calendar.Year, a.period(obs), t.Site.IGBP)
		for _, i := range idx {
			row = append(row, FormatNumber(obs.Values[i]))
		}
		a.rows = append(a.rows, row)
	}
	return len(t.Rows), nil
}

func (a *Aggregate) period(obs Observation) string {
	if a.cadence == Monthly {
		return obs.Calendar.Month
	}
	if !obs.Calendar.HasDay {
		return ""
	}
	return strconv.Itoa(obs.Calendar.DOY)
}

// Rows returns the buffered rows in append order.
func (a *Aggregate) Rows() [][]string { return a.rows }

// Len returns the number of buffered rows.
func (a *Aggregate) Len() int { return len(a.rows) }
