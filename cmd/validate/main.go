// Command validate checks the integrity of a preprocessor output directory:
// aggregate headers, forcing file shape, and that each site's forcing rows
// match its rows in the daily aggregate.
//
// It reads the same environment configuration as fluxprep.
//
// Usage:
//
//	BASE_DIR=/data/fluxnet go run ./cmd/validate [-dir vut_ref]
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/adapter/sitelist"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/adapter/tsv"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/config"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/geo"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// outputs is everything read from the output directory.
type outputs struct {
	dailyHeader   []string
	daily         [][]string
	monthlyHeader []string
	monthly       [][]string
	forcing       map[string][]tsv.ForcingRecord // keyed by site id
}

func main() {
	dir := flag.String("dir", "", "output directory to check (defaults to BASE_DIR/OUTPUT_DIR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	if *dir == "" {
		*dir = cfg.OutputPath()
	}

	os.Exit(run(os.Stdout, cfg, *dir))
}

func run(w io.Writer, cfg *config.Config, dir string) int {
	fmt.Fprintln(w, "=== Fluxnet Output Validation ===")
	fmt.Fprintln(w)

	sites, err := sitelist.Load(cfg.SiteListPath(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	out, err := loadOutputs(cfg, dir)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateHeaders(cfg, out),
		validateForcingShape(cfg, out),
		validateSiteParity(sites, out),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-36s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records: %d forcing files, %d daily rows, %d monthly rows\n",
		len(out.forcing), len(out.daily), len(out.monthly))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func loadOutputs(cfg *config.Config, dir string) (*outputs, error) {
	var out outputs
	var err error

	out.dailyHeader, out.daily, err = tsv.ReadTable(filepath.Join(dir, cfg.DailyOutput))
	if err != nil {
		return nil, err
	}
	out.monthlyHeader, out.monthly, err = tsv.ReadTable(filepath.Join(dir, cfg.MonthlyOutput))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out.forcing = make(map[string][]tsv.ForcingRecord)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == cfg.DailyOutput || name == cfg.MonthlyOutput || !strings.HasSuffix(name, tsv.ForcingExt) {
			continue
		}
		recs, err := tsv.ReadForcing(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out.forcing[strings.TrimSuffix(name, tsv.ForcingExt)] = recs
	}
	return &out, nil
}

// ── Phases ──

func validateHeaders(cfg *config.Config, out *outputs) *phase {
	p := &phase{name: "Aggregate headers"}

	want := domain.NewAggregate(domain.Daily, cfg.BenchmarkColumns).Header(cfg.ColumnMap)
	if !slices.Equal(want, out.dailyHeader) {
		p.errorf("daily header = %v, want %v", out.dailyHeader, want)
	}
	want = domain.NewAggregate(domain.Monthly, cfg.BenchmarkColumns).Header(cfg.ColumnMap)
	if !slices.Equal(want, out.monthlyHeader) {
		p.errorf("monthly header = %v, want %v", out.monthlyHeader, want)
	}

	for i, row := range out.daily {
		if len(row) != len(out.dailyHeader) {
			p.errorf("daily row %d: %d fields, header has %d", i+1, len(row), len(out.dailyHeader))
		}
	}
	for i, row := range out.monthly {
		if len(row) != len(out.monthlyHeader) {
			p.errorf("monthly row %d: %d fields, header has %d", i+1, len(row), len(out.monthlyHeader))
		}
	}
	return p
}

func validateForcingShape(cfg *config.Config, out *outputs) *phase {
	p := &phase{name: "Forcing file shape"}
	want := len(cfg.ForcingColumns)

	for _, site := range sortedKeys(out.forcing) {
		for i, rec := range out.forcing[site] {
			if len(rec.Values) != want {
				p.errorf("%s line %d: %d forcing values, want %d", site, i+1, len(rec.Values), want)
			}
			if rec.Year == "" {
				p.errorf("%s line %d: missing year (malformed timestamp)", site, i+1)
				continue
			}
			cal, err := domain.NormalizeTimestamp(rec.Year + rec.MonthDay)
			if err != nil {
				p.errorf("%s line %d: invalid date %s%s", site, i+1, rec.Year, rec.MonthDay)
				continue
			}
			if cal.Cadence() != domain.Daily {
				p.errorf("%s line %d: %s%s is not a daily date", site, i+1, rec.Year, rec.MonthDay)
			}
		}
	}
	return p
}

// validateSiteParity compares, per coordinate, the number of forcing rows
// with the number of daily aggregate rows. Sites sharing a coordinate are
// counted together since aggregate rows carry no site id.
func validateSiteParity(sites *sitelist.Directory, out *outputs) *phase {
	p := &phase{name: "Forcing/aggregate row parity"}

	forcing := geo.NewSet()
	expected := make(map[string]int)
	for _, id := range sortedKeys(out.forcing) {
		site, ok := sites.Lookup(id)
		if !ok {
			p.errorf("forcing file %s has no site list entry", id)
			continue
		}
		forcing.Add(site.Position)
		expected[site.Position.Key()] += len(out.forcing[id])
	}

	daily := geo.NewSet()
	actual := make(map[string]int)
	for i, row := range out.daily {
		if len(row) < 2 {
			continue
		}
		pos, err := geo.Parse(row[0], row[1])
		if err != nil {
			p.errorf("daily row %d: %v", i+1, err)
			continue
		}
		daily.Add(pos)
		actual[pos.Key()]++
	}

	for _, pos := range forcing.Positions() {
		if n := actual[pos.Key()]; n != expected[pos.Key()] {
			p.errorf("position %s: %d forcing rows, %d daily aggregate rows", pos.Key(), expected[pos.Key()], n)
		}
	}
	for _, pos := range daily.Positions() {
		if !forcing.Contains(pos) {
			p.errorf("position %s: %d daily aggregate rows without a forcing file", pos.Key(), actual[pos.Key()])
		}
	}
	return p
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
