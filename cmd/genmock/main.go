// Command genmock generates a synthetic Fluxnet layout for local runs and
// manual testing: an ISO-8859-1 site list and one FULLSET archive per site
// holding daily and monthly tables. Column names come from the same
// environment configuration fluxprep reads, so the output always matches
// the configured schema.
//
// Usage:
//
//	BASE_DIR=/tmp/fluxnet go run ./cmd/genmock -sites 3 -from 2001 -to 2003
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/adapter/sitelist"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/config"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"
)

// mockSite is one generated site-list entry.
type mockSite struct {
	id   string
	name string
	lon  float64
	lat  float64
	igbp string
}

var templates = []mockSite{
	{id: "FI-Hyy", name: "Hyytiälä", lon: 24.295, lat: 61.8474, igbp: "ENF"},
	{id: "DE-Tha", name: "Tharandt", lon: 13.5652, lat: 50.9624, igbp: "ENF"},
	{id: "US-Ha1", name: "Harvard Forest EMS Tower", lon: -72.1715, lat: 42.5378, igbp: "DBF"},
	{id: "BR-Sa1", name: "Santarém-Km67", lon: -54.9589, lat: -2.8567, igbp: "EBF"},
	{id: "AU-How", name: "Howard Springs", lon: 131.1523, lat: -12.4943, igbp: "WSA"},
	{id: "CH-Cha", name: "Chamau", lon: 8.4104, lat: 47.2102, igbp: "GRA"},
}

// noise is an extra column present in real archives but never selected.
const noise = "TA_F_QC"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	sites := flag.Int("sites", 3, "number of sites to generate (max 6)")
	from := flag.Int("from", 2001, "first year of data")
	to := flag.Int("to", 2002, "last year of data")
	seed := flag.Uint64("seed", 1, "random seed for reproducible output")
	flag.Parse()

	if *sites < 1 || *sites > len(templates) {
		return fmt.Errorf("-sites must be between 1 and %d", len(templates))
	}
	if *to < *from {
		return fmt.Errorf("-to (%d) is before -from (%d)", *to, *from)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	schema := domain.Schema{Forcing: cfg.ForcingColumns, Benchmark: cfg.BenchmarkColumns}
	rng := rand.New(rand.NewPCG(*seed, *seed))

	chosen := templates[:*sites]
	if err := writeSiteList(cfg.SiteListPath(), chosen); err != nil {
		return fmt.Errorf("writing site list: %w", err)
	}
	log.Printf("wrote site list: %s (%d sites)", cfg.SiteListPath(), len(chosen))

	if err := os.MkdirAll(cfg.InputPath(), 0o755); err != nil {
		return err
	}

	var days, months int
	for _, s := range chosen {
		name := fmt.Sprintf("FLX_%s_FLUXNET2015_FULLSET_%d-%d_1-3.zip", s.id, *from, *to)
		counts, err := writeArchive(filepath.Join(cfg.InputPath(), name), siteMembers(s, schema, cfg, *from, *to, rng))
		if err != nil {
			return fmt.Errorf("writing archive for %s: %w", s.id, err)
		}
		days += counts[0]
		months += counts[1]
		log.Printf("%s: %d daily rows, %d monthly rows", s.id, counts[0], counts[1])
	}

	log.Printf("total: %d daily rows, %d monthly rows in %s", days, months, cfg.InputPath())
	return nil
}

func writeSiteList(path string, sites []mockSite) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(charmap.ISO8859_1.NewEncoder().Writer(f))
	if err := w.Write([]string{sitelist.ColSiteID, "SITE_NAME", sitelist.ColLon, sitelist.ColLat, sitelist.ColIGBP}); err != nil {
		return err
	}
	for _, s := range sites {
		rec := []string{s.id, s.name, formatFloat(s.lon), formatFloat(s.lat), s.igbp}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// member is one table inside a generated archive.
type member struct {
	name  string
	write func(io.Writer) (int, error)
}

// writeArchive writes members into a new zip at path and returns the row
// count of each. On any error the partial archive is removed.
func writeArchive(path string, members []member) (counts []int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			return nil, err
		}
		n, err := m.write(w)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.name, err)
		}
		counts = append(counts, n)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return counts, nil
}

// siteMembers describes the daily and monthly tables of one site.
func siteMembers(s mockSite, schema domain.Schema, cfg *config.Config, from, to int, rng *rand.Rand) []member {
	stem := fmt.Sprintf("FLX_%s_FLUXNET2015", s.id)
	span := fmt.Sprintf("%d-%d_1-3.csv", from, to)
	return []member{
		{
			name:  stem + cfg.DailyMarker + span,
			write: func(w io.Writer) (int, error) { return writeTable(w, schema, s, from, to, rng, false) },
		},
		{
			name:  stem + cfg.MonthlyMarker + span,
			write: func(w io.Writer) (int, error) { return writeTable(w, schema, s, from, to, rng, true) },
		},
	}
}

// writeTable emits a comma-separated table with a TIMESTAMP column, every
// schema column, and one unused column. Values follow a seasonal curve
// shifted by hemisphere plus a little noise.
func writeTable(w io.Writer, schema domain.Schema, s mockSite, from, to int, rng *rand.Rand, monthly bool) (int, error) {
	cw := csv.NewWriter(w)
	cols := schema.Measurements()
	header := append([]string{domain.TimestampColumn}, cols...)
	header = append(header, noise)
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	start := time.Date(from, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(to+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	step, layout := func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }, "20060102"
	if monthly {
		step, layout = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }, "200601"
	}

	n := 0
	for t := start; t.Before(end); t = step(t) {
		season := math.Cos(2 * math.Pi * float64(t.YearDay()-196) / 365)
		if s.lat < 0 {
			season = -season
		}
		rec := []string{t.Format(layout)}
		for i := range cols {
			v := 10*season + float64(i) + rng.NormFloat64()
			rec = append(rec, strconv.FormatFloat(v, 'f', 4, 64))
		}
		rec = append(rec, "0")
		if err := cw.Write(rec); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
