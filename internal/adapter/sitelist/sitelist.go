// Package sitelist loads the Fluxnet site list, the metadata table that maps
// site identifiers to coordinates and IGBP land cover.
package sitelist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/geo"
)

// Column names in the published site list.
const (
	ColSiteID = "SITE_ID"
	ColLon    = "LOCATION_LONG"
	ColLat    = "LOCATION_LAT"
	ColIGBP   = "IGBP"
)

// Directory is an in-memory site lookup keyed by identifier.
type Directory struct {
	sites map[string]domain.Site
}

// Lookup implements domain.SiteDirectory.
func (d *Directory) Lookup(id string) (domain.Site, bool) {
	s, ok := d.sites[id]
	return s, ok
}

// Len returns the number of distinct sites.
func (d *Directory) Len() int { return len(d.sites) }

// Load opens path and parses it as an ISO-8859-1 encoded CSV.
func Load(path string, logger *slog.Logger) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open site list: %w", err)
	}
	defer f.Close()

	dir, err := Read(charmap.ISO8859_1.NewDecoder().Reader(f), logger)
	if err != nil {
		return nil, fmt.Errorf("read site list %s: %w", path, err)
	}
	return dir, nil
}

// Read parses an already-decoded site list. Rows with a duplicate site
// identifier are ignored in favour of the first occurrence. A row whose
// coordinates do not parse is logged and left out, so looking that site up
// later reports it as missing metadata.
func Read(r io.Reader, logger *slog.Logger) (*Directory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty site list")
	}
	if err != nil {
		return nil, err
	}

	idx, err := headerIndex(header, ColSiteID, ColLon, ColLat, ColIGBP)
	if err != nil {
		return nil, err
	}

	d := &Directory{sites: make(map[string]domain.Site)}
	seen := make(map[string]bool)
	coords := geo.NewSet()
	skipped := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		id := strings.TrimSpace(field(rec, idx[ColSiteID]))
		if id == "" {
			continue
		}
		if seen[id] {
			logger.Warn("duplicate site in site list, keeping first", "site", id, "line", line)
			continue
		}
		seen[id] = true

		pos, err := geo.Parse(field(rec, idx[ColLon]), field(rec, idx[ColLat]), id)
		if err != nil {
			logger.Warn("site has no usable coordinates, skipping", "site", id, "line", line, "error", err)
			skipped++
			continue
		}
		if !coords.Add(pos) {
			logger.Warn("site shares its coordinates with an earlier site", "site", id, "line", line, "position", pos.Key())
		}

		d.sites[id] = domain.Site{
			ID:       id,
			Position: pos,
			IGBP:     strings.TrimSpace(field(rec, idx[ColIGBP])),
		}
	}

	logger.Debug("site list loaded", "sites", len(d.sites), "positions", coords.Len(), "skipped", skipped)
	return d, nil
}

func headerIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		// strip a UTF-8 BOM mis-decoded as Latin-1
		h = strings.TrimPrefix(strings.TrimSpace(h), "ï»¿")
		idx[h] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, name)
		}
	}
	return idx, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
