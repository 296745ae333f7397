package domain

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/geo"
)

// Site is the static metadata of one monitored Fluxnet site.
type Site struct {
	ID       string
	Position geo.Position
	IGBP     string // land-cover classification, e.g. "ENF"
}

// SiteDirectory resolves site identifiers to metadata.
type SiteDirectory interface {
	Lookup(id string) (Site, bool)
}

// SiteIDFromArchive extracts the site identifier from an archive filename,
// the second underscore-delimited token:
//
//	FLX_AB-1_FLUXNET2015_FULLSET_2001-2014.zip -> AB-1
func SiteIDFromArchive(path string) (string, error) {
	parts := strings.Split(filepath.Base(path), "_")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidArchiveName, filepath.Base(path))
	}
	return parts[1], nil
}
