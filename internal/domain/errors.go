package domain

import (
	"errors"
	"fmt"
)

// Site errors abort processing of the archive they occur in.
var (
	ErrMissingMetadata    = errors.New("site metadata not found")
	ErrMissingTable       = errors.New("observation table not found")
	ErrMissingColumn      = errors.New("required column not found")
	ErrInvalidValue       = errors.New("invalid numeric value")
	ErrInvalidArchiveName = errors.New("invalid archive name")
)

// ErrMalformedTimestamp is a per-row warning, never fatal.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// MalformedTimestampError carries the offending raw timestamp. Row is the
// 1-based data row when known.
type MalformedTimestampError struct {
	Raw string
	Row int
}

func (e *MalformedTimestampError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: malformed timestamp %q", e.Row, e.Raw)
	}
	return fmt.Sprintf("malformed timestamp %q", e.Raw)
}

func (e *MalformedTimestampError) Is(target error) bool {
	return target == ErrMalformedTimestamp
}

// SiteError attributes a failure to one archive.
type SiteError struct {
	Site    string
	Archive string
	Err     error
}

func (e *SiteError) Error() string {
	if e.Site == "" {
		return fmt.Sprintf("archive %s: %v", e.Archive, e.Err)
	}
	return fmt.Sprintf("site %s (%s): %v", e.Site, e.Archive, e.Err)
}

func (e *SiteError) Unwrap() error { return e.Err }

// IsSiteError reports whether err is a per-site condition rather than a
// fatal I/O failure.
func IsSiteError(err error) bool {
	return errors.Is(err, ErrMissingMetadata) ||
		errors.Is(err, ErrMissingTable) ||
		errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInvalidArchiveName)
}
