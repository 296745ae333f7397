// Package geo provides an immutable longitude/latitude value usable as a
// map key or set member.
package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// Position is a WGS-84 longitude/latitude pair with an optional display name.
// The zero value is the position 0_0 with an empty name.
type Position struct {
	lon  float64
	lat  float64
	name string
}

// New creates a Position. When no name is given, the canonical key is used.
// Coordinate ranges are not validated.
func New(lon, lat float64, name ...string) Position {
	p := Position{lon: lon, lat: lat}
	if len(name) > 0 {
		p.name = name[0]
	} else {
		p.name = p.Key()
	}
	return p
}

// Parse builds a Position from textual coordinates, e.g. from a CSV cell.
func Parse(lon, lat string, name ...string) (Position, error) {
	lonV, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return Position{}, fmt.Errorf("parse longitude %q: %w", lon, err)
	}
	latV, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Position{}, fmt.Errorf("parse latitude %q: %w", lat, err)
	}
	return New(lonV, latV, name...), nil
}

// Lon returns the longitude in decimal degrees.
func (p Position) Lon() float64 { return p.lon }

// Lat returns the latitude in decimal degrees.
func (p Position) Lat() float64 { return p.lat }

// Name returns the display name, which defaults to Key.
func (p Position) Name() string { return p.name }

// Equal compares longitude and latitude numerically. Names are ignored.
func (p Position) Equal(other Position) bool {
	return p.lon == other.lon && p.lat == other.lat
}

// Key returns the canonical "<lon>_<lat>" string. It is derived from the
// numeric values, so two positions are Equal exactly when their keys match
// (NaN excepted).
func (p Position) Key() string {
	return formatCoord(p.lon) + "_" + formatCoord(p.lat)
}

// String implements fmt.Stringer and returns Key.
func (p Position) String() string { return p.Key() }

func formatCoord(v float64) string {
	if v == 0 {
		// fold -0 into 0
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Set is a collection of distinct positions keyed by Key.
type Set struct {
	items map[string]Position
	order []string
}

// NewSet returns a set containing the given positions.
func NewSet(ps ...Position) *Set {
	s := &Set{items: make(map[string]Position, len(ps))}
	for _, p := range ps {
		s.Add(p)
	}
	return s
}

// Add inserts p and reports whether it was new. An equal position already in
// the set keeps its original name.
func (s *Set) Add(p Position) bool {
	k := p.Key()
	if _, ok := s.items[k]; ok {
		return false
	}
	s.items[k] = p
	s.order = append(s.order, k)
	return true
}

// Contains reports whether a position equal to p is in the set.
func (s *Set) Contains(p Position) bool {
	_, ok := s.items[p.Key()]
	return ok
}

// Len returns the number of distinct positions.
func (s *Set) Len() int { return len(s.items) }

// Positions returns the members in insertion order.
func (s *Set) Positions() []Position {
	out := make([]Position, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}
