// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geocode turns coordinates into human-readable addresses.
package geocode

import (
	"context"
	"strings"

	"github.com/wneessen/mapscreen/internal/geo"
)

// Address is a single reverse geocoding candidate.
type Address struct {
	Coordinate   geo.Coordinate
	DisplayName  string
	Country      string
	State        string
	Municipality string
	CityDistrict string
	Postcode     string
	City         string
	Suburb       string
	Street       string
	HouseNumber  string
	CacheHit     bool
}

// Geocoder is a reverse geocoding service returning at most limit candidates, best match
// first. No match is not an error.
type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, coord geo.Coordinate, limit int) ([]Address, error)
}

// FormattedLine returns the one-line address of the candidate. Providers without a display
// name get a line composed of the address components.
func (a Address) FormattedLine() string {
	if line := strings.TrimSpace(a.DisplayName); line != "" {
		return line
	}

	var parts []string
	if street := strings.TrimSpace(strings.Join(nonEmpty(a.Street, a.HouseNumber), " ")); street != "" {
		parts = append(parts, street)
	}
	if city := strings.TrimSpace(strings.Join(nonEmpty(a.Postcode, a.City), " ")); city != "" {
		parts = append(parts, city)
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
