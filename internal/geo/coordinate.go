// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geo provides the coordinate value type shared by the location, geocoding and map
// packages.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	EarthRadius = 6371000.0 // meters

	// TruncPrecision is the number of decimal places positioning sources are truncated to
	// (~11m at the equator).
	TruncPrecision = 4
)

// Fallback is the coordinate used when no location could be acquired (San Francisco).
var Fallback = Coordinate{Lat: 37.7749, Lon: -122.4194}

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate represents a geographic coordinate in WGS84 degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// New returns a Coordinate for the given latitude and longitude or ErrInvalidCoordinate if
// either is out of range.
func New(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("%w: %s", ErrInvalidCoordinate, c)
	}
	return c, nil
}

// Parse parses a "lat,lon" string.
func Parse(val string) (Coordinate, error) {
	parts := strings.Split(val, ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, val)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("failed to parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("failed to parse longitude: %w", err)
	}
	return New(lat, lon)
}

// Valid checks if the coordinate is valid according to the EPSG:4326 bounds
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// DistanceTo returns the great-circle distance in meters between two coordinates using the
// Haversine formula.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	dLat := (c.Lat - other.Lat) * math.Pi / 180
	dLon := (c.Lon - other.Lon) * math.Pi / 180
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}

// Lerp linearly interpolates between c and to, t being clamped to [0,1].
func (c Coordinate) Lerp(to Coordinate, t float64) Coordinate {
	t = math.Max(0, math.Min(1, t))
	return Coordinate{
		Lat: c.Lat + (to.Lat-c.Lat)*t,
		Lon: c.Lon + (to.Lon-c.Lon)*t,
	}
}

// String returns the coordinate as "lat,lon" using the shortest exact representation.
func (c Coordinate) String() string {
	return FormatDegrees(c.Lat) + "," + FormatDegrees(c.Lon)
}

// FormatDegrees formats a degree value with the fewest digits that represent it exactly.
func FormatDegrees(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

// Truncate cuts x to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
