// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package fused

import (
	"context"
	"time"

	"github.com/wneessen/mapscreen/internal/geo"
)

const accuracyEpsilon = 1e-6

// Accuracy radii in meters assigned to fixes whose source does not report one.
const (
	AccuracyCountry = 300000
	AccuracyRegion  = 100000
	AccuracyCity    = 15000
	AccuracyZip     = 3000
	AccuracyUnknown = 1000000
)

// Source is a single positioning source merged by the fused provider.
type Source interface {
	Name() string
	Locate(ctx context.Context) (Fix, error)
}

// Streamer is implemented by sources that push fixes on their own schedule instead of being
// polled by the Tracker.
type Streamer interface {
	Source
	Stream(ctx context.Context) <-chan Fix
}

// Fix is a single position report of a Source.
type Fix struct {
	Coordinate     geo.Coordinate
	AccuracyMeters float64
	Source         string
	At             time.Time
	TTL            time.Duration
}

// NewFix returns a Fix for the given source, stamped with the current time.
func NewFix(source string, coord geo.Coordinate, accuracy float64, ttl time.Duration) Fix {
	return Fix{
		Coordinate:     coord,
		AccuracyMeters: accuracy,
		Source:         source,
		At:             time.Now(),
		TTL:            ttl,
	}
}

// BetterThan reports whether f is more accurate than prev without being older.
func (f Fix) BetterThan(prev Fix) bool {
	if prev.Source == "" {
		return true
	}
	if f.At.Before(prev.At) {
		return false
	}
	return f.AccuracyMeters < prev.AccuracyMeters-accuracyEpsilon
}

// IsExpired checks if the Fix has exceeded its time-to-live.
func (f Fix) IsExpired() bool {
	return f.TTL > 0 && time.Since(f.At) > f.TTL
}

// Usable reports whether the fix carries a valid coordinate and an accuracy.
func (f Fix) Usable() bool {
	return f.AccuracyMeters > 0 && f.Coordinate.Valid()
}
