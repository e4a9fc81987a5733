// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpsd provides a positioning source reading fixes from a local gpsd daemon.
package gpsd

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/mapscreen/internal/fused"
	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/gpspoll"
)

const (
	DefaultHost = "localhost"
	DefaultPort = "2947"
	name        = "gpsd"
	pollTimeout = time.Second * 5
	// accuracy2DFix is used for TPV reports without error estimates.
	accuracy2DFix = 25
)

// Source polls gpsd for single fixes and streams TPV reports while tracking.
type Source struct {
	name     string
	addr     string
	ttl      time.Duration
	locateFn func(ctx context.Context) (gpspoll.Fix, error)
}

// New returns a Source for the gpsd instance at host and port.
func New(host, port string) *Source {
	client := gpspoll.New(host, port)
	return &Source{
		name:     name,
		addr:     net.JoinHostPort(host, port),
		ttl:      time.Minute * 2,
		locateFn: client.Poll,
	}
}

func (s *Source) Name() string {
	return s.name
}

// Locate polls gpsd once and fails if the receiver has no 2D fix.
func (s *Source) Locate(ctx context.Context) (fused.Fix, error) {
	ctxPoll, cancelPoll := context.WithTimeout(ctx, pollTimeout)
	defer cancelPoll()

	fix, err := s.locateFn(ctxPoll)
	if err != nil {
		return fused.Fix{}, fmt.Errorf("failed to poll gpsd: %w", err)
	}
	if !fix.Positioned() {
		return fused.Fix{}, gpspoll.ErrNoFix
	}
	return s.createFix(fix.Position, fix.Accuracy)
}

// Stream watches gpsd and emits every TPV report with at least a 2D fix. The channel is
// closed when the gpsd connection ends or the context is cancelled.
func (s *Source) Stream(ctx context.Context) <-chan fused.Fix {
	session, err := gpsd.Dial(s.addr)
	if err != nil {
		return nil
	}

	out := make(chan fused.Fix)
	var mu sync.Mutex
	closed := false
	session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok || tpv.Mode < gpsd.Mode2D {
			return
		}
		fix, err := s.createFix(geo.Coordinate{Lat: tpv.Lat, Lon: tpv.Lon}, tpvAccuracy(tpv))
		if err != nil {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case <-ctx.Done():
		case out <- fix:
		}
	})

	done := session.Watch()
	go func() {
		// go-gpsd offers no way to close a session, the watch ends with the connection
		select {
		case <-ctx.Done():
		case <-done:
		}
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out
}

func (s *Source) createFix(coord geo.Coordinate, acc float64) (fused.Fix, error) {
	coord = geo.Coordinate{
		Lat: geo.Truncate(coord.Lat, geo.TruncPrecision),
		Lon: geo.Truncate(coord.Lon, geo.TruncPrecision),
	}
	if !coord.Valid() {
		return fused.Fix{}, fmt.Errorf("%w: %s", geo.ErrInvalidCoordinate, coord)
	}
	return fused.NewFix(s.name, coord, acc, s.ttl), nil
}

func tpvAccuracy(tpv *gpsd.TPVReport) float64 {
	if tpv.Epx > 0 && tpv.Epy > 0 {
		return math.Hypot(tpv.Epx, tpv.Epy)
	}
	return accuracy2DFix
}
