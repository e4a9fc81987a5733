// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package location acquires a single best-effort coordinate for the user.
package location

import (
	"context"
	"log/slog"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/logger"
)

// Priority selects the accuracy requested from the location service.
type Priority int

const (
	PriorityBalanced Priority = iota
	PriorityHighAccuracy
)

// Origin describes which step of the fallback chain produced a coordinate.
type Origin string

const (
	OriginLastKnown Origin = "last_known"
	OriginCurrent   Origin = "current"
	OriginFallback  Origin = "fallback"
)

// Service is the platform location service.
type Service interface {
	// LastKnown returns the cached coordinate, if any.
	LastKnown(ctx context.Context) (geo.Coordinate, bool, error)
	// Current requests a fresh coordinate with the given priority.
	Current(ctx context.Context, priority Priority) (geo.Coordinate, bool, error)
}

// Result is the outcome of a single acquisition.
type Result struct {
	Coordinate geo.Coordinate
	Origin     Origin
}

// Acquirer obtains one coordinate per invocation: the last known location, else a fresh
// high-accuracy fix, else geo.Fallback.
type Acquirer struct {
	service Service
	logger  *logger.Logger
}

// NewAcquirer returns an Acquirer for the given location service.
func NewAcquirer(service Service, log *logger.Logger) *Acquirer {
	return &Acquirer{service: service, logger: log}
}

// Acquire runs the fallback chain and always returns a valid coordinate.
func (a *Acquirer) Acquire(ctx context.Context) Result {
	coord, ok, err := a.service.LastKnown(ctx)
	if err != nil {
		a.logger.Debug("last known location unavailable, using fallback", logger.Err(err))
		return Result{Coordinate: geo.Fallback, Origin: OriginFallback}
	}
	if ok && coord.Valid() {
		return Result{Coordinate: coord, Origin: OriginLastKnown}
	}

	coord, ok, err = a.service.Current(ctx, PriorityHighAccuracy)
	if err != nil {
		a.logger.Debug("current location unavailable, using fallback", logger.Err(err))
		return Result{Coordinate: geo.Fallback, Origin: OriginFallback}
	}
	if ok && coord.Valid() {
		return Result{Coordinate: coord, Origin: OriginCurrent}
	}

	a.logger.Debug("no location fix available, using fallback", slog.String("fallback", geo.Fallback.String()))
	return Result{Coordinate: geo.Fallback, Origin: OriginFallback}
}

// AcquireAsync runs Acquire in its own goroutine. The returned channel delivers exactly one
// result and never blocks the sender, so the receiver may drop it.
func (a *Acquirer) AcquireAsync(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		out <- a.Acquire(ctx)
	}()
	return out
}
