// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package screen owns the state of the map screen. State changes are computed by Apply from
// events; the side effects Apply asks for are executed by Screen, which feeds their results
// back as events.
package screen

import (
	"time"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/geocode"
	"github.com/wneessen/mapscreen/internal/location"
	"github.com/wneessen/mapscreen/internal/mapview"
	"github.com/wneessen/mapscreen/internal/permission"
)

// MsgFetchingAddress is the address text shown until the first address was resolved.
const MsgFetchingAddress = "Fetching address..."

// Phase is the stage of the screen's life cycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhasePermissionPending
	PhaseRationale
	PhaseDenied
	PhaseMapActive
)

func (p Phase) String() string {
	switch p {
	case PhasePermissionPending:
		return "permission_pending"
	case PhaseRationale:
		return "rationale"
	case PhaseDenied:
		return "denied"
	case PhaseMapActive:
		return "map_active"
	default:
		return "uninitialized"
	}
}

// Options configure the camera behaviour of the screen.
type Options struct {
	DefaultZoom  float64
	LocationZoom float64
	Animation    time.Duration
}

// DefaultOptions returns the stock camera settings.
func DefaultOptions() Options {
	return Options{
		DefaultZoom:  mapview.DefaultZoom,
		LocationZoom: mapview.LocationZoom,
		Animation:    mapview.DefaultAnimation,
	}
}

// State is a snapshot of the screen. It is a value and safe to share between goroutines.
type State struct {
	Phase      Phase
	Permission permission.Status
	// PermissionError is the message of the last failed permission request.
	PermissionError string

	Map      mapview.MapView
	Located  bool
	Location location.Result

	Address        string
	AddressSeq     uint64
	AddressOutcome geocode.Outcome

	UpdatedAt time.Time
}

// NewState returns the initial state, a camera resting on the fallback coordinate.
func NewState(opts Options) State {
	return State{
		Phase:   PhaseUninitialized,
		Map:     mapview.New(geo.Fallback, opts.DefaultZoom),
		Address: MsgFetchingAddress,
	}
}
