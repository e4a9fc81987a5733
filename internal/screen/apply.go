// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package screen

import (
	"github.com/wneessen/mapscreen/internal/permission"
)

// Apply computes the state following an event and the effects to execute for it. Events that
// do not apply to the current phase leave the state untouched.
func Apply(opts Options, state State, event Event) (State, []Effect) {
	switch ev := event.(type) {
	case Started:
		if state.Phase != PhaseUninitialized {
			return state, nil
		}
		state.Phase = PhasePermissionPending
		state.UpdatedAt = ev.At
		return state, []Effect{RequestPermission{}}

	case RetryRequested:
		if state.Phase != PhaseRationale && state.Phase != PhaseDenied {
			return state, nil
		}
		state.Phase = PhasePermissionPending
		state.UpdatedAt = ev.At
		return state, []Effect{RequestPermission{}}

	case PermissionResolved:
		if state.Phase != PhasePermissionPending {
			return state, nil
		}
		state.Permission = ev.Status
		state.PermissionError = ""
		if ev.Err != nil {
			state.PermissionError = ev.Err.Error()
		}
		state.UpdatedAt = ev.At
		switch ev.Status {
		case permission.StatusGranted:
			state.Phase = PhaseMapActive
			return state, []Effect{AcquireLocation{}}
		case permission.StatusNeedsRationale:
			state.Phase = PhaseRationale
		default:
			state.Phase = PhaseDenied
		}
		return state, nil

	case LocationAcquired:
		if state.Phase != PhaseMapActive || state.Located {
			return state, nil
		}
		coord := ev.Result.Coordinate
		state.Located = true
		state.Location = ev.Result
		state.Map, _ = state.Map.SetUserLocation(coord)
		state.Map = state.Map.Animate(ev.At, coord, opts.LocationZoom, opts.Animation)
		state.UpdatedAt = ev.At
		effects := []Effect{ResolveAddress{Coordinate: coord}}
		if opts.Animation > 0 {
			effects = append(effects, SettleCamera{After: opts.Animation})
		}
		return state, effects

	case AddressResolved:
		if state.Phase != PhaseMapActive {
			return state, nil
		}
		state.Address = ev.Result.Text
		state.AddressSeq = ev.Result.Seq
		state.AddressOutcome = ev.Result.Outcome
		state.UpdatedAt = ev.At
		return state, nil

	case Tapped:
		if state.Phase != PhaseMapActive || !ev.Coordinate.Valid() {
			return state, nil
		}
		state.Map, _ = state.Map.AddMarker(ev.Coordinate)
		state.UpdatedAt = ev.At
		return state, []Effect{ResolveAddress{Coordinate: ev.Coordinate}}

	case CameraMoved:
		if state.Phase != PhaseMapActive || !ev.Center.Valid() {
			return state, nil
		}
		state.Map = state.Map.Animate(ev.At, ev.Center, ev.Zoom, 0)
		state.UpdatedAt = ev.At
		return state, nil

	case Tick:
		state.Map = state.Map.Settle(ev.At)
		return state, nil
	}
	return state, nil
}
