// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package screen

import (
	"time"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/geocode"
	"github.com/wneessen/mapscreen/internal/location"
	"github.com/wneessen/mapscreen/internal/permission"
)

// Event is an input to Apply.
type Event interface {
	Time() time.Time
}

// Started is posted once when the screen is entered.
type Started struct {
	At time.Time
}

// PermissionResolved carries the outcome of a permission request.
type PermissionResolved struct {
	At     time.Time
	Status permission.Status
	Err    error
}

// RetryRequested is posted when the user asks for the permission again.
type RetryRequested struct {
	At time.Time
}

// LocationAcquired carries the result of the location acquirer.
type LocationAcquired struct {
	At     time.Time
	Result location.Result
}

// AddressResolved carries a resolved address line.
type AddressResolved struct {
	At     time.Time
	Result geocode.Result
}

// Tapped is a tap on the map.
type Tapped struct {
	At         time.Time
	Coordinate geo.Coordinate
}

// CameraMoved is a pan or zoom gesture. It stops a running camera animation.
type CameraMoved struct {
	At     time.Time
	Center geo.Coordinate
	Zoom   float64
}

// Tick advances the clock of the camera animation.
type Tick struct {
	At time.Time
}

func (e Started) Time() time.Time            { return e.At }
func (e PermissionResolved) Time() time.Time { return e.At }
func (e RetryRequested) Time() time.Time     { return e.At }
func (e LocationAcquired) Time() time.Time   { return e.At }
func (e AddressResolved) Time() time.Time    { return e.At }
func (e Tapped) Time() time.Time             { return e.At }
func (e CameraMoved) Time() time.Time        { return e.At }
func (e Tick) Time() time.Time               { return e.At }

// Effect is a side effect requested by Apply.
type Effect interface {
	effect()
}

// RequestPermission asks the permission gate for location access.
type RequestPermission struct{}

// AcquireLocation runs the location acquirer once.
type AcquireLocation struct{}

// ResolveAddress reverse geocodes a coordinate.
type ResolveAddress struct {
	Coordinate geo.Coordinate
}

// SettleCamera posts a Tick once the camera animation is due to finish.
type SettleCamera struct {
	After time.Duration
}

func (RequestPermission) effect() {}
func (AcquireLocation) effect()   {}
func (ResolveAddress) effect()    {}
func (SettleCamera) effect()      {}
