// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package mapview models the map widget of the screen: the camera and its animation, the
// user location marker and the custom markers dropped by tapping the map.
//
// A MapView is a value. Every operation returns an updated copy and leaves the receiver
// untouched, so that snapshots handed to renderers never change under them.
package mapview

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/wneessen/mapscreen/internal/geo"
)

const (
	DefaultZoom      = 10
	LocationZoom     = 15
	DefaultAnimation = time.Second

	MinZoom = 0
	MaxZoom = 21

	UserTitle   = "Your Location"
	UserSnippet = "You are here"
)

// Camera is the visible center and zoom level of the map.
type Camera struct {
	Center    geo.Coordinate
	Zoom      float64
	Animating bool
}

type animation struct {
	from     Camera
	to       Camera
	start    time.Time
	duration time.Duration
}

func (a animation) at(now time.Time) (Camera, bool) {
	elapsed := now.Sub(a.start)
	if elapsed >= a.duration {
		return a.to, true
	}
	t := ease(float64(elapsed) / float64(a.duration))
	return Camera{
		Center:    a.from.Center.Lerp(a.to.Center, t),
		Zoom:      a.from.Zoom + (a.to.Zoom-a.from.Zoom)*t,
		Animating: true,
	}, false
}

// ease is a smoothstep curve.
func ease(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	return t * t * (3 - 2*t)
}

// Marker is a pin on the map. The user location marker has index 0, custom markers are
// numbered from 1 in tap order.
type Marker struct {
	ID       uuid.UUID
	Index    int
	Position geo.Coordinate
	Title    string
	Snippet  string
}

// IsUser reports whether m is the user location marker.
func (m Marker) IsUser() bool {
	return m.Index == 0
}

// MapView is the state of the map widget.
type MapView struct {
	camera    Camera
	animation *animation
	user      *Marker
	markers   []Marker
	index     *markerIndex
}

// New returns a MapView resting at the given center and zoom.
func New(center geo.Coordinate, zoom float64) MapView {
	return MapView{
		camera: Camera{Center: center, Zoom: clampZoom(zoom)},
		index:  newMarkerIndex(),
	}
}

// Animate starts moving the camera to target over duration. An animation in progress is
// replaced and the new one starts from the current interpolated position.
func (v MapView) Animate(now time.Time, target geo.Coordinate, zoom float64, duration time.Duration) MapView {
	from := v.CameraAt(now)
	from.Animating = false
	to := Camera{Center: target, Zoom: clampZoom(zoom)}
	if duration <= 0 {
		v.camera = to
		v.animation = nil
		return v
	}
	v.camera = from
	v.animation = &animation{from: from, to: to, start: now, duration: duration}
	return v
}

// CameraAt returns the camera as seen at the given time.
func (v MapView) CameraAt(now time.Time) Camera {
	if v.animation == nil {
		return v.camera
	}
	camera, _ := v.animation.at(now)
	return camera
}

// Settle folds a finished animation into the resting camera.
func (v MapView) Settle(now time.Time) MapView {
	if v.animation == nil {
		return v
	}
	if camera, done := v.animation.at(now); done {
		v.camera = camera
		v.animation = nil
	}
	return v
}

// Animating reports whether an animation is still running at the given time.
func (v MapView) Animating(now time.Time) bool {
	return v.CameraAt(now).Animating
}

// Target returns the camera the map is resting at or moving to.
func (v MapView) Target() Camera {
	if v.animation == nil {
		return v.camera
	}
	return v.animation.to
}

// SetUserLocation places the user location marker, replacing a previous one.
func (v MapView) SetUserLocation(c geo.Coordinate) (MapView, Marker) {
	marker := Marker{
		ID:       uuid.New(),
		Position: c,
		Title:    UserTitle,
		Snippet:  UserSnippet,
	}
	v.user = &marker
	return v, marker
}

// UserLocation returns the user location marker if one was set.
func (v MapView) UserLocation() (Marker, bool) {
	if v.user == nil {
		return Marker{}, false
	}
	return *v.user, true
}

// AddMarker appends a custom marker at c. Every call adds a new marker, also for a position
// that already carries one.
func (v MapView) AddMarker(c geo.Coordinate) (MapView, Marker) {
	index := len(v.markers) + 1
	marker := Marker{
		ID:       uuid.New(),
		Index:    index,
		Position: c,
		Title:    fmt.Sprintf("Custom Marker %d", index),
		Snippet:  fmt.Sprintf("Lat: %s, Lng: %s", geo.FormatDegrees(c.Lat), geo.FormatDegrees(c.Lon)),
	}
	v.markers = append(slices.Clip(v.markers), marker)
	if v.index == nil {
		v.index = newMarkerIndex()
	}
	v.index.insert(marker)
	return v, marker
}

// Markers returns the custom markers in tap order.
func (v MapView) Markers() []Marker {
	return slices.Clone(v.markers)
}

// Visible returns the markers inside the viewport, the user location marker first and the
// custom markers in tap order.
func (v MapView) Visible(vp Viewport) []Marker {
	var visible []Marker
	if v.user != nil && vp.Contains(v.user.Position) {
		visible = append(visible, *v.user)
	}
	if len(v.markers) == 0 || v.index == nil {
		return visible
	}
	for _, m := range v.index.search(vp.Bounds()) {
		if m.Index > len(v.markers) || v.markers[m.Index-1].ID != m.ID {
			continue
		}
		if vp.Contains(m.Position) {
			visible = append(visible, m)
		}
	}
	return visible
}

func clampZoom(zoom float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, zoom))
}
