// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package mapview

import (
	"errors"
	"math"

	"github.com/wroge/wgs84"

	"github.com/wneessen/mapscreen/internal/geo"
)

const (
	// TileSize is the width of a map tile in pixels at zoom level 0.
	TileSize = 256

	// DefaultCellPixels is the number of map pixels one terminal cell spans horizontally.
	DefaultCellPixels = 16

	// CellAspect is the height to width ratio of a terminal cell.
	CellAspect = 2

	// MaxLatitude is the latitude limit of the Web Mercator projection.
	MaxLatitude = 85.05112878

	worldMeters = 2 * math.Pi * 6378137
)

var (
	toMercator   = wgs84.EPSG().Transform(4326, 3857)
	fromMercator = wgs84.EPSG().Transform(3857, 4326)
)

// Box is a bounding box in degrees.
type Box struct {
	SouthWest geo.Coordinate
	NorthEast geo.Coordinate
}

// Viewport maps between terminal cells and coordinates for a camera position. Cell (0,0) is
// the top left corner.
type Viewport struct {
	Camera     Camera
	Width      int
	Height     int
	CellPixels float64

	centerX float64
	centerY float64
	cellW   float64
	cellH   float64
}

// NewViewport returns the viewport of a width x height cell grid centered on the camera.
func NewViewport(camera Camera, width, height int, cellPixels float64) (Viewport, error) {
	if width <= 0 || height <= 0 {
		return Viewport{}, errors.New("viewport dimensions must be positive")
	}
	if cellPixels <= 0 {
		cellPixels = DefaultCellPixels
	}
	metersPerPixel := worldMeters / (TileSize * math.Pow(2, camera.Zoom))
	x, y := project(camera.Center)
	return Viewport{
		Camera:     camera,
		Width:      width,
		Height:     height,
		CellPixels: cellPixels,
		centerX:    x,
		centerY:    y,
		cellW:      metersPerPixel * cellPixels,
		cellH:      metersPerPixel * cellPixels * CellAspect,
	}, nil
}

// Project returns the cell a coordinate falls into and whether that cell is on screen.
func (vp Viewport) Project(c geo.Coordinate) (col, row int, ok bool) {
	x, y := project(c)
	col = int(math.Floor(float64(vp.Width)/2 + (x-vp.centerX)/vp.cellW))
	row = int(math.Floor(float64(vp.Height)/2 - (y-vp.centerY)/vp.cellH))
	ok = col >= 0 && col < vp.Width && row >= 0 && row < vp.Height
	return col, row, ok
}

// Unproject returns the coordinate at the center of a cell.
func (vp Viewport) Unproject(col, row int) geo.Coordinate {
	x := vp.centerX + (float64(col)+0.5-float64(vp.Width)/2)*vp.cellW
	y := vp.centerY - (float64(row)+0.5-float64(vp.Height)/2)*vp.cellH
	return unproject(x, y)
}

// Bounds returns the area covered by the viewport.
func (vp Viewport) Bounds() Box {
	halfW := float64(vp.Width) / 2 * vp.cellW
	halfH := float64(vp.Height) / 2 * vp.cellH
	return Box{
		SouthWest: unproject(vp.centerX-halfW, vp.centerY-halfH),
		NorthEast: unproject(vp.centerX+halfW, vp.centerY+halfH),
	}
}

// Contains reports whether the coordinate is on screen.
func (vp Viewport) Contains(c geo.Coordinate) bool {
	_, _, ok := vp.Project(c)
	return ok
}

func project(c geo.Coordinate) (float64, float64) {
	x, y, _ := toMercator(c.Lon, clampLatitude(c.Lat), 0)
	return x, y
}

func unproject(x, y float64) geo.Coordinate {
	half := worldMeters / 2
	x = math.Max(-half, math.Min(half, x))
	y = math.Max(-half, math.Min(half, y))
	lon, lat, _ := fromMercator(x, y, 0)
	return geo.Coordinate{
		Lat: clampLatitude(lat),
		Lon: math.Max(-180, math.Min(180, lon)),
	}
}

// clampLatitude limits lat to the range the projection can show. Markers beyond it are drawn
// and indexed on the edge of the map.
func clampLatitude(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}
