// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package mapview

import (
	"math"
	"testing"

	"github.com/wneessen/mapscreen/internal/geo"
)

func TestNewViewport(t *testing.T) {
	t.Run("invalid dimensions fail", func(t *testing.T) {
		if _, err := NewViewport(Camera{Center: geo.Fallback, Zoom: DefaultZoom}, 0, 10, 0); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
	t.Run("cell pixels default", func(t *testing.T) {
		vp, err := NewViewport(Camera{Center: geo.Fallback, Zoom: DefaultZoom}, 10, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if vp.CellPixels != DefaultCellPixels {
			t.Errorf("expected %d cell pixels, got %f", DefaultCellPixels, vp.CellPixels)
		}
	})
}

func TestViewport_Project(t *testing.T) {
	vp := testViewport(t, Camera{Center: geo.Fallback, Zoom: LocationZoom})
	t.Run("camera center is in the middle", func(t *testing.T) {
		col, row, ok := vp.Project(geo.Fallback)
		if !ok {
			t.Fatal("expected center to be visible")
		}
		if col != vp.Width/2 || row != vp.Height/2 {
			t.Errorf("expected cell %d/%d, got %d/%d", vp.Width/2, vp.Height/2, col, row)
		}
	})
	t.Run("north is up and east is right", func(t *testing.T) {
		col, row, _ := vp.Project(geo.Coordinate{Lat: geo.Fallback.Lat + 0.002, Lon: geo.Fallback.Lon + 0.002})
		if col <= vp.Width/2 || row >= vp.Height/2 {
			t.Errorf("expected north-east cell, got %d/%d", col, row)
		}
	})
	t.Run("far coordinates are off screen", func(t *testing.T) {
		if vp.Contains(target) {
			t.Error("expected coordinate to be off screen")
		}
	})
}

func TestViewport_Unproject(t *testing.T) {
	vp := testViewport(t, Camera{Center: geo.Fallback, Zoom: LocationZoom})
	t.Run("unprojected cells project back", func(t *testing.T) {
		for _, cell := range [][2]int{{0, 0}, {10, 5}, {40, 12}, {79, 23}} {
			c := vp.Unproject(cell[0], cell[1])
			col, row, ok := vp.Project(c)
			if !ok || col != cell[0] || row != cell[1] {
				t.Errorf("expected cell %v, got %d/%d (%t)", cell, col, row, ok)
			}
		}
	})
	t.Run("center cell is close to the camera", func(t *testing.T) {
		c := vp.Unproject(vp.Width/2, vp.Height/2)
		if d := c.DistanceTo(geo.Fallback); d > 100 {
			t.Errorf("expected center cell within 100m of the camera, got %fm", d)
		}
	})
	t.Run("coordinates are clamped at the edge of the world", func(t *testing.T) {
		world := testViewport(t, Camera{Center: geo.Coordinate{}, Zoom: 0})
		c := world.Unproject(-1000, -1000)
		if !c.Valid() || c.Lat > MaxLatitude {
			t.Errorf("expected clamped coordinate, got %s", c)
		}
	})
}

func TestViewport_Bounds(t *testing.T) {
	vp := testViewport(t, Camera{Center: geo.Fallback, Zoom: LocationZoom})
	box := vp.Bounds()
	if box.SouthWest.Lat >= geo.Fallback.Lat || box.NorthEast.Lat <= geo.Fallback.Lat {
		t.Errorf("expected box to enclose the center latitude, got %+v", box)
	}
	if box.SouthWest.Lon >= geo.Fallback.Lon || box.NorthEast.Lon <= geo.Fallback.Lon {
		t.Errorf("expected box to enclose the center longitude, got %+v", box)
	}
	ratio := (box.NorthEast.Lon - box.SouthWest.Lon) / 360
	want := float64(vp.Width) * vp.CellPixels / (TileSize * math.Pow(2, LocationZoom))
	if math.Abs(ratio-want) > 1e-7 {
		t.Errorf("expected viewport to span %f of the world, got %f", want, ratio)
	}
}

func testViewport(t *testing.T, camera Camera) Viewport {
	t.Helper()
	vp, err := NewViewport(camera, 80, 24, DefaultCellPixels)
	if err != nil {
		t.Fatalf("failed to create viewport: %s", err)
	}
	return vp
}
