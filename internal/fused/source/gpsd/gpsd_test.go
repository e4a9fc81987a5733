// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/gpspoll"
)

const (
	testLat = 40.7185
	testLon = -74.0025
)

func TestNew(t *testing.T) {
	source := New(DefaultHost, DefaultPort)
	if source == nil {
		t.Fatal("expected source to be non-nil")
	}
	if !strings.EqualFold(source.Name(), name) {
		t.Errorf("expected source name to be %s, got %s", name, source.Name())
	}
	if source.addr != "localhost:2947" {
		t.Errorf("expected address to be localhost:2947, got %s", source.addr)
	}
}

func TestSource_Locate(t *testing.T) {
	t.Run("locate succeeds with a 2D fix", func(t *testing.T) {
		source := New(DefaultHost, DefaultPort)
		source.locateFn = func(context.Context) (gpspoll.Fix, error) {
			return gpspoll.Fix{Position: geo.Coordinate{Lat: testLat, Lon: testLon}, Accuracy: 12, Mode: gpspoll.Mode2D}, nil
		}
		fix, err := source.Locate(t.Context())
		if err != nil {
			t.Fatalf("failed to locate: %s", err)
		}
		if fix.Coordinate != (geo.Coordinate{Lat: testLat, Lon: testLon}) {
			t.Errorf("expected coordinate %f,%f, got %s", testLat, testLon, fix.Coordinate)
		}
		if fix.AccuracyMeters != 12 {
			t.Errorf("expected accuracy to be 12, got %f", fix.AccuracyMeters)
		}
		if fix.TTL != source.ttl {
			t.Errorf("expected TTL to be %s, got %s", source.ttl, fix.TTL)
		}
	})
	t.Run("locate fails without a 2D fix", func(t *testing.T) {
		source := New(DefaultHost, DefaultPort)
		source.locateFn = func(context.Context) (gpspoll.Fix, error) {
			return gpspoll.Fix{Position: geo.Coordinate{Lat: testLat, Lon: testLon}, Accuracy: 12, Mode: gpspoll.ModeNoFix}, nil
		}
		if _, err := source.Locate(t.Context()); !errors.Is(err, gpspoll.ErrNoFix) {
			t.Errorf("expected error to be %s, got %s", gpspoll.ErrNoFix, err)
		}
	})
	t.Run("locate fails on poll error", func(t *testing.T) {
		source := New(DefaultHost, DefaultPort)
		source.locateFn = func(context.Context) (gpspoll.Fix, error) {
			return gpspoll.Fix{}, errors.New("intentionally failing")
		}
		if _, err := source.Locate(t.Context()); err == nil {
			t.Error("expected locate to fail")
		}
	})
	t.Run("locate fails on invalid coordinates", func(t *testing.T) {
		source := New(DefaultHost, DefaultPort)
		source.locateFn = func(context.Context) (gpspoll.Fix, error) {
			return gpspoll.Fix{Position: geo.Coordinate{Lat: 91, Lon: testLon}, Accuracy: 12, Mode: gpspoll.Mode3D}, nil
		}
		if _, err := source.Locate(t.Context()); !errors.Is(err, geo.ErrInvalidCoordinate) {
			t.Errorf("expected error to be %s, got %s", geo.ErrInvalidCoordinate, err)
		}
	})
}

func TestSource_Stream(t *testing.T) {
	t.Run("stream without gpsd returns nil", func(t *testing.T) {
		source := New("127.0.0.1", "1")
		if ch := source.Stream(t.Context()); ch != nil {
			t.Error("expected stream to be nil")
		}
	})
}

func TestTpvAccuracy(t *testing.T) {
	if acc := tpvAccuracy(&gpsd.TPVReport{Epx: 3, Epy: 4}); acc != math.Hypot(3, 4) {
		t.Errorf("expected accuracy to be 5, got %f", acc)
	}
	if acc := tpvAccuracy(&gpsd.TPVReport{}); acc != accuracy2DFix {
		t.Errorf("expected accuracy to be %d, got %f", accuracy2DFix, acc)
	}
}
