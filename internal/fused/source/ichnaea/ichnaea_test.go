// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package ichnaea

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/mapscreen/internal/fused"
	"github.com/wneessen/mapscreen/internal/http"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/testhelper"
)

const (
	testFile = "../../../../testdata/beacondb.json"
	testLat  = 40.7185
	testLon  = -74.0025
	testAcc  = 2000
)

func TestNew(t *testing.T) {
	t.Run("new ICHNAEA source succeeds", func(t *testing.T) {
		source, err := New(http.New(logger.New(slog.LevelInfo)))
		if err != nil {
			t.Fatalf("failed to create ICHNAEA source: %s", err)
		}
		t.Cleanup(func() {
			if err := source.Close(); err != nil {
				t.Errorf("failed to close source: %s", err)
			}
		})
		if !strings.EqualFold(source.Name(), name) {
			t.Errorf("expected source name to be %s, got %s", name, source.Name())
		}
	})
	t.Run("ICHNAEA without http client fails", func(t *testing.T) {
		source, err := New(nil)
		if err == nil {
			t.Fatal("expected source to fail")
		}
		if source != nil {
			t.Fatal("expected source to be nil")
		}
	})
}

func TestSource_Locate(t *testing.T) {
	t.Run("locate succeeds", func(t *testing.T) {
		var sent struct {
			ConsiderIP   bool              `json:"considerIp"`
			Accesspoints []WirelessNetwork `json:"wifiAccessPoints"`
		}
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
				t.Errorf("failed to decode request body: %s", err)
			}
			return testhelper.FileResponse(t, testFile, 200)(req)
		}
		source := testSource(t, rtFn)
		source.scanFn = func() ([]WirelessNetwork, error) {
			return []WirelessNetwork{{MACAddress: "01:23:45:67:89:ab", SignalStrength: -60}}, nil
		}
		fix, err := source.Locate(t.Context())
		if err != nil {
			t.Fatalf("failed to locate coordinates via ICHNAEA: %s", err)
		}
		if fix.Coordinate.Lat != testLat {
			t.Errorf("expected latitude to be %f, got %f", testLat, fix.Coordinate.Lat)
		}
		if fix.Coordinate.Lon != testLon {
			t.Errorf("expected longitude to be %f, got %f", testLon, fix.Coordinate.Lon)
		}
		if fix.AccuracyMeters != testAcc {
			t.Errorf("expected accuracy to be %d, got %f", testAcc, fix.AccuracyMeters)
		}
		if !sent.ConsiderIP {
			t.Error("expected request to consider the IP address")
		}
		if len(sent.Accesspoints) != 1 || sent.Accesspoints[0].MACAddress != "01:23:45:67:89:ab" {
			t.Errorf("expected scanned access point to be sent, got %+v", sent.Accesspoints)
		}
	})
	t.Run("missing accuracy is treated as unknown", func(t *testing.T) {
		source := testSource(t, func(*stdhttp.Request) (*stdhttp.Response, error) {
			return &stdhttp.Response{
				StatusCode: 200,
				Body:       io.NopCloser(strings.NewReader(`{"location":{"lat":1.5,"lng":2.5}}`)),
				Header:     make(stdhttp.Header),
			}, nil
		})
		fix, err := source.Locate(t.Context())
		if err != nil {
			t.Fatalf("failed to locate coordinates via ICHNAEA: %s", err)
		}
		if fix.AccuracyMeters != fused.AccuracyUnknown {
			t.Errorf("expected accuracy to be %d, got %f", fused.AccuracyUnknown, fix.AccuracyMeters)
		}
	})
	t.Run("locate fails on scan error", func(t *testing.T) {
		source := testSource(t, testhelper.FileResponse(t, testFile, 200))
		source.scanFn = func() ([]WirelessNetwork, error) {
			return nil, errors.New("intentionally failing")
		}
		if _, err := source.Locate(t.Context()); err == nil {
			t.Error("expected locate to fail")
		}
	})
	t.Run("locate fails with broken JSON", func(t *testing.T) {
		source := testSource(t, func(*stdhttp.Request) (*stdhttp.Response, error) {
			return &stdhttp.Response{
				StatusCode: 200,
				Body:       io.NopCloser(strings.NewReader("NOT_JSON")),
				Header:     make(stdhttp.Header),
			}, nil
		})
		if _, err := source.Locate(t.Context()); err == nil {
			t.Error("expected locate to fail")
		}
	})
	t.Run("locate fails on HTTP error status", func(t *testing.T) {
		source := testSource(t, func(*stdhttp.Request) (*stdhttp.Response, error) {
			return &stdhttp.Response{
				StatusCode: 404,
				Body:       io.NopCloser(strings.NewReader(`{"error":{"code":404,"message":"Not found"}}`)),
				Header:     make(stdhttp.Header),
			}, nil
		})
		if _, err := source.Locate(t.Context()); !errors.Is(err, http.ErrHTTPStatus) {
			t.Errorf("expected error to be %s, got %s", http.ErrHTTPStatus, err)
		}
	})
}

// This test depends on the WiFi hardware of the system running it.
func TestSource_wifiAccessPoints(t *testing.T) {
	testRequiresWiFi(t)
	source := testSource(t, testhelper.FileResponse(t, testFile, 200))
	if source.wlan == nil {
		t.Skip("no nl80211 support")
	}
	list, err := source.wifiAccessPoints()
	if err != nil {
		t.Fatalf("failed to get WiFi list: %s", err)
	}
	if len(list) == 0 {
		t.Skip("no WiFi access points found, test results are meaningless")
	}
}

func testSource(t *testing.T, fn func(*stdhttp.Request) (*stdhttp.Response, error)) *Source {
	t.Helper()
	client := http.New(logger.New(slog.LevelInfo))
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	source, err := New(client)
	if err != nil {
		t.Fatalf("failed to create ICHNAEA source: %s", err)
	}
	source.scanFn = func() ([]WirelessNetwork, error) { return nil, nil }
	t.Cleanup(func() { _ = source.Close() })
	return source
}

func testRequiresWiFi(t *testing.T) {
	t.Helper()
	wlan, err := wifi.New()
	if err != nil {
		t.Skip("system has no WiFi support, skipping WiFi related tests")
	}
	defer func() { _ = wlan.Close() }()
	ifaces, err := wlan.Interfaces()
	if err != nil {
		t.Skip("no WiFi interfaces found, skipping WiFi related tests")
	}
	for _, iface := range ifaces {
		if iface.Type == wifi.InterfaceTypeStation {
			return
		}
	}
	t.Skip("no WiFi interfaces found, skipping WiFi related tests")
}
