// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package ichnaea provides a positioning source that resolves nearby WiFi access points
// through an Ichnaea compatible geolocate API.
package ichnaea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/mapscreen/internal/fused"
	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/http"
)

const (
	apiEndpoint   = "https://api.beacondb.net/v1/geolocate"
	lookupTimeout = time.Second * 5
	name          = "ichnaea"
)

type Source struct {
	name   string
	http   *http.Client
	wlan   *wifi.Client
	ttl    time.Duration
	scanFn func() ([]WirelessNetwork, error)
}

type APIResult struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

type WirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

// New returns a Source using the given HTTP client. Systems without nl80211 support still get
// a working source, the API then falls back to the IP address of the request.
func New(http *http.Client) (*Source, error) {
	if http == nil {
		return nil, errors.New("http client is required")
	}
	source := &Source{
		name: name,
		http: http,
		ttl:  time.Hour,
	}
	source.scanFn = func() ([]WirelessNetwork, error) { return nil, nil }
	if wlan, err := wifi.New(); err == nil {
		source.wlan = wlan
		source.scanFn = source.wifiAccessPoints
	}
	return source, nil
}

func (s *Source) Name() string {
	return s.name
}

// Close releases the nl80211 connection.
func (s *Source) Close() error {
	if s.wlan == nil {
		return nil
	}
	return s.wlan.Close()
}

func (s *Source) Locate(ctx context.Context) (fused.Fix, error) {
	aps, err := s.scanFn()
	if err != nil {
		return fused.Fix{}, fmt.Errorf("failed to scan WiFi access points: %w", err)
	}

	type request struct {
		ConsiderIP   bool              `json:"considerIp"`
		Accesspoints []WirelessNetwork `json:"wifiAccessPoints,omitempty"`
	}
	bodyBuffer := bytes.NewBuffer(nil)
	if err = json.NewEncoder(bodyBuffer).Encode(request{ConsiderIP: true, Accesspoints: aps}); err != nil {
		return fused.Fix{}, fmt.Errorf("failed to encode wifi list to JSON: %w", err)
	}

	ctxHttp, cancelHttp := context.WithTimeout(ctx, lookupTimeout)
	defer cancelHttp()

	result := new(APIResult)
	if _, err = s.http.Post(ctxHttp, apiEndpoint, result, bodyBuffer,
		map[string]string{"Content-Type": "application/json"}); err != nil {
		return fused.Fix{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	coord, err := geo.New(geo.Truncate(result.Location.Latitude, geo.TruncPrecision),
		geo.Truncate(result.Location.Longitude, geo.TruncPrecision))
	if err != nil {
		return fused.Fix{}, fmt.Errorf("API returned invalid coordinates: %w", err)
	}
	acc := geo.Truncate(result.Accuracy, geo.TruncPrecision)
	if acc <= 0 {
		acc = fused.AccuracyUnknown
	}
	return fused.NewFix(s.name, coord, acc, s.ttl), nil
}

func (s *Source) wifiAccessPoints() ([]WirelessNetwork, error) {
	var list []WirelessNetwork
	ifaces, err := s.wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		aps, err := s.wlan.AccessPoints(iface)
		if err != nil {
			continue
		}
		for _, ap := range aps {
			// networks ending in _nomap opted out of location services
			if ap.SSID == "" || ap.SSID[0] == '\x00' || strings.HasSuffix(ap.SSID, "_nomap") {
				continue
			}
			list = append(list, WirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}
	return list, nil
}
