// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoip provides a positioning source based on the public IP address.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/mapscreen/internal/fused"
	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/http"
)

const (
	apiEndpoint   = "https://reallyfreegeoip.org/json/"
	lookupTimeout = time.Second * 5
	name          = "geoip"
)

type Source struct {
	name     string
	endpoint string
	http     *http.Client
	ttl      time.Duration
}

type APIResult struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country_name"`
	RegionCode  string  `json:"region_code,omitempty"`
	Region      string  `json:"region_name,omitempty"`
	City        string  `json:"city,omitempty"`
	ZipCode     string  `json:"zip_code,omitempty"`
	TimeZone    string  `json:"time_zone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

func New(http *http.Client) (*Source, error) {
	if http == nil {
		return nil, errors.New("http client is required")
	}
	return &Source{
		name:     name,
		endpoint: apiEndpoint,
		http:     http,
		ttl:      time.Hour,
	}, nil
}

func (s *Source) Name() string {
	return s.name
}

// Locate looks up the public IP address. The accuracy is derived from the most specific
// administrative area the API knows about.
func (s *Source) Locate(ctx context.Context) (fused.Fix, error) {
	ctxHttp, cancelHttp := context.WithTimeout(ctx, lookupTimeout)
	defer cancelHttp()

	result := new(APIResult)
	if _, err := s.http.Get(ctxHttp, s.endpoint, result, nil, nil); err != nil {
		return fused.Fix{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	acc := float64(fused.AccuracyUnknown)
	switch {
	case result.ZipCode != "":
		acc = fused.AccuracyZip
	case result.City != "":
		acc = fused.AccuracyCity
	case result.RegionCode != "":
		acc = fused.AccuracyRegion
	case result.CountryCode != "":
		acc = fused.AccuracyCountry
	}

	coord, err := geo.New(geo.Truncate(result.Latitude, geo.TruncPrecision),
		geo.Truncate(result.Longitude, geo.TruncPrecision))
	if err != nil {
		return fused.Fix{}, fmt.Errorf("API returned invalid coordinates: %w", err)
	}
	return fused.NewFix(s.name, coord, acc, s.ttl), nil
}
