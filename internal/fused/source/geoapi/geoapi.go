// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoapi provides a positioning source backed by the geoapi.info IP lookup.
package geoapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wneessen/mapscreen/internal/fused"
	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/http"
)

const (
	apiEndpoint   = "https://geoapi.info/api/geo"
	lookupTimeout = time.Second * 5
	name          = "geoapi"
)

type Source struct {
	name string
	http *http.Client
	ttl  time.Duration
}

type APIResult struct {
	IP       string `json:"ip"`
	Location struct {
		CountryCode string `json:"country,omitempty"`
		Country     string `json:"countryName,omitempty"`
		Region      string `json:"region,omitempty"`
		City        string `json:"city,omitempty"`
		ZipCode     string `json:"postalCode,omitempty"`
		TimeZone    string `json:"timezone"`
		Coordinates struct {
			Latitude  string `json:"latitude"`
			Longitude string `json:"longitude"`
		} `json:"coordinates"`
	} `json:"location"`
}

func New(http *http.Client) (*Source, error) {
	if http == nil {
		return nil, errors.New("http client is required")
	}
	return &Source{
		name: name,
		http: http,
		ttl:  time.Hour * 2,
	}, nil
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Locate(ctx context.Context) (fused.Fix, error) {
	ctxHttp, cancelHttp := context.WithTimeout(ctx, lookupTimeout)
	defer cancelHttp()

	result := new(APIResult)
	if _, err := s.http.Get(ctxHttp, apiEndpoint, result, nil, nil); err != nil {
		return fused.Fix{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	acc := float64(fused.AccuracyUnknown)
	switch {
	case result.Location.ZipCode != "":
		acc = fused.AccuracyZip
	case result.Location.City != "":
		acc = fused.AccuracyCity
	case result.Location.Region != "":
		acc = fused.AccuracyRegion
	case result.Location.CountryCode != "":
		acc = fused.AccuracyCountry
	}

	lat, err := strconv.ParseFloat(result.Location.Coordinates.Latitude, 64)
	if err != nil {
		return fused.Fix{}, fmt.Errorf("failed to parse latitude from API response: %w", err)
	}
	lon, err := strconv.ParseFloat(result.Location.Coordinates.Longitude, 64)
	if err != nil {
		return fused.Fix{}, fmt.Errorf("failed to parse longitude from API response: %w", err)
	}
	coord, err := geo.New(geo.Truncate(lat, geo.TruncPrecision), geo.Truncate(lon, geo.TruncPrecision))
	if err != nil {
		return fused.Fix{}, fmt.Errorf("API returned invalid coordinates: %w", err)
	}
	return fused.NewFix(s.name, coord, acc, s.ttl), nil
}
