// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package nominatim implements forward geocoding of place names against the OpenStreetMap
// Nominatim search API.
package nominatim

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/http"
)

const (
	APISearchEndpoint = "https://nominatim.openstreetmap.org/search"
	APITimeout        = time.Second * 10
)

var ErrNoMatch = errors.New("no place found for query")

type Nominatim struct {
	http     *http.Client
	lang     language.Tag
	endpoint string
}

// SearchResult is a single jsonv2 match of the search endpoint.
type SearchResult struct {
	PlaceID     int     `json:"place_id"`
	APILat      string  `json:"lat"`
	APILon      string  `json:"lon"`
	Category    string  `json:"category"`
	Type        string  `json:"type"`
	PlaceRank   int     `json:"place_rank"`
	Importance  float64 `json:"importance"`
	Addresstype string  `json:"addresstype"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
}

func New(client *http.Client, lang language.Tag) *Nominatim {
	return &Nominatim{
		http:     client,
		lang:     lang,
		endpoint: APISearchEndpoint,
	}
}

// Search returns the coordinate of the best match for a free-form place query like
// "Berlin, Germany".
func (n *Nominatim) Search(ctx context.Context, query string) (geo.Coordinate, error) {
	values := url.Values{}
	values.Set("format", "jsonv2")
	values.Set("q", query)
	values.Set("limit", "1")
	values.Set("accept-language", n.lang.String())

	var results []SearchResult
	if _, err := n.http.GetWithTimeout(ctx, n.endpoint, &results, values, nil, APITimeout); err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to search place on Nominatim API: %w", err)
	}
	if len(results) == 0 {
		return geo.Coordinate{}, fmt.Errorf("%w: %q", ErrNoMatch, query)
	}

	lat, err := strconv.ParseFloat(results[0].APILat, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to parse latitude from Nominatim API response: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].APILon, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to parse longitude from Nominatim API response: %w", err)
	}
	return geo.New(lat, lon)
}
