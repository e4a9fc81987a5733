// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocodeearth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/geocode"
	"github.com/wneessen/mapscreen/internal/http"
)

const (
	APIEndpoint = "https://api.geocode.earth/v1/reverse"
	APITimeout  = time.Second * 10
	name        = "geocode-earth"
)

type GeocodeEarth struct {
	apikey string
	http   *http.Client
	lang   language.Tag
}

type Response struct {
	Features []Feature `json:"features"`
	Type     string    `json:"type"`
}

type Feature struct {
	Properties Properties `json:"properties"`
	Type       string     `json:"type"`
}

type Properties struct {
	DisplayName    string `json:"label"`
	City           string `json:"locality"`
	CityDistrict   string `json:"county"`
	Continent      string `json:"continent"`
	Country        string `json:"country"`
	CountryCode    string `json:"country_code"`
	HouseNumber    string `json:"housenumber"`
	PoliticalUnion string `json:"political_union"`
	Municipality   string `json:"neighbourhood"`
	Postcode       string `json:"postalcode"`
	Road           string `json:"street"`
	State          string `json:"region"`
	StateCode      string `json:"region_a"`
}

func New(client *http.Client, lang language.Tag, apikey string) *GeocodeEarth {
	return &GeocodeEarth{
		apikey: apikey,
		lang:   lang,
		http:   client,
	}
}

func (g *GeocodeEarth) Name() string {
	return name
}

func (g *GeocodeEarth) Reverse(ctx context.Context, coord geo.Coordinate, limit int) ([]geocode.Address, error) {
	if limit < 1 {
		return nil, nil
	}

	var response Response
	query := url.Values{}
	query.Set("api_key", g.apikey)
	query.Set("point.lat", geo.FormatDegrees(coord.Lat))
	query.Set("point.lon", geo.FormatDegrees(coord.Lon))
	query.Set("size", strconv.Itoa(limit))
	query.Set("lang", g.lang.String())

	if _, err := g.http.GetWithTimeout(ctx, APIEndpoint, &response, query, nil, APITimeout); err != nil {
		return nil, fmt.Errorf("failed to retrieve address details from geocode.earth API: %w", err)
	}

	addresses := make([]geocode.Address, 0, min(limit, len(response.Features)))
	for _, feature := range response.Features {
		if len(addresses) == limit {
			break
		}
		result := feature.Properties
		addresses = append(addresses, geocode.Address{
			Coordinate:   coord,
			DisplayName:  result.DisplayName,
			Country:      result.Country,
			State:        result.State,
			Municipality: result.Municipality,
			CityDistrict: result.CityDistrict,
			Postcode:     result.Postcode,
			City:         result.City,
			Street:       result.Road,
			HouseNumber:  result.HouseNumber,
		})
	}
	return addresses, nil
}
