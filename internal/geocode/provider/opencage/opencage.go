// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package opencage

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
	APIEndpoint = "https://api.opencagedata.com/geocode/v1/json"
	APITimeout  = time.Second * 10
	name        = "opencage"
)

type OpenCage struct {
	apikey string
	http   *http.Client
	lang   language.Tag
}

type Response struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
}

type Result struct {
	Components  Components `json:"components"`
	DisplayName string     `json:"formatted"`
	Geometry    Geometry   `json:"geometry"`
}

type Components struct {
	NomalizedCity  string `json:"_normalized_city"`
	City           string `json:"city"`
	CityDistrict   string `json:"city_district"`
	Continent      string `json:"continent"`
	Country        string `json:"country"`
	CountryCode    string `json:"country_code"`
	HouseNumber    string `json:"house_number"`
	PoliticalUnion string `json:"political_union"`
	Municipality   string `json:"municipality"`
	Postcode       string `json:"postcode"`
	Road           string `json:"road"`
	State          string `json:"state"`
	StateCode      string `json:"state_code"`
	Suburb         string `json:"suburb"`
	Town           string `json:"town"`
	Village        string `json:"village"`
}

type Geometry struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

func New(client *http.Client, lang language.Tag, apikey string) *OpenCage {
	return &OpenCage{
		apikey: apikey,
		lang:   lang,
		http:   client,
	}
}

func (o *OpenCage) Name() string {
	return name
}

func (o *OpenCage) Reverse(ctx context.Context, coord geo.Coordinate, limit int) ([]geocode.Address, error) {
	if limit < 1 {
		return nil, nil
	}

	var response Response
	query := url.Values{}
	query.Set("key", o.apikey)
	query.Set("q", coord.String())
	query.Set("limit", strconv.Itoa(limit))
	query.Set("no_annotations", "1")
	query.Set("no_record", "1")
	query.Set("language", o.lang.String())

	if _, err := o.http.GetWithTimeout(ctx, APIEndpoint, &response, query, nil, APITimeout); err != nil {
		return nil, fmt.Errorf("failed to retrieve address details from OpenCage API: %w", err)
	}

	addresses := make([]geocode.Address, 0, len(response.Results))
	for _, result := range response.Results {
		if len(addresses) == limit {
			break
		}
		comp := result.Components
		address := geocode.Address{
			Coordinate:   geo.Coordinate{Lat: result.Geometry.Lat, Lon: result.Geometry.Lon},
			DisplayName:  result.DisplayName,
			Country:      comp.Country,
			State:        comp.State,
			Municipality: comp.Municipality,
			CityDistrict: comp.CityDistrict,
			Postcode:     comp.Postcode,
			City:         comp.NomalizedCity,
			Suburb:       comp.Suburb,
			Street:       comp.Road,
			HouseNumber:  comp.HouseNumber,
		}
		if comp.Town != "" {
			address.City = comp.Town
		}
		if comp.Village != "" {
			address.City = comp.Village
		}
		addresses = append(addresses, address)
	}
	return addresses, nil
}
