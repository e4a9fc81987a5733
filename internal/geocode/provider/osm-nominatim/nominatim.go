// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package nominatim

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
	APIReverseEndpoint = "https://nominatim.openstreetmap.org/reverse"
	APITimeout         = time.Second * 10
	name               = "osm-nominatim"
)

type Nominatim struct {
	http     *http.Client
	lang     language.Tag
	endpoint string
}

// ReverseResult is the jsonv2 answer of the reverse endpoint. Nominatim reports coordinates
// without a match as {"error":"Unable to geocode"} with status 200.
type ReverseResult struct {
	Error       string  `json:"error"`
	APILat      string  `json:"lat"`
	APILon      string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

type Address struct {
	HouseNumber  string `json:"house_number"`
	Road         string `json:"road"`
	Suburb       string `json:"suburb"`
	Municipality string `json:"municipality"`
	CityDistrict string `json:"city_district"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	State        string `json:"state"`
	ISO31662Lvl4 string `json:"ISO3166-2-lvl4"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
}

func New(client *http.Client, lang language.Tag) *Nominatim {
	return &Nominatim{
		lang:     lang,
		http:     client,
		endpoint: APIReverseEndpoint,
	}
}

func (n *Nominatim) Name() string {
	return name
}

// Reverse returns the address at coord. The reverse endpoint knows a single match only, so
// any positive limit yields at most one address.
func (n *Nominatim) Reverse(ctx context.Context, coord geo.Coordinate, limit int) ([]geocode.Address, error) {
	if limit < 1 {
		return nil, nil
	}

	var result ReverseResult
	var err error

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", geo.FormatDegrees(coord.Lat))
	query.Set("lon", geo.FormatDegrees(coord.Lon))
	query.Set("accept-language", n.lang.String())

	if _, err = n.http.GetWithTimeout(ctx, n.endpoint, &result, query, nil, APITimeout); err != nil {
		return nil, fmt.Errorf("failed to fetch reverse address details from Nominatim API: %w", err)
	}
	if result.Error != "" {
		return nil, nil
	}

	address := geocode.Address{
		DisplayName:  result.DisplayName,
		Country:      result.Address.Country,
		State:        result.Address.State,
		Municipality: result.Address.Municipality,
		CityDistrict: result.Address.CityDistrict,
		Postcode:     result.Address.Postcode,
		City:         result.Address.City,
		Suburb:       result.Address.Suburb,
		Street:       result.Address.Road,
		HouseNumber:  result.Address.HouseNumber,
	}
	if address.City == "" {
		address.City = result.Address.Town
	}
	if address.City == "" {
		address.City = result.Address.Village
	}
	address.Coordinate.Lat, err = strconv.ParseFloat(result.APILat, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse latitude from Nominatim API response: %w", err)
	}
	address.Coordinate.Lon, err = strconv.ParseFloat(result.APILon, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse longitude from Nominatim API response: %w", err)
	}

	return []geocode.Address{address}, nil
}
