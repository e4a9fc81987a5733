// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/mapscreen/internal/config"
	"github.com/wneessen/mapscreen/internal/fused"
	"github.com/wneessen/mapscreen/internal/fused/source/cityname"
	"github.com/wneessen/mapscreen/internal/fused/source/file"
	"github.com/wneessen/mapscreen/internal/fused/source/geoapi"
	"github.com/wneessen/mapscreen/internal/fused/source/geoip"
	"github.com/wneessen/mapscreen/internal/fused/source/gpsd"
	"github.com/wneessen/mapscreen/internal/fused/source/ichnaea"
	"github.com/wneessen/mapscreen/internal/geocode"
	geocodeearth "github.com/wneessen/mapscreen/internal/geocode/provider/geocode-earth"
	"github.com/wneessen/mapscreen/internal/geocode/provider/opencage"
	nominatim "github.com/wneessen/mapscreen/internal/geocode/provider/osm-nominatim"
	"github.com/wneessen/mapscreen/internal/http"
	"github.com/wneessen/mapscreen/internal/logger"
	search "github.com/wneessen/mapscreen/internal/nominatim"
	"github.com/wneessen/mapscreen/internal/permission"
)

// nominatimInterval spaces requests to nominatim.openstreetmap.org as its usage policy asks.
const nominatimInterval = time.Second

// nominatimClient returns the throttled client shared by every Nominatim user of the service.
func (s *Service) nominatimClient() *http.Client {
	if s.nominatimHTTP == nil {
		s.nominatimHTTP = http.New(s.logger).Throttle(nominatimInterval)
	}
	return s.nominatimHTTP
}

func (s *Service) selectSources() ([]fused.Source, error) {
	httpClient := http.New(s.logger)
	var sources []fused.Source

	if !s.config.GeoLocation.DisableGeolocationFile {
		sources = append(sources, file.New(s.config.GeoLocation.File))
	}

	if !s.config.GeoLocation.DisableCitynameFile {
		city, err := cityname.New(s.config.GeoLocation.CitynameFile, search.New(s.nominatimClient(), s.t.Language()))
		if err != nil {
			return nil, fmt.Errorf("failed to create cityname file source: %w", err)
		}
		sources = append(sources, city)
	}

	if !s.config.GeoLocation.DisableGPSD {
		sources = append(sources, gpsd.New(s.config.GeoLocation.GPSDHost, s.config.GeoLocation.GPSDPort))
	}

	if !s.config.GeoLocation.DisableGeoIP {
		gip, err := geoip.New(httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoIP source: %w", err)
		}
		sources = append(sources, gip)
	}

	if !s.config.GeoLocation.DisableGeoAPI {
		gap, err := geoapi.New(httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoAPI source: %w", err)
		}
		sources = append(sources, gap)
	}

	if !s.config.GeoLocation.DisableICHNAEA {
		mls, err := ichnaea.New(httpClient)
		if err != nil {
			s.logger.Error("failed to create ICHNAEA source", logger.Err(err))
		} else {
			sources = append(sources, mls)
			s.closers = append(s.closers, mls)
		}
	}
	if len(sources) == 0 {
		return nil, fused.ErrNoSources
	}

	return sources, nil
}

func (s *Service) selectGeocodeProvider(conf *config.Config, log *logger.Logger, lang language.Tag) (*geocode.CachedGeocoder, error) {
	var geocoder geocode.Geocoder

	switch strings.ToLower(conf.Geocoder.Provider) {
	case "osm-nominatim", "nominatim":
		geocoder = nominatim.New(s.nominatimClient(), lang)
	case "opencage":
		if conf.Geocoder.APIKey == "" {
			return nil, fmt.Errorf("opencage geocoder requires an API key")
		}
		geocoder = opencage.New(http.New(log), lang, conf.Geocoder.APIKey)
	case "geocode-earth":
		if conf.Geocoder.APIKey == "" {
			return nil, fmt.Errorf("geocode-earth geocoder requires an API key")
		}
		geocoder = geocodeearth.New(http.New(log), lang, conf.Geocoder.APIKey)
	default:
		return nil, fmt.Errorf("unsupported geocoder type: %s", conf.Geocoder.Provider)
	}

	return geocode.NewCachedGeocoder(geocoder, conf.Geocoder.CacheTTL, conf.Geocoder.CacheMissTTL), nil
}

func (s *Service) openPermissionStore() (permission.Store, error) {
	store, err := permission.OpenStore(s.config.Permission.Store, s.config.Permission.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open permission store: %w", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		s.closers = append(s.closers, closer)
	}
	return store, nil
}
