// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv = "MAPSCREEN"
	appName   = "mapscreen"

	DefaultTextTpl       = "{{.Icon}} {{trunc .Address 48}}"
	DefaultAltTextTpl    = "{{.Icon}} {{coord .Camera.Center}}"
	DefaultTooltipTpl    = "{{.Address}}\n{{loc \"location\"}}: {{coord .Location}} ({{loc .Source}})\n{{loc \"markers\"}}: {{.MarkerCount}}"
	DefaultAltTooltipTpl = "{{range .Markers}}{{.Title}}: {{.Snippet}}\n{{end}}{{loc \"updated\"}}: {{localizedTime .UpdatedAt}}"
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Log struct {
		// File receives the log output of the terminal screen.
		File        string `fig:"file"`
		GELFAddress string `fig:"gelf_address"`
	} `fig:"log"`

	Map struct {
		DefaultZoom  float64       `fig:"default_zoom" default:"10"`
		LocationZoom float64       `fig:"location_zoom" default:"15"`
		Animation    time.Duration `fig:"animation" default:"1s"`
		CellPixels   float64       `fig:"cell_pixels" default:"16"`
	} `fig:"map"`

	Permission struct {
		// Allowed values: memory, sqlite, postgres
		Store string `fig:"store" default:"memory"`
		DSN   string `fig:"dsn"`
	} `fig:"permission"`

	GeoLocation struct {
		File                   string        `fig:"file"`
		CitynameFile           string        `fig:"cityname_file"`
		GPSDHost               string        `fig:"gpsd_host"`
		GPSDPort               string        `fig:"gpsd_port"`
		RequestTimeout         time.Duration `fig:"request_timeout" default:"10s"`
		PollInterval           time.Duration `fig:"poll_interval" default:"5m"`
		DisableGeoIP           bool          `fig:"disable_geoip"`
		DisableGeoAPI          bool          `fig:"disable_geoapi"`
		DisableGeolocationFile bool          `fig:"disable_geolocation_file"`
		DisableCitynameFile    bool          `fig:"disable_cityname_file"`
		DisableICHNAEA         bool          `fig:"disable_ichnaea"`
		DisableGPSD            bool          `fig:"disable_gpsd"`
	} `fig:"geolocation"`

	Geocoder struct {
		// Allowed values: osm-nominatim, opencage, geocode-earth
		Provider     string        `fig:"provider" default:"osm-nominatim"`
		APIKey       string        `fig:"apikey"`
		CacheTTL     time.Duration `fig:"cache_ttl" default:"1h"`
		CacheMissTTL time.Duration `fig:"cache_miss_ttl" default:"5m"`
	} `fig:"geocoder"`

	Intervals struct {
		Output     time.Duration `fig:"output" default:"30s"`
		CachePurge time.Duration `fig:"cache_purge" default:"15m"`
	} `fig:"intervals"`

	Templates struct {
		Text       string `fig:"text"`
		AltText    string `fig:"alt_text"`
		Tooltip    string `fig:"tooltip"`
		AltTooltip string `fig:"alt_tooltip"`
	} `fig:"templates"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Find returns the directory and file name of the first config file found in the user's
// config directory.
func Find() (string, string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", false
	}
	dir := filepath.Join(home, ".config", appName)
	for _, file := range []string{"config.toml", "config.yaml", "config.yml", "config.json"} {
		if _, err = os.Stat(filepath.Join(dir, file)); err == nil {
			return dir, file, true
		}
	}
	return "", "", false
}

func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Map.DefaultZoom < 0 || c.Map.DefaultZoom > 21 {
		return fmt.Errorf("invalid default zoom: %g", c.Map.DefaultZoom)
	}
	if c.Map.LocationZoom < 0 || c.Map.LocationZoom > 21 {
		return fmt.Errorf("invalid location zoom: %g", c.Map.LocationZoom)
	}
	if c.Map.Animation < 0 {
		return fmt.Errorf("invalid animation duration: %s", c.Map.Animation)
	}
	if c.Map.CellPixels <= 0 {
		return fmt.Errorf("invalid cell pixels: %g", c.Map.CellPixels)
	}

	switch c.Permission.Store {
	case "memory", "postgres":
	case "sqlite":
		if c.Permission.DSN == "" {
			c.Permission.DSN = filepath.Join(dataDir(), "permission.db")
		}
	default:
		return fmt.Errorf("invalid permission store: %s", c.Permission.Store)
	}
	if c.Permission.Store == "postgres" && c.Permission.DSN == "" {
		return fmt.Errorf("permission store postgres requires a DSN")
	}

	switch c.Geocoder.Provider {
	case "osm-nominatim":
	case "opencage", "geocode-earth":
		if c.Geocoder.APIKey == "" {
			return fmt.Errorf("geocoder %s requires an API key", c.Geocoder.Provider)
		}
	default:
		return fmt.Errorf("invalid geocoder provider: %s", c.Geocoder.Provider)
	}
	if c.Intervals.Output <= 0 {
		return fmt.Errorf("invalid output interval: %s", c.Intervals.Output)
	}
	if c.Intervals.CachePurge <= 0 {
		return fmt.Errorf("invalid cache purge interval: %s", c.Intervals.CachePurge)
	}

	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.AltText == "" {
		c.Templates.AltText = DefaultAltTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}
	if c.Templates.AltTooltip == "" {
		c.Templates.AltTooltip = DefaultAltTooltipTpl
	}

	home, _ := os.UserHomeDir()
	if c.GeoLocation.File == "" {
		c.GeoLocation.File = filepath.Join(home, ".config", appName, "geolocation")
	}
	if c.GeoLocation.CitynameFile == "" {
		c.GeoLocation.CitynameFile = filepath.Join(home, ".config", appName, "cityname")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(home, ".cache", appName, appName+".log")
	}

	return nil
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
