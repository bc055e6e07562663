// Package config handles configuration loading and shared data structures.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration file structure.
type Config struct {
	Title       string        `yaml:"title"`
	Attribution string        `yaml:"attribution,omitempty"`
	Datasets    Datasets      `yaml:"datasets"`
	Properties  PropertyKeys  `yaml:"properties"`
	View        ViewConfig    `yaml:"view"`
	Browse      BrowseConfig  `yaml:"browse"`
	Style       StyleConfig   `yaml:"style"`
	Fetch       FetchConfig   `yaml:"fetch"`
	Tiles       TilesConfig   `yaml:"tiles"`
	Session     SessionConfig `yaml:"session"`
}

// Datasets lists the four external feature collections.
type Datasets struct {
	Facilities Source `yaml:"facilities"`
	Boundary   Source `yaml:"boundary"`
	Regions    Source `yaml:"regions"`
	Counts     Source `yaml:"counts"`
}

// Source locates one feature collection. Exactly one of URL or Path is set.
type Source struct {
	URL  string `yaml:"url,omitempty"`
	Path string `yaml:"path,omitempty"`
	CRS  string `yaml:"crs,omitempty"` // declared source CRS, default EPSG:4326
}

// Location returns the URL or path, whichever is configured.
func (s Source) Location() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

// PropertyKeys are the feature property names shared with the data providers.
type PropertyKeys struct {
	FacilityName string `yaml:"facility_name"`
	RegionName   string `yaml:"region_name"`
	Count        string `yaml:"count"`
}

// ViewConfig describes the initial map view.
type ViewConfig struct {
	Center      [2]float64 `yaml:"center"` // lon, lat (WGS84)
	Zoom        int        `yaml:"zoom"`
	FocusZoom   int        `yaml:"focus_zoom"`
	PopupAnchor string     `yaml:"popup_anchor"`
}

// BrowseConfig controls region list pagination.
type BrowseConfig struct {
	PageSize int `yaml:"page_size"`
}

// StyleConfig holds layer colors.
type StyleConfig struct {
	FacilityIcon  string `yaml:"facility_icon"`
	FacilityFill  string `yaml:"facility_fill"`
	BoundaryColor string `yaml:"boundary_color"`
	RegionColor   string `yaml:"region_color"`
}

// FetchConfig controls dataset retrieval.
type FetchConfig struct {
	TimeoutSec int   `yaml:"timeout_sec"`
	MaxBytes   int64 `yaml:"max_bytes"`
}

// TilesConfig configures the basemap tile cache.
type TilesConfig struct {
	Upstream  string     `yaml:"upstream"` // template with {z} {x} {y}
	CacheDir  string     `yaml:"cache_dir"`
	UserAgent string     `yaml:"user_agent"`
	BBox      [4]float64 `yaml:"bbox"` // minLon, minLat, maxLon, maxLat for seeding
	MinZoom   int        `yaml:"min_zoom"`
	MaxZoom   int        `yaml:"max_zoom"`
	Quality   int        `yaml:"quality"`
}

// SessionConfig controls the per-visitor session store.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// Load reads and parses the YAML configuration file from the specified path.
// ${VAR} and ${VAR:-default} references are expanded from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes configuration bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Title == "" {
		c.Title = "Hospitals in Nairobi"
	}
	if c.Properties.FacilityName == "" {
		c.Properties.FacilityName = "name"
	}
	if c.Properties.RegionName == "" {
		c.Properties.RegionName = "Sub_County"
	}
	if c.Properties.Count == "" {
		c.Properties.Count = "Hospital_Count"
	}
	if c.View.Center == [2]float64{} {
		c.View.Center = [2]float64{36.817223, -1.286389}
	}
	if c.View.Zoom <= 0 {
		c.View.Zoom = 12
	}
	if c.View.FocusZoom <= 0 {
		c.View.FocusZoom = 20
	}
	if c.View.PopupAnchor == "" {
		c.View.PopupAnchor = "popup"
	}
	if c.Browse.PageSize <= 0 {
		c.Browse.PageSize = 10
	}
	if c.Style.FacilityIcon == "" {
		c.Style.FacilityIcon = "hospital"
	}
	if c.Style.FacilityFill == "" {
		c.Style.FacilityFill = "#FF5733"
	}
	if c.Style.BoundaryColor == "" {
		c.Style.BoundaryColor = "#1E3A8A"
	}
	if c.Style.RegionColor == "" {
		c.Style.RegionColor = "#64748B"
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = 15
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 64 << 20
	}
	if c.Tiles.Upstream == "" {
		c.Tiles.Upstream = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	}
	if c.Tiles.CacheDir == "" {
		c.Tiles.CacheDir = "tiles"
	}
	if c.Tiles.UserAgent == "" {
		c.Tiles.UserAgent = "hospmap/1.0"
	}
	if c.Tiles.MaxZoom <= 0 {
		c.Tiles.MaxZoom = 14
	}
	if c.Tiles.Quality <= 0 || c.Tiles.Quality > 100 {
		c.Tiles.Quality = 80
	}
	if c.Session.TTLMinutes <= 0 {
		c.Session.TTLMinutes = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	sources := map[string]Source{
		"facilities": c.Datasets.Facilities,
		"boundary":   c.Datasets.Boundary,
		"regions":    c.Datasets.Regions,
		"counts":     c.Datasets.Counts,
	}
	for name, s := range sources {
		if s.URL != "" && s.Path != "" {
			return fmt.Errorf("datasets.%s: url and path are mutually exclusive", name)
		}
	}
	if c.Datasets.Facilities.Location() == "" {
		return fmt.Errorf("datasets.facilities is required")
	}
	if lon, lat := c.View.Center[0], c.View.Center[1]; lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("view.center out of range: %v", c.View.Center)
	}
	if c.Tiles.MinZoom < 0 || c.Tiles.MinZoom > c.Tiles.MaxZoom {
		return fmt.Errorf("tiles.min_zoom must be between 0 and tiles.max_zoom, got %d", c.Tiles.MinZoom)
	}
	if !strings.Contains(c.Tiles.Upstream, "{z}") {
		return fmt.Errorf("tiles.upstream must contain {z}, {x} and {y} placeholders")
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
