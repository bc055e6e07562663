package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
datasets:
  facilities:
    path: data/nairobi-hospitals.geojson
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Browse.PageSize != 10 {
		t.Errorf("page size: got %d", cfg.Browse.PageSize)
	}
	if cfg.View.Center != [2]float64{36.817223, -1.286389} {
		t.Errorf("center: got %v", cfg.View.Center)
	}
	if cfg.View.Zoom != 12 || cfg.View.FocusZoom != 20 {
		t.Errorf("zoom: got %d/%d", cfg.View.Zoom, cfg.View.FocusZoom)
	}
	if cfg.Properties.RegionName != "Sub_County" || cfg.Properties.Count != "Hospital_Count" {
		t.Errorf("property keys: got %+v", cfg.Properties)
	}
	if cfg.Style.FacilityFill != "#FF5733" {
		t.Errorf("facility fill: got %q", cfg.Style.FacilityFill)
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("HOSPMAP_DATA", "/srv/data")

	cfg, err := Parse([]byte(`
datasets:
  facilities:
    path: ${HOSPMAP_DATA}/hospitals.geojson
  counts:
    url: ${HOSPMAP_COUNTS_URL:-https://example.org/counts.geojson}
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Datasets.Facilities.Path != "/srv/data/hospitals.geojson" {
		t.Errorf("facilities path: got %q", cfg.Datasets.Facilities.Path)
	}
	if cfg.Datasets.Counts.URL != "https://example.org/counts.geojson" {
		t.Errorf("counts url: got %q", cfg.Datasets.Counts.URL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing facilities",
			mutate:  func(c *Config) { c.Datasets.Facilities = Source{} },
			wantErr: "datasets.facilities is required",
		},
		{
			name: "url and path",
			mutate: func(c *Config) {
				c.Datasets.Regions = Source{URL: "https://example.org/r.geojson", Path: "r.geojson"}
			},
			wantErr: "datasets.regions: url and path are mutually exclusive",
		},
		{
			name:    "center out of range",
			mutate:  func(c *Config) { c.View.Center = [2]float64{200, 0} },
			wantErr: "view.center out of range",
		},
		{
			name:    "bad zoom range",
			mutate:  func(c *Config) { c.Tiles.MinZoom = 20 },
			wantErr: "tiles.min_zoom",
		},
		{
			name:    "upstream without placeholders",
			mutate:  func(c *Config) { c.Tiles.Upstream = "https://tiles.example.org/" },
			wantErr: "tiles.upstream",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{Datasets: Datasets{Facilities: Source{Path: "f.geojson"}}}
			cfg.ApplyDefaults()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("got %q, want substring %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "title: Test\ndatasets:\n  facilities:\n    url: https://example.org/h.geojson\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Title != "Test" {
		t.Errorf("title: got %q", cfg.Title)
	}
	if cfg.Datasets.Facilities.Location() != "https://example.org/h.geojson" {
		t.Errorf("location: got %q", cfg.Datasets.Facilities.Location())
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	t.Setenv("HOSPMAP_DATA_DIR", "")

	cfg, err := Load("../../config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Datasets.Regions.Path != "data/nairobi-subcounties.geojson" {
		t.Errorf("regions path: got %q", cfg.Datasets.Regions.Path)
	}
	if cfg.Tiles.Upstream != "https://tile.openstreetmap.org/{z}/{x}/{y}.png" {
		t.Errorf("upstream: got %q", cfg.Tiles.Upstream)
	}
	if cfg.View.PopupAnchor != "popup" {
		t.Errorf("popup anchor: got %q", cfg.View.PopupAnchor)
	}
}
