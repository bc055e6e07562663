package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/geo"
	"github.com/woozymasta/hospmap/internal/spatial"
)

func testLoader(ds config.Datasets) *Loader {
	return NewLoader(nil, ds, 0)
}

func TestFetch_File(t *testing.T) {
	l := testLoader(config.Datasets{Facilities: config.Source{Path: "testdata/hospitals.geojson"}})

	coll, err := l.Fetch(context.Background(), KindFacilities)
	if err != nil {
		t.Fatal(err)
	}
	if coll.CRS != geo.WGS84 {
		t.Errorf("crs: got %q", coll.CRS)
	}
	if len(coll.Features) != 5 {
		t.Errorf("features: got %d", len(coll.Features))
	}
}

func TestFetch_HTTP(t *testing.T) {
	body, err := os.ReadFile("testdata/regions.geojson")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/regions.geojson":
			w.Header().Set("Content-Type", "application/geo+json")
			_, _ = w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLoader(srv.Client(), config.Datasets{
		Regions:  config.Source{URL: srv.URL + "/regions.geojson"},
		Boundary: config.Source{URL: srv.URL + "/missing.geojson"},
	}, 0)

	coll, err := l.Fetch(context.Background(), KindRegions)
	if err != nil {
		t.Fatal(err)
	}
	if len(coll.Features) != 3 {
		t.Errorf("features: got %d", len(coll.Features))
	}

	_, err = l.Fetch(context.Background(), KindBoundary)
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("want ErrDataUnavailable for 404, got %v", err)
	}
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name string
		src  config.Source
	}{
		{"not configured", config.Source{}},
		{"missing file", config.Source{Path: "testdata/nope.geojson"}},
		{"broken json", config.Source{Path: "testdata/broken.geojson"}},
		{"bad scheme", config.Source{URL: "ftp://example.org/x.geojson"}},
		{"unknown crs", config.Source{Path: "testdata/hospitals.geojson", CRS: "EPSG:21037"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := testLoader(config.Datasets{Counts: tc.src})
			coll, err := l.Fetch(context.Background(), KindCounts)
			if !errors.Is(err, ErrDataUnavailable) {
				t.Fatalf("want ErrDataUnavailable, got %v", err)
			}
			if len(coll.Features) != 0 || coll.Kind != KindCounts {
				t.Errorf("failed fetch should yield an empty collection, got %+v", coll)
			}
		})
	}
}

func TestFetch_SizeLimit(t *testing.T) {
	l := NewLoader(nil, config.Datasets{Facilities: config.Source{Path: "testdata/hospitals.geojson"}}, 16)
	if _, err := l.Fetch(context.Background(), KindFacilities); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("want ErrDataUnavailable for oversize payload, got %v", err)
	}
}

func TestFetch_DeclaredCRSWins(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/merc.geojson"
	payload := `{"type":"FeatureCollection",
		"crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::3857"}},
		"features":[{"type":"Feature","properties":{"name":"A"},
		"geometry":{"type":"Point","coordinates":[4098474.5,-143212.2]}}]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	l := testLoader(config.Datasets{Facilities: config.Source{Path: path, CRS: "EPSG:4326"}})
	coll, err := l.Fetch(context.Background(), KindFacilities)
	if err != nil {
		t.Fatal(err)
	}
	if coll.CRS != geo.WebMercator {
		t.Fatalf("crs: got %q", coll.CRS)
	}

	fs := Facilities(coll, "name")
	if len(fs) != 1 || fs[0].Location.X != 4098474.5 {
		t.Errorf("display-CRS input must pass through unchanged: %+v", fs)
	}
}

func TestFetchAll_IndependentFailures(t *testing.T) {
	l := testLoader(config.Datasets{
		Facilities: config.Source{Path: "testdata/nope.geojson"},
		Regions:    config.Source{Path: "testdata/regions.geojson"},
		Counts:     config.Source{Path: "testdata/counts.geojson"},
	})

	var mu sync.Mutex
	got := map[Kind]error{}
	sizes := map[Kind]int{}

	l.FetchAll(context.Background(), AllKinds, func(k Kind, c Collection, err error) {
		mu.Lock()
		defer mu.Unlock()
		got[k] = err
		sizes[k] = len(c.Features)
	})

	if len(got) != len(AllKinds) {
		t.Fatalf("want %d completions, got %d", len(AllKinds), len(got))
	}
	if !errors.Is(got[KindFacilities], ErrDataUnavailable) || !errors.Is(got[KindBoundary], ErrDataUnavailable) {
		t.Errorf("facilities/boundary should fail: %v / %v", got[KindFacilities], got[KindBoundary])
	}
	if got[KindRegions] != nil || sizes[KindRegions] != 3 {
		t.Errorf("regions: err=%v size=%d", got[KindRegions], sizes[KindRegions])
	}
	if got[KindCounts] != nil {
		t.Errorf("counts: %v", got[KindCounts])
	}
}

func TestExtract(t *testing.T) {
	l := testLoader(config.Datasets{
		Facilities: config.Source{Path: "testdata/hospitals.geojson"},
		Regions:    config.Source{Path: "testdata/regions.geojson"},
		Counts:     config.Source{Path: "testdata/counts.geojson"},
	})
	ctx := context.Background()

	fc, _ := l.Fetch(ctx, KindFacilities)
	rc, _ := l.Fetch(ctx, KindRegions)
	cc, _ := l.Fetch(ctx, KindCounts)

	facilities := Facilities(fc, "name")
	if len(facilities) != 3 {
		t.Fatalf("facilities: got %d", len(facilities))
	}
	for i, f := range facilities {
		if f.Index != i {
			t.Errorf("facility %q index %d, want %d", f.Name, f.Index, i)
		}
		if f.Location.CRS != geo.Display {
			t.Errorf("facility %q not normalized", f.Name)
		}
	}

	regions := Regions(rc, "Sub_County")
	if len(regions) != 2 {
		t.Fatalf("regions: got %d", len(regions))
	}

	idx, err := spatial.Join(regions, facilities)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Starehe", "Dagoretti", ""}
	for i, w := range want {
		if got := idx.Facilities()[i].RegionName; got != w {
			t.Errorf("%s: got %q want %q", facilities[i].Name, got, w)
		}
	}

	counts := Counts(cc, "Sub_County", "Hospital_Count")
	wantCounts := map[string]int{"Dagoretti": 12, "Starehe": 7, "Kasarani": 0}
	if len(counts) != len(wantCounts) {
		t.Fatalf("counts: got %+v", counts)
	}
	for _, c := range counts {
		if wantCounts[c.RegionName] != c.Count {
			t.Errorf("%s: got %d want %d", c.RegionName, c.Count, wantCounts[c.RegionName])
		}
	}
}

func TestOutline(t *testing.T) {
	l := testLoader(config.Datasets{Boundary: config.Source{Path: "testdata/regions.geojson"}})
	coll, err := l.Fetch(context.Background(), KindBoundary)
	if err != nil {
		t.Fatal(err)
	}

	o := Outline(coll)
	if len(o.Parts) != 2 {
		t.Fatalf("parts: got %d", len(o.Parts))
	}
	for _, p := range o.Parts {
		if p.SRID() != geo.Display.SRID() {
			t.Errorf("outline part SRID %d", p.SRID())
		}
	}
}
