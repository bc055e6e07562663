package spatial

import (
	"errors"
	"reflect"
	"testing"

	"github.com/woozymasta/hospmap/internal/geo"

	"github.com/twpayne/go-geom"
)

// square builds a display-CRS polygon covering [x0,x1]x[y0,y1].
func square(x0, y0, x1, y1 float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}},
	}).SetSRID(3857)
}

func facility(i int, name string, x, y float64) Facility {
	return Facility{Index: i, Name: name, Location: geo.Point{X: x, Y: y, CRS: geo.Display}}
}

func names(fs []Facility) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

func TestJoin_InsideExactlyOne(t *testing.T) {
	regions := []Region{
		{Name: "Westlands", Boundary: square(0, 0, 10, 10)},
		{Name: "Dagoretti", Boundary: square(10, 0, 20, 10)},
	}
	facilities := []Facility{
		facility(0, "Aga Khan", 5, 5),
		facility(1, "Kenyatta", 15, 5),
		facility(2, "MP Shah", 6, 6),
	}

	idx, err := Join(regions, facilities)
	if err != nil {
		t.Fatal(err)
	}

	if got := idx.Facilities()[0].RegionName; got != "Westlands" {
		t.Errorf("facility 0: got %q", got)
	}
	if got := idx.Facilities()[1].RegionName; got != "Dagoretti" {
		t.Errorf("facility 1: got %q", got)
	}
	if got := names(idx.FacilitiesIn("Westlands")); !reflect.DeepEqual(got, []string{"Aga Khan", "MP Shah"}) {
		t.Errorf("Westlands list: got %v", got)
	}
	if idx.Count("Westlands") != 2 || idx.Count("Dagoretti") != 1 {
		t.Errorf("counts: %d %d", idx.Count("Westlands"), idx.Count("Dagoretti"))
	}

	// every facility appears exactly once across region lists
	seen := map[int]int{}
	for _, r := range idx.Regions() {
		for _, f := range idx.FacilitiesIn(r) {
			seen[f.Index]++
		}
	}
	for i := range facilities {
		if seen[i] != 1 {
			t.Errorf("facility %d listed %d times", i, seen[i])
		}
	}
}

func TestJoin_Outside(t *testing.T) {
	regions := []Region{{Name: "Westlands", Boundary: square(0, 0, 10, 10)}}
	facilities := []Facility{facility(0, "Far Away Clinic", 50, 50)}

	idx, err := Join(regions, facilities)
	if err != nil {
		t.Fatal(err)
	}

	f := idx.Facilities()[0]
	if f.Assigned() {
		t.Fatalf("expected unassigned, got %q", f.RegionName)
	}
	if len(idx.FacilitiesIn("Westlands")) != 0 {
		t.Errorf("unassigned facility listed in a region")
	}
	if len(idx.Unassigned()) != 1 {
		t.Errorf("unassigned: got %d", len(idx.Unassigned()))
	}
	if len(idx.Facilities()) != 1 {
		t.Errorf("facility missing from full collection")
	}
}

func TestJoin_OverlapFirstRegionWins(t *testing.T) {
	regions := []Region{
		{Name: "Kibra", Boundary: square(0, 0, 10, 10)},
		{Name: "Langata", Boundary: square(5, 5, 15, 15)},
	}
	facilities := []Facility{facility(0, "Overlap Hospital", 7, 7)}

	idx, err := Join(regions, facilities)
	if err != nil {
		t.Fatal(err)
	}

	if got := idx.Facilities()[0].RegionName; got != "Kibra" {
		t.Fatalf("want Kibra, got %q", got)
	}
	if idx.Count("Langata") != 0 {
		t.Errorf("facility duplicated into second region")
	}
	amb := idx.Ambiguities()
	if len(amb) != 1 || !reflect.DeepEqual(amb[0].Regions, []string{"Kibra", "Langata"}) {
		t.Errorf("ambiguities: got %+v", amb)
	}
}

func TestJoin_HoleAndMultiPolygon(t *testing.T) {
	withHole := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	}).SetSRID(3857)
	multi := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{
		{{{20, 0}, {25, 0}, {25, 5}, {20, 5}, {20, 0}}},
		{{{30, 0}, {35, 0}, {35, 5}, {30, 5}, {30, 0}}},
	}).SetSRID(3857)

	regions := []Region{
		{Name: "Ring", Boundary: withHole},
		{Name: "Islands", Boundary: multi},
	}
	facilities := []Facility{
		facility(0, "In Hole", 5, 5),
		facility(1, "In Ring", 2, 2),
		facility(2, "Second Island", 32, 2),
	}

	idx, err := Join(regions, facilities)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"", "Ring", "Islands"}
	for i, w := range want {
		if got := idx.Facilities()[i].RegionName; got != w {
			t.Errorf("facility %d: got %q want %q", i, got, w)
		}
	}
}

func TestJoin_EdgeRule(t *testing.T) {
	regions := []Region{{Name: "Box", Boundary: square(0, 0, 10, 10)}}
	tests := []struct {
		name   string
		x, y   float64
		inside bool
	}{
		{"left edge", 0, 5, true},
		{"bottom edge", 5, 0, true},
		{"right edge", 10, 5, false},
		{"top edge", 5, 10, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx, err := Join(regions, []Facility{facility(0, tc.name, tc.x, tc.y)})
			if err != nil {
				t.Fatal(err)
			}
			if got := idx.Facilities()[0].Assigned(); got != tc.inside {
				t.Errorf("inside: got %v want %v", got, tc.inside)
			}
		})
	}
}

func TestJoin_Idempotent(t *testing.T) {
	regions := []Region{{Name: "Embakasi", Boundary: square(0, 0, 10, 10)}}
	facilities := []Facility{facility(0, "Mama Lucy", 1, 1), facility(1, "Mama Lucy", 2, 2)}

	first, err := Join(regions, facilities)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Join(regions, first.Facilities())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Facilities(), second.Facilities()) {
		t.Errorf("second join changed assignments")
	}
	if second.Count("Embakasi") != 2 {
		t.Errorf("double counted: %d", second.Count("Embakasi"))
	}
	if facilities[0].RegionName != "" {
		t.Errorf("input slice was modified")
	}
}

func TestJoin_CRSMismatch(t *testing.T) {
	wgs := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{36.7, -1.4}, {36.9, -1.4}, {36.9, -1.2}, {36.7, -1.4}},
	}).SetSRID(4326)

	_, err := Join([]Region{{Name: "Raw", Boundary: wgs}}, nil)
	if !errors.Is(err, ErrCRSMismatch) {
		t.Fatalf("want ErrCRSMismatch for region, got %v", err)
	}

	_, err = Join(nil, []Facility{{Name: "Raw", Location: geo.LonLat(36.8, -1.3)}})
	if !errors.Is(err, ErrCRSMismatch) {
		t.Fatalf("want ErrCRSMismatch for facility, got %v", err)
	}
}

func TestJoin_NoRegions(t *testing.T) {
	idx, err := Join(nil, []Facility{facility(0, "Lonely", 1, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Regions()) != 0 || len(idx.Unassigned()) != 1 {
		t.Errorf("regions=%d unassigned=%d", len(idx.Regions()), len(idx.Unassigned()))
	}
}

func TestEmpty(t *testing.T) {
	idx := Empty()
	if len(idx.Facilities()) != 0 || idx.HasRegion("x") || idx.Count("x") != 0 {
		t.Fatal("empty index is not empty")
	}
	if _, ok := idx.Facility(0); ok {
		t.Fatal("empty index returned a facility")
	}
}
