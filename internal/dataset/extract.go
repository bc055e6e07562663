package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/woozymasta/hospmap/internal/geo"
	"github.com/woozymasta/hospmap/internal/spatial"

	"github.com/rs/zerolog/log"
	"github.com/twpayne/go-geom"
)

// Facilities extracts named points and normalizes them to the display CRS.
// Features without a point geometry or a name are skipped. Index is the
// position in the returned slice.
func Facilities(c Collection, nameKey string) []spatial.Facility {
	out := make([]spatial.Facility, 0, len(c.Features))

	for i, f := range c.Features {
		name := stringProp(f.Properties, nameKey)
		if name == "" {
			log.Debug().Int("feature", i).Str("key", nameKey).Msg("Facility skipped: no name")
			continue
		}

		pt, ok := f.Geometry.(*geom.Point)
		if !ok || pt.Empty() {
			log.Debug().Int("feature", i).Str("name", name).Msg("Facility skipped: not a point")
			continue
		}

		loc, err := geo.NormalizePoint(geo.Point{X: pt.X(), Y: pt.Y(), CRS: c.CRS})
		if err != nil {
			log.Debug().Err(err).Str("name", name).Msg("Facility skipped: cannot normalize")
			continue
		}

		out = append(out, spatial.Facility{Index: len(out), Name: name, Location: loc})
	}

	return out
}

// Regions extracts named polygons and normalizes them to the display CRS.
func Regions(c Collection, nameKey string) []spatial.Region {
	out := make([]spatial.Region, 0, len(c.Features))

	for i, f := range c.Features {
		name := stringProp(f.Properties, nameKey)
		if name == "" {
			log.Debug().Int("feature", i).Str("key", nameKey).Msg("Region skipped: no name")
			continue
		}

		g, ok := normalizeAreal(f.Geometry, c.CRS)
		if !ok {
			log.Debug().Int("feature", i).Str("name", name).Msg("Region skipped: not a polygon")
			continue
		}

		out = append(out, spatial.Region{Name: name, Boundary: g})
	}

	return out
}

// Outline collects every polygon of the boundary dataset.
func Outline(c Collection) spatial.Outline {
	var o spatial.Outline
	for i, f := range c.Features {
		g, ok := normalizeAreal(f.Geometry, c.CRS)
		if !ok {
			log.Debug().Int("feature", i).Msg("Boundary feature skipped: not a polygon")
			continue
		}
		o.Parts = append(o.Parts, g)
	}
	return o
}

// Counts extracts the precomputed per-region facility counts.
// Numeric strings are accepted; negative values are clamped to zero.
func Counts(c Collection, regionKey, countKey string) []spatial.RegionCount {
	out := make([]spatial.RegionCount, 0, len(c.Features))
	seen := make(map[string]bool, len(c.Features))

	for i, f := range c.Features {
		region := stringProp(f.Properties, regionKey)
		if region == "" {
			log.Debug().Int("feature", i).Str("key", regionKey).Msg("Count skipped: no region name")
			continue
		}
		if seen[region] {
			log.Warn().Str("region", region).Msg("Duplicate count row, later value ignored")
			continue
		}

		n, ok := numberProp(f.Properties, countKey)
		if !ok {
			log.Debug().Str("region", region).Str("key", countKey).Msg("Count skipped: not a number")
			continue
		}
		if n < 0 {
			log.Warn().Str("region", region).Int("count", n).Msg("Negative count clamped to zero")
			n = 0
		}

		seen[region] = true
		out = append(out, spatial.RegionCount{RegionName: region, Count: n})
	}

	return out
}

func normalizeAreal(g geom.T, crs geo.CRS) (geom.T, bool) {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
	default:
		return nil, false
	}

	out, err := geo.Normalize(g, crs)
	if err != nil {
		return nil, false
	}
	return out, true
}

func stringProp(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func numberProp(props map[string]any, key string) (int, bool) {
	switch v := props[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(math.Round(v)), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(math.Round(n)), true
	default:
		return 0, false
	}
}
