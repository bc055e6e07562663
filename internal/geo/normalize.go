package geo

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
)

// ErrUnsupportedGeometry is returned for geometry types the pipeline does not carry.
var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

// Point is a single coordinate tagged with the system it is expressed in.
type Point struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	CRS CRS     `json:"crs"`
}

// Coord returns the point as [x, y].
func (p Point) Coord() [2]float64 {
	return [2]float64{p.X, p.Y}
}

// LonLat builds a WGS84 point.
func LonLat(lon, lat float64) Point {
	return Point{X: lon, Y: lat, CRS: WGS84}
}

// NormalizePoint reprojects p into the display system.
// A point already in the display system is returned unchanged.
func NormalizePoint(p Point) (Point, error) {
	switch p.CRS {
	case Display:
		return p, nil
	case WGS84:
		x, y := ToMercator(p.X, p.Y)
		return Point{X: x, Y: y, CRS: Display}, nil
	default:
		return Point{}, fmt.Errorf("%w: %q", ErrUnsupportedCRS, p.CRS)
	}
}

// Normalize returns g reprojected from the source system into the display
// system. The input is never modified. Points are converted one by one,
// polygons ring by ring. Normalizing a display geometry is a no-op.
func Normalize(g geom.T, from CRS) (geom.T, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedGeometry)
	}

	var project func(geom.Coord) geom.Coord
	switch from {
	case Display:
		if g.SRID() == Display.SRID() {
			return g, nil
		}
		project = copyCoord
	case WGS84:
		project = mercatorCoord
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCRS, from)
	}

	srid := Display.SRID()

	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPoint(t.Layout()).MustSetCoords(project(t.Coords())).SetSRID(srid), nil

	case *geom.MultiPoint:
		return geom.NewMultiPoint(t.Layout()).MustSetCoords(projectRing(t.Coords(), project)).SetSRID(srid), nil

	case *geom.LineString:
		return geom.NewLineString(t.Layout()).MustSetCoords(projectRing(t.Coords(), project)).SetSRID(srid), nil

	case *geom.MultiLineString:
		return geom.NewMultiLineString(t.Layout()).MustSetCoords(projectRings(t.Coords(), project)).SetSRID(srid), nil

	case *geom.Polygon:
		return geom.NewPolygon(t.Layout()).MustSetCoords(projectRings(t.Coords(), project)).SetSRID(srid), nil

	case *geom.MultiPolygon:
		parts := t.Coords()
		out := make([][][]geom.Coord, len(parts))
		for i, rings := range parts {
			out[i] = projectRings(rings, project)
		}
		return geom.NewMultiPolygon(t.Layout()).MustSetCoords(out).SetSRID(srid), nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedGeometry, g)
	}
}

func projectRings(rings [][]geom.Coord, project func(geom.Coord) geom.Coord) [][]geom.Coord {
	out := make([][]geom.Coord, len(rings))
	for i, ring := range rings {
		out[i] = projectRing(ring, project)
	}
	return out
}

func projectRing(ring []geom.Coord, project func(geom.Coord) geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(ring))
	for i, c := range ring {
		out[i] = project(c)
	}
	return out
}

// mercatorCoord converts X/Y and keeps any extra ordinates (Z, M) as they are.
func mercatorCoord(c geom.Coord) geom.Coord {
	out := copyCoord(c)
	out[0], out[1] = ToMercator(c[0], c[1])
	return out
}

func copyCoord(c geom.Coord) geom.Coord {
	out := make(geom.Coord, len(c))
	copy(out, c)
	return out
}
