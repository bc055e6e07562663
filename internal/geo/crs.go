// Package geo handles geographic data structures and coordinate conversions.
package geo

import (
	"errors"
	"fmt"
	"strings"
)

// CRS names a coordinate reference system.
type CRS string

const (
	// WGS84 is geographic longitude/latitude in degrees.
	WGS84 CRS = "EPSG:4326"
	// WebMercator is spherical Mercator in meters.
	WebMercator CRS = "EPSG:3857"
	// Display is the system every rendered or joined geometry must share.
	Display = WebMercator
)

// ErrUnsupportedCRS is returned for coordinate systems the normalizer cannot handle.
var ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

var crsAliases = map[string]CRS{
	"epsg:4326":                     WGS84,
	"wgs84":                         WGS84,
	"crs84":                         WGS84,
	"urn:ogc:def:crs:ogc:1.3:crs84": WGS84,
	"urn:ogc:def:crs:epsg::4326":    WGS84,
	"epsg:3857":                     WebMercator,
	"epsg:900913":                   WebMercator,
	"epsg:102100":                   WebMercator,
	"urn:ogc:def:crs:epsg::3857":    WebMercator,
	"urn:ogc:def:crs:epsg::102100":  WebMercator,

	"http://www.opengis.net/gml/srs/epsg.xml#4326": WGS84,
	"http://www.opengis.net/gml/srs/epsg.xml#3857": WebMercator,
}

// ParseCRS resolves a CRS name, including legacy URN forms, to a known CRS.
// An empty name means WGS84, the GeoJSON default.
func ParseCRS(name string) (CRS, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return WGS84, nil
	}
	if c, ok := crsAliases[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCRS, name)
}

// SRID returns the numeric EPSG code of the CRS.
func (c CRS) SRID() int {
	switch c {
	case WGS84:
		return 4326
	case WebMercator:
		return 3857
	default:
		return 0
	}
}

// CRSFromSRID maps an EPSG code back to a CRS. Unknown codes yield "".
func CRSFromSRID(srid int) CRS {
	switch srid {
	case 4326:
		return WGS84
	case 3857:
		return WebMercator
	default:
		return ""
	}
}
