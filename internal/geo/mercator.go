package geo

import "math"

const (
	// EarthRadius is the sphere radius used by EPSG:3857, in meters.
	EarthRadius = 6378137.0
	// MaxLat is the latitude limit of the square Web Mercator world.
	MaxLat = 85.05112878
)

// ToMercator projects WGS84 lon/lat (degrees) to Web Mercator meters.
// Latitude is clamped to ±MaxLat.
func ToMercator(lon, lat float64) (x, y float64) {
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	x = EarthRadius * lon * math.Pi / 180.0
	y = EarthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360.0))
	return x, y
}

// ToLonLat converts Web Mercator meters back to WGS84 lon/lat (degrees).
func ToLonLat(x, y float64) (lon, lat float64) {
	lon = x / EarthRadius * 180.0 / math.Pi
	latRad := 2.0*math.Atan(math.Exp(y/EarthRadius)) - math.Pi*0.5
	lat = latRad * 180.0 / math.Pi
	return lon, lat
}

// TileAt returns the slippy-map tile that contains lon/lat at zoom z.
func TileAt(lon, lat float64, z int) (x, y int) {
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	n := float64(int(1) << z)
	latRad := lat * math.Pi / 180.0
	fx := (lon + 180.0) / 360.0 * n
	fy := (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n

	x, y = int(math.Floor(fx)), int(math.Floor(fy))
	last := int(n) - 1
	return clampInt(x, 0, last), clampInt(y, 0, last)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
