package spatial

import "github.com/twpayne/go-geom"

// part is one polygon of a region: outer ring first, holes after.
type part struct {
	rings [][]geom.Coord
	bbox  [4]float64 // minX, minY, maxX, maxY
}

// partsOf splits a region boundary into polygons. Non-areal geometry yields none.
func partsOf(g geom.T) []part {
	switch t := g.(type) {
	case *geom.Polygon:
		return []part{newPart(t.Coords())}
	case *geom.MultiPolygon:
		polys := t.Coords()
		out := make([]part, 0, len(polys))
		for _, rings := range polys {
			out = append(out, newPart(rings))
		}
		return out
	default:
		return nil
	}
}

func newPart(rings [][]geom.Coord) part {
	p := part{rings: rings}
	if len(rings) == 0 || len(rings[0]) == 0 {
		return p
	}

	first := rings[0][0]
	p.bbox = [4]float64{first[0], first[1], first[0], first[1]}
	for _, c := range rings[0] {
		p.bbox[0] = min(p.bbox[0], c[0])
		p.bbox[1] = min(p.bbox[1], c[1])
		p.bbox[2] = max(p.bbox[2], c[0])
		p.bbox[3] = max(p.bbox[3], c[1])
	}
	return p
}

// contains reports whether (x, y) is inside the outer ring and outside every hole.
func (p part) contains(x, y float64) bool {
	if len(p.rings) == 0 {
		return false
	}
	if x < p.bbox[0] || x > p.bbox[2] || y < p.bbox[1] || y > p.bbox[3] {
		return false
	}
	if !inRing(x, y, p.rings[0]) {
		return false
	}
	for _, hole := range p.rings[1:] {
		if inRing(x, y, hole) {
			return false
		}
	}
	return true
}

// inRing is half-open even-odd ray casting. An edge is crossed when it spans
// y with one endpoint strictly above, and the crossing lies strictly right of
// x. Points on left/bottom edges count as inside, on right/top edges as outside.
func inRing(x, y float64, ring []geom.Coord) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
