// Package spatial associates facilities with the regions that contain them.
package spatial

import (
	"errors"

	"github.com/woozymasta/hospmap/internal/geo"

	"github.com/twpayne/go-geom"
)

// ErrCRSMismatch is returned when join inputs are not in the display system.
var ErrCRSMismatch = errors.New("join input not in display coordinate system")

// Facility is one hospital or clinic. Index is its position in the loaded
// collection and is the only identity; names may repeat.
type Facility struct {
	Index      int       `json:"index"`
	Name       string    `json:"name"`
	Location   geo.Point `json:"location"`
	RegionName string    `json:"region,omitempty"`
}

// Assigned reports whether the join placed the facility in a region.
func (f Facility) Assigned() bool {
	return f.RegionName != ""
}

// Region is an administrative sub-division. Name is the join key.
type Region struct {
	Name     string
	Boundary geom.T
}

// Outline is the containing area drawn for context only.
type Outline struct {
	Parts []geom.T
}

// RegionCount is a precomputed facility count from the counts dataset.
type RegionCount struct {
	RegionName string `json:"region"`
	Count      int    `json:"count"`
}

// Ambiguity records a facility that matched more than one region.
// The facility was assigned to Regions[0].
type Ambiguity struct {
	Facility Facility `json:"facility"`
	Regions  []string `json:"regions"`
}
