package spatial

import (
	"fmt"

	"github.com/woozymasta/hospmap/internal/geo"
	"github.com/woozymasta/hospmap/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Index is the result of one spatial join. It is read-only once built.
type Index struct {
	facilities  []Facility
	regions     []string
	byRegion    map[string][]int
	unassigned  []int
	ambiguities []Ambiguity
}

// Empty returns an index with no facilities and no regions.
func Empty() *Index {
	return &Index{byRegion: map[string][]int{}}
}

// Join assigns every facility to the first region, in collection order,
// whose boundary contains it. The inputs are not modified, and calling Join
// again with the same inputs gives the same index.
func Join(regions []Region, facilities []Facility) (*Index, error) {
	type prepared struct {
		name  string
		parts []part
	}

	prep := make([]prepared, 0, len(regions))
	idx := &Index{
		facilities: make([]Facility, len(facilities)),
		regions:    make([]string, 0, len(regions)),
		byRegion:   make(map[string][]int, len(regions)),
	}

	for _, r := range regions {
		if r.Boundary == nil {
			continue
		}
		if geo.CRSFromSRID(r.Boundary.SRID()) != geo.Display {
			return nil, fmt.Errorf("%w: region %q has SRID %d", ErrCRSMismatch, r.Name, r.Boundary.SRID())
		}
		if _, dup := idx.byRegion[r.Name]; dup {
			log.Warn().Str("region", r.Name).Msg("Duplicate region name, later boundary ignored")
			continue
		}

		prep = append(prep, prepared{name: r.Name, parts: partsOf(r.Boundary)})
		idx.regions = append(idx.regions, r.Name)
		idx.byRegion[r.Name] = nil
	}

	for i, f := range facilities {
		if f.Location.CRS != geo.Display {
			return nil, fmt.Errorf("%w: facility %d %q is in %q", ErrCRSMismatch, f.Index, f.Name, f.Location.CRS)
		}

		f.RegionName = ""
		var matched []string
		for _, r := range prep {
			for _, p := range r.parts {
				if p.contains(f.Location.X, f.Location.Y) {
					matched = append(matched, r.name)
					break
				}
			}
		}

		if len(matched) == 0 {
			idx.unassigned = append(idx.unassigned, i)
		} else {
			f.RegionName = matched[0]
			idx.byRegion[matched[0]] = append(idx.byRegion[matched[0]], i)
		}
		idx.facilities[i] = f

		if len(matched) > 1 {
			idx.ambiguities = append(idx.ambiguities, Ambiguity{Facility: f, Regions: matched})
			log.Warn().
				Int("facility", f.Index).
				Str("name", f.Name).
				Strs("regions", matched).
				Str("assigned", matched[0]).
				Msg("Facility contained by several regions, first one wins")
		}
	}

	metrics.JoinUnassigned.Set(float64(len(idx.unassigned)))
	metrics.JoinAmbiguous.Set(float64(len(idx.ambiguities)))

	log.Debug().
		Int("facilities", len(facilities)).
		Int("regions", len(idx.regions)).
		Int("unassigned", len(idx.unassigned)).
		Int("ambiguous", len(idx.ambiguities)).
		Msg("Spatial join complete")

	return idx, nil
}

// Facilities returns every facility, assigned or not, in collection order.
// The slice must not be modified.
func (x *Index) Facilities() []Facility {
	return x.facilities
}

// Facility returns the facility at collection position i.
func (x *Index) Facility(i int) (Facility, bool) {
	if i < 0 || i >= len(x.facilities) {
		return Facility{}, false
	}
	return x.facilities[i], true
}

// Regions returns the region names in collection order.
func (x *Index) Regions() []string {
	return x.regions
}

// HasRegion reports whether name is a known region.
func (x *Index) HasRegion(name string) bool {
	_, ok := x.byRegion[name]
	return ok
}

// FacilitiesIn returns the facilities assigned to region, in collection order.
func (x *Index) FacilitiesIn(region string) []Facility {
	pos := x.byRegion[region]
	out := make([]Facility, len(pos))
	for i, p := range pos {
		out[i] = x.facilities[p]
	}
	return out
}

// Count returns the number of facilities the join assigned to region.
func (x *Index) Count(region string) int {
	return len(x.byRegion[region])
}

// Unassigned returns facilities outside every region.
func (x *Index) Unassigned() []Facility {
	out := make([]Facility, len(x.unassigned))
	for i, p := range x.unassigned {
		out[i] = x.facilities[p]
	}
	return out
}

// Ambiguities returns the facilities that matched more than one region.
func (x *Index) Ambiguities() []Ambiguity {
	return x.ambiguities
}
