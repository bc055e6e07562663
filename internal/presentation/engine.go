// Package presentation derives the UI-observable state from the joined data:
// legend entries, region summaries, search matches and paginated region lists.
package presentation

import (
	"strings"

	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/spatial"

	"golang.org/x/text/cases"
)

// LayerSet tells which dataset layers are currently present on the map.
type LayerSet struct {
	Facilities bool `json:"facilities"`
	Boundary   bool `json:"boundary"`
	Regions    bool `json:"regions"`
}

// LegendEntry is one legend row. Either Icon, or Symbol and Color, are set.
type LegendEntry struct {
	Label  string `json:"label"`
	Icon   string `json:"icon,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Color  string `json:"color,omitempty"`
}

// SearchState is the current query and the facilities matching it.
type SearchState struct {
	Query   string             `json:"query"`
	Matches []spatial.Facility `json:"matches"`
}

// BrowseState is the "load more" window over one region's facilities.
type BrowseState struct {
	SelectedRegion string             `json:"region"`
	PageIndex      int                `json:"page"`
	PageSize       int                `json:"page_size"`
	Total          int                `json:"total"`
	HasMore        bool               `json:"has_more"`
	Visible        []spatial.Facility `json:"facilities"`
}

// Target is where the map should center when a facility is chosen.
type Target struct {
	Center [2]float64 `json:"center"` // display CRS
	Zoom   int        `json:"zoom"`
}

// RegionSummary shows both counts for a region. Supplied is nil when the
// counts dataset has no row for it. The two are never reconciled.
type RegionSummary struct {
	Name     string `json:"name"`
	Derived  int    `json:"derived"`
	Supplied *int   `json:"supplied"`
}

// Legend labels.
const (
	LabelFacilities = "Hospitals"
	LabelBoundary   = "County Boundary"
	LabelRegions    = "Sub-County Boundaries"
)

// Engine holds the derived state of one view session.
// It is not safe for concurrent use; a session drives it from one goroutine.
type Engine struct {
	pageSize  int
	focusZoom int
	style     config.StyleConfig

	index  *spatial.Index
	folded []string
	counts []spatial.RegionCount
	caser  cases.Caser

	search SearchState
	browse BrowseState
}

// New creates an engine with no data loaded.
func New(cfg *config.Config) *Engine {
	e := &Engine{
		pageSize:  cfg.Browse.PageSize,
		focusZoom: cfg.View.FocusZoom,
		style:     cfg.Style,
		caser:     cases.Fold(),
	}
	if e.pageSize <= 0 {
		e.pageSize = 10
	}

	e.search = SearchState{Matches: []spatial.Facility{}}
	e.browse = BrowseState{PageSize: e.pageSize, Visible: []spatial.Facility{}}
	e.SetIndex(spatial.Empty())

	return e
}

// SetIndex replaces the joined data and re-derives the search matches and
// the browse window. The number of loaded pages is kept, clamped to what
// the new index holds.
func (e *Engine) SetIndex(idx *spatial.Index) {
	if idx == nil {
		idx = spatial.Empty()
	}

	e.index = idx
	e.folded = make([]string, len(idx.Facilities()))
	for i, f := range idx.Facilities() {
		e.folded[i] = e.caser.String(f.Name)
	}

	e.Search(e.search.Query)

	if e.browse.SelectedRegion != "" {
		e.window(e.browse.SelectedRegion, e.browse.PageIndex)
	}
}

// SetCounts replaces the precomputed per-region counts.
func (e *Engine) SetCounts(counts []spatial.RegionCount) {
	e.counts = counts
}

// Index returns the joined data the engine currently derives from.
func (e *Engine) Index() *spatial.Index {
	return e.index
}

// BuildLegend returns legend entries for the present layers, always in the
// order facilities, county boundary, sub-county boundaries.
func (e *Engine) BuildLegend(layers LayerSet) []LegendEntry {
	out := make([]LegendEntry, 0, 3)

	if layers.Facilities {
		out = append(out, LegendEntry{Label: LabelFacilities, Icon: e.style.FacilityIcon})
	}
	if layers.Boundary {
		out = append(out, LegendEntry{Label: LabelBoundary, Symbol: "line", Color: e.style.BoundaryColor})
	}
	if layers.Regions {
		out = append(out, LegendEntry{Label: LabelRegions, Symbol: "line", Color: e.style.RegionColor})
	}

	return out
}

// Search filters facilities by case-insensitive substring of the name.
// An empty query matches nothing. Matches keep the dataset order.
func (e *Engine) Search(query string) SearchState {
	e.search = SearchState{Query: query, Matches: []spatial.Facility{}}

	// whitespace alone is no query; anything else matches verbatim
	if strings.TrimSpace(query) == "" {
		return e.search
	}
	needle := e.caser.String(query)

	for i, f := range e.index.Facilities() {
		if strings.Contains(e.folded[i], needle) {
			e.search.Matches = append(e.search.Matches, f)
		}
	}

	return e.search
}

// SearchState returns the current search.
func (e *Engine) SearchState() SearchState {
	return e.search
}

// SelectRegion shows the first page of the region's facilities.
func (e *Engine) SelectRegion(name string) BrowseState {
	e.window(name, 1)
	return e.browse
}

// AdvancePage loads the next page of the selected region on top of the
// visible ones. On the last page, or with no region selected, it does nothing.
func (e *Engine) AdvancePage() BrowseState {
	if e.browse.SelectedRegion == "" || !e.browse.HasMore {
		return e.browse
	}

	e.window(e.browse.SelectedRegion, e.browse.PageIndex+1)
	return e.browse
}

// BrowseState returns the current region browse window.
func (e *Engine) BrowseState() BrowseState {
	return e.browse
}

// Facility looks up a facility by its collection position.
func (e *Engine) Facility(index int) (spatial.Facility, bool) {
	return e.index.Facility(index)
}

// ResolveFacility returns the map target for a chosen facility and clears
// the search, since choosing a result consumes it.
func (e *Engine) ResolveFacility(f spatial.Facility) Target {
	e.search = SearchState{Matches: []spatial.Facility{}}

	return Target{
		Center: f.Location.Coord(),
		Zoom:   e.focusZoom,
	}
}

// RegionSummaries lists every joined region with its derived and supplied
// counts, followed by regions known only to the counts dataset.
func (e *Engine) RegionSummaries() []RegionSummary {
	supplied := make(map[string]int, len(e.counts))
	for _, c := range e.counts {
		supplied[c.RegionName] = c.Count
	}

	out := make([]RegionSummary, 0, len(e.index.Regions())+len(e.counts))
	for _, name := range e.index.Regions() {
		s := RegionSummary{Name: name, Derived: e.index.Count(name)}
		if n, ok := supplied[name]; ok {
			s.Supplied = &n
		}
		out = append(out, s)
	}

	for _, c := range e.counts {
		if e.index.HasRegion(c.RegionName) {
			continue
		}
		n := c.Count
		out = append(out, RegionSummary{Name: c.RegionName, Supplied: &n})
	}

	return out
}

// window shows pages 1..page of region, clamped to the available pages.
func (e *Engine) window(region string, page int) {
	all := e.index.FacilitiesIn(region)

	pages := (len(all) + e.pageSize - 1) / e.pageSize
	if pages < 1 {
		pages = 1
	}
	page = max(1, min(page, pages))

	n := min(page*e.pageSize, len(all))

	e.browse = BrowseState{
		SelectedRegion: region,
		PageIndex:      page,
		PageSize:       e.pageSize,
		Total:          len(all),
		HasMore:        n < len(all),
		Visible:        all[:n:n],
	}
}
