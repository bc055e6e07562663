package session

import (
	"context"
	"fmt"

	"github.com/woozymasta/hospmap/internal/presentation"
	"github.com/woozymasta/hospmap/internal/view"
)

// Map returns the current map document.
func (s *Session) Map(ctx context.Context) (view.Document, error) {
	var doc view.Document
	err := s.call(ctx, func() { doc = s.composer.Document() })
	return doc, err
}

// Legend returns the legend for the layers loaded so far.
func (s *Session) Legend(ctx context.Context) ([]presentation.LegendEntry, error) {
	var out []presentation.LegendEntry
	err := s.call(ctx, func() { out = s.engine.BuildLegend(s.layers) })
	return out, err
}

// Search runs a facility name search.
func (s *Session) Search(ctx context.Context, query string) (presentation.SearchState, error) {
	var out presentation.SearchState
	err := s.call(ctx, func() { out = s.engine.Search(query) })
	return out, err
}

// SelectFacility resolves a search result, recenters the published map on
// it and clears the search. Before the map is published the target is
// returned but nothing is moved.
func (s *Session) SelectFacility(ctx context.Context, index int) (presentation.Target, error) {
	var (
		out presentation.Target
		ok  bool
	)

	err := s.call(ctx, func() {
		f, found := s.engine.Facility(index)
		if !found {
			return
		}
		ok = true
		out = s.engine.ResolveFacility(f)
		if s.mapHandle != nil {
			s.composer.Apply(out)
		}
	})
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("%w: %d", ErrNotFound, index)
	}
	return out, nil
}

// ShowPopup anchors the popup at a facility.
func (s *Session) ShowPopup(ctx context.Context, index int) (view.Popup, error) {
	var (
		out view.Popup
		ok  bool
	)

	err := s.call(ctx, func() {
		f, found := s.engine.Facility(index)
		if !found {
			return
		}
		ok = true
		s.composer.ShowPopup(f)
		out = s.composer.EnsureMap().Popup()
	})
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("%w: %d", ErrNotFound, index)
	}
	return out, nil
}

// HidePopup hides the popup.
func (s *Session) HidePopup(ctx context.Context) error {
	return s.call(ctx, func() { s.composer.HidePopup() })
}

// Regions returns the per-region summaries.
func (s *Session) Regions(ctx context.Context) ([]presentation.RegionSummary, error) {
	var out []presentation.RegionSummary
	err := s.call(ctx, func() { out = s.engine.RegionSummaries() })
	return out, err
}

// SelectRegion shows the first page of a region's facilities.
func (s *Session) SelectRegion(ctx context.Context, name string) (presentation.BrowseState, error) {
	var out presentation.BrowseState
	err := s.call(ctx, func() { out = s.engine.SelectRegion(name) })
	return out, err
}

// AdvancePage loads the next page of the selected region.
func (s *Session) AdvancePage(ctx context.Context) (presentation.BrowseState, error) {
	var out presentation.BrowseState
	err := s.call(ctx, func() { out = s.engine.AdvancePage() })
	return out, err
}

// Browse returns the current region browse state.
func (s *Session) Browse(ctx context.Context) (presentation.BrowseState, error) {
	var out presentation.BrowseState
	err := s.call(ctx, func() { out = s.engine.BrowseState() })
	return out, err
}
