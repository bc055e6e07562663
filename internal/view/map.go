// Package view arranges normalized features into ordered map layers and
// owns the map instance of a view session.
package view

import (
	"encoding/json"
	"slices"

	"github.com/woozymasta/hospmap/internal/geo"
)

// LayerID names a map layer.
type LayerID string

const (
	LayerBasemap    LayerID = "basemap"
	LayerBoundary   LayerID = "boundary"
	LayerRegions    LayerID = "regions"
	LayerFacilities LayerID = "facilities"
)

// zOrder is the fixed draw order. Later layers sit above earlier ones;
// the popup overlay is always on top of all of them.
var zOrder = map[LayerID]int{
	LayerBasemap:    0,
	LayerBoundary:   1,
	LayerRegions:    2,
	LayerFacilities: 3,
}

// Style is the rendering style of a vector layer.
type Style struct {
	StrokeColor string  `json:"stroke_color,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
	FillColor   string  `json:"fill_color,omitempty"`
	Radius      float64 `json:"radius,omitempty"`
	Icon        string  `json:"icon,omitempty"`
}

// Layer is one rendering layer. Tile layers carry a URL template,
// vector layers a GeoJSON FeatureCollection in the display CRS.
type Layer struct {
	ID       LayerID         `json:"id"`
	Z        int             `json:"z"`
	Type     string          `json:"type"`
	URL      string          `json:"url,omitempty"`
	Style    *Style          `json:"style,omitempty"`
	Features json.RawMessage `json:"features,omitempty"`
	Count    int             `json:"count"`
}

// Popup is the single positioned overlay.
type Popup struct {
	Anchor   string      `json:"anchor"`
	Enabled  bool        `json:"enabled"`
	Visible  bool        `json:"visible"`
	Position *[2]float64 `json:"position,omitempty"`
	Title    string      `json:"title,omitempty"`
	Subtitle string      `json:"subtitle,omitempty"`
}

// ViewState is the map center and zoom.
type ViewState struct {
	Projection geo.CRS    `json:"projection"`
	Center     [2]float64 `json:"center"`
	Zoom       int        `json:"zoom"`
}

// Map is the map instance. Only its Composer mutates it.
type Map struct {
	view   ViewState
	layers []Layer
	popup  Popup
}

// Document is the serializable snapshot of a map handed to the browser.
type Document struct {
	View   ViewState `json:"view"`
	Layers []Layer   `json:"layers"`
	Popup  Popup     `json:"popup"`
}

// Layers returns the layers in draw order.
func (m *Map) Layers() []LayerID {
	out := make([]LayerID, len(m.layers))
	for i, l := range m.layers {
		out[i] = l.ID
	}
	return out
}

// View returns the current center and zoom.
func (m *Map) View() ViewState {
	return m.view
}

// Popup returns the overlay state.
func (m *Map) Popup() Popup {
	return m.popup
}

// setLayer inserts l at its fixed z position, replacing an existing layer
// with the same id.
func (m *Map) setLayer(l Layer) {
	l.Z = zOrder[l.ID]

	for i := range m.layers {
		if m.layers[i].ID == l.ID {
			m.layers[i] = l
			return
		}
	}

	pos, _ := slices.BinarySearchFunc(m.layers, l.Z, func(e Layer, z int) int {
		return e.Z - z
	})
	m.layers = slices.Insert(m.layers, pos, l)
}

func (m *Map) document() Document {
	return Document{
		View:   m.view,
		Layers: slices.Clone(m.layers),
		Popup:  m.popup,
	}
}
