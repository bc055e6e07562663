package view

import (
	"encoding/json"
	"fmt"

	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/geo"
	"github.com/woozymasta/hospmap/internal/presentation"
	"github.com/woozymasta/hospmap/internal/spatial"

	"github.com/rs/zerolog/log"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Facility marker style.
const (
	MarkerRadius      = 5
	MarkerStrokeColor = "#FFFFFF"
	MarkerStrokeWidth = 2
	LineWidth         = 2
)

// Host reports which DOM anchors exist in the page the map is drawn into.
type Host interface {
	HasAnchor(id string) bool
}

// Options configure a Composer.
type Options struct {
	Center      geo.Point // any supported CRS, normalized once
	Zoom        int
	TileURL     string
	PopupAnchor string
	Style       config.StyleConfig
	Host        Host
}

// OptionsFromConfig builds composer options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, tileURL string, host Host) Options {
	return Options{
		Center:      geo.LonLat(cfg.View.Center[0], cfg.View.Center[1]),
		Zoom:        cfg.View.Zoom,
		TileURL:     tileURL,
		PopupAnchor: cfg.View.PopupAnchor,
		Style:       cfg.Style,
		Host:        host,
	}
}

// Composer exclusively owns the map of one view session. It is not safe for
// concurrent use; the session event loop is its only caller.
type Composer struct {
	opts Options
	m    *Map

	built       bool
	published   bool
	subscribers []func(*Map)
}

// NewComposer creates a composer. The map is not built until EnsureMap.
func NewComposer(opts Options) *Composer {
	return &Composer{opts: opts}
}

// EnsureMap constructs the map on first call and returns the same
// instance on every later call.
func (c *Composer) EnsureMap() *Map {
	if c.built {
		return c.m
	}
	c.built = true

	center, err := geo.NormalizePoint(c.opts.Center)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid view center, using origin")
		center = geo.Point{CRS: geo.Display}
	}

	c.m = &Map{
		view: ViewState{Projection: geo.Display, Center: center.Coord(), Zoom: c.opts.Zoom},
	}
	c.m.setLayer(Layer{ID: LayerBasemap, Type: "tile", URL: c.opts.TileURL})

	c.m.popup = Popup{Anchor: c.opts.PopupAnchor}
	switch {
	case c.opts.PopupAnchor == "":
		log.Warn().Msg("Popup anchor not configured, popup disabled")
	case c.opts.Host == nil || !c.opts.Host.HasAnchor(c.opts.PopupAnchor):
		log.Warn().Str("anchor", c.opts.PopupAnchor).Msg("Popup anchor missing from page, popup disabled")
	default:
		c.m.popup.Enabled = true
	}

	log.Debug().
		Float64("x", center.X).
		Float64("y", center.Y).
		Int("zoom", c.opts.Zoom).
		Bool("popup", c.m.popup.Enabled).
		Msg("Map constructed")

	return c.m
}

// Subscribe registers fn to receive the map handle once it is published.
// If it already was, fn is called right away.
func (c *Composer) Subscribe(fn func(*Map)) {
	if c.published {
		fn(c.m)
		return
	}
	c.subscribers = append(c.subscribers, fn)
}

// Published reports whether the map handle has been handed out.
func (c *Composer) Published() bool {
	return c.published
}

// SetFacilities draws the facility markers and, on the first call,
// publishes the map handle to subscribers.
func (c *Composer) SetFacilities(fs []spatial.Facility) error {
	m := c.EnsureMap()

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(fs))}
	for _, f := range fs {
		props := map[string]any{"index": f.Index, "name": f.Name}
		if f.Assigned() {
			props["region"] = f.RegionName
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{f.Location.X, f.Location.Y}),
			Properties: props,
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode facilities layer: %w", err)
	}

	m.setLayer(Layer{
		ID:   LayerFacilities,
		Type: "vector",
		Style: &Style{
			Icon:        c.opts.Style.FacilityIcon,
			Radius:      MarkerRadius,
			FillColor:   c.opts.Style.FacilityFill,
			StrokeColor: MarkerStrokeColor,
			StrokeWidth: MarkerStrokeWidth,
		},
		Features: data,
		Count:    len(fs),
	})

	c.publish()
	return nil
}

// SetOutline draws the county boundary.
func (c *Composer) SetOutline(o spatial.Outline) error {
	features := make([]*geojson.Feature, 0, len(o.Parts))
	for _, p := range o.Parts {
		features = append(features, &geojson.Feature{Geometry: p, Properties: map[string]any{}})
	}

	return c.setLines(LayerBoundary, c.opts.Style.BoundaryColor, features)
}

// SetRegions draws the sub-county boundaries.
func (c *Composer) SetRegions(rs []spatial.Region) error {
	features := make([]*geojson.Feature, 0, len(rs))
	for _, r := range rs {
		features = append(features, &geojson.Feature{
			ID:         r.Name,
			Geometry:   r.Boundary,
			Properties: map[string]any{"name": r.Name},
		})
	}

	return c.setLines(LayerRegions, c.opts.Style.RegionColor, features)
}

// ShowPopup anchors the popup at a facility. It does nothing when the
// popup is disabled.
func (c *Composer) ShowPopup(f spatial.Facility) {
	m := c.EnsureMap()
	if !m.popup.Enabled {
		return
	}

	pos := f.Location.Coord()
	m.popup.Visible = true
	m.popup.Position = &pos
	m.popup.Title = f.Name
	m.popup.Subtitle = f.RegionName
}

// HidePopup hides the popup.
func (c *Composer) HidePopup() {
	m := c.EnsureMap()
	m.popup.Visible = false
	m.popup.Position = nil
	m.popup.Title = ""
	m.popup.Subtitle = ""
}

// Apply recenters the map on target.
func (c *Composer) Apply(target presentation.Target) {
	m := c.EnsureMap()
	m.view.Center = target.Center
	m.view.Zoom = target.Zoom
}

// Document returns a snapshot of the map for the browser.
func (c *Composer) Document() Document {
	return c.EnsureMap().document()
}

func (c *Composer) setLines(id LayerID, color string, features []*geojson.Feature) error {
	m := c.EnsureMap()

	data, err := json.Marshal(&geojson.FeatureCollection{Features: features})
	if err != nil {
		return fmt.Errorf("encode %s layer: %w", id, err)
	}

	m.setLayer(Layer{
		ID:       id,
		Type:     "vector",
		Style:    &Style{StrokeColor: color, StrokeWidth: LineWidth},
		Features: data,
		Count:    len(features),
	})
	return nil
}

func (c *Composer) publish() {
	if c.published {
		return
	}
	c.published = true

	for _, fn := range c.subscribers {
		fn(c.m)
	}
	c.subscribers = nil

	log.Debug().Msg("Map handle published")
}
