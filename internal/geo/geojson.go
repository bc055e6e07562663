package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// ErrNotFeatureCollection is returned when a payload is valid JSON but not a FeatureCollection.
var ErrNotFeatureCollection = errors.New("payload is not a GeoJSON FeatureCollection")

// envelope captures the members go-geom does not decode.
type envelope struct {
	Type string `json:"type"`
	CRS  *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs,omitempty"`
}

// DecodeFeatureCollection parses a GeoJSON FeatureCollection.
// It also returns the CRS name declared by the legacy "crs" member, if any.
func DecodeFeatureCollection(data []byte) (*geojson.FeatureCollection, string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("decode envelope: %w", err)
	}
	if !strings.EqualFold(env.Type, "FeatureCollection") {
		return nil, "", fmt.Errorf("%w: type %q", ErrNotFeatureCollection, env.Type)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, "", fmt.Errorf("decode features: %w", err)
	}

	declared := ""
	if env.CRS != nil {
		declared = env.CRS.Properties.Name
	}

	return &fc, declared, nil
}
