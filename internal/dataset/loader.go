// Package dataset retrieves the external feature collections and parses them
// into typed features.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/geo"
	"github.com/woozymasta/hospmap/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"
)

// Kind identifies one of the external datasets.
type Kind string

const (
	KindFacilities Kind = "facilities"
	KindBoundary   Kind = "boundary"
	KindRegions    Kind = "regions"
	KindCounts     Kind = "counts"
)

// AllKinds lists every dataset a view session loads.
var AllKinds = []Kind{KindFacilities, KindBoundary, KindRegions, KindCounts}

// ErrDataUnavailable is returned when a dataset cannot be retrieved or parsed.
var ErrDataUnavailable = errors.New("data unavailable")

// Feature is one geometry with its properties, in the source CRS.
type Feature struct {
	Geometry   geom.T
	Properties map[string]any
}

// Collection is a parsed dataset.
type Collection struct {
	Kind     Kind
	CRS      geo.CRS
	Features []Feature
}

// Loader fetches datasets from files or HTTP endpoints. It never retries.
type Loader struct {
	client   *http.Client
	sources  map[Kind]config.Source
	maxBytes int64
}

// NewLoader creates a loader for the configured datasets.
func NewLoader(client *http.Client, ds config.Datasets, maxBytes int64) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}

	return &Loader{
		client: client,
		sources: map[Kind]config.Source{
			KindFacilities: ds.Facilities,
			KindBoundary:   ds.Boundary,
			KindRegions:    ds.Regions,
			KindCounts:     ds.Counts,
		},
		maxBytes: maxBytes,
	}
}

// Fetch retrieves and parses one dataset. Any failure is reported to the
// log and metrics and returned wrapped in ErrDataUnavailable.
func (l *Loader) Fetch(ctx context.Context, kind Kind) (Collection, error) {
	start := time.Now()
	src := l.sources[kind]

	coll, err := l.fetch(ctx, kind, src)
	metrics.DatasetLoadDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.DatasetLoadFailures.WithLabelValues(string(kind)).Inc()
		log.Error().
			Err(err).
			Str("dataset", string(kind)).
			Str("source", src.Location()).
			Msg("Dataset unavailable, layer will be empty")

		return Collection{Kind: kind}, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, kind, err)
	}

	metrics.DatasetFeatures.WithLabelValues(string(kind)).Set(float64(len(coll.Features)))
	log.Debug().
		Str("dataset", string(kind)).
		Str("crs", string(coll.CRS)).
		Int("features", len(coll.Features)).
		Dur("duration", time.Since(start)).
		Msg("Dataset loaded")

	return coll, nil
}

// FetchAll issues the fetches concurrently and calls onDone once per kind as
// each completes. onDone may run on several goroutines at once. A failing
// dataset does not affect the others. FetchAll returns when all are done.
func (l *Loader) FetchAll(ctx context.Context, kinds []Kind, onDone func(Kind, Collection, error)) {
	var g errgroup.Group

	for _, kind := range kinds {
		g.Go(func() error {
			coll, err := l.Fetch(ctx, kind)
			onDone(kind, coll, err)
			return nil
		})
	}

	_ = g.Wait()
}

func (l *Loader) fetch(ctx context.Context, kind Kind, src config.Source) (Collection, error) {
	if src.Location() == "" {
		return Collection{}, errors.New("no source configured")
	}

	data, err := l.read(ctx, src)
	if err != nil {
		return Collection{}, err
	}

	fc, declared, err := geo.DecodeFeatureCollection(data)
	if err != nil {
		return Collection{}, err
	}

	// a crs member inside the payload wins over the configured one
	crsName := src.CRS
	if declared != "" {
		crsName = declared
	}
	crs, err := geo.ParseCRS(crsName)
	if err != nil {
		return Collection{}, err
	}

	coll := Collection{Kind: kind, CRS: crs, Features: make([]Feature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		coll.Features = append(coll.Features, Feature{Geometry: f.Geometry, Properties: f.Properties})
	}

	return coll, nil
}

func (l *Loader) read(ctx context.Context, src config.Source) ([]byte, error) {
	if src.URL == "" {
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		return l.readLimited(f)
	}

	if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
		return nil, fmt.Errorf("unsupported url scheme: %s", src.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return l.readLimited(resp.Body)
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", l.maxBytes)
	}
	return data, nil
}
