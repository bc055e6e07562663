// Package session runs one view session: the dataset fetches, the join
// barrier and every user action, serialized on a single event loop.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/dataset"
	"github.com/woozymasta/hospmap/internal/metrics"
	"github.com/woozymasta/hospmap/internal/presentation"
	"github.com/woozymasta/hospmap/internal/spatial"
	"github.com/woozymasta/hospmap/internal/view"

	"github.com/rs/zerolog/log"
)

// ErrClosed is returned for actions on a session that was torn down.
var ErrClosed = errors.New("session closed")

// ErrNotFound is returned when an action names an unknown facility.
var ErrNotFound = errors.New("facility not found")

// Fetcher issues the dataset fetches of a session.
type Fetcher interface {
	FetchAll(ctx context.Context, kinds []dataset.Kind, onDone func(dataset.Kind, dataset.Collection, error))
}

// Session is the context owning the map and the derived state of one view.
// All state below the channels is touched only by the loop goroutine.
type Session struct {
	ID string

	events    chan func()
	done      chan struct{}
	loaded    chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	keys     config.PropertyKeys
	engine   *presentation.Engine
	composer *view.Composer

	arrived    map[dataset.Kind]bool
	facilities []spatial.Facility
	regions    []spatial.Region
	layers     presentation.LayerSet
	mapHandle  *view.Map
}

// New creates a session and starts its event loop. Call Start to issue the
// dataset fetches.
func New(id string, cfg *config.Config, opts view.Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       id,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan func(), 8),
		done:     make(chan struct{}),
		loaded:   make(chan struct{}),
		keys:     cfg.Properties,
		engine:   presentation.New(cfg),
		composer: view.NewComposer(opts),
		arrived:  make(map[dataset.Kind]bool, len(dataset.AllKinds)),
	}

	s.composer.Subscribe(func(m *view.Map) { s.mapHandle = m })

	go s.loop()
	return s
}

// Start builds the map and issues the four dataset fetches concurrently.
// It returns immediately; completions are applied on the event loop.
func (s *Session) Start(f Fetcher) {
	s.post(func() { s.composer.EnsureMap() })

	go f.FetchAll(s.ctx, dataset.AllKinds, s.Complete)
}

// Complete delivers one dataset completion. A completion arriving after
// Close is discarded.
func (s *Session) Complete(kind dataset.Kind, coll dataset.Collection, err error) {
	if !s.post(func() { s.apply(kind, coll, err) }) {
		metrics.LateCompletions.Inc()
		log.Debug().
			Str("session", s.ID).
			Str("dataset", string(kind)).
			Msg("Late dataset completion discarded")
	}
}

// Loaded is closed once every dataset has completed, successfully or not.
func (s *Session) Loaded() <-chan struct{} {
	return s.loaded
}

// WaitLoaded blocks until every dataset has completed.
func (s *Session) WaitLoaded(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		log.Debug().Str("session", s.ID).Msg("Session closed")
	})
}

func (s *Session) loop() {
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.events:
			// an event that raced with Close is dropped
			select {
			case <-s.done:
				return
			default:
			}
			fn()
		}
	}
}

// post queues fn on the event loop. It reports false if the session is closed.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// call runs fn on the event loop and waits for it to finish.
func (s *Session) call(ctx context.Context, fn func()) error {
	reply := make(chan struct{})

	ev := func() {
		defer close(reply)
		fn()
	}

	select {
	case s.events <- ev:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// apply runs on the loop. Every completion updates only its own layer, and
// facilities or regions re-run the join over whatever has arrived.
func (s *Session) apply(kind dataset.Kind, coll dataset.Collection, err error) {
	s.arrived[kind] = true
	ok := err == nil

	switch kind {
	case dataset.KindFacilities:
		s.facilities = dataset.Facilities(coll, s.keys.FacilityName)
		s.layers.Facilities = ok
		s.rejoin()

	case dataset.KindRegions:
		s.regions = dataset.Regions(coll, s.keys.RegionName)
		s.layers.Regions = ok
		if ok {
			if werr := s.composer.SetRegions(s.regions); werr != nil {
				log.Error().Err(werr).Str("session", s.ID).Msg("Failed to draw regions layer")
				s.layers.Regions = false
			}
		}
		s.rejoin()

	case dataset.KindBoundary:
		s.layers.Boundary = ok
		if ok {
			if werr := s.composer.SetOutline(dataset.Outline(coll)); werr != nil {
				log.Error().Err(werr).Str("session", s.ID).Msg("Failed to draw boundary layer")
				s.layers.Boundary = false
			}
		}

	case dataset.KindCounts:
		s.engine.SetCounts(dataset.Counts(coll, s.keys.RegionName, s.keys.Count))
	}

	if len(s.arrived) == len(dataset.AllKinds) {
		select {
		case <-s.loaded:
		default:
			close(s.loaded)
			log.Debug().Str("session", s.ID).Interface("layers", s.layers).Msg("All datasets completed")
		}
	}
}

// rejoin rebuilds the index from the inputs that have arrived so far.
// Missing regions count as no regions; the index is always rebuilt whole.
func (s *Session) rejoin() {
	if !s.arrived[dataset.KindFacilities] {
		return
	}

	idx, err := spatial.Join(s.regions, s.facilities)
	if err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("Spatial join failed")
		idx = spatial.Empty()
	}
	s.engine.SetIndex(idx)

	if !s.layers.Facilities {
		return
	}
	if err := s.composer.SetFacilities(idx.Facilities()); err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("Failed to draw facilities layer")
		s.layers.Facilities = false
	}
}
