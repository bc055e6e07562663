package session

import (
	"time"

	"github.com/woozymasta/hospmap/internal/metrics"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// Factory builds and starts a session for a fresh id.
type Factory func(id string) *Session

// Store keeps sessions alive while they are used. A session idle for longer
// than the TTL is evicted and closed.
type Store struct {
	items   *cache.Cache
	factory Factory
}

// NewStore creates a store with a sliding TTL.
func NewStore(ttl time.Duration, factory Factory) *Store {
	items := cache.New(ttl, ttl/2)
	items.OnEvicted(func(id string, v any) {
		if s, ok := v.(*Session); ok {
			s.Close()
		}
		metrics.SessionsActive.Dec()
		log.Debug().Str("session", id).Msg("Session evicted")
	})

	return &Store{items: items, factory: factory}
}

// Get returns a live session and refreshes its TTL.
func (st *Store) Get(id string) (*Session, bool) {
	v, ok := st.items.Get(id)
	if !ok {
		return nil, false
	}

	s := v.(*Session)
	if !st.refresh(id, s) {
		return nil, false
	}
	return s, true
}

// refresh slides the TTL of a live session. A session evicted since it was
// looked up is never put back.
func (st *Store) refresh(id string, s *Session) bool {
	if err := st.items.Replace(id, s, cache.DefaultExpiration); err != nil {
		return false
	}

	select {
	case <-s.Done():
		st.items.Delete(id)
		return false
	default:
		return true
	}
}

// Create starts a new session under a random id.
func (st *Store) Create() *Session {
	id := uuid.NewString()
	s := st.factory(id)

	st.items.Set(id, s, cache.DefaultExpiration)
	metrics.SessionsActive.Inc()
	log.Debug().Str("session", id).Msg("Session created")

	return s
}

// Delete closes and forgets a session.
func (st *Store) Delete(id string) {
	st.items.Delete(id)
}

// Len returns the number of sessions held, including expired ones not yet
// swept.
func (st *Store) Len() int {
	return st.items.ItemCount()
}

// Close closes every session.
func (st *Store) Close() {
	for id := range st.items.Items() {
		st.items.Delete(id)
	}
	st.items.DeleteExpired()
}
