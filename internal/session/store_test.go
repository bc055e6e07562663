package session

import (
	"testing"
	"time"

	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/metrics"
	"github.com/woozymasta/hospmap/internal/view"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testFactory(id string) *Session {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return New(id, cfg, view.OptionsFromConfig(cfg, "", nil))
}

func TestStore_CreateGetDelete(t *testing.T) {
	st := NewStore(time.Hour, testFactory)
	defer st.Close()

	before := testutil.ToFloat64(metrics.SessionsActive)

	s := st.Create()
	if s.ID == "" {
		t.Fatal("empty session id")
	}
	if got, ok := st.Get(s.ID); !ok || got != s {
		t.Fatal("created session not found")
	}
	if got := testutil.ToFloat64(metrics.SessionsActive); got != before+1 {
		t.Errorf("active sessions: got %v, want %v", got, before+1)
	}

	st.Delete(s.ID)

	select {
	case <-s.Done():
	default:
		t.Error("deleted session must be closed")
	}
	if _, ok := st.Get(s.ID); ok {
		t.Error("deleted session still found")
	}
	if got := testutil.ToFloat64(metrics.SessionsActive); got != before {
		t.Errorf("active sessions: got %v, want %v", got, before)
	}
}

func TestStore_ExpiryClosesSession(t *testing.T) {
	st := NewStore(20*time.Millisecond, testFactory)
	defer st.Close()

	s := st.Create()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expired session was not closed")
	}
	if _, ok := st.Get(s.ID); ok {
		t.Error("expired session still found")
	}
}

func TestStore_RefreshAfterEviction(t *testing.T) {
	st := NewStore(time.Hour, testFactory)
	defer st.Close()

	before := testutil.ToFloat64(metrics.SessionsActive)

	s := st.Create()
	st.Delete(s.ID)

	if st.refresh(s.ID, s) {
		t.Error("evicted session refreshed")
	}
	if n := st.Len(); n != 0 {
		t.Errorf("evicted session put back: %d held", n)
	}

	st.Close()
	if got := testutil.ToFloat64(metrics.SessionsActive); got != before {
		t.Errorf("active sessions: got %v, want %v", got, before)
	}
}

func TestStore_UnknownID(t *testing.T) {
	st := NewStore(time.Hour, testFactory)
	defer st.Close()

	if _, ok := st.Get("nope"); ok {
		t.Error("unknown id found")
	}
}
