package server

import (
	"context"
	"net/http"
	"time"

	"github.com/woozymasta/hospmap/internal/session"
)

// CookieName carries the session id.
const CookieName = "hospmap_session"

type ctxKey struct{}

// WithSession resolves the session cookie and rejects requests whose
// session is gone with 410, telling the page to reload.
func (s *ServerContext) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieName)
		if err != nil {
			writeError(w, session.ErrClosed)
			return
		}

		sess, ok := s.Sessions.Get(c.Value)
		if !ok {
			writeError(w, session.ErrClosed)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

// sessionFrom returns the session bound by WithSession.
func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(ctxKey{}).(*session.Session)
	return sess
}

// newView starts a fresh session for a page load. The previous session of
// the browser, if any, is torn down; its pending fetches are discarded.
func (s *ServerContext) newView(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(CookieName); err == nil {
		s.Sessions.Delete(c.Value)
	}

	sess := s.Sessions.Create()
	http.SetCookie(w, sessionCookie(sess.ID, time.Duration(s.Config.Session.TTLMinutes)*time.Minute))
	return sess
}
