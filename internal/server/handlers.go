// Package server handles HTTP requests and middleware.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/woozymasta/hospmap/internal/metrics"
	"github.com/woozymasta/hospmap/internal/session"
	"github.com/woozymasta/hospmap/internal/tiles"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const etagCap = 64

// HandleIndex serves the page and starts a new view session.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	s.newView(w, r)

	if match := r.Header.Get("If-None-Match"); match == s.IndexETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", s.IndexETag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.Page.HTML)
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Page.Favicon)
}

// HandleHealth reports liveness.
func (s *ServerContext) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.Sessions.Len(),
	})
}

// HandleMap serves the map document. With ?wait=1 it first waits for
// every dataset of the session to complete.
func (s *ServerContext) HandleMap(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	if r.URL.Query().Get("wait") != "" {
		ctx, cancel := context.WithTimeout(r.Context(), s.fetchTimeout())
		err := sess.WaitLoaded(ctx)
		cancel()
		if errors.Is(err, session.ErrClosed) {
			writeError(w, err)
			return
		}
		// on timeout serve whatever has loaded
	}

	doc, err := sess.Map(r.Context())
	respond(w, doc, err)
}

// HandleLegend serves the legend of the loaded layers.
func (s *ServerContext) HandleLegend(w http.ResponseWriter, r *http.Request) {
	out, err := sessionFrom(r).Legend(r.Context())
	respond(w, out, err)
}

// HandleSearch runs a facility name search.
func (s *ServerContext) HandleSearch(w http.ResponseWriter, r *http.Request) {
	out, err := sessionFrom(r).Search(r.Context(), r.URL.Query().Get("q"))
	respond(w, out, err)
}

// HandleSelectFacility recenters the map on a search result.
func (s *ServerContext) HandleSelectFacility(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}

	out, err := sessionFrom(r).SelectFacility(r.Context(), index)
	respond(w, out, err)
}

// HandleShowPopup anchors the popup at a facility.
func (s *ServerContext) HandleShowPopup(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}

	out, err := sessionFrom(r).ShowPopup(r.Context(), index)
	respond(w, out, err)
}

// HandleHidePopup hides the popup.
func (s *ServerContext) HandleHidePopup(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).HidePopup(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegions serves the per-region counts.
func (s *ServerContext) HandleRegions(w http.ResponseWriter, r *http.Request) {
	out, err := sessionFrom(r).Regions(r.Context())
	respond(w, out, err)
}

// HandleSelectRegion shows the first page of a region's facilities.
func (s *ServerContext) HandleSelectRegion(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid region name"})
		return
	}

	out, err := sessionFrom(r).SelectRegion(r.Context(), name)
	respond(w, out, err)
}

// HandleAdvancePage loads the next page of the selected region.
func (s *ServerContext) HandleAdvancePage(w http.ResponseWriter, r *http.Request) {
	out, err := sessionFrom(r).AdvancePage(r.Context())
	respond(w, out, err)
}

// HandleBrowse serves the current region browse state.
func (s *ServerContext) HandleBrowse(w http.ResponseWriter, r *http.Request) {
	out, err := sessionFrom(r).Browse(r.Context())
	respond(w, out, err)
}

// HandleTile serves a basemap tile from the cache, fetching it upstream on
// a miss. Tiles without imagery get the transparent tile.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	var coord tiles.Coord
	for _, p := range []struct {
		name string
		dst  *int
	}{{"z", &coord.Z}, {"x", &coord.X}, {"y", &coord.Y}} {
		v, err := strconv.Atoi(chi.URLParam(r, p.name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		*p.dst = v
	}

	path, err := s.Tiles.Get(r.Context(), coord)
	if errors.Is(err, tiles.ErrOutOfRange) {
		http.NotFound(w, r)
		return
	}
	if err == nil && s.serveFile(w, r, path, "image/webp") {
		return
	}
	if err != nil && !errors.Is(err, tiles.ErrNoTile) {
		log.Debug().Err(err).Str("tile", coord.String()).Msg("Tile unavailable, serving transparent tile")
	}

	metrics.TileRequests.WithLabelValues("fallback").Inc()
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.TransparentTile)
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid facility index"})
		return 0, false
	}
	return index, true
}

func respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrClosed):
		status = http.StatusGone
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}
