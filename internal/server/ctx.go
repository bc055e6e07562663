package server

import (
	"hash/crc32"
	"net/http"
	"strconv"
	"time"

	"github.com/woozymasta/hospmap/assets"
	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/session"
	"github.com/woozymasta/hospmap/internal/tiles"
	"github.com/woozymasta/hospmap/internal/view"

	"github.com/rs/zerolog/log"
)

// TileRoute is the URL template the browser loads basemap tiles from.
const TileRoute = "/tiles/{z}/{x}/{y}.webp"

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config          *config.Config
	Sessions        *session.Store
	Fetcher         session.Fetcher
	Tiles           *tiles.Cache
	Page            *assets.Page
	IndexETag       string
	TransparentTile []byte
}

// NewServerContext renders the page and sets up the session store. Every
// new session immediately starts fetching its datasets through fetcher.
func NewServerContext(cfg *config.Config, fetcher session.Fetcher, tileCache *tiles.Cache) (*ServerContext, error) {
	log.Info().Str("title", cfg.Title).Msg("Initializing server context")

	page, err := assets.Render(cfg.Title, cfg.Attribution)
	if err != nil {
		return nil, err
	}

	transparent, err := tiles.Transparent()
	if err != nil {
		return nil, err
	}

	s := &ServerContext{
		Config:          cfg,
		Fetcher:         fetcher,
		Tiles:           tileCache,
		Page:            page,
		IndexETag:       `"` + strconv.FormatUint(uint64(crc32.ChecksumIEEE(page.HTML)), 16) + `"`,
		TransparentTile: transparent,
	}

	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	s.Sessions = session.NewStore(ttl, s.newSession)

	if !page.HasAnchor(cfg.View.PopupAnchor) {
		log.Warn().
			Str("anchor", cfg.View.PopupAnchor).
			Msg("Popup anchor not found in page, popups will be disabled")
	}

	log.Info().
		Int("page_bytes", len(page.HTML)).
		Dur("session_ttl", ttl).
		Msg("Server context initialized successfully")

	return s, nil
}

// Close tears down every session.
func (s *ServerContext) Close() {
	s.Sessions.Close()
}

func (s *ServerContext) newSession(id string) *session.Session {
	sess := session.New(id, s.Config, view.OptionsFromConfig(s.Config, TileRoute, s.Page))
	sess.Start(s.Fetcher)
	return sess
}

// fetchTimeout bounds how long a request waits for datasets to complete.
func (s *ServerContext) fetchTimeout() time.Duration {
	return time.Duration(s.Config.Fetch.TimeoutSec)*time.Second + 5*time.Second
}

func sessionCookie(id string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
