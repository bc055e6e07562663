package server

import (
	"net/http"

	"github.com/woozymasta/hospmap/internal/metrics"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires every route of the service.
func NewRouter(s *ServerContext) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)
	r.Use(metrics.Middleware)

	r.Get("/", s.HandleIndex)
	r.Get("/favicon.svg", s.HandleFavicon)
	r.Get("/healthz", s.HandleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get(TileRoute, s.HandleTile)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.WithSession)

		r.Get("/map", s.HandleMap)
		r.Get("/legend", s.HandleLegend)
		r.Get("/search", s.HandleSearch)
		r.Post("/search/select/{index}", s.HandleSelectFacility)
		r.Post("/popup/{index}", s.HandleShowPopup)
		r.Delete("/popup", s.HandleHidePopup)
		r.Get("/regions", s.HandleRegions)
		r.Post("/regions/{name}", s.HandleSelectRegion)
		r.Get("/browse", s.HandleBrowse)
		r.Post("/browse/more", s.HandleAdvancePage)
	})

	return r
}
