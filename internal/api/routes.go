package api

import (
	"net/http"

	"github.com/EmpoweredVote/EV-Geo/internal/ingest"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts every endpoint. loaderGuard wraps the /load-* routes.
func (h *Handler) SetupRoutes(loaderGuard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.Root)
	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(loaderGuard)
		r.Get("/load-cities", h.Load(ingest.KindCity, false))
		r.Get("/load-dmas", h.Load(ingest.KindDma, true))
		r.Get("/load-pipes", h.Load(ingest.KindPipe, true))
	})

	r.Get("/dmas", h.ListDmas)
	r.Get("/dmas/nearby", h.NearbyDmas)
	r.Get("/dmas/total_area", h.TotalArea)
	r.Get("/dmas/intersecting", h.IntersectingDmas)
	r.Get("/dmas/nearest/distance", h.NearestDistance)

	r.Get("/cities", h.Cities)
	r.Get("/cities/{state_code}", h.CitiesByState)
	r.Post("/nearby-cities-by-details", h.NearbyCitiesByDetails)
	r.Post("/nearby-cities-by-coordinates", h.NearbyCitiesByCoordinates)

	return r
}
