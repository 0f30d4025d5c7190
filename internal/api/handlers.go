// Package api is the HTTP surface: the bulk load triggers and the DMA and
// city queries.
package api

import (
	"context"
	"net/http"

	"github.com/EmpoweredVote/EV-Geo/internal/apperr"
	"github.com/EmpoweredVote/EV-Geo/internal/geodata"
	"github.com/EmpoweredVote/EV-Geo/internal/ingest"
	"github.com/EmpoweredVote/EV-Geo/internal/spatial"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Defaults applied when a query parameter is absent.
const (
	defaultLatitude         = 51.53155502944422
	defaultLongitude        = -0.15432151225325608
	defaultDistance         = 1000
	defaultNearestLatitude  = 51.53409
	defaultNearestLongitude = -0.16270
	defaultRing             = "-0.15429 51.52938, -0.14742 51.53050, -0.14691 51.52682, -0.15275 51.52618, -0.15429 51.52938"

	loadFailed = "An error occurred while loading data"
)

type Loader interface {
	Load(ctx context.Context, kind ingest.Kind) (ingest.Report, error)
}

type Queries interface {
	ListDmas(ctx context.Context, p spatial.ListParams) ([]spatial.DmaView, error)
	NearbyDmas(ctx context.Context, lat, lon, meters float64) ([]spatial.DmaView, error)
	TotalArea(ctx context.Context, region, dmaKey string) (spatial.Area, error)
	IntersectingDmas(ctx context.Context, ring string) ([]spatial.DmaView, error)
	NearestDistance(ctx context.Context, lat, lon float64) (spatial.Distance, error)
	Cities(ctx context.Context) ([]spatial.CityView, error)
	CitiesByState(ctx context.Context, stateCode string) ([]spatial.CityView, error)
	NearbyCitiesByDetails(ctx context.Context, ref geodata.CityRef, km float64) ([]string, error)
	NearbyCitiesByCoordinates(ctx context.Context, lat, lon, km float64) ([]string, error)
}

type Handler struct {
	loader  Loader
	queries Queries
	ping    func(ctx context.Context) error
}

// New builds the handlers. ping backs /healthz and may be nil.
func New(loader Loader, queries Queries, ping func(ctx context.Context) error) *Handler {
	return &Handler{loader: loader, queries: queries, ping: ping}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, message{Message: "Hello World"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}` + "\n"))
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// Load triggers the one-time load of kind. With failSoft set, a failed load
// answers 200 with a generic message instead of an error status.
func (h *Handler) Load(kind ingest.Kind, failSoft bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := h.loader.Load(r.Context(), kind)
		if err != nil {
			if failSoft {
				log.Error().Err(err).Str("entity", string(kind)).Str("run_id", rep.RunID).Msg("load failed")
				writeJSON(w, message{Message: loadFailed})
				return
			}
			writeError(w, r, err)
			return
		}
		writeJSON(w, message{Message: rep.Message()})
	}
}

func (h *Handler) ListDmas(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page < 1 {
		writeError(w, r, apperr.Invalid("page must be at least 1"))
		return
	}
	perPage, err := intParam(r, "per_page", spatial.DefaultPerPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if perPage < 1 {
		writeError(w, r, apperr.Invalid("per_page must be between 1 and %d", spatial.MaxPerPage))
		return
	}
	start, err := dateParam(r, "start_date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	dmas, err := h.queries.ListDmas(r.Context(), spatial.ListParams{
		Page:      page,
		PerPage:   perPage,
		DmaKey:    r.URL.Query().Get("dma_key"),
		StartDate: start,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, dmas)
}

func (h *Handler) NearbyDmas(w http.ResponseWriter, r *http.Request) {
	lat, err := floatParam(r, "latitude", defaultLatitude)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lon, err := floatParam(r, "longitude", defaultLongitude)
	if err != nil {
		writeError(w, r, err)
		return
	}
	distance, err := floatParam(r, "distance", defaultDistance)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dmas, err := h.queries.NearbyDmas(r.Context(), lat, lon, distance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, dmas)
}

func (h *Handler) TotalArea(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	area, err := h.queries.TotalArea(r.Context(), q.Get("region"), q.Get("dma_key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, area)
}

func (h *Handler) IntersectingDmas(w http.ResponseWriter, r *http.Request) {
	ring := r.URL.Query().Get("polygon_wkt")
	if ring == "" {
		ring = defaultRing
	}
	dmas, err := h.queries.IntersectingDmas(r.Context(), ring)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, dmas)
}

func (h *Handler) NearestDistance(w http.ResponseWriter, r *http.Request) {
	lat, err := floatParam(r, "latitude", defaultNearestLatitude)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lon, err := floatParam(r, "longitude", defaultNearestLongitude)
	if err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.queries.NearestDistance(r.Context(), lat, lon)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (h *Handler) Cities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.queries.Cities(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, cities)
}

func (h *Handler) CitiesByState(w http.ResponseWriter, r *http.Request) {
	cities, err := h.queries.CitiesByState(r.Context(), chi.URLParam(r, "state_code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, cities)
}

type nearbyByDetailsRequest struct {
	City      string  `json:"city"`
	County    string  `json:"county"`
	StateCode string  `json:"state_code"`
	KmWithin  float64 `json:"km_within"`
}

func (h *Handler) NearbyCitiesByDetails(w http.ResponseWriter, r *http.Request) {
	var req nearbyByDetailsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.City == "" || req.County == "" {
		writeError(w, r, apperr.Invalid("city and county are required"))
		return
	}

	names, err := h.queries.NearbyCitiesByDetails(r.Context(), geodata.CityRef{
		City:      req.City,
		County:    req.County,
		StateCode: req.StateCode,
	}, req.KmWithin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, names)
}

type nearbyByCoordinatesRequest struct {
	Lat      *float64 `json:"lat"`
	Long     *float64 `json:"long"`
	KmWithin float64  `json:"km_within"`
}

func (h *Handler) NearbyCitiesByCoordinates(w http.ResponseWriter, r *http.Request) {
	var req nearbyByCoordinatesRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Lat == nil || req.Long == nil {
		writeError(w, r, apperr.Invalid("lat and long are required"))
		return
	}

	names, err := h.queries.NearbyCitiesByCoordinates(r.Context(), *req.Lat, *req.Long, req.KmWithin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, names)
}
