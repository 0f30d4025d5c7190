// Package spatial answers the proximity, intersection and area questions the
// API exposes. Every geometric computation runs in the store; this package
// validates inputs, builds the query geometries and maps results to views.
package spatial

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/EmpoweredVote/EV-Geo/internal/apperr"
	"github.com/EmpoweredVote/EV-Geo/internal/cache"
	"github.com/EmpoweredVote/EV-Geo/internal/geodata"
	"github.com/EmpoweredVote/EV-Geo/internal/geometry"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 1000
	DefaultRegion  = "europe"
)

// regions maps a region name to the projected CRS its areas are measured in.
var regions = map[string]int{
	"europe": 3035,
	"usa":    5070,
	"india":  24376,
}

// EPSG returns the area projection for region. An empty region means
// DefaultRegion.
func EPSG(region string) (int, error) {
	r := strings.ToLower(strings.TrimSpace(region))
	if r == "" {
		r = DefaultRegion
	}
	epsg, ok := regions[r]
	if !ok {
		return 0, apperr.Invalid("Invalid region")
	}
	return epsg, nil
}

// Store is the read side of the spatial store. Points are EWKT at SRID 4326
// and distances are meters on the spheroid.
type Store interface {
	ListDmas(ctx context.Context, f geodata.DmaFilter) ([]geodata.Dma, error)
	DmasWithin(ctx context.Context, point string, meters float64) ([]geodata.Dma, error)
	DmasIntersecting(ctx context.Context, polygon string) ([]geodata.Dma, error)
	DmaArea(ctx context.Context, dmaKey string, epsg int) (float64, bool, error)
	NearestDmaDistance(ctx context.Context, point string) (float64, bool, error)
	Cities(ctx context.Context) ([]geodata.City, error)
	CitiesByState(ctx context.Context, stateCode string) ([]geodata.City, error)
	FindCity(ctx context.Context, ref geodata.CityRef) (geodata.City, bool, error)
	CityNamesWithin(ctx context.Context, point string, meters float64) ([]string, error)
}

type Service struct {
	store Store
	cache cache.Cache
}

func New(store Store, c cache.Cache) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{store: store, cache: c}
}

// ListParams selects a page of DMAs. Page is 1-based.
type ListParams struct {
	Page      int
	PerPage   int
	DmaKey    string
	StartDate *time.Time
}

func (s *Service) ListDmas(ctx context.Context, p ListParams) ([]DmaView, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PerPage == 0 {
		p.PerPage = DefaultPerPage
	}
	if p.Page < 1 {
		return nil, apperr.Invalid("page must be at least 1")
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		return nil, apperr.Invalid("per_page must be between 1 and %d", MaxPerPage)
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return nil, apperr.Invalid("page is too large")
	}

	dmas, err := s.store.ListDmas(ctx, geodata.DmaFilter{
		Offset:          (p.Page - 1) * p.PerPage,
		Limit:           p.PerPage,
		DmaKey:          p.DmaKey,
		StartOnOrBefore: p.StartDate,
	})
	if err != nil {
		return nil, err
	}
	return dmaViews(dmas)
}

func (s *Service) NearbyDmas(ctx context.Context, lat, lon, meters float64) ([]DmaView, error) {
	if err := checkPoint(lat, lon); err != nil {
		return nil, err
	}
	if !positive(meters) {
		return nil, apperr.Invalid("distance must be greater than 0")
	}
	dmas, err := s.store.DmasWithin(ctx, geometry.PointEWKT(lon, lat), meters)
	if err != nil {
		return nil, err
	}
	return dmaViews(dmas)
}

// TotalArea returns the area in square meters of the DMAs keyed dmaKey,
// measured in region's projection.
func (s *Service) TotalArea(ctx context.Context, region, dmaKey string) (Area, error) {
	epsg, err := EPSG(region)
	if err != nil {
		return Area{}, err
	}
	if strings.TrimSpace(dmaKey) == "" {
		return Area{}, apperr.Invalid("dma_key is required")
	}

	key := cache.Key("area", epsg, dmaKey)
	var area float64
	if s.cached(ctx, key, &area) {
		return Area{Value: area, Unit: "m²"}, nil
	}

	area, found, err := s.store.DmaArea(ctx, dmaKey, epsg)
	if err != nil {
		return Area{}, err
	}
	if !found {
		return Area{}, apperr.NotFound("No DMA with a geometry found for key: %s", dmaKey)
	}
	s.remember(ctx, key, area)
	return Area{Value: area, Unit: "m²"}, nil
}

// IntersectingDmas takes bare ring coordinates ("x y, x y, ...") and returns
// the DMAs intersecting the polygon they close.
func (s *Service) IntersectingDmas(ctx context.Context, ring string) ([]DmaView, error) {
	polygon, err := geometry.Ring(ring)
	if err != nil {
		return nil, apperr.Invalid("invalid polygon_wkt: %v", err)
	}
	dmas, err := s.store.DmasIntersecting(ctx, polygon)
	if err != nil {
		return nil, err
	}
	return dmaViews(dmas)
}

func (s *Service) NearestDistance(ctx context.Context, lat, lon float64) (Distance, error) {
	if err := checkPoint(lat, lon); err != nil {
		return Distance{}, err
	}

	key := cache.Key("nearest", lat, lon)
	var meters float64
	if s.cached(ctx, key, &meters) {
		return Distance{Value: meters, Units: "m"}, nil
	}

	meters, found, err := s.store.NearestDmaDistance(ctx, geometry.PointEWKT(lon, lat))
	if err != nil {
		return Distance{}, err
	}
	if !found {
		return Distance{}, apperr.NotFound("No DMA geometries loaded")
	}
	s.remember(ctx, key, meters)
	return Distance{Value: meters, Units: "m"}, nil
}

func (s *Service) Cities(ctx context.Context) ([]CityView, error) {
	cities, err := s.store.Cities(ctx)
	if err != nil {
		return nil, err
	}
	return cityViews(cities)
}

func (s *Service) CitiesByState(ctx context.Context, stateCode string) ([]CityView, error) {
	code, err := normalizeState(stateCode)
	if err != nil {
		return nil, err
	}
	cities, err := s.store.CitiesByState(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(cities) == 0 {
		return nil, apperr.NotFound("No cities found for provided state: %s", code)
	}
	return cityViews(cities)
}

// NearbyCitiesByDetails names every city within km of the city identified by
// ref, the target included. The triple is matched exactly as given.
func (s *Service) NearbyCitiesByDetails(ctx context.Context, ref geodata.CityRef, km float64) ([]string, error) {
	if !positive(km) {
		return nil, apperr.Invalid("km_within must be greater than 0")
	}

	target, found, err := s.store.FindCity(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !found || !target.GeoLocation.Valid {
		return nil, apperr.NotFound("City with provided details was not found")
	}

	point, err := target.GeoLocation.Text()
	if err != nil {
		return nil, err
	}
	return s.store.CityNamesWithin(ctx, fmt.Sprintf("SRID=%d;%s", geometry.SRID, point), km*1000)
}

func (s *Service) NearbyCitiesByCoordinates(ctx context.Context, lat, lon, km float64) ([]string, error) {
	if err := checkPoint(lat, lon); err != nil {
		return nil, err
	}
	if !positive(km) {
		return nil, apperr.Invalid("km_within must be greater than 0")
	}
	return s.store.CityNamesWithin(ctx, geometry.PointEWKT(lon, lat), km*1000)
}

// cached reports a cache hit. Cache failures are logged and treated as a miss.
func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	return hit
}

func (s *Service) remember(ctx context.Context, key string, v any) {
	if err := s.cache.Set(ctx, key, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func checkPoint(lat, lon float64) error {
	if !(lat >= -90 && lat <= 90) {
		return apperr.Invalid("latitude must be between -90 and 90")
	}
	if !(lon >= -180 && lon <= 180) {
		return apperr.Invalid("longitude must be between -180 and 180")
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func normalizeState(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 2 {
		return "", apperr.Invalid("state_code must be exactly 2 characters")
	}
	return c, nil
}
