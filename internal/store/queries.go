package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EmpoweredVote/EV-Geo/internal/apperr"
	"github.com/EmpoweredVote/EV-Geo/internal/geodata"
	"github.com/EmpoweredVote/EV-Geo/internal/geometry"
)

// ListDmas returns one page of DMAs ordered by dma_id.
func (s *Store) ListDmas(ctx context.Context, f geodata.DmaFilter) ([]geodata.Dma, error) {
	q := s.db.WithContext(ctx).Model(&geodata.Dma{}).Order("dma_id")
	if f.DmaKey != "" {
		q = q.Where("dma_key = ?", f.DmaKey)
	}
	if f.StartOnOrBefore != nil {
		q = q.Where("start_date <= ?", f.StartOnOrBefore.Format("2006-01-02"))
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var dmas []geodata.Dma
	if err := q.Find(&dmas).Error; err != nil {
		return nil, fmt.Errorf("list dmas: %w", apperr.FromPostgres(err))
	}
	return dmas, nil
}

// DmasWithin returns DMAs whose geometry lies within meters of point (EWKT),
// measured on the spheroid.
func (s *Store) DmasWithin(ctx context.Context, point string, meters float64) ([]geodata.Dma, error) {
	var dmas []geodata.Dma
	err := s.db.WithContext(ctx).
		Where("geom IS NOT NULL AND ST_DWithin(geom::geography, ST_GeogFromText(?), ?)", point, meters).
		Order("dma_id").
		Find(&dmas).Error
	if err != nil {
		return nil, fmt.Errorf("dmas within %.0fm: %w", meters, apperr.FromPostgres(err))
	}
	return dmas, nil
}

// DmasIntersecting returns DMAs whose geometry intersects polygon (WKT at
// SRID 4326).
func (s *Store) DmasIntersecting(ctx context.Context, polygon string) ([]geodata.Dma, error) {
	var dmas []geodata.Dma
	err := s.db.WithContext(ctx).
		Where("ST_Intersects(geom, ST_GeomFromText(?, ?))", polygon, geometry.SRID).
		Order("dma_id").
		Find(&dmas).Error
	if err != nil {
		return nil, fmt.Errorf("dmas intersecting polygon: %w", apperr.FromPostgres(err))
	}
	return dmas, nil
}

// DmaArea sums the area, in square units of epsg, of the DMAs keyed dmaKey
// after reprojecting them. found is false when no such DMA has a geometry.
func (s *Store) DmaArea(ctx context.Context, dmaKey string, epsg int) (area float64, found bool, err error) {
	var total sql.NullFloat64
	row := s.db.WithContext(ctx).Raw(`
		SELECT SUM(ST_Area(ST_Transform(geom, ?)))
		FROM dmas
		WHERE dma_key = ? AND geom IS NOT NULL
	`, epsg, dmaKey).Row()
	if err := row.Scan(&total); err != nil {
		return 0, false, fmt.Errorf("area of dma %s: %w", dmaKey, apperr.FromPostgres(err))
	}
	return total.Float64, total.Valid, nil
}

// NearestDmaDistance returns the geodesic distance in meters from point (EWKT)
// to the closest DMA geometry. found is false when no DMA has a geometry.
func (s *Store) NearestDmaDistance(ctx context.Context, point string) (meters float64, found bool, err error) {
	rows, err := s.db.WithContext(ctx).Raw(`
		SELECT ST_Distance(geom::geography, ST_GeogFromText(?)) AS distance
		FROM dmas
		WHERE geom IS NOT NULL
		ORDER BY distance
		LIMIT 1
	`, point).Rows()
	if err != nil {
		return 0, false, fmt.Errorf("nearest dma: %w", apperr.FromPostgres(err))
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, false, rows.Err()
	}
	if err := rows.Scan(&meters); err != nil {
		return 0, false, fmt.Errorf("scan distance: %w", apperr.FromPostgres(err))
	}
	return meters, true, nil
}

func (s *Store) Cities(ctx context.Context) ([]geodata.City, error) {
	var cities []geodata.City
	if err := s.db.WithContext(ctx).Order("id").Find(&cities).Error; err != nil {
		return nil, fmt.Errorf("list cities: %w", apperr.FromPostgres(err))
	}
	return cities, nil
}

func (s *Store) CitiesByState(ctx context.Context, stateCode string) ([]geodata.City, error) {
	var cities []geodata.City
	if err := s.db.WithContext(ctx).Where("state_code = ?", stateCode).Order("id").Find(&cities).Error; err != nil {
		return nil, fmt.Errorf("cities in %s: %w", stateCode, apperr.FromPostgres(err))
	}
	return cities, nil
}

// FindCity returns the lowest-id city matching ref exactly.
func (s *Store) FindCity(ctx context.Context, ref geodata.CityRef) (geodata.City, bool, error) {
	var cities []geodata.City
	err := s.db.WithContext(ctx).
		Where("city = ? AND county = ? AND state_code = ?", ref.City, ref.County, ref.StateCode).
		Order("id").
		Limit(1).
		Find(&cities).Error
	if err != nil {
		return geodata.City{}, false, fmt.Errorf("find city %s: %w", ref.City, apperr.FromPostgres(err))
	}
	if len(cities) == 0 {
		return geodata.City{}, false, nil
	}
	return cities[0], true, nil
}

// CityNamesWithin returns the names of cities within meters of point (EWKT).
func (s *Store) CityNamesWithin(ctx context.Context, point string, meters float64) ([]string, error) {
	names := []string{}
	err := s.db.WithContext(ctx).Model(&geodata.City{}).
		Where("ST_DWithin(geo_location::geography, ST_GeogFromText(?), ?)", point, meters).
		Order("id").
		Pluck("city", &names).Error
	if err != nil {
		return nil, fmt.Errorf("cities within %.0fm: %w", meters, apperr.FromPostgres(err))
	}
	return names, nil
}
