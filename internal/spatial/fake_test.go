package spatial

import (
	"context"
	"encoding/json"

	"github.com/EmpoweredVote/EV-Geo/internal/geodata"
	"github.com/EmpoweredVote/EV-Geo/internal/geometry"
	"github.com/paulmach/orb"
	"github.com/umahmood/haversine"
)

// fakeStore answers distance questions with great-circle distances between
// points, measuring DMAs from the center of their bounding box.
type fakeStore struct {
	dmas   []geodata.Dma
	cities []geodata.City
	areas  map[string]float64

	calls      int
	lastFilter geodata.DmaFilter
	lastPoly   string
	lastPoint  string
	lastMeters float64
}

func meters(a, b orb.Point) float64 {
	_, km := haversine.Distance(haversine.Coord{Lat: a.Lat(), Lon: a.Lon()}, haversine.Coord{Lat: b.Lat(), Lon: b.Lon()})
	return km * 1000
}

func mustPoint(s string) orb.Point {
	g, err := geometry.Parse(s)
	if err != nil {
		panic(err)
	}
	return g.(orb.Point)
}

func mustGeom(s string) orb.Geometry {
	g, err := geometry.Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

func (f *fakeStore) ListDmas(_ context.Context, flt geodata.DmaFilter) ([]geodata.Dma, error) {
	f.calls++
	f.lastFilter = flt
	var out []geodata.Dma
	for _, d := range f.dmas {
		if flt.DmaKey != "" && d.DmaKey != flt.DmaKey {
			continue
		}
		if flt.StartOnOrBefore != nil && (d.StartDate == nil || d.StartDate.After(*flt.StartOnOrBefore)) {
			continue
		}
		out = append(out, d)
	}
	if flt.Offset >= len(out) {
		return nil, nil
	}
	out = out[flt.Offset:]
	if flt.Limit > 0 && flt.Limit < len(out) {
		out = out[:flt.Limit]
	}
	return out, nil
}

func (f *fakeStore) DmasWithin(_ context.Context, point string, m float64) ([]geodata.Dma, error) {
	f.calls++
	f.lastPoint, f.lastMeters = point, m
	p := mustPoint(point)
	var out []geodata.Dma
	for _, d := range f.dmas {
		if !d.Geom.Valid {
			continue
		}
		if meters(p, mustGeom(d.Geom.WKT).Bound().Center()) <= m {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) DmasIntersecting(_ context.Context, polygon string) ([]geodata.Dma, error) {
	f.calls++
	f.lastPoly = polygon
	b := mustGeom(polygon).Bound()
	var out []geodata.Dma
	for _, d := range f.dmas {
		if d.Geom.Valid && b.Intersects(mustGeom(d.Geom.WKT).Bound()) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) DmaArea(_ context.Context, key string, epsg int) (float64, bool, error) {
	f.calls++
	a, ok := f.areas[key]
	return a, ok, nil
}

func (f *fakeStore) NearestDmaDistance(_ context.Context, point string) (float64, bool, error) {
	f.calls++
	p := mustPoint(point)
	best, found := 0.0, false
	for _, d := range f.dmas {
		if !d.Geom.Valid {
			continue
		}
		m := meters(p, mustGeom(d.Geom.WKT).Bound().Center())
		if !found || m < best {
			best, found = m, true
		}
	}
	return best, found, nil
}

func (f *fakeStore) Cities(context.Context) ([]geodata.City, error) {
	f.calls++
	return f.cities, nil
}

func (f *fakeStore) CitiesByState(_ context.Context, code string) ([]geodata.City, error) {
	f.calls++
	var out []geodata.City
	for _, c := range f.cities {
		if c.StateCode == code {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) FindCity(_ context.Context, ref geodata.CityRef) (geodata.City, bool, error) {
	f.calls++
	for _, c := range f.cities {
		if c.City == ref.City && c.County == ref.County && c.StateCode == ref.StateCode {
			return c, true, nil
		}
	}
	return geodata.City{}, false, nil
}

func (f *fakeStore) CityNamesWithin(_ context.Context, point string, m float64) ([]string, error) {
	f.calls++
	f.lastPoint, f.lastMeters = point, m
	p := mustPoint(point)
	names := []string{}
	for _, c := range f.cities {
		if meters(p, mustPoint(c.GeoLocation.WKT)) <= m {
			names = append(names, c.City)
		}
	}
	return names, nil
}

// memCache is an in-process cache.Cache.
type memCache map[string][]byte

func (m memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	b, ok := m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m memCache) Set(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	m[key] = b
	return err
}

func (m memCache) Flush(context.Context) error {
	for k := range m {
		delete(m, k)
	}
	return nil
}
