package geometry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ErrInvalidRing is returned by Ring when the coordinates do not form a polygon.
var ErrInvalidRing = errors.New("invalid polygon ring")

// Render converts a geometry column value as returned by the driver (hex
// EWKB) to WKT. An empty value renders as "".
func Render(stored string) (string, error) {
	s := strings.TrimSpace(stored)
	if s == "" {
		return "", nil
	}
	g, err := Parse(s)
	if err != nil {
		return "", fmt.Errorf("render geometry: %w", err)
	}
	return wkt.MarshalString(g), nil
}

// Ring wraps bare ring coordinates ("x y, x y, ...") into a polygon and
// returns its WKT. The ring must be closed.
func Ring(coords string) (string, error) {
	coords = strings.TrimSpace(coords)
	if coords == "" {
		return "", fmt.Errorf("%w: no coordinates", ErrInvalidRing)
	}

	res := Normalize("POLYGON(("+coords+"))", Kinds(Polygon), "polygon_wkt")
	if res.Status != OK {
		return "", fmt.Errorf("%w: %s", ErrInvalidRing, res.Reason)
	}

	g, err := wkt.UnmarshalPolygon(res.WKT)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRing, err)
	}
	if len(g) == 0 || len(g[0]) < 4 {
		return "", fmt.Errorf("%w: a ring needs at least 4 positions", ErrInvalidRing)
	}
	if !g[0].Closed() {
		return "", fmt.Errorf("%w: ring is not closed", ErrInvalidRing)
	}
	return res.WKT, nil
}

// PointWKT formats a lon/lat pair as a WKT point.
func PointWKT(lon, lat float64) string {
	return wkt.MarshalString(orb.Point{lon, lat})
}

// EWKT prefixes wkt with the SRID every stored geometry uses.
func EWKT(wkt string) string {
	return "SRID=" + strconv.Itoa(SRID) + ";" + wkt
}

// PointEWKT is PointWKT with the SRID prefix.
func PointEWKT(lon, lat float64) string {
	return EWKT(PointWKT(lon, lat))
}
