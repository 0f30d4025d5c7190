package geodata

import (
	"context"
	"fmt"

	"github.com/EmpoweredVote/EV-Geo/internal/geometry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Geometry is a nullable PostGIS geometry column.
//
// Values built for insert carry WKT and are bound as EWKT through
// ST_GeomFromEWKT. Values read back carry the hex EWKB the driver returns;
// the query layer turns that into WKT when it builds a response.
type Geometry struct {
	WKT   string
	EWKB  string
	Valid bool
}

// NewGeometry wraps normalized WKT. An empty string yields a null geometry.
func NewGeometry(wkt string) Geometry {
	return Geometry{WKT: wkt, Valid: wkt != ""}
}

func (Geometry) GormDataType() string { return "geometry" }

func (g Geometry) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	if !g.Valid || g.WKT == "" {
		return clause.Expr{SQL: "NULL"}
	}
	return clause.Expr{SQL: "ST_GeomFromEWKT(?)", Vars: []any{geometry.EWKT(g.WKT)}}
}

func (g *Geometry) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*g = Geometry{}
	case string:
		*g = Geometry{EWKB: v, Valid: v != ""}
	case []byte:
		*g = Geometry{EWKB: string(v), Valid: len(v) > 0}
	default:
		return fmt.Errorf("geometry: cannot scan %T", src)
	}
	return nil
}

// Text returns the geometry as WKT, decoding stored EWKB when needed.
func (g Geometry) Text() (string, error) {
	if !g.Valid {
		return "", nil
	}
	if g.WKT != "" {
		return g.WKT, nil
	}
	return geometry.Render(g.EWKB)
}
