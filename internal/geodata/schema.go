// Package geodata defines the stored entities and the schema they live in.
package geodata

import (
	"context"
	"fmt"
	"strings"

	"github.com/EmpoweredVote/EV-Geo/internal/geometry"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	TableCity   = "city"
	TableDmas   = "dmas"
	TablePipes  = "pipes"
	TableAssets = "assets"
)

// Column is one column definition in an Entity.
type Column struct {
	Name string
	Type string
}

// Entity describes a stored table: its columns, extra DDL and, for bulk
// loaded tables, the geometry column ingestion feeds and the kinds it takes.
type Entity struct {
	Table       string
	Columns     []Column
	Constraints []string
	Indexes     []string
	GeomColumn  string
	GeomKinds   geometry.KindSet
}

// CreateSQL renders the CREATE TABLE IF NOT EXISTS statement.
func (e Entity) CreateSQL() string {
	defs := make([]string, 0, len(e.Columns)+len(e.Constraints))
	for _, c := range e.Columns {
		defs = append(defs, pq.QuoteIdentifier(c.Name)+" "+c.Type)
	}
	defs = append(defs, e.Constraints...)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		pq.QuoteIdentifier(e.Table), strings.Join(defs, ",\n\t"))
}

// Entities returns the schema in creation order (referenced tables first).
func Entities() []Entity {
	return []Entity{
		{
			Table: TableCity,
			Columns: []Column{
				{"id", "SERIAL PRIMARY KEY"},
				{"state_code", "VARCHAR(2)"},
				{"state_name", "VARCHAR(50)"},
				{"city", "VARCHAR(50)"},
				{"county", "VARCHAR(50)"},
				{"geo_location", "geometry(Point,4326)"},
			},
			Indexes: []string{
				`CREATE INDEX IF NOT EXISTS idx_city_geo_location ON city USING GIST (geo_location)`,
				`CREATE INDEX IF NOT EXISTS idx_city_state_code ON city (state_code)`,
			},
			GeomColumn: "geo_location",
			GeomKinds:  geometry.Kinds(geometry.Point),
		},
		{
			Table: TableDmas,
			Columns: []Column{
				{"dma_id", "SERIAL PRIMARY KEY"},
				{"dma_key", "VARCHAR(200)"},
				{"dma_name", "VARCHAR(100)"},
				{"dma_long", "VARCHAR(100)"},
				{"region", "VARCHAR(100)"},
				{"zone", "VARCHAR(100)"},
				{"geom", "geometry(Geometry,4326)"},
				{"max_bug_coverage", "DOUBLE PRECISION"},
				{"start_date", "DATE"},
				{"end_date", "DATE"},
			},
			Indexes: []string{
				`CREATE INDEX IF NOT EXISTS idx_dmas_geom ON dmas USING GIST (geom)`,
				`CREATE INDEX IF NOT EXISTS idx_dmas_dma_key ON dmas (dma_key)`,
			},
			GeomColumn: "geom",
			GeomKinds:  geometry.Kinds(geometry.Polygon, geometry.MultiPolygon),
		},
		{
			Table: TablePipes,
			Columns: []Column{
				{"pipe_id", "SERIAL PRIMARY KEY"},
				{"geom", "geometry(Geometry,4326)"},
				{"material", "VARCHAR(200)"},
				{"pipe_key", "VARCHAR(100)"},
				{"created_date", "DATE"},
				{"diameter_mm", "DOUBLE PRECISION"},
				{"pipe_type", "VARCHAR(200)"},
				{"pipe_subtype", "VARCHAR(45)"},
				{"standardised_material", "VARCHAR(45)"},
				{"dma_id", "INTEGER"},
				{"company_id", "INTEGER"},
			},
			GeomColumn: "geom",
			GeomKinds:  geometry.Kinds(geometry.LineString, geometry.MultiLineString),
		},
		{
			Table: TableAssets,
			Columns: []Column{
				{"asset_id", "SERIAL PRIMARY KEY"},
				{"asset_key", "VARCHAR(100)"},
				{"asset_type", "VARCHAR(200)"},
				{"asset_subtype", "VARCHAR(45)"},
				{"geom", "geometry(Geometry,4326)"},
				{"created_date", "DATE"},
				{"diameter_mm", "DOUBLE PRECISION"},
				{"standardised_asset_type", "VARCHAR(65)"},
				{"dma_id", "INTEGER REFERENCES dmas (dma_id)"},
				{"company_id", "INTEGER"},
				{"geom_indexed", "geometry(Geometry,4326)"},
			},
			Constraints: []string{
				`CONSTRAINT uq_assets_key_subtype UNIQUE (asset_key, asset_subtype)`,
			},
			Indexes: []string{
				`CREATE INDEX IF NOT EXISTS idx_assets_geom_indexed ON assets USING GIST (geom_indexed)`,
			},
		},
	}
}

// Lookup finds the entity for table.
func Lookup(entities []Entity, table string) (Entity, bool) {
	for _, e := range entities {
		if e.Table == table {
			return e, true
		}
	}
	return Entity{}, false
}

// Migrate creates every table and index that does not exist yet.
func Migrate(ctx context.Context, db *gorm.DB, entities []Entity) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entities {
			if err := tx.Exec(e.CreateSQL()).Error; err != nil {
				return fmt.Errorf("create table %s: %w", e.Table, err)
			}
			for _, idx := range e.Indexes {
				if err := tx.Exec(idx).Error; err != nil {
					return fmt.Errorf("create index on %s: %w", e.Table, err)
				}
			}
		}
		return nil
	})
}
