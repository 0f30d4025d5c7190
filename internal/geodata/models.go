package geodata

import "time"

// City is one row of us_cities.csv: a named place with a point location.
type City struct {
	ID          int      `gorm:"primaryKey;column:id"`
	StateCode   string   `gorm:"column:state_code;size:2"`
	StateName   string   `gorm:"column:state_name;size:50"`
	City        string   `gorm:"column:city;size:50"`
	County      string   `gorm:"column:county;size:50"`
	GeoLocation Geometry `gorm:"column:geo_location;type:geometry(Point,4326)"`
}

func (City) TableName() string { return TableCity }

// Dma is a designated market area. Geom is a Polygon or MultiPolygon.
type Dma struct {
	DmaID          int        `gorm:"primaryKey;autoIncrement;column:dma_id"`
	DmaKey         string     `gorm:"column:dma_key;size:200"`
	DmaName        string     `gorm:"column:dma_name;size:100"`
	DmaLong        string     `gorm:"column:dma_long;size:100"`
	Region         string     `gorm:"column:region;size:100"`
	Zone           string     `gorm:"column:zone;size:100"`
	Geom           Geometry   `gorm:"column:geom;type:geometry(Geometry,4326)"`
	MaxBugCoverage *float64   `gorm:"column:max_bug_coverage"`
	StartDate      *time.Time `gorm:"column:start_date;type:date"`
	EndDate        *time.Time `gorm:"column:end_date;type:date"`
}

func (Dma) TableName() string { return TableDmas }

// Pipe is a network segment. Geom is a LineString or MultiLineString.
// DmaID is informational and not enforced as a foreign key.
type Pipe struct {
	PipeID               int        `gorm:"primaryKey;autoIncrement;column:pipe_id"`
	Geom                 Geometry   `gorm:"column:geom;type:geometry(Geometry,4326)"`
	Material             string     `gorm:"column:material;size:200"`
	PipeKey              string     `gorm:"column:pipe_key;size:100"`
	CreatedDate          *time.Time `gorm:"column:created_date;type:date"`
	DiameterMM           *float64   `gorm:"column:diameter_mm"`
	PipeType             string     `gorm:"column:pipe_type;size:200"`
	PipeSubtype          string     `gorm:"column:pipe_subtype;size:45"`
	StandardisedMaterial string     `gorm:"column:standardised_material;size:45"`
	DmaID                *int       `gorm:"column:dma_id"`
	CompanyID            *int       `gorm:"column:company_id"`
}

func (Pipe) TableName() string { return TablePipes }

// Asset is part of the stored schema but is not loaded or served.
type Asset struct {
	AssetID               int        `gorm:"primaryKey;autoIncrement;column:asset_id"`
	AssetKey              string     `gorm:"column:asset_key;size:100"`
	AssetType             string     `gorm:"column:asset_type;size:200"`
	AssetSubtype          string     `gorm:"column:asset_subtype;size:45"`
	Geom                  Geometry   `gorm:"column:geom;type:geometry(Geometry,4326)"`
	CreatedDate           *time.Time `gorm:"column:created_date;type:date"`
	DiameterMM            *float64   `gorm:"column:diameter_mm"`
	StandardisedAssetType string     `gorm:"column:standardised_asset_type;size:65"`
	DmaID                 *int       `gorm:"column:dma_id"`
	CompanyID             *int       `gorm:"column:company_id"`
	GeomIndexed           Geometry   `gorm:"column:geom_indexed;type:geometry(Geometry,4326)"`
}

func (Asset) TableName() string { return TableAssets }
