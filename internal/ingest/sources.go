package ingest

import (
	"fmt"
	"strings"

	"github.com/EmpoweredVote/EV-Geo/internal/geodata"
	"github.com/EmpoweredVote/EV-Geo/internal/geometry"
)

// Kind names one of the bulk-loaded entity kinds.
type Kind string

const (
	KindCity Kind = "city"
	KindDma  Kind = "dma"
	KindPipe Kind = "pipe"
)

// Kinds lists the loadable kinds in load order.
var Kinds = []Kind{KindCity, KindDma, KindPipe}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCity, KindDma, KindPipe:
		return k, nil
	case "cities":
		return KindCity, nil
	case "dmas":
		return KindDma, nil
	case "pipes":
		return KindPipe, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// source describes how one file maps onto model T. Column positions are
// fixed; there is no header validation.
type source[T any] struct {
	kind      Kind
	table     string
	comma     rune
	minFields int
	// geom returns the raw geometry text of a record.
	geom         func(f []string) (string, error)
	geomKinds    geometry.KindSet
	geomRequired bool
	// key is the natural key used in diagnostics.
	key func(f []string) string
	row func(f []string, g geodata.Geometry) (T, error)
}

func entityKinds(table string) geometry.KindSet {
	e, ok := geodata.Lookup(geodata.Entities(), table)
	if !ok {
		panic("ingest: no schema entity for " + table)
	}
	return e.GeomKinds
}

// us_cities.csv: ID,STATE_CODE,STATE_NAME,CITY,COUNTY,LATITUDE,LONGITUDE
var citySource = source[geodata.City]{
	kind:      KindCity,
	table:     geodata.TableCity,
	comma:     ',',
	minFields: 7,
	geom: func(f []string) (string, error) {
		lat, err := reqFloat(f[5], "latitude")
		if err != nil {
			return "", err
		}
		lon, err := reqFloat(f[6], "longitude")
		if err != nil {
			return "", err
		}
		return geometry.PointWKT(lon, lat), nil
	},
	geomKinds:    entityKinds(geodata.TableCity),
	geomRequired: true,
	key:          func(f []string) string { return f[3] },
	row: func(f []string, g geodata.Geometry) (geodata.City, error) {
		return geodata.City{
			StateCode:   f[1],
			StateName:   f[2],
			City:        f[3],
			County:      f[4],
			GeoLocation: g,
		}, nil
	},
}

// output.csv: id;dma_key;dma_name;dma_long;region;zone;geom;max_bug_coverage;start_date;end_date
var dmaSource = source[geodata.Dma]{
	kind:      KindDma,
	table:     geodata.TableDmas,
	comma:     ';',
	minFields: 10,
	geom:      func(f []string) (string, error) { return f[6], nil },
	geomKinds: entityKinds(geodata.TableDmas),
	key:       func(f []string) string { return "DMA " + f[2] },
	row: func(f []string, g geodata.Geometry) (geodata.Dma, error) {
		coverage, err := optFloat(f[7])
		if err != nil {
			return geodata.Dma{}, fmt.Errorf("max_bug_coverage: %w", err)
		}
		start, err := optDate(f[8], dateLayout)
		if err != nil {
			return geodata.Dma{}, fmt.Errorf("start_date: %w", err)
		}
		end, err := optDate(f[9], dateLayout)
		if err != nil {
			return geodata.Dma{}, fmt.Errorf("end_date: %w", err)
		}
		return geodata.Dma{
			DmaKey:         f[1],
			DmaName:        f[2],
			DmaLong:        f[3],
			Region:         f[4],
			Zone:           f[5],
			Geom:           g,
			MaxBugCoverage: coverage,
			StartDate:      start,
			EndDate:        end,
		}, nil
	},
}

// output_pipes.csv: id;geom;material;pipe_key;created_date;diameter_mm;pipe_type;
// pipe_subtype;standardised_material;dma_id;company_id
var pipeSource = source[geodata.Pipe]{
	kind:      KindPipe,
	table:     geodata.TablePipes,
	comma:     ';',
	minFields: 11,
	geom:      func(f []string) (string, error) { return f[1], nil },
	geomKinds: entityKinds(geodata.TablePipes),
	key:       func(f []string) string { return "Pipe " + f[3] },
	row: func(f []string, g geodata.Geometry) (geodata.Pipe, error) {
		created, err := optDate(f[4], dateTimeLayout)
		if err != nil {
			return geodata.Pipe{}, fmt.Errorf("created_date: %w", err)
		}
		diameter, err := optFloat(f[5])
		if err != nil {
			return geodata.Pipe{}, fmt.Errorf("diameter_mm: %w", err)
		}
		dmaID, err := optInt(f[9])
		if err != nil {
			return geodata.Pipe{}, fmt.Errorf("dma_id: %w", err)
		}
		companyID, err := optInt(f[10])
		if err != nil {
			return geodata.Pipe{}, fmt.Errorf("company_id: %w", err)
		}
		return geodata.Pipe{
			Geom:                 g,
			Material:             f[2],
			PipeKey:              f[3],
			CreatedDate:          created,
			DiameterMM:           diameter,
			PipeType:             f[6],
			PipeSubtype:          f[7],
			StandardisedMaterial: f[8],
			DmaID:                dmaID,
			CompanyID:            companyID,
		}, nil
	},
}
