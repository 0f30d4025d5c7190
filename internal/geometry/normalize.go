// Package geometry parses and validates the geometry text carried by source rows
// and renders stored geometry back to WKT.
package geometry

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
)

// SRID is the spatial reference every stored geometry uses (WGS84 lon/lat).
const SRID = 4326

// Kind is a geometry subtype name, spelled the way orb reports it.
type Kind string

const (
	Point           Kind = "Point"
	LineString      Kind = "LineString"
	MultiLineString Kind = "MultiLineString"
	Polygon         Kind = "Polygon"
	MultiPolygon    Kind = "MultiPolygon"
)

// KindSet is the set of subtypes a geometry field accepts.
type KindSet []Kind

func Kinds(k ...Kind) KindSet { return KindSet(k) }

func (s KindSet) Contains(k Kind) bool {
	for _, v := range s {
		if v == k {
			return true
		}
	}
	return false
}

func (s KindSet) String() string {
	parts := make([]string, len(s))
	for i, k := range s {
		parts[i] = string(k)
	}
	return strings.Join(parts, "|")
}

// Status tags a normalization Result.
type Status int

const (
	// Empty means the source cell was blank; the geometry is null.
	Empty Status = iota
	// OK means the geometry parsed and its kind is accepted.
	OK
	// Skip means the row carrying this geometry must be dropped.
	Skip
)

func (s Status) String() string {
	switch s {
	case Empty:
		return "empty"
	case OK:
		return "ok"
	case Skip:
		return "skip"
	}
	return "unknown"
}

// Result is the outcome of Normalize. Only OK results carry WKT.
type Result struct {
	Status Status
	Kind   Kind
	WKT    string
	Reason string
}

// Normalize parses raw (WKT, EWKT, or hex WKB/EWKB) and checks its kind
// against expected. context names the source row in skip reasons.
func Normalize(raw string, expected KindSet, context string) Result {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Result{Status: Empty}
	}

	g, err := Parse(s)
	if err != nil {
		return Result{
			Status: Skip,
			Reason: fmt.Sprintf("unparseable geometry for %s: %v", context, err),
		}
	}

	kind := Kind(g.GeoJSONType())
	if !expected.Contains(kind) {
		return Result{
			Status: Skip,
			Kind:   kind,
			Reason: fmt.Sprintf("unsupported geometry type for %s: %s", context, kind),
		}
	}

	return Result{Status: OK, Kind: kind, WKT: wkt.MarshalString(g)}
}

// Parse decodes a single geometry. Inputs declaring an SRID other than 4326
// are rejected since nothing here reprojects.
func Parse(s string) (orb.Geometry, error) {
	s = strings.TrimSpace(s)
	if isHex(s) {
		return parseHex(s)
	}

	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "SRID=") {
		i := strings.IndexByte(upper, ';')
		if i < 0 {
			return nil, fmt.Errorf("malformed EWKT prefix")
		}
		srid, err := strconv.Atoi(strings.TrimSpace(upper[len("SRID="):i]))
		if err != nil {
			return nil, fmt.Errorf("malformed EWKT srid: %w", err)
		}
		if err := checkSRID(srid); err != nil {
			return nil, err
		}
		upper = upper[i+1:]
	}

	return wkt.Unmarshal(flatten(upper))
}

const wktNumber = `[-+]?(?:\d+\.?\d*|\.\d+)(?:E[-+]?\d+)?`

var (
	wktDimension = regexp.MustCompile(`(POINT|LINESTRING|POLYGON|MULTIPOINT|MULTILINESTRING|MULTIPOLYGON|GEOMETRYCOLLECTION) ?(?:ZM|Z|M) ?(\(|EMPTY)`)
	wktOrdinates = regexp.MustCompile(`(` + wktNumber + ` ` + wktNumber + `)(?: ` + wktNumber + `){1,2}`)
)

// flatten rewrites upper-case WKT into the 2D form orb reads: whitespace runs
// become one space, Z/M/ZM tags go, and each coordinate keeps only x and y.
// Stored columns are 2D.
func flatten(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = wktDimension.ReplaceAllString(s, "${1} ${2}")
	return wktOrdinates.ReplaceAllString(s, "${1}")
}

func parseHex(s string) (orb.Geometry, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}

	g, srid, err := ewkb.Unmarshal(b)
	if err == nil {
		if err := checkSRID(srid); err != nil {
			return nil, err
		}
		return g, nil
	}

	g, werr := wkb.Unmarshal(b)
	if werr != nil {
		return nil, fmt.Errorf("decode wkb: %w", werr)
	}
	return g, nil
}

func checkSRID(srid int) error {
	if srid != 0 && srid != SRID {
		return fmt.Errorf("srid %d not supported, want %d", srid, SRID)
	}
	return nil
}

func isHex(s string) bool {
	if len(s) < 2 || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
