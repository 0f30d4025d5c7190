package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/EmpoweredVote/EV-Geo/internal/apperr"
	"github.com/EmpoweredVote/EV-Geo/internal/config"
	"github.com/EmpoweredVote/EV-Geo/internal/geodata"
	"github.com/EmpoweredVote/EV-Geo/internal/geometry"
	"github.com/paulmach/orb"
)

// fakeStore keeps inserted batches in memory.
type fakeStore struct {
	rows      map[string]int
	batches   map[string]any
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]int{}, batches: map[string]any{}}
}

func (f *fakeStore) Exists(_ context.Context, table string) (bool, error) {
	return f.rows[table] > 0, nil
}

func (f *fakeStore) InsertBatch(_ context.Context, table string, rows any) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows[table] += reflect.ValueOf(rows).Elem().Len()
	f.batches[table] = rows
	return nil
}

type flushCounter struct{ flushes int }

func (c *flushCounter) Get(context.Context, string, any) (bool, error) { return false, nil }
func (c *flushCounter) Set(context.Context, string, any) error         { return nil }
func (c *flushCounter) Flush(context.Context) error                    { c.flushes++; return nil }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const dmaHeader = "id;dma_key;dma_name;dma_long;region;zone;geom;max_bug_coverage;start_date;end_date\n"

const dmaFile = dmaHeader +
	"1;2300;Kittery;Kittery Point;usa;north;POLYGON((-70.6693 43.0722, -70.6693 43.0723, -70.6692 43.0723, -70.6692 43.0722, -70.6693 43.0722));;2023-04-01;\n" +
	"2;2301;Marker;Marker Long;usa;north;POINT(-70.6 43.0);0.5;2023-04-01;\n" +
	"3;2302;Broken;Broken Long;usa;north;POLYGON((-70.6 43.0;;;\n" +
	"4;2303;Islands;Islands Long;usa;south;MULTIPOLYGON(((0 0, 1 0, 1 1, 0 0)), ((2 2, 3 2, 3 3, 2 2)));12.5;2022-01-01;2024-12-31\n" +
	"5;2304;Unmapped;Unmapped Long;usa;south;;;;\n"

func TestLoad_DmaFiltersGeometry(t *testing.T) {
	st := newFakeStore()
	c := &flushCounter{}
	l := New(st, c, Paths{Dmas: writeFile(t, "output.csv", dmaFile)}, config.PolicyFile)

	rep, err := l.Load(context.Background(), KindDma)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// 5 input rows, one Point and one unparseable geometry.
	if !rep.Loaded || rep.Count != 3 || rep.Skipped != 2 {
		t.Fatalf("report = %+v, want loaded 3 skipped 2", rep)
	}
	if rep.RunID == "" {
		t.Errorf("missing run id")
	}
	if c.flushes != 1 {
		t.Errorf("cache flushed %d times, want 1", c.flushes)
	}

	dmas := *st.batches[geodata.TableDmas].(*[]geodata.Dma)
	var keys []string
	for _, d := range dmas {
		keys = append(keys, d.DmaKey)
	}
	if strings.Join(keys, ",") != "2300,2303,2304" {
		t.Errorf("loaded keys = %v", keys)
	}
	if dmas[2].Geom.Valid {
		t.Errorf("empty geometry cell should load as null")
	}
}

func TestLoad_DmaScenario2300(t *testing.T) {
	st := newFakeStore()
	l := New(st, nil, Paths{Dmas: writeFile(t, "output.csv", dmaFile)}, "")
	if _, err := l.Load(context.Background(), KindDma); err != nil {
		t.Fatal(err)
	}

	d := (*st.batches[geodata.TableDmas].(*[]geodata.Dma))[0]
	if d.DmaKey != "2300" || d.DmaName != "Kittery" || d.Region != "usa" {
		t.Errorf("dma = %+v", d)
	}
	if d.StartDate == nil || d.StartDate.Format("2006-01-02") != "2023-04-01" {
		t.Errorf("start_date = %v", d.StartDate)
	}
	if d.EndDate != nil {
		t.Errorf("end_date = %v, want nil", d.EndDate)
	}
	if d.MaxBugCoverage != nil {
		t.Errorf("max_bug_coverage = %v, want nil", *d.MaxBugCoverage)
	}

	got, err := geometry.Parse(d.Geom.WKT)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := geometry.Parse("POLYGON((-70.6693 43.0722, -70.6693 43.0723, -70.6692 43.0723, -70.6692 43.0722, -70.6693 43.0722))")
	if !orb.Equal(got, want) {
		t.Errorf("geom = %s", d.Geom.WKT)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	st := newFakeStore()
	l := New(st, nil, Paths{Dmas: writeFile(t, "output.csv", dmaFile)}, config.PolicyFile)
	ctx := context.Background()

	first, err := l.Load(ctx, KindDma)
	if err != nil || !first.Loaded {
		t.Fatalf("first load = %+v, %v", first, err)
	}
	for i := 0; i < 2; i++ {
		rep, err := l.Load(ctx, KindDma)
		if err != nil {
			t.Fatal(err)
		}
		if rep.Loaded || rep.Message() != "Data is already loaded" {
			t.Errorf("load %d = %+v", i+2, rep)
		}
		if st.rows[geodata.TableDmas] != first.Count {
			t.Errorf("row count changed to %d", st.rows[geodata.TableDmas])
		}
	}
}

func TestLoad_ConcurrentFirstLoad(t *testing.T) {
	st := newFakeStore()
	st.insertErr = apperr.ErrAlreadyLoaded
	l := New(st, nil, Paths{Dmas: writeFile(t, "output.csv", dmaFile)}, config.PolicyFile)

	rep, err := l.Load(context.Background(), KindDma)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rep.Loaded {
		t.Errorf("report = %+v, want already loaded", rep)
	}
}

func TestLoad_InsertFailure(t *testing.T) {
	st := newFakeStore()
	st.insertErr = errors.New("connection reset")
	l := New(st, nil, Paths{Dmas: writeFile(t, "output.csv", dmaFile)}, config.PolicyFile)

	if _, err := l.Load(context.Background(), KindDma); err == nil {
		t.Fatal("expected error")
	}
}

const badDateFile = dmaHeader +
	"1;2300;A;A;usa;n;POLYGON((0 0, 1 0, 1 1, 0 0));;2023-04-01;\n" +
	"2;2301;B;B;usa;n;POLYGON((0 0, 1 0, 1 1, 0 0));;01/04/2023;\n"

func TestLoad_FilePolicyAbortsWholeFile(t *testing.T) {
	st := newFakeStore()
	l := New(st, nil, Paths{Dmas: writeFile(t, "output.csv", badDateFile)}, config.PolicyFile)

	_, err := l.Load(context.Background(), KindDma)
	if err == nil || !strings.Contains(err.Error(), "start_date") {
		t.Fatalf("err = %v, want start_date error", err)
	}
	if st.rows[geodata.TableDmas] != 0 {
		t.Errorf("partial commit: %d rows", st.rows[geodata.TableDmas])
	}
}

func TestLoad_RowPolicySkipsBadRow(t *testing.T) {
	st := newFakeStore()
	l := New(st, nil, Paths{Dmas: writeFile(t, "output.csv", badDateFile)}, config.PolicyRow)

	rep, err := l.Load(context.Background(), KindDma)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Count != 1 || rep.Skipped != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestLoad_CitiesWithBOM(t *testing.T) {
	file := "\ufeffID,STATE_CODE,STATE_NAME,CITY,COUNTY,LATITUDE,LONGITUDE\n" +
		"1,NY,New York,Albany,Albany,42.65,-73.75\n" +
		"2,CA,California,\"Los Angeles\",Los Angeles,34.05,-118.25\n"
	st := newFakeStore()
	l := New(st, nil, Paths{Cities: writeFile(t, "us_cities.csv", file)}, config.PolicyFile)

	rep, err := l.Load(context.Background(), KindCity)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Count != 2 {
		t.Fatalf("count = %d", rep.Count)
	}
	cities := *st.batches[geodata.TableCity].(*[]geodata.City)
	if cities[0].StateCode != "NY" || cities[1].City != "Los Angeles" {
		t.Errorf("cities = %+v", cities)
	}
	got, err := geometry.Parse(cities[0].GeoLocation.WKT)
	if err != nil {
		t.Fatal(err)
	}
	if !orb.Equal(got, orb.Point{-73.75, 42.65}) {
		t.Errorf("geo_location = %s, want lon/lat order", cities[0].GeoLocation.WKT)
	}
}

func TestLoad_CityMissingCoordinates(t *testing.T) {
	file := "ID,STATE_CODE,STATE_NAME,CITY,COUNTY,LATITUDE,LONGITUDE\n1,NY,New York,Albany,Albany,,\n"
	l := New(newFakeStore(), nil, Paths{Cities: writeFile(t, "us_cities.csv", file)}, config.PolicyFile)

	if _, err := l.Load(context.Background(), KindCity); err == nil {
		t.Fatal("expected error for missing coordinates")
	}
}

func TestLoad_Pipes(t *testing.T) {
	file := "id;geom;material;pipe_key;created_date;diameter_mm;pipe_type;pipe_subtype;standardised_material;dma_id;company_id\n" +
		"1;LINESTRING(0 0, 1 1);PVC;P-1;2021-06-30 13:45:00;110.5;main;distribution;PVC;7;3\n" +
		"2;MULTILINESTRING((0 0, 1 1), (2 2, 3 3));Iron;P-2;;;main;trunk;CI;;\n" +
		"3;POLYGON((0 0, 1 0, 1 1, 0 0));Iron;P-3;;;main;trunk;CI;;\n"
	st := newFakeStore()
	l := New(st, nil, Paths{Pipes: writeFile(t, "output_pipes.csv", file)}, config.PolicyFile)

	rep, err := l.Load(context.Background(), KindPipe)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Count != 2 || rep.Skipped != 1 {
		t.Fatalf("report = %+v", rep)
	}

	pipes := *st.batches[geodata.TablePipes].(*[]geodata.Pipe)
	p := pipes[0]
	if p.PipeKey != "P-1" || p.Material != "PVC" || p.StandardisedMaterial != "PVC" {
		t.Errorf("pipe = %+v", p)
	}
	if p.CreatedDate == nil || p.CreatedDate.Format("2006-01-02 15:04:05") != "2021-06-30 00:00:00" {
		t.Errorf("created_date = %v, want truncated date", p.CreatedDate)
	}
	if p.DiameterMM == nil || *p.DiameterMM != 110.5 {
		t.Errorf("diameter = %v", p.DiameterMM)
	}
	if p.DmaID == nil || *p.DmaID != 7 || p.CompanyID == nil || *p.CompanyID != 3 {
		t.Errorf("references = %v %v", p.DmaID, p.CompanyID)
	}
	if q := pipes[1]; q.DmaID != nil || q.CompanyID != nil || q.DiameterMM != nil || q.CreatedDate != nil {
		t.Errorf("empty cells should be nil: %+v", q)
	}
}

func TestLoad_LargeGeometryCell(t *testing.T) {
	const n = 60000
	var b strings.Builder
	b.WriteString("POLYGON((")
	for i := 0; i <= n; i++ {
		a := 2 * math.Pi * float64(i%n) / n
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.8f %.8f", 10+math.Cos(a), 50+math.Sin(a))
	}
	b.WriteString("))")
	if b.Len() < 1<<20 {
		t.Fatalf("test polygon too small: %d bytes", b.Len())
	}

	file := dmaHeader + "1;9000;Big;Big;europe;z;" + b.String() + ";;;\n"
	st := newFakeStore()
	l := New(st, nil, Paths{Dmas: writeFile(t, "output.csv", file)}, config.PolicyFile)

	rep, err := l.Load(context.Background(), KindDma)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Count != 1 {
		t.Errorf("count = %d", rep.Count)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	l := New(newFakeStore(), nil, Paths{Pipes: filepath.Join(t.TempDir(), "nope.csv")}, config.PolicyFile)
	if _, err := l.Load(context.Background(), KindPipe); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"city": KindCity, "Cities": KindCity, "dmas": KindDma, " pipe ": KindPipe} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("assets"); err == nil {
		t.Error("assets should not be loadable")
	}
	if _, err := New(newFakeStore(), nil, Paths{}, "").Load(context.Background(), Kind("assets")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Load(assets) err = %v", err)
	}
}
