package spatial

import (
	"fmt"
	"time"

	"github.com/EmpoweredVote/EV-Geo/internal/geodata"
)

type CityView struct {
	City        string `json:"city"`
	County      string `json:"county"`
	StateCode   string `json:"state_code"`
	StateName   string `json:"state_name"`
	GeoLocation string `json:"geo_location"`
}

type DmaView struct {
	DmaID     int     `json:"dma_id"`
	DmaKey    string  `json:"dma_key"`
	DmaName   string  `json:"dma_name"`
	DmaLong   string  `json:"dma_long"`
	Region    string  `json:"region"`
	Zone      string  `json:"zone"`
	Geom      *string `json:"geom"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type Area struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type Distance struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

func cityView(c geodata.City) (CityView, error) {
	wkt, err := c.GeoLocation.Text()
	if err != nil {
		return CityView{}, fmt.Errorf("city %d geo_location: %w", c.ID, err)
	}
	return CityView{
		City:        c.City,
		County:      c.County,
		StateCode:   c.StateCode,
		StateName:   c.StateName,
		GeoLocation: wkt,
	}, nil
}

func cityViews(cities []geodata.City) ([]CityView, error) {
	out := make([]CityView, 0, len(cities))
	for _, c := range cities {
		v, err := cityView(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func dmaView(d geodata.Dma) (DmaView, error) {
	v := DmaView{
		DmaID:     d.DmaID,
		DmaKey:    d.DmaKey,
		DmaName:   d.DmaName,
		DmaLong:   d.DmaLong,
		Region:    d.Region,
		Zone:      d.Zone,
		StartDate: date(d.StartDate),
		EndDate:   date(d.EndDate),
	}
	if d.Geom.Valid {
		wkt, err := d.Geom.Text()
		if err != nil {
			return DmaView{}, fmt.Errorf("dma %d geom: %w", d.DmaID, err)
		}
		v.Geom = &wkt
	}
	return v, nil
}

func dmaViews(dmas []geodata.Dma) ([]DmaView, error) {
	out := make([]DmaView, 0, len(dmas))
	for _, d := range dmas {
		v, err := dmaView(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func date(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
