package geodata

import "time"

// DmaFilter selects a page of DMAs. Zero values mean "no filter".
type DmaFilter struct {
	Offset int
	Limit  int
	DmaKey string
	// StartOnOrBefore keeps DMAs whose start_date <= this day.
	StartOnOrBefore *time.Time
}

// CityRef identifies a city by the triple the nearby lookup receives.
type CityRef struct {
	City      string
	County    string
	StateCode string
}
