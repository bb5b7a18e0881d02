// Package model defines the staging observation and the derived aggregate
// entities produced by the transform pipeline.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Observation is one staged (country, fuel, month) generation record as
// fetched from the Ember API. Unique key: (CountryCode, Month, FuelType).
type Observation struct {
	CountryCode       string    `json:"country_code"`
	CountryName       string    `json:"country_name"`
	Month             time.Time `json:"month"` // always the first of the month, UTC
	FuelType          string    `json:"fuel_type"`
	IsAggregateEntity bool      `json:"is_aggregate_entity"`
	IsAggregateSeries bool      `json:"is_aggregate_series"`
	GenerationTWh     float64   `json:"generation_twh"`
	SharePct          float64   `json:"share_pct"`
}

// ParseMonth converts an API date string ("YYYY-MM" or "YYYY-MM-DD") into
// a first-of-month UTC date. Ember returns full dates but we normalise to
// the 1st regardless.
func ParseMonth(s string) (time.Time, error) {
	if len(s) < 7 {
		return time.Time{}, eris.Errorf("model: invalid month %q", s)
	}
	t, err := time.Parse("2006-01", s[:7])
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "model: parse month %q", s)
	}
	return t.UTC(), nil
}

// FormatMonth renders a first-of-month date as "YYYY-MM-01" for storage.
func FormatMonth(t time.Time) string {
	return t.Format("2006-01-02")
}
