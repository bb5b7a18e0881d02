package model

import "time"

// Country holds rolling aggregate metrics for one country. Fully recomputed
// from staging on every pipeline run; Rank is assigned by the ranking pass
// after all countries are processed.
type Country struct {
	Code               string    `json:"code"`
	Name               string    `json:"name"`
	Rank               int       `json:"rank"`
	RollingLatestTWh   float64   `json:"rolling_latest_twh"`
	RollingPreviousTWh float64   `json:"rolling_previous_twh"`
	LatestMonth        time.Time `json:"latest_month"`
	LowCarbonPct       *float64  `json:"low_carbon_pct"` // nil when no generation data
}

// Fuel holds cross-country metrics for one fuel type.
type Fuel struct {
	Type             string  `json:"type"`
	Rank             int     `json:"rank"`
	RollingLatestTWh float64 `json:"rolling_latest_twh"` // sum across all countries
	LifetimeTWh      float64 `json:"lifetime_twh"`       // all-time sum, no windowing
}

// CountryFuel holds rolling aggregate metrics for one (country, fuel) pair.
// The two growth fields are nil when their denominators are missing or zero;
// this is deliberately different from CountryFuelYear's zero fallback.
type CountryFuel struct {
	CountryCode        string    `json:"country_code"`
	FuelType           string    `json:"fuel_type"`
	SharePct           float64   `json:"share_pct"` // mean share over the latest window
	LatestMonth        time.Time `json:"latest_month"`
	RollingLatestTWh   float64   `json:"rolling_latest_twh"`
	RollingPreviousTWh float64   `json:"rolling_previous_twh"`
	MonthYoYGrowthPct  *float64  `json:"month_yoy_growth_pct"`
	AnnualYoYGrowthPct *float64  `json:"annual_yoy_growth_pct"`
	LatestMonthTWh     float64   `json:"latest_month_twh"`
	LatestMonthShare   float64   `json:"latest_month_share_pct"`
}

// CountryFuelYear holds calendar-year aggregates for one (country, fuel, year).
// YoYGrowthPct falls back to 0 (never nil) when the prior year has no
// recorded generation for the fuel.
type CountryFuelYear struct {
	CountryCode   string  `json:"country_code"`
	FuelType      string  `json:"fuel_type"`
	Year          int     `json:"year"`
	GenerationTWh float64 `json:"generation_twh"`
	SharePct      float64 `json:"share_pct"`
	YoYGrowthPct  float64 `json:"yoy_growth_pct"`
	IsComplete    bool    `json:"is_complete"` // 12 distinct months observed that year
}

// PipelineRun is one audit row recording an extract or transform execution.
type PipelineRun struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"` // "extract" or "transform"
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	Processed   int        `json:"processed"`
	Skipped     int        `json:"skipped"`
	RowsWritten int64      `json:"rows_written"`
	Error       string     `json:"error,omitempty"`
}
