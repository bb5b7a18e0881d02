package transform

import (
	"time"

	"github.com/jarthorn/energy-stats/internal/model"
)

// NetImports is the fuel type for imported electricity. Imports are not
// generation, so they are excluded from the low-carbon calculation entirely.
const NetImports = "Net imports"

// lowCarbonFuels are the fuel types counted in the low-carbon numerator.
var lowCarbonFuels = map[string]bool{
	"Hydro":            true,
	"Nuclear":          true,
	"Wind":             true,
	"Solar":            true,
	"Bioenergy":        true,
	"Other renewables": true,
}

// CountryMetrics holds the country-level rolling aggregates.
type CountryMetrics struct {
	RollingLatestTWh   float64
	RollingPreviousTWh float64
	LowCarbonPct       *float64 // nil when the window has no generation data
}

// AggregateCountry computes rolling totals across all fuel types (aggregate
// series included) and the low-carbon share of generation over the latest
// window. Months missing from a window contribute zero.
func AggregateCountry(obs []model.Observation, latest12, previous12 []time.Time) CountryMetrics {
	totalByMonth := make(map[string]float64)
	for _, o := range obs {
		totalByMonth[monthKey(o.Month)] += o.GenerationTWh
	}

	var m CountryMetrics
	for _, d := range latest12 {
		m.RollingLatestTWh += totalByMonth[monthKey(d)]
	}
	for _, d := range previous12 {
		m.RollingPreviousTWh += totalByMonth[monthKey(d)]
	}

	latestSet := make(map[string]bool, len(latest12))
	for _, d := range latest12 {
		latestSet[monthKey(d)] = true
	}

	var lowCarbon, totalExceptImports float64
	for _, o := range obs {
		if o.FuelType == NetImports {
			continue
		}
		if !latestSet[monthKey(o.Month)] {
			continue
		}
		totalExceptImports += o.GenerationTWh
		if lowCarbonFuels[o.FuelType] {
			lowCarbon += o.GenerationTWh
		}
	}
	if totalExceptImports > 0 {
		pct := lowCarbon / totalExceptImports * 100
		m.LowCarbonPct = &pct
	}

	return m
}
