package transform

import (
	"sort"

	"github.com/samber/lo"

	"github.com/jarthorn/energy-stats/internal/model"
)

type yearFuel struct {
	year int
	fuel string
}

// AggregateAnnual computes calendar-year aggregates for every fuel type
// observed for a country.
//
// Country-year denominators sum only non-aggregate-series observations so
// synthetic roll-ups like "Renewables" are not double counted; the per-fuel
// numerators include them, because they are legitimate rows when reporting
// on that fuel itself. YoY growth falls back to 0 (never nil) when the prior
// year has no recorded generation for the fuel.
func AggregateAnnual(code string, obs []model.Observation) []model.CountryFuelYear {
	countryTotals := make(map[int]float64)
	fuelTotals := make(map[yearFuel]float64)
	yearMonths := make(map[int]map[int]bool)
	fuelSet := make(map[string]bool)

	for _, o := range obs {
		year := o.Month.Year()
		if !o.IsAggregateSeries {
			countryTotals[year] += o.GenerationTWh
		}
		fuelTotals[yearFuel{year, o.FuelType}] += o.GenerationTWh
		if yearMonths[year] == nil {
			yearMonths[year] = make(map[int]bool)
		}
		yearMonths[year][int(o.Month.Month())] = true
		if o.FuelType != "" {
			fuelSet[o.FuelType] = true
		}
	}

	years := lo.Keys(countryTotals)
	sort.Ints(years)
	fuels := lo.Keys(fuelSet)
	sort.Strings(fuels)

	var out []model.CountryFuelYear
	for _, year := range years {
		isComplete := len(yearMonths[year]) == 12
		totalGen := countryTotals[year]

		for _, fuel := range fuels {
			gen, ok := fuelTotals[yearFuel{year, fuel}]
			if !ok {
				continue
			}

			share := 0.0
			if totalGen > 0 {
				share = gen / totalGen * 100
			}

			growth := 0.0
			if prevGen, ok := fuelTotals[yearFuel{year - 1, fuel}]; ok && prevGen > 0 {
				growth = (gen/prevGen - 1) * 100
			}

			out = append(out, model.CountryFuelYear{
				CountryCode:   code,
				FuelType:      fuel,
				Year:          year,
				GenerationTWh: gen,
				SharePct:      share,
				YoYGrowthPct:  growth,
				IsComplete:    isComplete,
			})
		}
	}
	return out
}
