package transform

import (
	"time"

	"github.com/jarthorn/energy-stats/internal/model"
)

// FuelMetrics holds the per-(country, fuel) rolling aggregates.
//
// The two growth fields are nil when their reference values are missing or
// zero. This differs from the annual table, where a missing prior year
// yields a growth of 0; the asymmetry matches long-standing reporting
// behavior and both fallbacks must stay as they are.
type FuelMetrics struct {
	RollingLatestTWh   float64
	RollingPreviousTWh float64
	AvgSharePct        float64
	AnnualYoYGrowthPct *float64
	MonthYoYGrowthPct  *float64
	LatestMonthTWh     float64
	LatestMonthShare   float64
}

// AggregateFuel computes rolling metrics for a single fuel type. The
// observations must already be filtered to one (country, fuel) pair.
// Months missing from a window contribute zero generation and zero share.
func AggregateFuel(obs []model.Observation, latest12, previous12 []time.Time) FuelMetrics {
	genByMonth := make(map[string]float64, len(obs))
	shareByMonth := make(map[string]float64, len(obs))
	for _, o := range obs {
		genByMonth[monthKey(o.Month)] = o.GenerationTWh
		shareByMonth[monthKey(o.Month)] = o.SharePct
	}

	var m FuelMetrics
	for _, d := range latest12 {
		m.RollingLatestTWh += genByMonth[monthKey(d)]
	}
	for _, d := range previous12 {
		m.RollingPreviousTWh += genByMonth[monthKey(d)]
	}

	if len(latest12) > 0 {
		var shareSum float64
		for _, d := range latest12 {
			shareSum += shareByMonth[monthKey(d)]
		}
		m.AvgSharePct = shareSum / float64(len(latest12))
	}

	if m.RollingPreviousTWh > 0 {
		g := (m.RollingLatestTWh/m.RollingPreviousTWh - 1) * 100
		m.AnnualYoYGrowthPct = &g
	}

	if len(latest12) > 0 {
		latestMonth := latest12[len(latest12)-1]
		m.LatestMonthTWh = genByMonth[monthKey(latestMonth)]
		m.LatestMonthShare = shareByMonth[monthKey(latestMonth)]

		prevYearMonth := latestMonth.AddDate(-1, 0, 0)
		if prevGen := genByMonth[monthKey(prevYearMonth)]; prevGen > 0 {
			g := (m.LatestMonthTWh/prevGen - 1) * 100
			m.MonthYoYGrowthPct = &g
		}
	}

	return m
}
