// Package transform derives rolling, annual, and ranked aggregates from the
// staged monthly generation observations. Everything here recomputes from
// the full staging history on each run, so the pipeline stays idempotent.
package transform

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/jarthorn/energy-stats/internal/model"
)

// DistinctMonths returns the sorted set of distinct months present in the
// observations.
func DistinctMonths(obs []model.Observation) []time.Time {
	months := lo.Uniq(lo.Map(obs, func(o model.Observation, _ int) time.Time { return o.Month }))
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

// Windows splits the sorted distinct months into the latest-12 and
// previous-12 windows. The windows are positional over observed months, not
// calendar-aligned: a country with gaps still gets its 12 most recent months
// with data. With fewer than 24 months of history previous12 is partial or
// empty; with fewer than 12, latest12 is short too.
func Windows(months []time.Time) (latest12, previous12 []time.Time) {
	n := len(months)
	latestStart := n - 12
	if latestStart < 0 {
		latestStart = 0
	}
	prevStart := n - 24
	if prevStart < 0 {
		prevStart = 0
	}
	return months[latestStart:n], months[prevStart:latestStart]
}

// monthKey normalises a month for map lookups.
func monthKey(t time.Time) string {
	return model.FormatMonth(t)
}
