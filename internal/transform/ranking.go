package transform

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jarthorn/energy-stats/internal/store"
)

// ApplyRankings assigns dense ranks to countries and fuel types. It reads
// the fully-updated aggregate tables, so it must run only after every
// country's upserts have committed. It is the pipeline's global barrier.
func ApplyRankings(ctx context.Context, st store.Store) error {
	log := zap.L().With(zap.String("component", "transform.ranking"))

	// Countries, ordered by rolling generation descending with code as the
	// deterministic tie-break (the store query orders for us).
	countries, err := st.CountriesByRollingLatest(ctx)
	if err != nil {
		return eris.Wrap(err, "ranking: list countries")
	}
	for i, c := range countries {
		if err := st.SetCountryRank(ctx, c.Code, i+1); err != nil {
			return eris.Wrapf(err, "ranking: rank country %s", c.Code)
		}
	}
	log.Info("ranked countries", zap.Int("count", len(countries)))

	// Fuels, by the cross-country sum of rolling generation.
	rolling, err := st.FuelRollingTotals(ctx)
	if err != nil {
		return eris.Wrap(err, "ranking: fuel rolling totals")
	}
	lifetime, err := st.FuelLifetimeTotals(ctx)
	if err != nil {
		return eris.Wrap(err, "ranking: fuel lifetime totals")
	}

	fuels := lo.Keys(rolling)
	sort.Slice(fuels, func(i, j int) bool {
		if rolling[fuels[i]] != rolling[fuels[j]] {
			return rolling[fuels[i]] > rolling[fuels[j]]
		}
		return fuels[i] < fuels[j]
	})
	for i, ft := range fuels {
		if err := st.UpdateFuelRanking(ctx, ft, i+1, rolling[ft], lifetime[ft]); err != nil {
			return eris.Wrapf(err, "ranking: rank fuel %s", ft)
		}
	}

	// Fuels present in staging but absent from every rolling window still
	// get their all-time total recorded.
	for ft, total := range lifetime {
		if _, ok := rolling[ft]; !ok {
			if err := st.UpdateFuelRanking(ctx, ft, 0, 0, total); err != nil {
				return eris.Wrapf(err, "ranking: record lifetime for %s", ft)
			}
		}
	}
	log.Info("ranked fuels", zap.Int("count", len(fuels)))

	return nil
}
