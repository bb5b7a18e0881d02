package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarthorn/energy-stats/internal/model"
	"github.com/jarthorn/energy-stats/internal/store"
)

// seedObservations stages 24 months of single-fuel data for a country:
// the first year ramps 1..12 TWh, the second year holds flat at 10 TWh.
func seedObservations(t *testing.T, st store.Store, code string) {
	t.Helper()
	var obs []model.Observation
	for i := 0; i < 12; i++ {
		obs = append(obs, model.Observation{
			CountryCode:   code,
			CountryName:   model.CountryName(code),
			Month:         month(2023, time.Month(i+1)),
			FuelType:      "Wind",
			GenerationTWh: float64(i + 1),
			SharePct:      100,
		})
	}
	for i := 0; i < 12; i++ {
		obs = append(obs, model.Observation{
			CountryCode:   code,
			CountryName:   model.CountryName(code),
			Month:         month(2024, time.Month(i+1)),
			FuelType:      "Wind",
			GenerationTWh: 10,
			SharePct:      100,
		})
	}
	_, _, err := st.UpsertObservations(context.Background(), obs)
	require.NoError(t, err)
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("end to end over two years of history", func(t *testing.T) {
		st := newTestStore(t)
		seedObservations(t, st, "GBR")

		summary, err := NewPipeline(st, 2).Run(ctx, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Processed)
		assert.Equal(t, 0, summary.Skipped)
		// 1 country row + 1 fuel row + 2 annual rows.
		assert.Equal(t, int64(4), summary.RowsWritten)

		countries, err := st.CountriesByRollingLatest(ctx)
		require.NoError(t, err)
		require.Len(t, countries, 1)

		c := countries[0]
		assert.Equal(t, "GBR", c.Code)
		assert.Equal(t, 1, c.Rank)
		assert.InDelta(t, 120.0, c.RollingLatestTWh, 1e-9)
		assert.InDelta(t, 78.0, c.RollingPreviousTWh, 1e-9)
		assert.Equal(t, month(2024, 12), c.LatestMonth)
		require.NotNil(t, c.LowCarbonPct)
		assert.InDelta(t, 100.0, *c.LowCarbonPct, 1e-9)

		fuels, err := st.FuelsByRank(ctx)
		require.NoError(t, err)
		require.Len(t, fuels, 1)
		assert.Equal(t, "Wind", fuels[0].Type)
		assert.Equal(t, 1, fuels[0].Rank)
		assert.InDelta(t, 120.0, fuels[0].RollingLatestTWh, 1e-9)
		assert.InDelta(t, 198.0, fuels[0].LifetimeTWh, 1e-9)

		rolling, err := st.FuelRollingTotals(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 120.0, rolling["Wind"], 1e-9)
	})

	t.Run("rerun is idempotent", func(t *testing.T) {
		st := newTestStore(t)
		seedObservations(t, st, "GBR")
		seedObservations(t, st, "FRA")

		p := NewPipeline(st, 4)
		first, err := p.Run(ctx, nil)
		require.NoError(t, err)
		countriesFirst, err := st.CountriesByRollingLatest(ctx)
		require.NoError(t, err)

		second, err := p.Run(ctx, nil)
		require.NoError(t, err)
		countriesSecond, err := st.CountriesByRollingLatest(ctx)
		require.NoError(t, err)

		assert.Equal(t, first.Processed, second.Processed)
		assert.Equal(t, first.RowsWritten, second.RowsWritten)
		assert.Equal(t, countriesFirst, countriesSecond)
	})

	t.Run("country without staged data is skipped, not fatal", func(t *testing.T) {
		st := newTestStore(t)
		seedObservations(t, st, "GBR")

		summary, err := NewPipeline(st, 1).Run(ctx, []string{"GBR", "FRA"})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Processed)
		assert.Equal(t, 1, summary.Skipped)
	})

	t.Run("held lock rejects a second run", func(t *testing.T) {
		st := newTestStore(t)
		seedObservations(t, st, "GBR")
		require.NoError(t, st.AcquireRunLock(ctx))

		_, err := NewPipeline(st, 1).Run(ctx, nil)
		assert.ErrorContains(t, err, "pipeline lock held")

		// After release the pipeline runs normally.
		require.NoError(t, st.ReleaseRunLock(ctx))
		_, err = NewPipeline(st, 1).Run(ctx, nil)
		assert.NoError(t, err)
	})

	t.Run("run is recorded in the audit log", func(t *testing.T) {
		st := newTestStore(t)
		seedObservations(t, st, "DEU")

		_, err := NewPipeline(st, 1).Run(ctx, nil)
		require.NoError(t, err)

		runs, err := st.RecentRuns(ctx, 5)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "transform", runs[0].Kind)
		assert.Equal(t, 1, runs[0].Processed)
		assert.NotNil(t, runs[0].FinishedAt)
		assert.Empty(t, runs[0].Error)
	})
}
