package transform

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jarthorn/energy-stats/internal/model"
	"github.com/jarthorn/energy-stats/internal/store"
)

// ErrNoData marks a country with nothing staged; the pipeline skips it.
var ErrNoData = eris.New("no staged observations")

// Pipeline runs the transform-and-load phase: per-country aggregation
// fanned out over a bounded worker group, then a single ranking pass once
// every country has committed.
type Pipeline struct {
	store       store.Store
	concurrency int
}

// NewPipeline creates a Pipeline with the given fan-out width.
func NewPipeline(st store.Store, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pipeline{store: st, concurrency: concurrency}
}

// RunSummary reports the outcome of one pipeline run.
type RunSummary struct {
	Processed   int
	Skipped     int
	RowsWritten int64
}

// Run executes the full pipeline for the given countries (all staged
// countries when empty). The run lock is held for the whole execution so a
// concurrent run can never interleave with the ranking pass. Per-country
// failures are logged and skipped; only store-level failures abort the run.
func (p *Pipeline) Run(ctx context.Context, codes []string) (*RunSummary, error) {
	log := zap.L().With(zap.String("component", "transform.pipeline"))

	if len(codes) == 0 {
		staged, err := p.store.StagedCountryCodes(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: list staged countries")
		}
		codes = staged
	}

	if err := p.store.AcquireRunLock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := p.store.ReleaseRunLock(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	runID, err := p.store.StartRun(ctx, "transform")
	if err != nil {
		return nil, err
	}

	log.Info("starting transform and load",
		zap.Int("countries", len(codes)),
		zap.Int("concurrency", p.concurrency),
	)

	var processed, skipped atomic.Int64
	var rowsWritten atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, code := range codes {
		g.Go(func() error {
			cLog := log.With(zap.String("country", code))

			rows, err := p.processCountry(gctx, code)
			if err != nil {
				if eris.Is(err, ErrNoData) {
					cLog.Warn("no staged data, skipping")
				} else {
					cLog.Warn("country aggregation failed, skipping", zap.Error(err))
				}
				skipped.Add(1)
				return nil // don't abort the batch on individual failure
			}

			processed.Add(1)
			rowsWritten.Add(rows)
			cLog.Debug("country aggregated", zap.Int64("rows", rows))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = p.store.FinishRun(ctx, runID, int(processed.Load()), int(skipped.Load()), rowsWritten.Load(), err)
		return nil, eris.Wrap(err, "pipeline: aggregate countries")
	}

	// Global barrier: every country is committed, rank the snapshot.
	if err := ApplyRankings(ctx, p.store); err != nil {
		_ = p.store.FinishRun(ctx, runID, int(processed.Load()), int(skipped.Load()), rowsWritten.Load(), err)
		return nil, err
	}

	summary := &RunSummary{
		Processed:   int(processed.Load()),
		Skipped:     int(skipped.Load()),
		RowsWritten: rowsWritten.Load(),
	}
	if err := p.store.FinishRun(ctx, runID, summary.Processed, summary.Skipped, summary.RowsWritten, nil); err != nil {
		return nil, err
	}

	log.Info("transform and load complete",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int64("rows", summary.RowsWritten),
	)
	return summary, nil
}

// processCountry recomputes every aggregate for one country from its full
// staged history. Returns the number of aggregate rows upserted.
func (p *Pipeline) processCountry(ctx context.Context, code string) (int64, error) {
	obs, err := p.store.ObservationsByCountry(ctx, code)
	if err != nil {
		return 0, err
	}
	if len(obs) == 0 {
		return 0, ErrNoData
	}

	months := DistinctMonths(obs)
	latest12, previous12 := Windows(months)
	if len(latest12) == 0 {
		return 0, ErrNoData
	}
	latestMonth := latest12[len(latest12)-1]

	name := obs[0].CountryName
	if name == "" {
		name = model.CountryName(code)
	}

	var rows int64

	cm := AggregateCountry(obs, latest12, previous12)
	err = p.store.UpsertCountry(ctx, model.Country{
		Code:               code,
		Name:               name,
		Rank:               0, // assigned by the ranking pass
		RollingLatestTWh:   cm.RollingLatestTWh,
		RollingPreviousTWh: cm.RollingPreviousTWh,
		LatestMonth:        latestMonth,
		LowCarbonPct:       cm.LowCarbonPct,
	})
	if err != nil {
		return 0, err
	}
	rows++

	fuelTypes := lo.Uniq(lo.FilterMap(obs, func(o model.Observation, _ int) (string, bool) {
		return o.FuelType, o.FuelType != ""
	}))
	sort.Strings(fuelTypes)

	byFuel := lo.GroupBy(obs, func(o model.Observation) string { return o.FuelType })

	for _, ft := range fuelTypes {
		fm := AggregateFuel(byFuel[ft], latest12, previous12)

		if err := p.store.EnsureFuel(ctx, ft); err != nil {
			return 0, err
		}
		err := p.store.UpsertCountryFuel(ctx, model.CountryFuel{
			CountryCode:        code,
			FuelType:           ft,
			SharePct:           fm.AvgSharePct,
			LatestMonth:        latestMonth,
			RollingLatestTWh:   fm.RollingLatestTWh,
			RollingPreviousTWh: fm.RollingPreviousTWh,
			MonthYoYGrowthPct:  fm.MonthYoYGrowthPct,
			AnnualYoYGrowthPct: fm.AnnualYoYGrowthPct,
			LatestMonthTWh:     fm.LatestMonthTWh,
			LatestMonthShare:   fm.LatestMonthShare,
		})
		if err != nil {
			return 0, err
		}
		rows++
	}

	years := AggregateAnnual(code, obs)
	if err := p.store.UpsertCountryFuelYears(ctx, years); err != nil {
		return 0, err
	}
	rows += int64(len(years))

	return rows, nil
}
