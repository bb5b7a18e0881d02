package ember

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jarthorn/energy-stats/internal/store"
)

// Extractor fetches raw observations for many countries and stages them.
type Extractor struct {
	client      *Client
	store       store.Store
	concurrency int
}

// NewExtractor creates an Extractor with the given fan-out width.
func NewExtractor(client *Client, st store.Store, concurrency int) *Extractor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Extractor{client: client, store: st, concurrency: concurrency}
}

// Summary reports the outcome of one extraction run.
type Summary struct {
	Fetched int
	Skipped int
	Created int64
	Updated int64
}

// Run extracts every requested country. Fetch failures are transient: they
// are logged as warnings and the country is skipped, never aborting the
// batch. Each country's rows are staged as soon as its fetch completes.
func (e *Extractor) Run(ctx context.Context, codes []string, startDate string) (*Summary, error) {
	log := zap.L().With(zap.String("component", "ember.extract"))

	runID, err := e.store.StartRun(ctx, "extract")
	if err != nil {
		return nil, err
	}

	log.Info("starting extraction",
		zap.Int("countries", len(codes)),
		zap.String("start_date", startDate),
	)

	var fetched, skipped atomic.Int64
	var created, updated atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, code := range codes {
		g.Go(func() error {
			cLog := log.With(zap.String("country", code))

			obs, err := e.client.FetchCountry(gctx, code, startDate)
			if err != nil {
				cLog.Warn("fetch failed, skipping country", zap.Error(err))
				skipped.Add(1)
				return nil
			}
			if len(obs) == 0 {
				cLog.Warn("no data returned")
				skipped.Add(1)
				return nil
			}

			c, u, err := e.store.UpsertObservations(gctx, obs)
			if err != nil {
				// A storage failure is not a per-country condition; abort.
				return eris.Wrapf(err, "stage observations for %s", code)
			}

			created.Add(c)
			updated.Add(u)
			fetched.Add(1)
			cLog.Info("staged observations", zap.Int64("created", c), zap.Int64("updated", u))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = e.store.FinishRun(ctx, runID, int(fetched.Load()), int(skipped.Load()), created.Load()+updated.Load(), err)
		return nil, err
	}

	summary := &Summary{
		Fetched: int(fetched.Load()),
		Skipped: int(skipped.Load()),
		Created: created.Load(),
		Updated: updated.Load(),
	}
	if err := e.store.FinishRun(ctx, runID, summary.Fetched, summary.Skipped, summary.Created+summary.Updated, nil); err != nil {
		return nil, err
	}

	log.Info("extraction complete",
		zap.Int("fetched", summary.Fetched),
		zap.Int("skipped", summary.Skipped),
		zap.Int64("created", summary.Created),
		zap.Int64("updated", summary.Updated),
	)
	return summary, nil
}
