// Package store persists the staging table and the derived aggregate
// entities behind a driver-agnostic interface with SQLite and Postgres
// implementations. All writes are natural-key upserts so re-runs of the
// pipeline are idempotent at the row level.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/jarthorn/energy-stats/internal/config"
	"github.com/jarthorn/energy-stats/internal/model"
)

// Coverage summarises staging data for one country, for the status command.
type Coverage struct {
	CountryCode string     `json:"country_code" yaml:"country_code"`
	CountryName string     `json:"country_name" yaml:"country_name"`
	Rows        int        `json:"rows" yaml:"rows"`
	Months      int        `json:"months" yaml:"months"`
	LatestMonth *time.Time `json:"latest_month" yaml:"latest_month"`
}

// Store defines the persistence interface for the ETL pipeline.
type Store interface {
	// Staging
	UpsertObservations(ctx context.Context, obs []model.Observation) (created, updated int64, err error)
	ObservationsByCountry(ctx context.Context, code string) ([]model.Observation, error)
	StagedCountryCodes(ctx context.Context) ([]string, error)
	Coverage(ctx context.Context) ([]Coverage, error)

	// Derived aggregates, keyed by their natural keys.
	UpsertCountry(ctx context.Context, c model.Country) error
	EnsureFuel(ctx context.Context, fuelType string) error
	UpsertCountryFuel(ctx context.Context, cf model.CountryFuel) error
	UpsertCountryFuelYears(ctx context.Context, rows []model.CountryFuelYear) error

	// Ranking pass. Reads see the fully-updated aggregate tables, so they
	// must run only after every country's upserts have committed.
	CountriesByRollingLatest(ctx context.Context) ([]model.Country, error)
	SetCountryRank(ctx context.Context, code string, rank int) error
	FuelRollingTotals(ctx context.Context) (map[string]float64, error)
	FuelLifetimeTotals(ctx context.Context) (map[string]float64, error)
	UpdateFuelRanking(ctx context.Context, fuelType string, rank int, rollingTWh, lifetimeTWh float64) error
	FuelsByRank(ctx context.Context) ([]model.Fuel, error)

	// Run lock and audit. The lock serialises whole pipeline executions so
	// a ranking pass never reads a half-updated table.
	AcquireRunLock(ctx context.Context) error
	ReleaseRunLock(ctx context.Context) error
	StartRun(ctx context.Context, kind string) (string, error)
	FinishRun(ctx context.Context, id string, processed, skipped int, rows int64, runErr error) error
	RecentRuns(ctx context.Context, limit int) ([]model.PipelineRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires store.database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
