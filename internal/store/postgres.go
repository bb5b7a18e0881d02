package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/jarthorn/energy-stats/internal/db"
	"github.com/jarthorn/energy-stats/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool (or a pgxmock pool in tests).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS observations (
	country_code        TEXT NOT NULL,
	country_name        TEXT NOT NULL DEFAULT '',
	month               DATE NOT NULL,
	fuel_type           TEXT NOT NULL,
	is_aggregate_entity BOOLEAN NOT NULL DEFAULT FALSE,
	is_aggregate_series BOOLEAN NOT NULL DEFAULT FALSE,
	generation_twh      DOUBLE PRECISION NOT NULL DEFAULT 0,
	share_pct           DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (country_code, month, fuel_type)
);

CREATE TABLE IF NOT EXISTS countries (
	code                 TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	rank                 INTEGER NOT NULL DEFAULT 0,
	rolling_latest_twh   DOUBLE PRECISION NOT NULL DEFAULT 0,
	rolling_previous_twh DOUBLE PRECISION NOT NULL DEFAULT 0,
	latest_month         DATE NOT NULL,
	low_carbon_pct       DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS fuels (
	type               TEXT PRIMARY KEY,
	rank               INTEGER NOT NULL DEFAULT 0,
	rolling_latest_twh DOUBLE PRECISION NOT NULL DEFAULT 0,
	lifetime_twh       DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS country_fuels (
	country_code           TEXT NOT NULL,
	fuel_type              TEXT NOT NULL,
	share_pct              DOUBLE PRECISION NOT NULL DEFAULT 0,
	latest_month           DATE NOT NULL,
	rolling_latest_twh     DOUBLE PRECISION NOT NULL DEFAULT 0,
	rolling_previous_twh   DOUBLE PRECISION NOT NULL DEFAULT 0,
	month_yoy_growth_pct   DOUBLE PRECISION,
	annual_yoy_growth_pct  DOUBLE PRECISION,
	latest_month_twh       DOUBLE PRECISION NOT NULL DEFAULT 0,
	latest_month_share_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (country_code, fuel_type)
);

CREATE TABLE IF NOT EXISTS country_fuel_years (
	country_code   TEXT NOT NULL,
	fuel_type      TEXT NOT NULL,
	year           INTEGER NOT NULL,
	generation_twh DOUBLE PRECISION NOT NULL DEFAULT 0,
	share_pct      DOUBLE PRECISION NOT NULL DEFAULT 0,
	yoy_growth_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_complete    BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (country_code, fuel_type, year)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ,
	processed    INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	rows_written BIGINT NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pipeline_lock (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	acquired_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_country ON observations(country_code);
CREATE INDEX IF NOT EXISTS idx_observations_fuel ON observations(fuel_type);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

var observationColumns = []string{
	"country_code", "country_name", "month", "fuel_type",
	"is_aggregate_entity", "is_aggregate_series", "generation_twh", "share_pct",
}

func (s *PostgresStore) UpsertObservations(ctx context.Context, obs []model.Observation) (int64, int64, error) {
	if len(obs) == 0 {
		return 0, 0, nil
	}

	var before int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM observations`).Scan(&before); err != nil {
		return 0, 0, eris.Wrap(err, "postgres: count observations")
	}

	rows := make([][]any, 0, len(obs))
	seen := make(map[string]bool, len(obs))
	for _, o := range obs {
		key := o.CountryCode + "|" + model.FormatMonth(o.Month) + "|" + o.FuelType
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, []any{
			o.CountryCode, o.CountryName, o.Month, o.FuelType,
			o.IsAggregateEntity, o.IsAggregateSeries, o.GenerationTWh, o.SharePct,
		})
	}

	written, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "observations",
		Columns:      observationColumns,
		ConflictKeys: []string{"country_code", "month", "fuel_type"},
	}, rows)
	if err != nil {
		return 0, 0, err
	}

	var after int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM observations`).Scan(&after); err != nil {
		return 0, 0, eris.Wrap(err, "postgres: recount observations")
	}

	created := after - before
	return created, written - created, nil
}

func (s *PostgresStore) ObservationsByCountry(ctx context.Context, code string) ([]model.Observation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT country_code, country_name, month, fuel_type, is_aggregate_entity, is_aggregate_series, generation_twh, share_pct
		FROM observations WHERE country_code = $1 ORDER BY month, fuel_type`, code)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: observations for %s", code)
	}
	defer rows.Close()

	var obs []model.Observation
	for rows.Next() {
		var o model.Observation
		if err := rows.Scan(&o.CountryCode, &o.CountryName, &o.Month, &o.FuelType,
			&o.IsAggregateEntity, &o.IsAggregateSeries, &o.GenerationTWh, &o.SharePct); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		o.Month = o.Month.UTC()
		obs = append(obs, o)
	}
	return obs, eris.Wrap(rows.Err(), "postgres: iterate observations")
}

func (s *PostgresStore) StagedCountryCodes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT country_code FROM observations ORDER BY country_code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: staged country codes")
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "postgres: scan country code")
		}
		codes = append(codes, c)
	}
	return codes, eris.Wrap(rows.Err(), "postgres: iterate country codes")
}

func (s *PostgresStore) Coverage(ctx context.Context) ([]Coverage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT country_code, MAX(country_name), COUNT(*), COUNT(DISTINCT month), MAX(month)
		FROM observations GROUP BY country_code ORDER BY country_code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: coverage")
	}
	defer rows.Close()

	var out []Coverage
	for rows.Next() {
		var c Coverage
		var latest *time.Time
		if err := rows.Scan(&c.CountryCode, &c.CountryName, &c.Rows, &c.Months, &latest); err != nil {
			return nil, eris.Wrap(err, "postgres: scan coverage")
		}
		c.LatestMonth = latest
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate coverage")
}

func (s *PostgresStore) UpsertCountry(ctx context.Context, c model.Country) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO countries (code, name, rank, rolling_latest_twh, rolling_previous_twh, latest_month, low_carbon_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			name                 = EXCLUDED.name,
			rank                 = EXCLUDED.rank,
			rolling_latest_twh   = EXCLUDED.rolling_latest_twh,
			rolling_previous_twh = EXCLUDED.rolling_previous_twh,
			latest_month         = EXCLUDED.latest_month,
			low_carbon_pct       = EXCLUDED.low_carbon_pct`,
		c.Code, c.Name, c.Rank, c.RollingLatestTWh, c.RollingPreviousTWh, c.LatestMonth, c.LowCarbonPct,
	)
	return eris.Wrapf(err, "postgres: upsert country %s", c.Code)
}

func (s *PostgresStore) EnsureFuel(ctx context.Context, fuelType string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fuels (type) VALUES ($1) ON CONFLICT (type) DO NOTHING`, fuelType)
	return eris.Wrapf(err, "postgres: ensure fuel %s", fuelType)
}

func (s *PostgresStore) UpsertCountryFuel(ctx context.Context, cf model.CountryFuel) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO country_fuels
			(country_code, fuel_type, share_pct, latest_month, rolling_latest_twh, rolling_previous_twh,
			 month_yoy_growth_pct, annual_yoy_growth_pct, latest_month_twh, latest_month_share_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (country_code, fuel_type) DO UPDATE SET
			share_pct              = EXCLUDED.share_pct,
			latest_month           = EXCLUDED.latest_month,
			rolling_latest_twh     = EXCLUDED.rolling_latest_twh,
			rolling_previous_twh   = EXCLUDED.rolling_previous_twh,
			month_yoy_growth_pct   = EXCLUDED.month_yoy_growth_pct,
			annual_yoy_growth_pct  = EXCLUDED.annual_yoy_growth_pct,
			latest_month_twh       = EXCLUDED.latest_month_twh,
			latest_month_share_pct = EXCLUDED.latest_month_share_pct`,
		cf.CountryCode, cf.FuelType, cf.SharePct, cf.LatestMonth,
		cf.RollingLatestTWh, cf.RollingPreviousTWh,
		cf.MonthYoYGrowthPct, cf.AnnualYoYGrowthPct,
		cf.LatestMonthTWh, cf.LatestMonthShare,
	)
	return eris.Wrapf(err, "postgres: upsert country fuel %s/%s", cf.CountryCode, cf.FuelType)
}

func (s *PostgresStore) UpsertCountryFuelYears(ctx context.Context, years []model.CountryFuelYear) error {
	for _, y := range years {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO country_fuel_years
				(country_code, fuel_type, year, generation_twh, share_pct, yoy_growth_pct, is_complete)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (country_code, fuel_type, year) DO UPDATE SET
				generation_twh = EXCLUDED.generation_twh,
				share_pct      = EXCLUDED.share_pct,
				yoy_growth_pct = EXCLUDED.yoy_growth_pct,
				is_complete    = EXCLUDED.is_complete`,
			y.CountryCode, y.FuelType, y.Year, y.GenerationTWh, y.SharePct, y.YoYGrowthPct, y.IsComplete,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert year %s/%s/%d", y.CountryCode, y.FuelType, y.Year)
		}
	}
	return nil
}

func (s *PostgresStore) CountriesByRollingLatest(ctx context.Context) ([]model.Country, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT code, name, rank, rolling_latest_twh, rolling_previous_twh, latest_month, low_carbon_pct
		FROM countries ORDER BY rolling_latest_twh DESC, code ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list countries")
	}
	defer rows.Close()

	var out []model.Country
	for rows.Next() {
		var c model.Country
		if err := rows.Scan(&c.Code, &c.Name, &c.Rank, &c.RollingLatestTWh,
			&c.RollingPreviousTWh, &c.LatestMonth, &c.LowCarbonPct); err != nil {
			return nil, eris.Wrap(err, "postgres: scan country")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate countries")
}

func (s *PostgresStore) SetCountryRank(ctx context.Context, code string, rank int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE countries SET rank = $1 WHERE code = $2`, rank, code)
	if err != nil {
		return eris.Wrapf(err, "postgres: set rank for %s", code)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("country not found: %s", code)
	}
	return nil
}

func (s *PostgresStore) FuelRollingTotals(ctx context.Context) (map[string]float64, error) {
	return s.fuelTotals(ctx,
		`SELECT fuel_type, SUM(rolling_latest_twh) FROM country_fuels GROUP BY fuel_type`)
}

func (s *PostgresStore) FuelLifetimeTotals(ctx context.Context) (map[string]float64, error) {
	return s.fuelTotals(ctx,
		`SELECT fuel_type, SUM(generation_twh) FROM observations WHERE fuel_type != '' GROUP BY fuel_type`)
}

func (s *PostgresStore) fuelTotals(ctx context.Context, query string) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fuel totals")
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var fuel string
		var total float64
		if err := rows.Scan(&fuel, &total); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fuel total")
		}
		totals[fuel] = total
	}
	return totals, eris.Wrap(rows.Err(), "postgres: iterate fuel totals")
}

func (s *PostgresStore) UpdateFuelRanking(ctx context.Context, fuelType string, rank int, rollingTWh, lifetimeTWh float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fuels (type, rank, rolling_latest_twh, lifetime_twh) VALUES ($1, $2, $3, $4)
		ON CONFLICT (type) DO UPDATE SET
			rank               = EXCLUDED.rank,
			rolling_latest_twh = EXCLUDED.rolling_latest_twh,
			lifetime_twh       = EXCLUDED.lifetime_twh`,
		fuelType, rank, rollingTWh, lifetimeTWh,
	)
	return eris.Wrapf(err, "postgres: update fuel ranking %s", fuelType)
}

// FuelsByRank lists fuels in rank order; unranked fuels (rank 0) sort last.
func (s *PostgresStore) FuelsByRank(ctx context.Context) ([]model.Fuel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT type, rank, rolling_latest_twh, lifetime_twh
		FROM fuels ORDER BY rank = 0, rank, type`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fuels")
	}
	defer rows.Close()

	var out []model.Fuel
	for rows.Next() {
		var f model.Fuel
		if err := rows.Scan(&f.Type, &f.Rank, &f.RollingLatestTWh, &f.LifetimeTWh); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fuel")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate fuels")
}

// AcquireRunLock inserts the singleton lock row; a second concurrent run
// fails on the primary key conflict. A lock row survives a crashed run and
// must be cleared manually, which is preferable to two ranking passes
// interleaving.
func (s *PostgresStore) AcquireRunLock(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_lock (id, acquired_at) VALUES (1, $1)`, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "store: pipeline lock held (is another run in progress?)")
	}
	return nil
}

func (s *PostgresStore) ReleaseRunLock(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM pipeline_lock WHERE id = 1`)
	return eris.Wrap(err, "postgres: release run lock")
}

func (s *PostgresStore) StartRun(ctx context.Context, kind string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, kind, started_at) VALUES ($1, $2, $3)`,
		id, kind, time.Now().UTC())
	if err != nil {
		return "", eris.Wrap(err, "postgres: start run")
	}
	return id, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, id string, processed, skipped int, rows int64, runErr error) error {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE pipeline_runs SET finished_at = $1, processed = $2, skipped = $3, rows_written = $4, error = $5
		WHERE id = $6`,
		time.Now().UTC(), processed, skipped, rows, errMsg, id)
	return eris.Wrapf(err, "postgres: finish run %s", id)
}

func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]model.PipelineRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, started_at, finished_at, processed, skipped, rows_written, error
		FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent runs")
	}
	defer rows.Close()

	var out []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt, &r.FinishedAt,
			&r.Processed, &r.Skipped, &r.RowsWritten, &r.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
