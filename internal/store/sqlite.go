package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/jarthorn/energy-stats/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Months are stored as TEXT "YYYY-MM-01" so the lexicographic order matches
// the chronological order.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS observations (
	country_code        TEXT NOT NULL,
	country_name        TEXT NOT NULL DEFAULT '',
	month               TEXT NOT NULL,
	fuel_type           TEXT NOT NULL,
	is_aggregate_entity INTEGER NOT NULL DEFAULT 0,
	is_aggregate_series INTEGER NOT NULL DEFAULT 0,
	generation_twh      REAL NOT NULL DEFAULT 0,
	share_pct           REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (country_code, month, fuel_type)
);

CREATE TABLE IF NOT EXISTS countries (
	code                 TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	rank                 INTEGER NOT NULL DEFAULT 0,
	rolling_latest_twh   REAL NOT NULL DEFAULT 0,
	rolling_previous_twh REAL NOT NULL DEFAULT 0,
	latest_month         TEXT NOT NULL,
	low_carbon_pct       REAL
);

CREATE TABLE IF NOT EXISTS fuels (
	type               TEXT PRIMARY KEY,
	rank               INTEGER NOT NULL DEFAULT 0,
	rolling_latest_twh REAL NOT NULL DEFAULT 0,
	lifetime_twh       REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS country_fuels (
	country_code           TEXT NOT NULL,
	fuel_type              TEXT NOT NULL,
	share_pct              REAL NOT NULL DEFAULT 0,
	latest_month           TEXT NOT NULL,
	rolling_latest_twh     REAL NOT NULL DEFAULT 0,
	rolling_previous_twh   REAL NOT NULL DEFAULT 0,
	month_yoy_growth_pct   REAL,
	annual_yoy_growth_pct  REAL,
	latest_month_twh       REAL NOT NULL DEFAULT 0,
	latest_month_share_pct REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (country_code, fuel_type)
);

CREATE TABLE IF NOT EXISTS country_fuel_years (
	country_code   TEXT NOT NULL,
	fuel_type      TEXT NOT NULL,
	year           INTEGER NOT NULL,
	generation_twh REAL NOT NULL DEFAULT 0,
	share_pct      REAL NOT NULL DEFAULT 0,
	yoy_growth_pct REAL NOT NULL DEFAULT 0,
	is_complete    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (country_code, fuel_type, year)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME,
	processed    INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	rows_written INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pipeline_lock (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	acquired_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_country ON observations(country_code);
CREATE INDEX IF NOT EXISTS idx_observations_fuel ON observations(fuel_type);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertObservations(ctx context.Context, obs []model.Observation) (int64, int64, error) {
	if len(obs) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	var before int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&before); err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: count observations")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations
			(country_code, country_name, month, fuel_type, is_aggregate_entity, is_aggregate_series, generation_twh, share_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (country_code, month, fuel_type) DO UPDATE SET
			country_name        = excluded.country_name,
			is_aggregate_entity = excluded.is_aggregate_entity,
			is_aggregate_series = excluded.is_aggregate_series,
			generation_twh      = excluded.generation_twh,
			share_pct           = excluded.share_pct`)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	seen := make(map[string]bool, len(obs))
	var total int64
	for _, o := range obs {
		key := o.CountryCode + "|" + model.FormatMonth(o.Month) + "|" + o.FuelType
		if !seen[key] {
			seen[key] = true
			total++
		}
		_, err := stmt.ExecContext(ctx,
			o.CountryCode, o.CountryName, model.FormatMonth(o.Month), o.FuelType,
			o.IsAggregateEntity, o.IsAggregateSeries, o.GenerationTWh, o.SharePct,
		)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "sqlite: upsert observation %s/%s", o.CountryCode, o.FuelType)
		}
	}

	var after int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&after); err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: recount observations")
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: commit")
	}

	created := after - before
	return created, total - created, nil
}

func (s *SQLiteStore) ObservationsByCountry(ctx context.Context, code string) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT country_code, country_name, month, fuel_type, is_aggregate_entity, is_aggregate_series, generation_twh, share_pct
		FROM observations WHERE country_code = ? ORDER BY month, fuel_type`, code)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: observations for %s", code)
	}
	defer rows.Close()

	var obs []model.Observation
	for rows.Next() {
		var o model.Observation
		var month string
		if err := rows.Scan(&o.CountryCode, &o.CountryName, &month, &o.FuelType,
			&o.IsAggregateEntity, &o.IsAggregateSeries, &o.GenerationTWh, &o.SharePct); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		if o.Month, err = model.ParseMonth(month); err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, eris.Wrap(rows.Err(), "sqlite: iterate observations")
}

func (s *SQLiteStore) StagedCountryCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT country_code FROM observations ORDER BY country_code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: staged country codes")
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan country code")
		}
		codes = append(codes, c)
	}
	return codes, eris.Wrap(rows.Err(), "sqlite: iterate country codes")
}

func (s *SQLiteStore) Coverage(ctx context.Context) ([]Coverage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT country_code, MAX(country_name), COUNT(*), COUNT(DISTINCT month), MAX(month)
		FROM observations GROUP BY country_code ORDER BY country_code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: coverage")
	}
	defer rows.Close()

	var out []Coverage
	for rows.Next() {
		var c Coverage
		var latest sql.NullString
		if err := rows.Scan(&c.CountryCode, &c.CountryName, &c.Rows, &c.Months, &latest); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan coverage")
		}
		if latest.Valid {
			m, err := model.ParseMonth(latest.String)
			if err != nil {
				return nil, err
			}
			c.LatestMonth = &m
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate coverage")
}

func (s *SQLiteStore) UpsertCountry(ctx context.Context, c model.Country) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO countries (code, name, rank, rolling_latest_twh, rolling_previous_twh, latest_month, low_carbon_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			name                 = excluded.name,
			rank                 = excluded.rank,
			rolling_latest_twh   = excluded.rolling_latest_twh,
			rolling_previous_twh = excluded.rolling_previous_twh,
			latest_month         = excluded.latest_month,
			low_carbon_pct       = excluded.low_carbon_pct`,
		c.Code, c.Name, c.Rank, c.RollingLatestTWh, c.RollingPreviousTWh,
		model.FormatMonth(c.LatestMonth), nullableFloat(c.LowCarbonPct),
	)
	return eris.Wrapf(err, "sqlite: upsert country %s", c.Code)
}

func (s *SQLiteStore) EnsureFuel(ctx context.Context, fuelType string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fuels (type) VALUES (?) ON CONFLICT (type) DO NOTHING`, fuelType)
	return eris.Wrapf(err, "sqlite: ensure fuel %s", fuelType)
}

func (s *SQLiteStore) UpsertCountryFuel(ctx context.Context, cf model.CountryFuel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO country_fuels
			(country_code, fuel_type, share_pct, latest_month, rolling_latest_twh, rolling_previous_twh,
			 month_yoy_growth_pct, annual_yoy_growth_pct, latest_month_twh, latest_month_share_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (country_code, fuel_type) DO UPDATE SET
			share_pct              = excluded.share_pct,
			latest_month           = excluded.latest_month,
			rolling_latest_twh     = excluded.rolling_latest_twh,
			rolling_previous_twh   = excluded.rolling_previous_twh,
			month_yoy_growth_pct   = excluded.month_yoy_growth_pct,
			annual_yoy_growth_pct  = excluded.annual_yoy_growth_pct,
			latest_month_twh       = excluded.latest_month_twh,
			latest_month_share_pct = excluded.latest_month_share_pct`,
		cf.CountryCode, cf.FuelType, cf.SharePct, model.FormatMonth(cf.LatestMonth),
		cf.RollingLatestTWh, cf.RollingPreviousTWh,
		nullableFloat(cf.MonthYoYGrowthPct), nullableFloat(cf.AnnualYoYGrowthPct),
		cf.LatestMonthTWh, cf.LatestMonthShare,
	)
	return eris.Wrapf(err, "sqlite: upsert country fuel %s/%s", cf.CountryCode, cf.FuelType)
}

func (s *SQLiteStore) UpsertCountryFuelYears(ctx context.Context, years []model.CountryFuelYear) error {
	if len(years) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO country_fuel_years
			(country_code, fuel_type, year, generation_twh, share_pct, yoy_growth_pct, is_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (country_code, fuel_type, year) DO UPDATE SET
			generation_twh = excluded.generation_twh,
			share_pct      = excluded.share_pct,
			yoy_growth_pct = excluded.yoy_growth_pct,
			is_complete    = excluded.is_complete`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare year upsert")
	}
	defer stmt.Close()

	for _, y := range years {
		if _, err := stmt.ExecContext(ctx,
			y.CountryCode, y.FuelType, y.Year, y.GenerationTWh, y.SharePct, y.YoYGrowthPct, y.IsComplete,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert year %s/%s/%d", y.CountryCode, y.FuelType, y.Year)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit years")
}

func (s *SQLiteStore) CountriesByRollingLatest(ctx context.Context) ([]model.Country, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, rank, rolling_latest_twh, rolling_previous_twh, latest_month, low_carbon_pct
		FROM countries ORDER BY rolling_latest_twh DESC, code ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list countries")
	}
	defer rows.Close()

	var out []model.Country
	for rows.Next() {
		var c model.Country
		var month string
		var lowCarbon sql.NullFloat64
		if err := rows.Scan(&c.Code, &c.Name, &c.Rank, &c.RollingLatestTWh,
			&c.RollingPreviousTWh, &month, &lowCarbon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan country")
		}
		if c.LatestMonth, err = model.ParseMonth(month); err != nil {
			return nil, err
		}
		if lowCarbon.Valid {
			v := lowCarbon.Float64
			c.LowCarbonPct = &v
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate countries")
}

func (s *SQLiteStore) SetCountryRank(ctx context.Context, code string, rank int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE countries SET rank = ? WHERE code = ?`, rank, code)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set rank for %s", code)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("country not found: %s", code)
	}
	return nil
}

func (s *SQLiteStore) FuelRollingTotals(ctx context.Context) (map[string]float64, error) {
	return s.fuelTotals(ctx,
		`SELECT fuel_type, SUM(rolling_latest_twh) FROM country_fuels GROUP BY fuel_type`)
}

func (s *SQLiteStore) FuelLifetimeTotals(ctx context.Context) (map[string]float64, error) {
	return s.fuelTotals(ctx,
		`SELECT fuel_type, SUM(generation_twh) FROM observations WHERE fuel_type != '' GROUP BY fuel_type`)
}

func (s *SQLiteStore) fuelTotals(ctx context.Context, query string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fuel totals")
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var fuel string
		var total float64
		if err := rows.Scan(&fuel, &total); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fuel total")
		}
		totals[fuel] = total
	}
	return totals, eris.Wrap(rows.Err(), "sqlite: iterate fuel totals")
}

func (s *SQLiteStore) UpdateFuelRanking(ctx context.Context, fuelType string, rank int, rollingTWh, lifetimeTWh float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fuels (type, rank, rolling_latest_twh, lifetime_twh) VALUES (?, ?, ?, ?)
		ON CONFLICT (type) DO UPDATE SET
			rank               = excluded.rank,
			rolling_latest_twh = excluded.rolling_latest_twh,
			lifetime_twh       = excluded.lifetime_twh`,
		fuelType, rank, rollingTWh, lifetimeTWh,
	)
	return eris.Wrapf(err, "sqlite: update fuel ranking %s", fuelType)
}

// FuelsByRank lists fuels in rank order; unranked fuels (rank 0) sort last.
func (s *SQLiteStore) FuelsByRank(ctx context.Context) ([]model.Fuel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, rank, rolling_latest_twh, lifetime_twh
		FROM fuels ORDER BY rank = 0, rank, type`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fuels")
	}
	defer rows.Close()

	var out []model.Fuel
	for rows.Next() {
		var f model.Fuel
		if err := rows.Scan(&f.Type, &f.Rank, &f.RollingLatestTWh, &f.LifetimeTWh); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fuel")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate fuels")
}

// AcquireRunLock inserts the singleton lock row; a second concurrent run
// fails on the primary key conflict.
func (s *SQLiteStore) AcquireRunLock(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_lock (id, acquired_at) VALUES (1, ?)`, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "store: pipeline lock held (is another run in progress?)")
	}
	return nil
}

func (s *SQLiteStore) ReleaseRunLock(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_lock WHERE id = 1`)
	return eris.Wrap(err, "sqlite: release run lock")
}

func (s *SQLiteStore) StartRun(ctx context.Context, kind string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, kind, started_at) VALUES (?, ?, ?)`,
		id, kind, time.Now().UTC())
	if err != nil {
		return "", eris.Wrap(err, "sqlite: start run")
	}
	return id, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, processed, skipped int, rows int64, runErr error) error {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_runs SET finished_at = ?, processed = ?, skipped = ?, rows_written = ?, error = ?
		WHERE id = ?`,
		time.Now().UTC(), processed, skipped, rows, errMsg, id)
	return eris.Wrapf(err, "sqlite: finish run %s", id)
}

func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]model.PipelineRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, started_at, finished_at, processed, skipped, rows_written, error
		FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent runs")
	}
	defer rows.Close()

	var out []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt, &finished,
			&r.Processed, &r.Skipped, &r.RowsWritten, &r.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
