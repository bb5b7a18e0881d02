package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarthorn/energy-stats/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_SetCountryRank(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE countries SET rank = \$1 WHERE code = \$2`).
		WithArgs(3, "GBR").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SetCountryRank(context.Background(), "GBR", 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCountryRank_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE countries SET rank`).
		WithArgs(1, "XXX").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetCountryRank(context.Background(), "XXX", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCountry(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO countries`).
		WithArgs("GBR", "United Kingdom", 0, 120.0, 78.0, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertCountry(context.Background(), model.Country{
		Code: "GBR", Name: "United Kingdom",
		RollingLatestTWh: 120, RollingPreviousTWh: 78,
		LatestMonth: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureFuel(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO fuels .* DO NOTHING`).
		WithArgs("Wind").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.EnsureFuel(context.Background(), "Wind"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FuelRollingTotals(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT fuel_type, SUM\(rolling_latest_twh\) FROM country_fuels`).
		WillReturnRows(pgxmock.NewRows([]string{"fuel_type", "sum"}).
			AddRow("Wind", 120.0).
			AddRow("Gas", 80.0))

	totals, err := s.FuelRollingTotals(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 120.0, totals["Wind"], 1e-9)
	assert.InDelta(t, 80.0, totals["Gas"], 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountriesByRollingLatest(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	latest := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	pct := 61.0
	mock.ExpectQuery(`FROM countries ORDER BY rolling_latest_twh DESC`).
		WillReturnRows(pgxmock.NewRows([]string{
			"code", "name", "rank", "rolling_latest_twh", "rolling_previous_twh", "latest_month", "low_carbon_pct",
		}).
			AddRow("FRA", "France", 1, 300.0, 290.0, latest, &pct).
			AddRow("GBR", "United Kingdom", 2, 120.0, 78.0, latest, (*float64)(nil)))

	countries, err := s.CountriesByRollingLatest(context.Background())
	require.NoError(t, err)
	require.Len(t, countries, 2)
	assert.Equal(t, "FRA", countries[0].Code)
	require.NotNil(t, countries[0].LowCarbonPct)
	assert.InDelta(t, 61.0, *countries[0].LowCarbonPct, 1e-9)
	assert.Nil(t, countries[1].LowCarbonPct)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AcquireRunLock_Held(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO pipeline_lock`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	err := s.AcquireRunLock(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline lock held")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE pipeline_runs SET finished_at`).
		WithArgs(pgxmock.AnyArg(), 5, 1, int64(99), "", "run-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FinishRun(context.Background(), "run-id", 5, 1, 99, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
