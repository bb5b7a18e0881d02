package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarthorn/energy-stats/internal/model"
)

func TestAggregateCountry(t *testing.T) {
	t.Run("rolling totals sum every fuel", func(t *testing.T) {
		latest := []time.Time{month(2024, 11), month(2024, 12)}
		previous := []time.Time{month(2024, 9), month(2024, 10)}
		obs := []model.Observation{
			{Month: month(2024, 9), FuelType: "Coal", GenerationTWh: 1},
			{Month: month(2024, 10), FuelType: "Coal", GenerationTWh: 2},
			{Month: month(2024, 11), FuelType: "Coal", GenerationTWh: 3},
			{Month: month(2024, 11), FuelType: "Wind", GenerationTWh: 4},
			{Month: month(2024, 12), FuelType: "Coal", GenerationTWh: 5},
		}

		m := AggregateCountry(obs, latest, previous)
		assert.InDelta(t, 12.0, m.RollingLatestTWh, 1e-9)
		assert.InDelta(t, 3.0, m.RollingPreviousTWh, 1e-9)
	})

	t.Run("net imports excluded from low carbon share entirely", func(t *testing.T) {
		latest := []time.Time{month(2024, 12)}
		obs := []model.Observation{
			{Month: month(2024, 12), FuelType: "Wind", GenerationTWh: 30},
			{Month: month(2024, 12), FuelType: "Coal", GenerationTWh: 70},
			// Imports must affect neither numerator nor denominator.
			{Month: month(2024, 12), FuelType: NetImports, GenerationTWh: 500},
		}

		m := AggregateCountry(obs, latest, nil)
		require.NotNil(t, m.LowCarbonPct)
		assert.InDelta(t, 30.0, *m.LowCarbonPct, 1e-9)
	})

	t.Run("low carbon numerator covers all clean fuels", func(t *testing.T) {
		latest := []time.Time{month(2024, 12)}
		obs := []model.Observation{
			{Month: month(2024, 12), FuelType: "Hydro", GenerationTWh: 10},
			{Month: month(2024, 12), FuelType: "Nuclear", GenerationTWh: 10},
			{Month: month(2024, 12), FuelType: "Solar", GenerationTWh: 10},
			{Month: month(2024, 12), FuelType: "Bioenergy", GenerationTWh: 10},
			{Month: month(2024, 12), FuelType: "Other renewables", GenerationTWh: 10},
			{Month: month(2024, 12), FuelType: "Gas", GenerationTWh: 50},
		}

		m := AggregateCountry(obs, latest, nil)
		require.NotNil(t, m.LowCarbonPct)
		assert.InDelta(t, 50.0, *m.LowCarbonPct, 1e-9)
	})

	t.Run("nil share when window has no generation", func(t *testing.T) {
		latest := []time.Time{month(2024, 12)}
		obs := []model.Observation{
			{Month: month(2024, 12), FuelType: "Coal", GenerationTWh: 0},
			{Month: month(2023, 12), FuelType: "Wind", GenerationTWh: 99},
		}

		m := AggregateCountry(obs, latest, nil)
		assert.Nil(t, m.LowCarbonPct)
	})

	t.Run("only imports in window yields nil share", func(t *testing.T) {
		latest := []time.Time{month(2024, 12)}
		obs := []model.Observation{
			{Month: month(2024, 12), FuelType: NetImports, GenerationTWh: 7},
		}

		m := AggregateCountry(obs, latest, nil)
		assert.Nil(t, m.LowCarbonPct)
	})
}
