package iea

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `IEA World Energy Balances extract
Country,Product,Flow,NoCountry,NoProduct,NoFlow,1999,2000,2023,2024 Provisional
United Kingdom,Electricity,"Electricity, CHP and heat plants (PJ)",0,0,0,1.1,2.2,3.3,4.4
Czech Republic,Natural gas,Total energy supply (PJ),0,0,0,5.5,6.6,7.7,8.8
United Kingdom,Electricity,Exports (PJ),0,0,0,1,1,1,1
Atlantis,Total,Total energy supply (PJ),0,0,0,1,1,1,1
United Kingdom,Oil products,Total energy supply (PJ),0,0,0,1,1,1,1
France,Total,Total energy supply (PJ),0,0,0,9.9,1.2,3.4,5.6
`

func TestFilter(t *testing.T) {
	var out bytes.Buffer
	res, err := Filter(strings.NewReader(testCSV), &out, DefaultAllowedCountries())
	require.NoError(t, err)

	assert.Equal(t, 6, res.RowsProcessed)
	assert.Equal(t, 3, res.RowsKept)

	reader := csv.NewReader(&out)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5) // source line + header + 3 data rows

	// Tracking columns and pre-2000 years are dropped.
	assert.Equal(t, []string{"Country", "Product", "Flow", "2000", "2023", "2024 Provisional"}, rows[1])

	assert.Equal(t, []string{
		"United Kingdom", "Electricity", "Electricity, CHP and heat plants (PJ)", "2.2", "3.3", "4.4",
	}, rows[2])

	// IEA spelling is normalised to the registry name.
	assert.Equal(t, "Czechia", rows[3][0])
	assert.Equal(t, "France", rows[4][0])
}

func TestFilter_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	res, err := Filter(strings.NewReader(""), &out, DefaultAllowedCountries())
	require.NoError(t, err)
	assert.Zero(t, res.RowsProcessed)
	assert.Empty(t, out.String())
}

func TestColumnYear(t *testing.T) {
	year, ok := columnYear("2023")
	assert.True(t, ok)
	assert.Equal(t, 2023, year)

	year, ok = columnYear("2024 Provisional")
	assert.True(t, ok)
	assert.Equal(t, 2024, year)

	_, ok = columnYear("NoFlow")
	assert.False(t, ok)
}

func TestFlowAllowed(t *testing.T) {
	assert.True(t, flowAllowed("Electricity", "Electricity, CHP and heat plants (PJ)"))
	assert.True(t, flowAllowed("Natural gas", "Total energy supply (PJ)"))
	assert.True(t, flowAllowed("Total", "Total energy supply (PJ)"))

	assert.False(t, flowAllowed("Electricity", "Exports (PJ)"))
	assert.False(t, flowAllowed("Oil products", "Total energy supply (PJ)"))
	assert.False(t, flowAllowed("Natural gas", "Production (PJ)"))
}
