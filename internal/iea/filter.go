// Package iea filters a CSV export of the IEA World Energy Balances
// dataset down to the countries and primary-energy products used to
// cross-check Ember coverage.
package iea

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jarthorn/energy-stats/internal/model"
)

// MinYear is the earliest year column kept in the output.
const MinYear = 2000

// countryRenames maps IEA spellings to the standard names used elsewhere.
var countryRenames = map[string]string{
	"Czech Republic":             "Czechia",
	"People's Republic of China": "China",
	"Republic of Turkiye":        "Türkiye",
	"Slovak Republic":            "Slovakia",
	"Korea":                      "South Korea",
}

// primaryEnergyProducts are the product rows kept under the total-supply flow.
var primaryEnergyProducts = map[string]bool{
	"Coal, peat and oil shale":  true,
	"Crude, NGL and feedstocks": true,
	"Natural gas":               true,
	"Nuclear":                   true,
	"Renewables and waste":      true,
}

// DefaultAllowedCountries returns the display names of every country in the
// registry, which is the default filter set.
func DefaultAllowedCountries() map[string]bool {
	allowed := make(map[string]bool)
	for _, code := range model.AllCountryCodes() {
		allowed[model.CountryName(code)] = true
	}
	return allowed
}

// Result reports how many data rows were seen and kept.
type Result struct {
	RowsProcessed int
	RowsKept      int
}

// Filter reads an IEA World Energy Balances CSV and writes the filtered
// version. Rules:
//   - drop rows whose country is not in the allowed set (after renaming)
//   - drop secondary energy products and flows other than total supply
//   - drop the NoCountry/NoProduct/NoFlow columns and year columns before
//     MinYear ("2024 Provisional" style columns count as their year)
//
// The first line is a source comment and passes through untouched.
func Filter(r io.Reader, w io.Writer, allowedCountries map[string]bool) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Source-attribution line.
	sourceLine, err := reader.Read()
	if err == io.EOF {
		return &Result{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "iea: read source line")
	}
	if err := writer.Write(sourceLine); err != nil {
		return nil, eris.Wrap(err, "iea: write source line")
	}

	header, err := reader.Read()
	if err == io.EOF {
		return &Result{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "iea: read header")
	}

	// Keep Country, Product, Flow (0-2), drop NoCountry/NoProduct/NoFlow
	// (3-5), then keep year columns from MinYear on.
	keep := []int{0, 1, 2}
	for i := 6; i < len(header); i++ {
		if year, ok := columnYear(header[i]); ok && year >= MinYear {
			keep = append(keep, i)
		}
	}
	if err := writer.Write(project(header, keep)); err != nil {
		return nil, eris.Wrap(err, "iea: write header")
	}

	res := &Result{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "iea: read row")
		}
		if len(row) < 3 {
			continue
		}
		res.RowsProcessed++

		country := row[0]
		if renamed, ok := countryRenames[country]; ok {
			country = renamed
		}

		if !allowedCountries[country] || !flowAllowed(row[1], row[2]) {
			continue
		}

		row[0] = country
		if err := writer.Write(project(row, keep)); err != nil {
			return nil, eris.Wrap(err, "iea: write row")
		}
		res.RowsKept++
	}

	writer.Flush()
	return res, eris.Wrap(writer.Error(), "iea: flush")
}

// columnYear extracts the year from a header column like "2023" or
// "2024 Provisional".
func columnYear(col string) (int, bool) {
	field := col
	if i := strings.IndexByte(col, ' '); i > 0 && strings.Contains(col, "Provisional") {
		field = col[:i]
	}
	year, err := strconv.Atoi(field)
	if err != nil {
		return 0, false
	}
	return year, true
}

// flowAllowed keeps electricity generation, primary-energy total supply,
// and the overall total supply rows.
func flowAllowed(product, flow string) bool {
	switch {
	case product == "Electricity" && flow == "Electricity, CHP and heat plants (PJ)":
		return true
	case primaryEnergyProducts[product] && flow == "Total energy supply (PJ)":
		return true
	case product == "Total" && flow == "Total energy supply (PJ)":
		return true
	}
	return false
}

func project(row []string, keep []int) []string {
	out := make([]string, 0, len(keep))
	for _, i := range keep {
		if i < len(row) {
			out = append(out, row[i])
		}
	}
	return out
}
