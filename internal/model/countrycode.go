package model

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// countryNames maps every supported ISO-3 country code to its display name.
// This is the set of countries the Ember API is queried for; codes outside
// this set are configuration errors.
var countryNames = map[string]string{
	"ARG": "Argentina",
	"ARM": "Armenia",
	"AUS": "Australia",
	"AUT": "Austria",
	"AZE": "Azerbaijan",
	"BGD": "Bangladesh",
	"BLR": "Belarus",
	"BEL": "Belgium",
	"BOL": "Bolivia",
	"BIH": "Bosnia Herzegovina",
	"BRA": "Brazil",
	"BGR": "Bulgaria",
	"CAN": "Canada",
	"CHL": "Chile",
	"CHN": "China",
	"COL": "Colombia",
	"CRI": "Costa Rica",
	"HRV": "Croatia",
	"CYP": "Cyprus",
	"CZE": "Czechia",
	"DNK": "Denmark",
	"DOM": "Dominican Republic",
	"ECU": "Ecuador",
	"EGY": "Egypt",
	"SLV": "El Salvador",
	"EST": "Estonia",
	"FIN": "Finland",
	"FRA": "France",
	"GEO": "Georgia",
	"DEU": "Germany",
	"GRC": "Greece",
	"HUN": "Hungary",
	"ISL": "Iceland",
	"IND": "India",
	"IRN": "Iran",
	"IRL": "Ireland",
	"ISR": "Israel",
	"ITA": "Italy",
	"JPN": "Japan",
	"KAZ": "Kazakhstan",
	"KEN": "Kenya",
	"XKX": "Kosovo",
	"KWT": "Kuwait",
	"KGZ": "Kyrgyzstan",
	"LVA": "Latvia",
	"LTU": "Lithuania",
	"LUX": "Luxembourg",
	"MYS": "Malaysia",
	"MLT": "Malta",
	"MEX": "Mexico",
	"MDA": "Moldova",
	"MNG": "Mongolia",
	"MNE": "Montenegro",
	"MAR": "Morocco",
	"MMR": "Myanmar",
	"NLD": "Netherlands",
	"NZL": "New Zealand",
	"NGA": "Nigeria",
	"MKD": "North Macedonia",
	"NOR": "Norway",
	"OMN": "Oman",
	"PAK": "Pakistan",
	"PER": "Peru",
	"PHL": "The Philippines",
	"POL": "Poland",
	"PRT": "Portugal",
	"PRI": "Puerto Rico",
	"QAT": "Qatar",
	"ROU": "Romania",
	"RUS": "Russia",
	"SRB": "Serbia",
	"SGP": "Singapore",
	"SVK": "Slovakia",
	"SVN": "Slovenia",
	"ZAF": "South Africa",
	"KOR": "South Korea",
	"ESP": "Spain",
	"LKA": "Sri Lanka",
	"SWE": "Sweden",
	"CHE": "Switzerland",
	"TWN": "Taiwan (China)",
	"TJK": "Tajikistan",
	"THA": "Thailand",
	"TUN": "Tunisia",
	"TUR": "Türkiye",
	"UKR": "Ukraine",
	"GBR": "United Kingdom",
	"USA": "United States",
	"URY": "Uruguay",
	"VNM": "Viet Nam",
}

// AllCountryCodes returns every supported ISO-3 code in sorted order.
func AllCountryCodes() []string {
	codes := make([]string, 0, len(countryNames))
	for code := range countryNames {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// CountryName returns the display name for a supported code, or "" if the
// code is unknown.
func CountryName(code string) string {
	return countryNames[code]
}

// ParseCountryCode validates and normalises an ISO-3 country code.
func ParseCountryCode(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if _, ok := countryNames[code]; !ok {
		return "", eris.Errorf("unknown country code: %q", s)
	}
	return code, nil
}

// ParseCountryCodes validates a list of codes, preserving order.
func ParseCountryCodes(in []string) ([]string, error) {
	codes := make([]string, 0, len(in))
	for _, s := range in {
		code, err := ParseCountryCode(s)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}
