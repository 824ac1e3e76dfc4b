// pkg/analytics/geographic.go
package analytics

import (
	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// UnknownCountry labels codes without a display name
const UnknownCountry = "Unknown"

// CountryNamer resolves an alpha-3 code to a display name
type CountryNamer interface {
	Name(alpha3 string) (string, bool)
}

// CountryCount is the number of clients of one country
type CountryCount struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Distribution is the client count per country
type Distribution struct {
	Available bool           `json:"available"`
	Countries []CountryCount `json:"countries"`
	Unmatched int            `json:"unmatched"`
}

// GlobalDistribution counts clients per country_code, most common first.
// Clients without a code are reported as unmatched.
func GlobalDistribution(clients *model.Table, names CountryNamer) Distribution {
	dist := Distribution{Countries: []CountryCount{}}
	if !hasColumns(clients, model.ColCountryCode) {
		return dist
	}
	dist.Available = true

	tally := make(map[string]int)
	for _, row := range clients.Rows {
		code := textOf(row, model.ColCountryCode)
		if code == "" {
			dist.Unmatched++
			continue
		}
		tally[code]++
	}

	counts := make([]Count, 0, len(tally))
	for code, n := range tally {
		counts = append(counts, Count{Label: code, Count: n})
	}
	sortCounts(counts, stringLess)

	for _, c := range counts {
		name := UnknownCountry
		if names != nil {
			if n, ok := names.Name(c.Label); ok && n != "" {
				name = n
			}
		}
		dist.Countries = append(dist.Countries, CountryCount{Code: c.Label, Name: name, Count: c.Count})
	}

	return dist
}
