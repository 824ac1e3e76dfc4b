// pkg/analytics/analytics.go

// Package analytics computes the dashboard blocks from processed tables.
// Every block tolerates absent columns: it comes back empty with
// Available set to false instead of failing.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"

	"github.com/David-Botos/customer-data-platform/pkg/converter"
	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// Membership vocabulary
const (
	NoMembership = "No Membership"
	StatusActive = "ACTIVE"
)

// TierOrder is the display order of membership tiers. Unknown tiers sort
// after these, alphabetically.
var TierOrder = []string{NoMembership, "Bronze", "Silver", "Gold", "Platinum"}

// Count is one labelled tally
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

var values = converter.NewTypeConverter(nil)

func tierRank(tier string) int {
	for i, t := range TierOrder {
		if t == tier {
			return i
		}
	}
	return len(TierOrder)
}

func tierLess(a, b string) bool {
	ra, rb := tierRank(a), tierRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func hasColumns(t *model.Table, cols ...string) bool {
	if t == nil {
		return false
	}
	for _, col := range cols {
		if !t.HasColumn(col) {
			return false
		}
	}
	return true
}

func clientIDOf(row model.Record) (int64, bool) {
	if id, ok := row[model.ColClientID].(int64); ok {
		return id, true
	}
	return values.DigitsToInt(row[model.ColClientID])
}

func timeOf(row model.Record, col string) (time.Time, bool) {
	t, err := values.ToTime(row[col])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// floatOf reads a finite number; NaN and infinities count as missing
func floatOf(row model.Record, col string) (float64, bool) {
	f, err := values.ToFloat(row[col])
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// textOf returns the text form of a value, empty for missing values
func textOf(row model.Record, col string) string {
	v := row[col]
	if values.IsNull(v) {
		return ""
	}
	return values.ToText(v)
}

// displayName prefers a name column and falls back to first and last name
func displayName(row model.Record) string {
	if name := textOf(row, "name"); name != "" {
		return name
	}
	return strings.TrimSpace(textOf(row, model.ColFirstName) + " " + textOf(row, model.ColLastName))
}

// uniqueCount counts distinct non-missing values of a column
func uniqueCount(t *model.Table, col string, keep func(model.Record) bool) int {
	if !hasColumns(t, col) {
		return 0
	}
	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		if keep != nil && !keep(row) {
			continue
		}
		if v := textOf(row, col); v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// firstByClient indexes the first row of each client_id
func firstByClient(t *model.Table) map[int64]model.Record {
	out := make(map[int64]model.Record, t.Len())
	if !hasColumns(t, model.ColClientID) {
		return out
	}
	for _, row := range t.Rows {
		id, ok := clientIDOf(row)
		if !ok {
			continue
		}
		if _, seen := out[id]; !seen {
			out[id] = row
		}
	}
	return out
}

// sortCounts orders tallies by count descending, then by less
func sortCounts(counts []Count, less func(a, b string) bool) {
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return less(counts[i].Label, counts[j].Label)
	})
}

func stringLess(a, b string) bool { return a < b }

// inWindow reports whether t falls between the start of the first day and
// the end of the last day
func inWindow(t, start, end time.Time) bool {
	from := now.New(start).BeginningOfDay()
	to := now.New(end).EndOfDay()
	return !t.Before(from) && !t.After(to)
}

// DefaultWindow returns the last 365 days ending today
func DefaultWindow(today time.Time) (time.Time, time.Time) {
	day := now.New(today.UTC()).BeginningOfDay()
	return day.AddDate(0, 0, -365), day
}

// FormatMoney renders an amount as $1,234.56
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	d = d.Round(2)
	whole := d.IntPart()
	cents := d.Sub(decimal.NewFromInt(whole)).StringFixed(2)
	return sign + "$" + humanize.Comma(whole) + cents[1:]
}
