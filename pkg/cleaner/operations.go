// pkg/cleaner/operations.go
package cleaner

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/converter"
	"github.com/David-Botos/customer-data-platform/pkg/model"
)

const (
	maxAge          = 120
	daysPerYear     = 365.25
	leftJoinSuffix  = "_x"
	rightJoinSuffix = "_y"
)

// materializeIdentifiers turns document ids into display strings
func (p *Pipeline) materializeIdentifiers(t *model.Table) {
	if !t.HasColumn(model.ColID) {
		return
	}

	for _, row := range t.Rows {
		value := row[model.ColID]
		if p.converter.IsNull(value) {
			row[model.ColID] = nil
			continue
		}
		row[model.ColID] = p.converter.ToText(value)
	}
}

// coerceDates replaces a column's values with UTC times, or nil when the value
// is missing or unreadable
func (p *Pipeline) coerceDates(t *model.Table, col string, diags *diagnosticCollector) {
	if !t.HasColumn(col) {
		p.logger.Debug("Date column absent, coercion skipped",
			zap.String("table", t.Name),
			zap.String("column", col))
		return
	}

	unparseable := 0
	for _, row := range t.Rows {
		parsed, err := p.converter.ToTime(row[col])
		if err != nil {
			if !errors.Is(err, converter.ErrNullValue) {
				unparseable++
			}
			row[col] = nil
			continue
		}
		row[col] = parsed
	}

	if unparseable > 0 {
		diags.record(model.Diagnostic{
			Kind:         model.UnparseableDate,
			Table:        t.Name,
			Column:       col,
			AffectedRows: unparseable,
			Message:      "Unparseable dates coerced to missing",
		})
	}
}

// normalizeClientIDs keeps the digits of every client_id; ids without digits
// collapse to 0
func (p *Pipeline) normalizeClientIDs(t *model.Table, diags *diagnosticCollector) {
	if !t.HasColumn(model.ColClientID) {
		return
	}

	defaulted := 0
	for _, row := range t.Rows {
		id, ok := p.converter.DigitsToInt(row[model.ColClientID])
		if !ok {
			defaulted++
		}
		row[model.ColClientID] = id
	}

	if defaulted > 0 {
		diags.record(model.Diagnostic{
			Kind:         model.DefaultedIdentifier,
			Table:        t.Name,
			Column:       model.ColClientID,
			AffectedRows: defaulted,
			Message:      "client_id without digits defaulted to 0",
		})
	}
}

// reportDuplicates counts every row whose client_id occurs more than once.
// Rows are left in place.
func (p *Pipeline) reportDuplicates(t *model.Table, diags *diagnosticCollector) {
	if !t.HasColumn(model.ColClientID) {
		return
	}

	affected, ids := duplicateKeys(t, model.ColClientID)
	if affected == 0 {
		return
	}

	diags.record(model.Diagnostic{
		Kind:            model.DuplicateKey,
		Table:           t.Name,
		Column:          model.ColClientID,
		AffectedRows:    affected,
		SampleClientIDs: ids,
		Message:         fmt.Sprintf("Duplicate client_id values found in %s", t.Name),
	})
}

// duplicateKeys returns the number of rows sharing a key with another row and
// the duplicated keys in ascending order
func duplicateKeys(t *model.Table, col string) (int, []int64) {
	counts := make(map[int64]int, t.Len())
	for _, row := range t.Rows {
		if id, ok := row[col].(int64); ok {
			counts[id]++
		}
	}

	affected := 0
	var ids []int64
	for id, n := range counts {
		if n > 1 {
			affected += n
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return affected, ids
}

// join performs the inner join of clients and memberships on client_id.
// Output follows client order, then membership order within a client.
func (p *Pipeline) join(clients, memberships *model.Table, diags *diagnosticCollector) *model.Table {
	merged := &model.Table{Name: model.MergedTable}

	var missing []string
	if !clients.HasColumn(model.ColClientID) {
		missing = append(missing, clients.Name)
	}
	if !memberships.HasColumn(model.ColClientID) {
		missing = append(missing, memberships.Name)
	}
	if len(missing) > 0 {
		for _, name := range missing {
			diags.record(model.Diagnostic{
				Kind:    model.JoinPrecondition,
				Table:   name,
				Column:  model.ColClientID,
				Message: "client_id missing, merged view left empty",
			})
		}
		return merged
	}

	leftNames, rightNames := joinColumnNames(clients.Columns, memberships.Columns)
	for _, col := range clients.Columns {
		merged.AddColumn(leftNames[col])
	}
	for _, col := range memberships.Columns {
		if col != model.ColClientID {
			merged.AddColumn(rightNames[col])
		}
	}

	byClient := make(map[int64][]model.Record)
	for _, row := range memberships.Rows {
		id, ok := row[model.ColClientID].(int64)
		if !ok {
			continue
		}
		byClient[id] = append(byClient[id], row)
	}

	expanded := 0
	var expandedIDs []int64
	reported := make(map[int64]bool)

	for _, client := range clients.Rows {
		id, ok := client[model.ColClientID].(int64)
		if !ok {
			continue
		}
		matches := byClient[id]
		if len(matches) > 1 && !reported[id] {
			reported[id] = true
			expanded += len(matches)
			expandedIDs = append(expandedIDs, id)
		}

		for _, membership := range matches {
			out := make(model.Record, len(merged.Columns))
			for _, col := range clients.Columns {
				out[leftNames[col]] = client[col]
			}
			for _, col := range memberships.Columns {
				if col != model.ColClientID {
					out[rightNames[col]] = membership[col]
				}
			}
			merged.Rows = append(merged.Rows, out)
		}
	}

	if expanded > 0 {
		sort.Slice(expandedIDs, func(i, j int) bool { return expandedIDs[i] < expandedIDs[j] })
		diags.record(model.Diagnostic{
			Kind:            model.CardinalityViolation,
			Table:           model.MergedTable,
			Column:          model.ColClientID,
			AffectedRows:    expanded,
			SampleClientIDs: expandedIDs,
			Message:         "Clients matched more than one membership, merged rows expanded",
		})
	}

	return merged
}

// joinColumnNames suffixes the non-key columns both sides share
func joinColumnNames(left, right []string) (map[string]string, map[string]string) {
	inRight := make(map[string]bool, len(right))
	for _, col := range right {
		inRight[col] = true
	}
	inLeft := make(map[string]bool, len(left))
	for _, col := range left {
		inLeft[col] = true
	}

	leftNames := make(map[string]string, len(left))
	for _, col := range left {
		if col != model.ColClientID && inRight[col] {
			leftNames[col] = col + leftJoinSuffix
		} else {
			leftNames[col] = col
		}
	}

	rightNames := make(map[string]string, len(right))
	for _, col := range right {
		if col != model.ColClientID && inLeft[col] {
			rightNames[col] = col + rightJoinSuffix
		} else {
			rightNames[col] = col
		}
	}
	return leftNames, rightNames
}

// deriveCountryCodes adds country_code from nationality. A failed match
// yields nil for that row only.
func (p *Pipeline) deriveCountryCodes(clients *model.Table, diags *diagnosticCollector) {
	if !clients.HasColumn(model.ColNationality) {
		diags.record(model.Diagnostic{
			Kind:    model.MissingColumn,
			Table:   clients.Name,
			Column:  model.ColNationality,
			Message: "nationality absent, country_code not derived",
		})
		return
	}

	clients.AddColumn(model.ColCountryCode)
	unmatched := 0
	for _, row := range clients.Rows {
		value := row[model.ColNationality]
		if p.converter.IsNull(value) {
			row[model.ColCountryCode] = nil
			continue
		}
		code, ok := p.matcher.Alpha3(p.converter.ToText(value))
		if !ok {
			unmatched++
			row[model.ColCountryCode] = nil
			continue
		}
		row[model.ColCountryCode] = code
	}

	if unmatched > 0 {
		p.logger.Debug("Nationalities without a country match",
			zap.Int("rows", unmatched))
	}
}

// deriveAges adds age in whole years, clipped to [0, 120]; missing birthdates
// give 0
func (p *Pipeline) deriveAges(clients *model.Table, now time.Time, diags *diagnosticCollector) {
	if !clients.HasColumn(model.ColBirthdate) {
		diags.record(model.Diagnostic{
			Kind:    model.MissingColumn,
			Table:   clients.Name,
			Column:  model.ColBirthdate,
			Message: "birthdate absent, age not derived",
		})
		return
	}

	clients.AddColumn(model.ColAge)
	for _, row := range clients.Rows {
		birthdate, ok := row[model.ColBirthdate].(time.Time)
		if !ok {
			row[model.ColAge] = 0
			continue
		}
		row[model.ColAge] = ageAt(birthdate, now)
	}
}

func ageAt(birthdate, now time.Time) int {
	days := math.Floor(now.Sub(birthdate).Hours() / 24)
	age := math.Floor(days / daysPerYear)
	switch {
	case age < 0:
		return 0
	case age > maxAge:
		return maxAge
	default:
		return int(age)
	}
}

// filterTransactions keeps rows whose amount is a finite number greater than
// zero. Surviving amounts are stored as float64.
func (p *Pipeline) filterTransactions(t *model.Table, diags *diagnosticCollector) *model.Table {
	if !t.HasColumn(model.ColAmount) {
		diags.record(model.Diagnostic{
			Kind:    model.MissingColumn,
			Table:   t.Name,
			Column:  model.ColAmount,
			Message: "amount absent, transactions not filtered",
		})
		return t
	}

	kept := t.Filter(func(row model.Record) bool {
		amount, err := p.converter.ToFloat(row[model.ColAmount])
		if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
			return false
		}
		row[model.ColAmount] = amount
		return true
	})

	if dropped := t.Len() - kept.Len(); dropped > 0 {
		diags.record(model.Diagnostic{
			Kind:         model.DroppedRows,
			Table:        t.Name,
			Column:       model.ColAmount,
			AffectedRows: dropped,
			Message:      "Transactions with non-positive, non-finite or non-numeric amount dropped",
		})
	}
	return kept
}
