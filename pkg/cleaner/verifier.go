// pkg/cleaner/verifier.go
package cleaner

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// IntegrityIssue represents a broken output invariant
type IntegrityIssue struct {
	IssueType    string `json:"issue_type"`
	Description  string `json:"description"`
	TableName    string `json:"table"`
	ColumnName   string `json:"column"`
	AffectedRows int    `json:"affected_rows"`
}

// VerificationReport contains the results of checking a processed output
type VerificationReport struct {
	VerificationTime time.Time        `json:"verification_time"`
	RowCounts        map[string]int   `json:"row_counts"`
	IntegrityIssues  []IntegrityIssue `json:"integrity_issues"`
	Duration         time.Duration    `json:"duration"`
}

// Passed reports whether no invariant was broken
func (r *VerificationReport) Passed() bool {
	return len(r.IntegrityIssues) == 0
}

// Verifier re-checks the invariants a processed output must hold
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger.Named("verifier")}
}

// Verify runs every check and returns the report
func (v *Verifier) Verify(out *model.Processed) *VerificationReport {
	startTime := time.Now()
	report := &VerificationReport{
		VerificationTime: startTime,
		RowCounts:        make(map[string]int),
	}
	if out == nil {
		report.IntegrityIssues = append(report.IntegrityIssues, IntegrityIssue{
			IssueType:   "missing_output",
			Description: "processed output is nil",
		})
		return report
	}

	tables := []*model.Table{out.Clients, out.Memberships, out.Transactions, out.Merged}
	for _, t := range tables {
		if t == nil {
			continue
		}
		report.RowCounts[t.Name] = t.Len()
		report.add(checkClientIDs(t))
		for _, col := range dateColumns[t.Name] {
			report.add(checkDates(t, col))
		}
	}

	report.add(checkAmounts(out.Transactions))
	report.add(checkAges(out.Clients))
	report.add(checkCountryCodes(out.Clients))
	report.add(checkMergedMembership(out))

	report.Duration = time.Since(startTime)

	v.logger.Info("Verification report completed",
		zap.Duration("duration", report.Duration),
		zap.Int("issues", len(report.IntegrityIssues)))

	return report
}

func (r *VerificationReport) add(issue *IntegrityIssue) {
	if issue != nil {
		r.IntegrityIssues = append(r.IntegrityIssues, *issue)
	}
}

// checkClientIDs verifies client_id is a non-negative int64 on every row
func checkClientIDs(t *model.Table) *IntegrityIssue {
	if !t.HasColumn(model.ColClientID) {
		return nil
	}
	bad := 0
	for _, row := range t.Rows {
		id, ok := row[model.ColClientID].(int64)
		if !ok || id < 0 {
			bad++
		}
	}
	return issueIf(bad, "invalid_client_id", t.Name, model.ColClientID,
		"client_id must be a non-negative integer")
}

// checkDates verifies a date column holds UTC times or nil only
func checkDates(t *model.Table, col string) *IntegrityIssue {
	if !t.HasColumn(col) {
		return nil
	}
	bad := 0
	for _, row := range t.Rows {
		switch v := row[col].(type) {
		case nil:
		case time.Time:
			if v.Location() != time.UTC {
				bad++
			}
		default:
			bad++
		}
	}
	return issueIf(bad, "invalid_date", t.Name, col, "date values must be UTC times or missing")
}

// checkAmounts verifies only strictly positive amounts survived
func checkAmounts(t *model.Table) *IntegrityIssue {
	if t == nil || !t.HasColumn(model.ColAmount) {
		return nil
	}
	bad := 0
	for _, row := range t.Rows {
		amount, ok := row[model.ColAmount].(float64)
		if !ok || !(amount > 0) {
			bad++
		}
	}
	return issueIf(bad, "non_positive_amount", t.Name, model.ColAmount, "amount must be greater than zero")
}

// checkAges verifies age is present exactly when birthdate is, within [0, 120]
func checkAges(t *model.Table) *IntegrityIssue {
	if t == nil {
		return nil
	}
	if t.HasColumn(model.ColAge) != t.HasColumn(model.ColBirthdate) {
		return &IntegrityIssue{
			IssueType:    "age_presence",
			Description:  "age must exist exactly when birthdate exists",
			TableName:    t.Name,
			ColumnName:   model.ColAge,
			AffectedRows: t.Len(),
		}
	}
	if !t.HasColumn(model.ColAge) {
		return nil
	}
	bad := 0
	for _, row := range t.Rows {
		age, ok := row[model.ColAge].(int)
		if !ok || age < 0 || age > maxAge {
			bad++
		}
	}
	return issueIf(bad, "age_out_of_range", t.Name, model.ColAge, fmt.Sprintf("age must be within [0, %d]", maxAge))
}

// checkCountryCodes verifies derived codes are nil or three upper-case letters
func checkCountryCodes(t *model.Table) *IntegrityIssue {
	if t == nil || !t.HasColumn(model.ColCountryCode) {
		return nil
	}
	bad := 0
	for _, row := range t.Rows {
		switch v := row[model.ColCountryCode].(type) {
		case nil:
		case string:
			if !isAlpha3(v) {
				bad++
			}
		default:
			bad++
		}
	}
	return issueIf(bad, "invalid_country_code", t.Name, model.ColCountryCode, "country_code must be ISO alpha-3 or missing")
}

// checkMergedMembership verifies every merged row belongs to a client that
// has at least one membership
func checkMergedMembership(out *model.Processed) *IntegrityIssue {
	if out.Merged == nil || out.Merged.Len() == 0 {
		return nil
	}
	clientIDs := idSet(out.Clients)
	membershipIDs := idSet(out.Memberships)

	bad := 0
	for _, row := range out.Merged.Rows {
		id, ok := row[model.ColClientID].(int64)
		if !ok || !clientIDs[id] || !membershipIDs[id] {
			bad++
		}
	}
	return issueIf(bad, "orphan_merged_row", model.MergedTable, model.ColClientID,
		"merged rows must match both a client and a membership")
}

func idSet(t *model.Table) map[int64]bool {
	set := make(map[int64]bool, t.Len())
	if t == nil {
		return set
	}
	for _, row := range t.Rows {
		if id, ok := row[model.ColClientID].(int64); ok {
			set[id] = true
		}
	}
	return set
}

func isAlpha3(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func issueIf(affected int, issueType, table, column, description string) *IntegrityIssue {
	if affected == 0 {
		return nil
	}
	return &IntegrityIssue{
		IssueType:    issueType,
		Description:  description,
		TableName:    table,
		ColumnName:   column,
		AffectedRows: affected,
	}
}
