// pkg/model/metadata.go
package model

import (
	"sort"
	"strings"
)

// Collection names as they are stored in the document store
const (
	ClientsTable      = "clients"
	MembershipsTable  = "memberships"
	TransactionsTable = "transactions"
	MergedTable       = "merged"
)

// Column names the pipeline and the dashboard rely on
const (
	ColID            = "_id"
	ColClientID      = "client_id"
	ColNationality   = "nationality"
	ColCountryCode   = "country_code"
	ColBirthdate     = "birthdate"
	ColAge           = "age"
	ColDateJoined    = "date_joined"
	ColFirstName     = "first_name"
	ColLastName      = "last_name"
	ColTier          = "tier"
	ColStatus        = "status"
	ColStartDate     = "start_date"
	ColEndDate       = "end_date"
	ColMembershipID  = "membership_id"
	ColAmount        = "amount"
	ColDate          = "date"
	ColTransactionID = "transaction_id"
)

// Record is one loosely typed row. A nil value is the missing marker.
type Record map[string]interface{}

// Table is an ordered set of records sharing a column set.
// A column exists for the table when it is listed in Columns, whether or
// not every row carries a value for it.
type Table struct {
	Name    string
	Columns []string
	Rows    []Record
}

// NewTable builds a table and derives its column set from the rows
// (declared columns first, then keys in row order, sorted within a row)
func NewTable(name string, rows []Record, declared ...string) *Table {
	t := &Table{Name: name, Rows: rows}
	for _, col := range declared {
		t.AddColumn(col)
	}
	for _, row := range rows {
		for _, col := range sortedKeys(row) {
			t.AddColumn(col)
		}
	}
	return t
}

// HasColumn reports whether the column is part of the table schema
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// AddColumn registers a column if it is not present yet
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Len returns the number of rows, zero for a nil table
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Clone returns a copy whose rows can be mutated without touching the original
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Record, len(t.Rows)),
	}
	for i, row := range t.Rows {
		cp := make(Record, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Filter returns a new table holding the rows for which keep returns true.
// Rows are shared, not copied.
func (t *Table) Filter(keep func(Record) bool) *Table {
	out := &Table{Name: t.Name, Columns: append([]string(nil), t.Columns...), Rows: make([]Record, 0, len(t.Rows))}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// RawTables are the three collections as returned by a loader
type RawTables struct {
	Clients      *Table
	Memberships  *Table
	Transactions *Table
}

// Processed is the pipeline output
type Processed struct {
	Clients      *Table
	Memberships  *Table
	Transactions *Table
	Merged       *Table
	Diagnostics  []Diagnostic
}

// TableByName resolves one of the four processed tables
func (p *Processed) TableByName(name string) (*Table, bool) {
	switch normalizeColumnName(name) {
	case ClientsTable:
		return p.Clients, true
	case MembershipsTable:
		return p.Memberships, true
	case TransactionsTable:
		return p.Transactions, true
	case MergedTable:
		return p.Merged, true
	}
	return nil, false
}

func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortedKeys(row Record) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
