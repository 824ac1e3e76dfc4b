// pkg/model/diagnostic.go
package model

import (
	"fmt"
	"time"
)

// DiagnosticKind classifies a non-fatal pipeline finding
type DiagnosticKind int

const (
	// MissingColumn: an optional column is absent, the dependent step was skipped
	MissingColumn DiagnosticKind = iota
	// UnparseableDate: date values that could not be read were set to missing
	UnparseableDate
	// DuplicateKey: client_id occurs more than once in a table
	DuplicateKey
	// JoinPrecondition: one side of the join lacks client_id, merged view is empty
	JoinPrecondition
	// CardinalityViolation: a client matched more than one membership
	CardinalityViolation
	// DefaultedIdentifier: client_id had no digits and was set to 0
	DefaultedIdentifier
	// DroppedRows: rows removed by the transaction validity filter
	DroppedRows
)

// String returns the wire name of the kind
func (k DiagnosticKind) String() string {
	switch k {
	case MissingColumn:
		return "missing_column"
	case UnparseableDate:
		return "unparseable_date"
	case DuplicateKey:
		return "duplicate_key"
	case JoinPrecondition:
		return "join_precondition"
	case CardinalityViolation:
		return "cardinality_violation"
	case DefaultedIdentifier:
		return "defaulted_identifier"
	case DroppedRows:
		return "dropped_rows"
	default:
		return "unknown"
	}
}

// MarshalText lets the kind render by name in JSON
func (k DiagnosticKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Diagnostic is a non-fatal observation emitted while preprocessing
type Diagnostic struct {
	Kind            DiagnosticKind `json:"kind"`
	Table           string         `json:"table"`
	Column          string         `json:"column,omitempty"`
	AffectedRows    int            `json:"affected_rows"`
	SampleClientIDs []int64        `json:"sample_client_ids,omitempty"`
	Message         string         `json:"message"`
	EmittedAt       time.Time      `json:"emitted_at"`
}

// String renders the diagnostic for logs and reports
func (d Diagnostic) String() string {
	if d.Column != "" {
		return fmt.Sprintf("[%s] %s.%s: %s (%d rows)", d.Kind, d.Table, d.Column, d.Message, d.AffectedRows)
	}
	return fmt.Sprintf("[%s] %s: %s (%d rows)", d.Kind, d.Table, d.Message, d.AffectedRows)
}

// CountByKind tallies diagnostics per kind name
func CountByKind(diags []Diagnostic) map[string]int {
	counts := make(map[string]int)
	for _, d := range diags {
		counts[d.Kind.String()]++
	}
	return counts
}
