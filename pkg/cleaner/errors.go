// pkg/cleaner/errors.go
package cleaner

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// ErrMalformedInput is the only fatal pipeline condition: an input table is
// absent or structurally unusable
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError names the input table that could not be processed
type MalformedInputError struct {
	Table  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %s: %s", e.Table, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedInput) hold
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

const maxSampleIDs = 10

// diagnosticCollector accumulates the non-fatal findings of one run and
// logs each one as it is recorded
type diagnosticCollector struct {
	logger      *zap.Logger
	now         time.Time
	diagnostics []model.Diagnostic
	counts      map[model.DiagnosticKind]int
}

func newDiagnosticCollector(logger *zap.Logger, now time.Time) *diagnosticCollector {
	return &diagnosticCollector{
		logger: logger,
		now:    now,
		counts: make(map[model.DiagnosticKind]int),
	}
}

// record stores a diagnostic. Sample ids are capped.
func (c *diagnosticCollector) record(d model.Diagnostic) {
	if len(d.SampleClientIDs) > maxSampleIDs {
		d.SampleClientIDs = d.SampleClientIDs[:maxSampleIDs]
	}
	d.EmittedAt = c.now
	c.diagnostics = append(c.diagnostics, d)
	c.counts[d.Kind]++

	fields := []zap.Field{
		zap.String("kind", d.Kind.String()),
		zap.String("table", d.Table),
		zap.Int("affectedRows", d.AffectedRows),
	}
	if d.Column != "" {
		fields = append(fields, zap.String("column", d.Column))
	}
	if len(d.SampleClientIDs) > 0 {
		fields = append(fields, zap.Int64s("sampleClientIDs", d.SampleClientIDs))
	}

	switch d.Kind {
	case model.MissingColumn, model.DroppedRows:
		c.logger.Info(d.Message, fields...)
	default:
		c.logger.Warn(d.Message, fields...)
	}
}

func (c *diagnosticCollector) count(kind model.DiagnosticKind) int {
	return c.counts[kind]
}

func (c *diagnosticCollector) all() []model.Diagnostic {
	return c.diagnostics
}
