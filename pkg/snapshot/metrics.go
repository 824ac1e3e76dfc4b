// pkg/snapshot/metrics.go
package snapshot

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// TableMetrics tracks row counts for one table of a run
type TableMetrics struct {
	Name     string `json:"name"`
	RowsRead int    `json:"rowsRead"`
	RowsKept int    `json:"rowsKept"`
}

// RowsDropped returns how many rows the pipeline removed
func (tm TableMetrics) RowsDropped() int {
	if tm.RowsKept > tm.RowsRead {
		return 0
	}
	return tm.RowsRead - tm.RowsKept
}

// RunMetrics tracks one load and preprocess run
type RunMetrics struct {
	mu               sync.Mutex
	logger           *zap.Logger
	StartTime        time.Time
	EndTime          time.Time
	LoadDuration     time.Duration
	ProcessDuration  time.Duration
	Tables           map[string]*TableMetrics
	DiagnosticCounts map[string]int
	PeakMemoryUsage  uint64
	Failed           bool
	FailureReason    string
}

// NewRunMetrics creates a new RunMetrics instance
func NewRunMetrics(logger *zap.Logger) *RunMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunMetrics{
		logger:           logger,
		StartTime:        time.Now(),
		Tables:           make(map[string]*TableMetrics),
		DiagnosticCounts: make(map[string]int),
	}
}

// RecordLoad stores the load duration and the raw row counts
func (rm *RunMetrics) RecordLoad(raw model.RawTables, d time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.LoadDuration = d
	for _, t := range []*model.Table{raw.Clients, raw.Memberships, raw.Transactions} {
		if t == nil {
			continue
		}
		rm.table(t.Name).RowsRead = t.Len()
	}

	rm.logger.Info("Raw collections loaded",
		zap.Duration("duration", d),
		zap.Int("clients", raw.Clients.Len()),
		zap.Int("memberships", raw.Memberships.Len()),
		zap.Int("transactions", raw.Transactions.Len()))
}

// RecordProcess stores the process duration, kept row counts and diagnostics
func (rm *RunMetrics) RecordProcess(out *model.Processed, d time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.ProcessDuration = d
	rm.table(model.ClientsTable).RowsKept = out.Clients.Len()
	rm.table(model.MembershipsTable).RowsKept = out.Memberships.Len()
	rm.table(model.TransactionsTable).RowsKept = out.Transactions.Len()
	rm.table(model.MergedTable).RowsKept = out.Merged.Len()

	for kind, n := range model.CountByKind(out.Diagnostics) {
		rm.DiagnosticCounts[kind] += n
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	if memStats.Alloc > rm.PeakMemoryUsage {
		rm.PeakMemoryUsage = memStats.Alloc
	}
}

// RecordFailure marks the run as failed
func (rm *RunMetrics) RecordFailure(err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.Failed = true
	rm.FailureReason = err.Error()
}

// Complete marks the run as finished
func (rm *RunMetrics) Complete() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.EndTime = time.Now()
	rm.logger.Info("Snapshot run completed",
		zap.Duration("totalDuration", rm.duration()),
		zap.Duration("load", rm.LoadDuration),
		zap.Duration("process", rm.ProcessDuration),
		zap.Bool("failed", rm.Failed),
		zap.Int("diagnostics", rm.totalDiagnostics()))
}

// Duration returns the total duration of the run
func (rm *RunMetrics) Duration() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.duration()
}

func (rm *RunMetrics) duration() time.Duration {
	if rm.EndTime.IsZero() {
		return time.Since(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

func (rm *RunMetrics) table(name string) *TableMetrics {
	tm, ok := rm.Tables[name]
	if !ok {
		tm = &TableMetrics{Name: name}
		rm.Tables[name] = tm
	}
	return tm
}

func (rm *RunMetrics) totalDiagnostics() int {
	total := 0
	for _, n := range rm.DiagnosticCounts {
		total += n
	}
	return total
}

// TableSummary returns a copy of the per-table metrics ordered by name
func (rm *RunMetrics) TableSummary() []TableMetrics {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	out := make([]TableMetrics, 0, len(rm.Tables))
	for _, tm := range rm.Tables {
		out = append(out, *tm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// GenerateReport creates a plain text report of the run
func (rm *RunMetrics) GenerateReport() string {
	tables := rm.TableSummary()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, `
Snapshot Run Report
===================
Duration:                %s
Load:                    %s
Process:                 %s
Peak Memory Usage:       %s
`,
		formatDuration(rm.duration()),
		formatDuration(rm.LoadDuration),
		formatDuration(rm.ProcessDuration),
		humanize.Bytes(rm.PeakMemoryUsage),
	)
	if rm.Failed {
		fmt.Fprintf(&b, "Failed:                  %s\n", rm.FailureReason)
	}

	b.WriteString("\nTables\n------\n")
	for _, tm := range tables {
		fmt.Fprintf(&b, "- %s: %s read, %s kept, %s dropped\n",
			tm.Name,
			humanize.Comma(int64(tm.RowsRead)),
			humanize.Comma(int64(tm.RowsKept)),
			humanize.Comma(int64(tm.RowsDropped())))
	}

	if len(rm.DiagnosticCounts) > 0 {
		b.WriteString("\nDiagnostics\n-----------\n")
		kinds := make([]string, 0, len(rm.DiagnosticCounts))
		for kind := range rm.DiagnosticCounts {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(&b, "- %s: %d\n", kind, rm.DiagnosticCounts[kind])
		}
	}

	return b.String()
}

// MarshalJSON serializes the metrics under the lock
func (rm *RunMetrics) MarshalJSON() ([]byte, error) {
	tables := rm.TableSummary()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	return json.Marshal(struct {
		StartTime        time.Time      `json:"startTime"`
		Duration         string         `json:"duration"`
		LoadDuration     string         `json:"loadDuration"`
		ProcessDuration  string         `json:"processDuration"`
		Tables           []TableMetrics `json:"tables"`
		DiagnosticCounts map[string]int `json:"diagnosticCounts"`
		PeakMemoryUsage  uint64         `json:"peakMemoryUsage"`
		Failed           bool           `json:"failed"`
		FailureReason    string         `json:"failureReason,omitempty"`
	}{
		StartTime:        rm.StartTime,
		Duration:         formatDuration(rm.duration()),
		LoadDuration:     formatDuration(rm.LoadDuration),
		ProcessDuration:  formatDuration(rm.ProcessDuration),
		Tables:           tables,
		DiagnosticCounts: rm.DiagnosticCounts,
		PeakMemoryUsage:  rm.PeakMemoryUsage,
		Failed:           rm.Failed,
		FailureReason:    rm.FailureReason,
	})
}
