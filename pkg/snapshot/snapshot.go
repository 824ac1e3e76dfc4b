// pkg/snapshot/snapshot.go
package snapshot

import (
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// Snapshot is one published pipeline output. It is never mutated after
// publication, so handlers share it read-only.
type Snapshot struct {
	ID       string           // Unique snapshot identifier
	LoadedAt time.Time        // When the load finished
	Data     *model.Processed // Processed tables and diagnostics
	Metrics  *RunMetrics      // Metrics of the run that built it
}

// NewSnapshot wraps a pipeline output with a fresh identifier
func NewSnapshot(data *model.Processed, metrics *RunMetrics, loadedAt time.Time) *Snapshot {
	return &Snapshot{
		ID:       uuid.New().String(),
		LoadedAt: loadedAt,
		Data:     data,
		Metrics:  metrics,
	}
}

// Age returns how old the snapshot is at the given instant
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.LoadedAt)
}

// Expired reports whether the snapshot is older than ttl
func (s *Snapshot) Expired(now time.Time, ttl time.Duration) bool {
	return s.Age(now) >= ttl
}
