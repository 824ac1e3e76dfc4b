// pkg/snapshot/store.go
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// Loader fetches the raw collections
type Loader interface {
	Load(ctx context.Context) (model.RawTables, error)
}

// Processor turns raw collections into processed tables
type Processor interface {
	Process(raw model.RawTables) (*model.Processed, error)
}

// DiagnosticsSink receives the diagnostics of every published snapshot
type DiagnosticsSink interface {
	Record(ctx context.Context, snapshotID string, diags []model.Diagnostic) error
}

// Options configures a Store
type Options struct {
	TTL         time.Duration
	LoadTimeout time.Duration
	Sink        DiagnosticsSink
	Clock       func() time.Time
}

const reloadKey = "snapshot"

// Store caches the current snapshot and rebuilds it when it expires
type Store struct {
	mu        sync.RWMutex
	current   *Snapshot
	gen       uint64
	group     singleflight.Group
	loader    Loader
	processor Processor
	opts      Options
	logger    *zap.Logger
}

// NewStore creates a snapshot store
func NewStore(loader Loader, processor Processor, logger *zap.Logger, opts Options) (*Store, error) {
	if loader == nil {
		return nil, errors.New("loader cannot be nil")
	}
	if processor == nil {
		return nil, errors.New("processor cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 60 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Store{
		loader:    loader,
		processor: processor,
		opts:      opts,
		logger:    logger.Named("snapshot"),
	}, nil
}

// Get returns the current snapshot, rebuilding it when missing or expired.
// Concurrent callers share one rebuild.
func (s *Store) Get(ctx context.Context) (*Snapshot, error) {
	if snap := s.fresh(); snap != nil {
		return snap, nil
	}

	ch := s.group.DoChan(reloadKey, func() (interface{}, error) {
		if snap := s.fresh(); snap != nil {
			return snap, nil
		}
		return s.reload(ctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Current returns the last published snapshot without loading, or nil
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Invalidate drops the current snapshot so the next Get rebuilds it. A
// reload already in flight is detached: its callers still get its result but
// it is not published, and the next Get starts a new reload.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.group.Forget(reloadKey)

	if s.current != nil {
		s.logger.Info("Snapshot invalidated", zap.String("snapshotID", s.current.ID))
	}
	s.current = nil
}

func (s *Store) fresh() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil || s.current.Expired(s.opts.Clock(), s.opts.TTL) {
		return nil
	}
	return s.current
}

// reload runs one load and preprocess cycle and publishes the result. The
// caller's cancellation does not abort a reload other callers are waiting on.
func (s *Store) reload(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.LoadTimeout)
	defer cancel()

	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	metrics := NewRunMetrics(s.logger)
	defer metrics.Complete()

	loadStart := time.Now()
	raw, err := s.loader.Load(ctx)
	if err != nil {
		metrics.RecordFailure(err)
		s.logger.Error("Failed to load raw collections", zap.Error(err))
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	metrics.RecordLoad(raw, time.Since(loadStart))

	processStart := time.Now()
	out, err := s.processor.Process(raw)
	if err != nil {
		metrics.RecordFailure(err)
		s.logger.Error("Failed to preprocess data", zap.Error(err))
		return nil, fmt.Errorf("failed to preprocess data: %w", err)
	}
	metrics.RecordProcess(out, time.Since(processStart))

	snap := NewSnapshot(out, metrics, s.opts.Clock())

	s.mu.Lock()
	published := s.gen == gen
	if published {
		s.current = snap
	}
	s.mu.Unlock()

	if !published {
		s.logger.Info("Snapshot invalidated during reload, not published",
			zap.String("snapshotID", snap.ID))
		return snap, nil
	}

	s.logger.Info("Published snapshot",
		zap.String("snapshotID", snap.ID),
		zap.Int("diagnostics", len(out.Diagnostics)))

	if s.opts.Sink != nil && len(out.Diagnostics) > 0 {
		if err := s.opts.Sink.Record(ctx, snap.ID, out.Diagnostics); err != nil {
			// The snapshot stays published when the sink fails
			s.logger.Warn("Failed to persist diagnostics",
				zap.String("snapshotID", snap.ID),
				zap.Error(err))
		}
	}

	return snap, nil
}
