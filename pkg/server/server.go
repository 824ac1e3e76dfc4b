// pkg/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/analytics"
	"github.com/David-Botos/customer-data-platform/pkg/chat"
	"github.com/David-Botos/customer-data-platform/pkg/connector"
	"github.com/David-Botos/customer-data-platform/pkg/export"
	"github.com/David-Botos/customer-data-platform/pkg/snapshot"
)

const shutdownTimeout = 10 * time.Second

// SnapshotSource supplies the snapshot every request is answered from
type SnapshotSource interface {
	Get(ctx context.Context) (*snapshot.Snapshot, error)
	Current() *snapshot.Snapshot
	Invalidate()
}

// DiagnosticsHistory reads diagnostics persisted by earlier runs
type DiagnosticsHistory interface {
	Recent(ctx context.Context, limit int) ([]connector.StoredDiagnostic, error)
}

// Assistant answers chat messages
type Assistant interface {
	Ask(ctx context.Context, sessionID, question string) (chat.Reply, error)
}

// Server serves the dashboard API
type Server struct {
	source    SnapshotSource
	names     analytics.CountryNamer
	assistant Assistant
	history   DiagnosticsHistory
	exporter  *export.Exporter
	logger    *zap.Logger
	clock     func() time.Time
	release   bool
}

// Option configures a Server
type Option func(*Server)

// WithAssistant enables the chat endpoint
func WithAssistant(a Assistant) Option {
	return func(s *Server) {
		s.assistant = a
	}
}

// WithHistory enables the persisted diagnostics endpoint
func WithHistory(h DiagnosticsHistory) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithExporter overrides the XLSX exporter
func WithExporter(e *export.Exporter) Option {
	return func(s *Server) {
		if e != nil {
			s.exporter = e
		}
	}
}

// WithClock overrides the time source used for "today"
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithReleaseMode switches gin to release mode
func WithReleaseMode(release bool) Option {
	return func(s *Server) {
		s.release = release
	}
}

// NewServer creates the API server
func NewServer(source SnapshotSource, names analytics.CountryNamer, logger *zap.Logger, opts ...Option) (*Server, error) {
	if source == nil {
		return nil, errors.New("snapshot source cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		source:   source,
		names:    names,
		exporter: export.NewExporter(nil),
		logger:   logger.Named("server"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	if s.release {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(requestLogger(s.logger))
	r.Use(gin.Recovery())
	s.initRoutes(r)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIP", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		default:
			logger.Debug("Request served", fields...)
		}
	}
}
