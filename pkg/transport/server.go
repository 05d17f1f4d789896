package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/internal/metrics"
	"github.com/aretw0/raysim/pkg/adapters/memory"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/ports"
	"github.com/aretw0/raysim/pkg/protocol"
	"github.com/google/uuid"
)

// Simulator is the server side of a simulation: tracing and post-processing are
// separate steps so their failures map to distinct tokens.
type Simulator interface {
	// Trace runs the ray-tracer on scenePath and leaves raw exports in dir.
	Trace(ctx context.Context, dir, scenePath string, exports []string) error
	// Analyze post-processes the raw exports in dir into result files.
	Analyze(dir, scenePath string, exports []string) error
}

// Server accepts simulation requests, one per connection.
type Server struct {
	root      string
	simulator Simulator
	codec     protocol.Codec
	logger    *slog.Logger
	metrics   *metrics.Server
	ledger    ports.RunLedger
	locker    ports.Locker
	lockTTL   time.Duration
	isolate   bool

	wg sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerCodec selects the wire codec; both ends must agree.
func WithServerCodec(codec protocol.Codec) ServerOption {
	return func(s *Server) {
		s.codec = codec
	}
}

// WithServerLogger sets the server logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the collectors updated per request.
func WithMetrics(m *metrics.Server) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLedger records every request in ledger.
func WithLedger(ledger ports.RunLedger) ServerOption {
	return func(s *Server) {
		s.ledger = ledger
	}
}

// WithLocker serializes simulations that share the root directory.
func WithLocker(locker ports.Locker, ttl time.Duration) ServerOption {
	return func(s *Server) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithIsolation gives every connection its own working directory under the root,
// so concurrent requests never share files.
func WithIsolation(isolate bool) ServerOption {
	return func(s *Server) {
		s.isolate = isolate
	}
}

// NewServer creates a server working under root.
func NewServer(root string, simulator Simulator, opts ...ServerOption) *Server {
	codec, _ := protocol.NewCodec(protocol.FramingDelimited)
	s := &Server{
		root:      root,
		simulator: simulator,
		codec:     codec,
		logger:    logging.NewNop(),
		metrics:   metrics.NewServer(nil),
		ledger:    memory.NewLedger(),
		locker:    memory.NewLocker(),
		lockTTL:   time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger returns the run ledger the server records into.
func (s *Server) Ledger() ports.RunLedger {
	return s.ledger
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for the
// connections in progress. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to create server directory: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	s.logger.Info("Server started.", "addr", ln.Addr().String(), "dir", s.root, "framing", s.codec.Framing())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Server stopped.")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.metrics.Connections.Inc()
	defer s.metrics.Connections.Dec()

	peer := conn.RemoteAddr().String()
	logger := s.logger.With("peer", peer)
	logger.Info("Connection made")

	record := domain.RunRecord{
		ID:      uuid.NewString(),
		Peer:    peer,
		Outcome: domain.OutcomeRunning,
		Started: time.Now().UTC(),
	}

	files, err := s.exchange(ctx, conn, logger, &record)
	record.Finished = time.Now().UTC()
	record.Files = files
	if err != nil {
		record.Error = err.Error()
	}
	s.metrics.Requests.WithLabelValues(string(record.Outcome)).Inc()
	s.record(ctx, logger, record)

	logger.Info("Connection lost.", "run", record.ID, "outcome", record.Outcome)
}

// exchange serves one request and returns the number of files streamed back.
func (s *Server) exchange(ctx context.Context, conn net.Conn, logger *slog.Logger, record *domain.RunRecord) (int, error) {
	req, err := s.codec.ReadRequest(conn)
	if err != nil {
		record.Outcome = domain.OutcomeProtocolError
		logger.Warn("Invalid request", "error", err)
		return 0, err
	}
	exports := domain.DedupExports(req.Exports)
	record.Exports = exports
	record.Scene = domain.Scene{Document: req.Scene}.Digest()
	logger.Info("Data Received", "exports", exports, "bytes", len(req.Scene))

	dir, release, err := s.workDir(ctx)
	if err != nil {
		record.Outcome = domain.OutcomeSimulationError
		return 0, s.failure(conn, logger, err)
	}
	defer release()
	record.Dir = dir
	s.record(ctx, logger, *record)

	if len(exports) == 0 {
		record.Outcome = domain.OutcomeSimulationError
		return 0, s.failure(conn, logger, domain.ErrNoExports)
	}

	scenePath := filepath.Join(dir, domain.SceneFileServer)
	if err := (domain.Scene{Document: req.Scene}).WriteFile(scenePath); err != nil {
		record.Outcome = domain.OutcomeSimulationError
		return 0, s.failure(conn, logger, err)
	}
	logger.Info("Data saved", "path", scenePath)

	started := time.Now()
	logger.Info("Starting Simulations")
	if err := s.simulator.Trace(ctx, dir, scenePath, exports); err != nil {
		record.Outcome = domain.OutcomeSimulationError
		return 0, s.failure(conn, logger, fmt.Errorf("%w: %w", domain.ErrSimulationFailed, err))
	}
	logger.Info("Simulations done")

	logger.Info("Starting to Postprocess Data")
	if err := s.simulator.Analyze(dir, scenePath, exports); err != nil {
		record.Outcome = domain.OutcomePostprocessError
		return 0, s.failure(conn, logger, fmt.Errorf("%w: %w", domain.ErrInsufficientRays, err))
	}
	s.metrics.Simulation.Observe(time.Since(started).Seconds())
	logger.Info("Data Postprocessed")

	files, err := s.sendResults(conn, dir, exports)
	if err != nil {
		// The client may already have given up; nothing more can be sent.
		record.Outcome = domain.OutcomeProtocolError
		logger.Error("Sending results failed", "error", err)
		return files, err
	}
	record.Outcome = domain.OutcomeSuccess
	logger.Info("Data sent", "files", files)
	return files, nil
}

// workDir returns the directory for one request and the function releasing it.
func (s *Server) workDir(ctx context.Context) (string, func(), error) {
	if s.isolate {
		dir, err := os.MkdirTemp(s.root, "conn-")
		if err != nil {
			return "", nil, fmt.Errorf("failed to create connection directory: %w", err)
		}
		return dir, func() { _ = os.RemoveAll(dir) }, nil
	}

	unlock, err := s.locker.Lock(ctx, s.root, s.lockTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to lock %s: %w", s.root, err)
	}
	return s.root, func() { _ = unlock(context.WithoutCancel(ctx)) }, nil
}

func (s *Server) sendResults(conn net.Conn, dir string, exports []string) (int, error) {
	rw := s.codec.NewResponseWriter(conn)
	defer func() { s.metrics.BytesSent.Add(float64(rw.Written())) }()

	names := make([]string, 0, len(exports)+1)
	names = append(names, domain.SceneFileServer)
	for _, exp := range exports {
		names = append(names, domain.AnalyzedFileName(exp))
	}

	for i, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return i, fmt.Errorf("reading %s: %w", name, err)
		}
		if err := rw.WriteFile(name, content); err != nil {
			return i, err
		}
	}
	return len(names), rw.Close()
}

// failure sends the token matching err in place of the stream and returns err.
func (s *Server) failure(conn net.Conn, logger *slog.Logger, err error) error {
	token := protocol.TokenFor(err)
	logger.Warn("Simulation request failed", "token", token, "error", err)
	if werr := s.codec.WriteFailure(conn, token); werr != nil {
		logger.Error("Failed to send failure token", "error", werr)
	}
	return err
}

func (s *Server) record(ctx context.Context, logger *slog.Logger, record domain.RunRecord) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Put(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn("Failed to record run", "run", record.ID, "error", err)
	}
}
