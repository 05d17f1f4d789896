package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/ports"
)

// Local runs the ray-tracing program on this machine.
type Local struct {
	start   ports.ApplicationFactory
	post    ports.PostProcessor
	logger  *slog.Logger
	analyze bool

	mu      sync.Mutex
	session ports.Application

	running atomic.Bool
	done    atomic.Bool
}

// LocalOption configures a Local engine.
type LocalOption func(*Local)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// WithAnalyze asks the program to run its own analysis while tracing.
func WithAnalyze(analyze bool) LocalOption {
	return func(l *Local) {
		l.analyze = analyze
	}
}

// NewLocal creates a local engine starting program sessions with start and
// analyzing exports with post.
func NewLocal(start ports.ApplicationFactory, post ports.PostProcessor, opts ...LocalOption) *Local {
	l := &Local{
		start:  start,
		post:   post,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Setup starts the program session consumed by the next Simulate call.
func (l *Local) Setup(ctx context.Context) error {
	l.done.Store(false)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session != nil {
		return nil
	}
	app, err := l.start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	l.session = app
	return nil
}

// takeSession hands over the prepared session, starting one when Setup was skipped.
func (l *Local) takeSession(ctx context.Context) (ports.Application, error) {
	l.mu.Lock()
	app := l.session
	l.session = nil
	l.mu.Unlock()

	if app != nil {
		return app, nil
	}
	app, err := l.start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start application: %w", err)
	}
	return app, nil
}

// Simulate writes the scene to dir/tmp.rml, traces it, exports and analyzes
// every requested element, and leaves the result files in dir.
func (l *Local) Simulate(ctx context.Context, dir string, scene domain.Scene, exports []string) error {
	if !l.running.CompareAndSwap(false, true) {
		return domain.ErrSimulationInFlight
	}
	defer l.running.Store(false)

	exports = domain.DedupExports(exports)
	if len(exports) == 0 {
		return domain.ErrNoExports
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	scenePath := filepath.Join(dir, domain.SceneFileLocal)
	if err := scene.WriteFile(scenePath); err != nil {
		return err
	}

	app, err := l.takeSession(ctx)
	if err != nil {
		return err
	}
	if err := l.run(ctx, app, dir, scenePath, exports); err != nil {
		return err
	}
	if err := l.Analyze(dir, scenePath, exports); err != nil {
		return err
	}

	l.done.Store(true)
	l.logger.Info("simulation finished", "dir", dir, "exports", exports)
	return nil
}

// Trace starts a fresh program session and runs load, trace, export and save on
// scenePath, leaving the raw exports in dir. It does not post-process.
func (l *Local) Trace(ctx context.Context, dir, scenePath string, exports []string) error {
	app, err := l.start(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to start application: %w", domain.ErrSimulationFailed, err)
	}
	if err := l.run(ctx, app, dir, scenePath, exports); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSimulationFailed, err)
	}
	return nil
}

// Analyze post-processes the raw export of every element in dir.
func (l *Local) Analyze(dir, scenePath string, exports []string) error {
	for _, exp := range exports {
		if err := l.post.PostProcess(exp, domain.RawRaysKind, dir, "", scenePath); err != nil {
			return fmt.Errorf("post-processing %s: %w", exp, err)
		}
	}
	return nil
}

// IsDone reports whether the last simulation completed.
func (l *Local) IsDone() bool {
	return l.done.Load()
}

// run drives one program session to completion. The session is always terminated.
func (l *Local) run(ctx context.Context, app ports.Application, dir, scenePath string, exports []string) error {
	err := l.steps(ctx, app, dir, scenePath, exports)
	if qerr := app.Quit(ctx); qerr != nil && err == nil {
		err = fmt.Errorf("failed to quit application: %w", qerr)
	}
	return err
}

func (l *Local) steps(ctx context.Context, app ports.Application, dir, scenePath string, exports []string) error {
	l.logger.Debug("loading scene", "path", scenePath)
	if err := app.Load(ctx, scenePath); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if err := app.Trace(ctx, l.analyze); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	for _, exp := range exports {
		l.logger.Debug("exporting", "element", exp, "dir", dir)
		if err := app.Export(ctx, exp, domain.RawRaysKind, dir, ""); err != nil {
			return fmt.Errorf("export %s: %w", exp, err)
		}
	}
	if err := app.Save(ctx, scenePath); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
