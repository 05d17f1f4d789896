package detector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/ports"
)

// Trigger is the read-only device that runs a simulation for the pending exports.
type Trigger struct {
	name   string
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	scene   domain.Scene
	engine  ports.Engine
	exports []string
	status  *domain.Status
}

// TriggerOption configures a Trigger.
type TriggerOption func(*Trigger)

// WithTriggerLogger sets the device logger.
func WithTriggerLogger(logger *slog.Logger) TriggerOption {
	return func(t *Trigger) {
		t.logger = logger
	}
}

// NewTrigger creates a trigger device simulating scene with engine in dir.
// The directory is created if missing.
func NewTrigger(name, dir string, scene domain.Scene, engine ports.Engine, opts ...TriggerOption) (*Trigger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temporary folder: %w", err)
	}
	t := &Trigger{
		name:   name,
		dir:    dir,
		scene:  scene,
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Trigger) Name() string { return t.name }

// IsSimulationTarget marks the trigger as part of the simulation.
func (t *Trigger) IsSimulationTarget() bool { return true }

// Dir returns the working directory shared with the detectors.
func (t *Trigger) Dir() string { return t.dir }

// SetEngine selects the engine used by the next Trigger call.
func (t *Trigger) SetEngine(engine ports.Engine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine = engine
}

// Engine returns the configured engine.
func (t *Trigger) Engine() ports.Engine {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine
}

// SetScene replaces the scene simulated by the next Trigger call.
func (t *Trigger) SetScene(scene domain.Scene) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scene = scene
}

// UpdateExports replaces the pending export list.
func (t *Trigger) UpdateExports(names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exports = slices.Clone(names)
}

// Exports returns the pending export list.
func (t *Trigger) Exports() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.exports)
}

// Setup prepares the engine for the next simulation and returns it, so that
// detectors can be bound to the same engine.
func (t *Trigger) Setup(ctx context.Context) (ports.Engine, error) {
	engine := t.Engine()
	if engine == nil {
		return nil, fmt.Errorf("trigger %s has no engine", t.name)
	}
	if err := engine.Setup(ctx); err != nil {
		return nil, fmt.Errorf("engine setup: %w", err)
	}
	return engine, nil
}

// Trigger deduplicates the pending exports and starts the simulation in the
// background. The returned status resolves with the simulation outcome; cancelling
// it cancels the simulation.
func (t *Trigger) Trigger() *domain.Status {
	t.mu.Lock()
	t.exports = domain.DedupExports(t.exports)
	exports := slices.Clone(t.exports)
	engine, scene := t.engine, t.scene
	status, ctx := domain.NewStatusWithContext(context.Background())
	t.status = status
	t.mu.Unlock()

	if engine == nil {
		status.Finish(fmt.Errorf("trigger %s has no engine", t.name))
		return status
	}

	t.logger.Info("simulation triggered", "device", t.name, "exports", exports, "dir", t.dir)
	go func() {
		err := engine.Simulate(ctx, t.dir, scene, exports)
		if err != nil {
			t.logger.Error("simulation failed", "device", t.name, "error", err)
		} else {
			t.logger.Info("simulation complete", "device", t.name)
		}
		status.Finish(err)
	}()
	return status
}

// Status returns the status of the last trigger, or nil before the first one.
func (t *Trigger) Status() *domain.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// DeleteTemporaryFolder removes the working directory. A missing directory is not an error.
func (t *Trigger) DeleteTemporaryFolder() error {
	if err := os.RemoveAll(t.dir); err != nil {
		return fmt.Errorf("failed to delete temporary folder: %w", err)
	}
	return nil
}
