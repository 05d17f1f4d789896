package raysim

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/pkg/detector"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/interceptor"
	"github.com/aretw0/raysim/pkg/ports"
	"github.com/aretw0/raysim/pkg/runner"
)

// TriggerName is the device name of the trigger device.
const TriggerName = "raysim_trigger"

// Simulation is the high-level entry point: a trigger device, one simulated
// detector per export and the interceptor wiring them into plans.
type Simulation struct {
	trigger     *detector.Trigger
	detectors   []domain.Device
	interceptor *interceptor.Interceptor
	logger      *slog.Logger
	onEvent     func(runner.Event)
}

// Option defines a functional option for configuring a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger shared by the trigger, interceptor and runner.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulation) {
		s.logger = logger
	}
}

// WithEventHandler observes every event saved by Count and Run.
func WithEventHandler(fn func(runner.Event)) Option {
	return func(s *Simulation) {
		s.onEvent = fn
	}
}

// New creates a simulation of scene with eng, working in dir, with one detector per export.
func New(dir string, scene domain.Scene, eng ports.Engine, exports []string, opts ...Option) (*Simulation, error) {
	exports = domain.DedupExports(exports)
	if len(exports) == 0 {
		return nil, domain.ErrNoExports
	}
	if eng == nil {
		return nil, errors.New("raysim: engine is required")
	}

	s := &Simulation{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	trig, err := detector.NewTrigger(TriggerName, dir, scene, eng, detector.WithTriggerLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.trigger = trig
	for _, exp := range exports {
		s.detectors = append(s.detectors, detector.NewSimulated(exp, dir))
	}
	s.interceptor = interceptor.New(trig, s.detectors, interceptor.WithLogger(s.logger))
	return s, nil
}

// Trigger returns the trigger device.
func (s *Simulation) Trigger() *detector.Trigger { return s.trigger }

// Detectors returns the simulated detectors, in export order.
func (s *Simulation) Detectors() []domain.Device { return s.detectors }

// Run executes plan through the interceptor.
func (s *Simulation) Run(ctx context.Context, plan iter.Seq[domain.Operation]) (*runner.Result, error) {
	opts := []runner.Option{
		runner.WithLogger(s.logger),
		runner.WithPreprocessor(s.interceptor.Wrap),
	}
	if s.onEvent != nil {
		opts = append(opts, runner.WithEventHandler(s.onEvent))
	}
	return runner.New(opts...).Run(ctx, plan)
}

// Count reads every detector num times, simulating once per point.
func (s *Simulation) Count(ctx context.Context, num int) (*runner.Result, error) {
	return s.Run(ctx, runner.Count(s.detectors, num))
}
