package interceptor

import (
	"context"
	"iter"
	"log/slog"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/pkg/domain"
)

// Interceptor wraps host operation streams with the simulation stages.
type Interceptor struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// Option configures an Interceptor.
type Option func(*config)

type config struct {
	ctx    context.Context
	logger *slog.Logger
}

// WithContext sets the context used to prepare engines.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// WithLogger sets the interceptor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New builds the four-stage interceptor for trigger and the host's detector list.
func New(trigger SimulationTrigger, detectors []domain.Device, opts ...Option) *Interceptor {
	cfg := config{ctx: context.Background(), logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Interceptor{
		pipeline: Pipeline{
			Classify,
			PrepareRun(trigger, detectors),
			InjectTrigger(cfg.ctx, trigger, detectors),
			Cleanup(trigger),
		},
		logger: cfg.logger,
	}
}

// Wrap returns the rewritten stream of plan. The first error ends the stream
// and is yielded with a zero Operation.
func (ic *Interceptor) Wrap(plan iter.Seq[domain.Operation]) iter.Seq2[domain.Operation, error] {
	return func(yield func(domain.Operation, error) bool) {
		var st State
		for op := range plan {
			out, next, err := ic.pipeline.Apply(op, st)
			if err != nil {
				ic.logger.Error("plan rejected", "op", op.String(), "error", err)
				yield(domain.Operation{}, err)
				return
			}
			if next.Phase() != st.Phase() {
				ic.logger.Debug("interceptor phase", "from", st.Phase(), "to", next.Phase(), "op", op.String())
			}
			st = next
			for _, o := range out {
				if !yield(o, nil) {
					return
				}
			}
		}
	}
}
