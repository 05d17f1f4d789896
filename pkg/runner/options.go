package runner

import (
	"iter"
	"log/slog"

	"github.com/aretw0/raysim/pkg/domain"
)

// Preprocessor rewrites a plan before it is executed.
type Preprocessor func(iter.Seq[domain.Operation]) iter.Seq2[domain.Operation, error]

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithPreprocessor configures the plan rewriter.
func WithPreprocessor(p Preprocessor) Option {
	return func(r *Runner) {
		r.Preprocessor = p
	}
}

// WithEventHandler is called with every saved event.
func WithEventHandler(fn func(Event)) Option {
	return func(r *Runner) {
		r.OnEvent = fn
	}
}
