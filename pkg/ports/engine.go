package ports

import (
	"context"

	"github.com/aretw0/raysim/pkg/domain"
)

// Engine runs simulations for the trigger detector.
// Exactly one simulation may be in flight per engine.
type Engine interface {
	// Setup prepares the engine for the next Simulate call and clears its done flag.
	Setup(ctx context.Context) error

	// Simulate writes the scene into dir, runs the simulation for the given exports,
	// and returns once every result file is on disk in dir.
	// Cancelling ctx aborts the simulation where the backend allows it.
	Simulate(ctx context.Context, dir string, scene domain.Scene, exports []string) error

	// IsDone is a non-blocking poll of whether the last simulation completed.
	IsDone() bool
}

// EngineBindable devices draw their readings from a specific engine's results.
type EngineBindable interface {
	domain.Device
	BindEngine(Engine)
}
