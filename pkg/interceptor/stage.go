package interceptor

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/ports"
)

// Stage inspects one operation and returns the operations to emit in its place.
// Returning the operation alone passes it through.
type Stage func(op domain.Operation, st State) ([]domain.Operation, State, error)

// Pipeline applies stages in order; every operation emitted by one stage is fed
// to the next.
type Pipeline []Stage

// Apply runs op through every stage.
func (p Pipeline) Apply(op domain.Operation, st State) ([]domain.Operation, State, error) {
	ops := []domain.Operation{op}
	for _, stage := range p {
		next := make([]domain.Operation, 0, len(ops))
		for _, o := range ops {
			out, ns, err := stage(o, st)
			if err != nil {
				return nil, ns, err
			}
			st = ns
			next = append(next, out...)
		}
		ops = next
	}
	return ops, st, nil
}

// SimulationTrigger is the device that starts simulations.
type SimulationTrigger interface {
	domain.Triggerable
	UpdateExports(names []string)
	Setup(ctx context.Context) (ports.Engine, error)
	DeleteTemporaryFolder() error
}

// exporter is implemented by detectors whose export differs from their name.
type exporter interface {
	Export() string
}

// ExportName returns the simulation export a detector reads.
func ExportName(d domain.Device) string {
	if e, ok := d.(exporter); ok {
		return e.Export()
	}
	return d.Name()
}

// Classify records every staged device as simulated or external.
func Classify(op domain.Operation, st State) ([]domain.Operation, State, error) {
	if op.Command != domain.CommandStage || op.Target == nil {
		return []domain.Operation{op}, st, nil
	}
	st = st.clone()
	name := op.Target.Name()
	if domain.IsSimulated(op.Target) {
		if !slices.Contains(st.Simulated, name) {
			st.Simulated = append(st.Simulated, name)
		}
	} else if !slices.Contains(st.External, name) {
		st.External = append(st.External, name)
	}
	return []domain.Operation{op}, st, nil
}

// PrepareRun validates the staged set at open_run. A simulation-only run hands
// the detectors' exports to trigger; a mixed run fails; an external run passes.
func PrepareRun(trigger SimulationTrigger, detectors []domain.Device) Stage {
	return func(op domain.Operation, st State) ([]domain.Operation, State, error) {
		if op.Command != domain.CommandOpenRun {
			return []domain.Operation{op}, st, nil
		}
		if st.Mixed() {
			return nil, st, &domain.MixedDevicesError{External: slices.Clone(st.External)}
		}
		if st.SimulationOnly() {
			exports := make([]string, 0, len(detectors))
			for _, d := range detectors {
				exports = append(exports, ExportName(d))
			}
			exports = domain.DedupExports(exports)
			if len(exports) == 0 {
				return nil, st, domain.ErrNoExports
			}
			trigger.UpdateExports(exports)
			st.Validated = true
		}
		return []domain.Operation{op}, st, nil
	}
}

// InjectTrigger emits a trigger of the trigger device ahead of the first
// detector's trigger, in the same group, after preparing the engine and
// binding it to every detector.
func InjectTrigger(ctx context.Context, trigger SimulationTrigger, detectors []domain.Device) Stage {
	return func(op domain.Operation, st State) ([]domain.Operation, State, error) {
		if op.Command != domain.CommandTrigger || len(detectors) == 0 || !st.SimulationOnly() {
			return []domain.Operation{op}, st, nil
		}
		if op.Target == nil || op.Target.Name() != detectors[0].Name() {
			return []domain.Operation{op}, st, nil
		}

		engine, err := trigger.Setup(ctx)
		if err != nil {
			return nil, st, fmt.Errorf("preparing simulation: %w", err)
		}
		for _, d := range detectors {
			if b, ok := d.(ports.EngineBindable); ok {
				b.BindEngine(engine)
			}
		}

		injected := domain.NewOperation(domain.CommandTrigger, trigger)
		if g := op.Group(); g != "" {
			injected = injected.WithGroup(g)
		}
		st.Triggers++
		return []domain.Operation{injected, op}, st, nil
	}
}

// Cleanup deletes the working directory at close_run and resets the state.
func Cleanup(trigger SimulationTrigger) Stage {
	return func(op domain.Operation, st State) ([]domain.Operation, State, error) {
		if op.Command != domain.CommandCloseRun {
			return []domain.Operation{op}, st, nil
		}
		if err := trigger.DeleteTemporaryFolder(); err != nil {
			return nil, State{}, err
		}
		return []domain.Operation{op}, State{}, nil
	}
}
