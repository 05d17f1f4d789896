package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"time"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/pkg/domain"
)

// Stager devices prepare themselves when staged.
type Stager interface {
	Stage() error
}

// Unstager devices release resources when unstaged.
type Unstager interface {
	Unstage() error
}

// Event is one row of readings, keyed "<device>_<reading>".
type Event struct {
	Seq      int                `json:"seq"`
	Time     time.Time          `json:"time"`
	Readings map[string]float64 `json:"readings"`
}

// Result is what a run produced.
type Result struct {
	Events   []Event   `json:"events"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Runner executes operation streams one at a time.
type Runner struct {
	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// Preprocessor rewrites the plan. If nil, the plan runs as is.
	Preprocessor Preprocessor

	// OnEvent, if set, observes every saved event.
	OnEvent func(Event)
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	return r
}

// run is the execution state of one plan.
type run struct {
	r       *Runner
	result  *Result
	pending map[string][]*domain.Status
	staged  []domain.Device
	event   *Event
}

// Run executes plan until it ends, ctx is cancelled or an operation fails.
// Statuses still pending when the run stops are cancelled, and staged devices
// are unstaged.
func (r *Runner) Run(ctx context.Context, plan iter.Seq[domain.Operation]) (*Result, error) {
	stream := r.stream(plan)
	x := &run{
		r:       r,
		result:  &Result{Started: time.Now().UTC()},
		pending: map[string][]*domain.Status{},
	}
	defer x.abandon()

	for op, err := range stream {
		if err != nil {
			return x.finish(), err
		}
		if err := ctx.Err(); err != nil {
			return x.finish(), err
		}
		r.Logger.Debug("executing", "op", op.String())
		if err := x.execute(ctx, op); err != nil {
			return x.finish(), fmt.Errorf("%s: %w", op, err)
		}
	}
	return x.finish(), nil
}

func (r *Runner) stream(plan iter.Seq[domain.Operation]) iter.Seq2[domain.Operation, error] {
	if r.Preprocessor != nil {
		return r.Preprocessor(plan)
	}
	return func(yield func(domain.Operation, error) bool) {
		for op := range plan {
			if !yield(op, nil) {
				return
			}
		}
	}
}

func (x *run) execute(ctx context.Context, op domain.Operation) error {
	switch op.Command {
	case domain.CommandStage:
		if s, ok := op.Target.(Stager); ok {
			if err := s.Stage(); err != nil {
				return err
			}
		}
		x.staged = append(x.staged, op.Target)
	case domain.CommandUnstage:
		return x.unstage(op.Target)
	case domain.CommandOpenRun:
		x.result.Events = nil
	case domain.CommandCreate:
		x.event = &Event{Seq: len(x.result.Events) + 1, Readings: map[string]float64{}}
	case domain.CommandTrigger:
		return x.trigger(ctx, op)
	case domain.CommandWait:
		return x.wait(ctx, op.Group())
	case domain.CommandRead:
		return x.read(op.Target)
	case domain.CommandSave:
		x.save()
	case domain.CommandCloseRun:
		if len(x.pending) > 0 {
			return fmt.Errorf("run closed with %d pending trigger groups", len(x.pending))
		}
	case domain.CommandCheckpoint:
	default:
		x.r.Logger.Debug("ignoring operation", "op", op.String())
	}
	return nil
}

func (x *run) trigger(ctx context.Context, op domain.Operation) error {
	t, ok := op.Target.(domain.Triggerable)
	if !ok {
		return errors.New("device is not triggerable")
	}
	status := t.Trigger()
	if g := op.Group(); g != "" {
		x.pending[g] = append(x.pending[g], status)
		return nil
	}
	return x.await(ctx, status)
}

func (x *run) wait(ctx context.Context, group string) error {
	statuses := x.pending[group]
	delete(x.pending, group)
	return x.await(ctx, statuses...)
}

// await blocks on statuses; if ctx ends first they are cancelled.
func (x *run) await(ctx context.Context, statuses ...*domain.Status) error {
	err := domain.WaitAll(ctx, statuses...)
	if ctx.Err() != nil {
		for _, s := range statuses {
			s.Cancel()
		}
	}
	return err
}

func (x *run) read(target domain.Device) error {
	rd, ok := target.(domain.Readable)
	if !ok {
		return errors.New("device is not readable")
	}
	readings, err := rd.Read()
	if err != nil {
		return err
	}
	if x.event == nil {
		x.event = &Event{Seq: len(x.result.Events) + 1, Readings: map[string]float64{}}
	}
	for k, v := range readings {
		x.event.Readings[target.Name()+"_"+k] = v
	}
	return nil
}

func (x *run) save() {
	if x.event == nil {
		return
	}
	x.event.Time = time.Now().UTC()
	ev := *x.event
	ev.Readings = maps.Clone(ev.Readings)
	x.result.Events = append(x.result.Events, ev)
	x.event = nil
	if x.r.OnEvent != nil {
		x.r.OnEvent(ev)
	}
}

func (x *run) unstage(target domain.Device) error {
	for i, d := range x.staged {
		if d == target {
			x.staged = append(x.staged[:i], x.staged[i+1:]...)
			break
		}
	}
	if u, ok := target.(Unstager); ok {
		return u.Unstage()
	}
	return nil
}

// abandon cancels pending statuses and unstages what is still staged.
func (x *run) abandon() {
	for g, statuses := range x.pending {
		for _, s := range statuses {
			s.Cancel()
		}
		delete(x.pending, g)
	}
	for i := len(x.staged) - 1; i >= 0; i-- {
		if err := x.unstage(x.staged[i]); err != nil {
			x.r.Logger.Warn("unstage failed", "device", x.staged[i].Name(), "error", err)
		}
	}
}

func (x *run) finish() *Result {
	x.result.Finished = time.Now().UTC()
	return x.result
}
