package domain

import "fmt"

// Command identifies the kind of step an Operation performs.
type Command string

const (
	CommandStage      Command = "stage"
	CommandUnstage    Command = "unstage"
	CommandOpenRun    Command = "open_run"
	CommandCloseRun   Command = "close_run"
	CommandTrigger    Command = "trigger"
	CommandWait       Command = "wait"
	CommandRead       Command = "read"
	CommandCreate     Command = "create"
	CommandSave       Command = "save"
	CommandCheckpoint Command = "checkpoint"
)

// KeyGroup is the kwargs key carrying the synchronization group of a trigger.
const KeyGroup = "group"

// Device is anything the host sequence can address.
type Device interface {
	Name() string
}

// SimulationTarget marks devices whose values come from the ray-tracing simulation.
// Presence of the method is what matters; its return value is informational.
type SimulationTarget interface {
	Device
	IsSimulationTarget() bool
}

// Triggerable devices start an acquisition and report completion through a Status.
type Triggerable interface {
	Device
	Trigger() *Status
}

// Readable devices return named readings once their acquisition has completed.
type Readable interface {
	Device
	Read() (map[string]float64, error)
}

// IsSimulated reports whether d carries the simulation capability marker.
func IsSimulated(d Device) bool {
	_, ok := d.(SimulationTarget)
	return ok
}

// Operation is one step of the host sequence.
// Operations are treated as immutable once observed; rewrites produce new values.
type Operation struct {
	Command Command
	Target  Device
	Args    []any
	Kwargs  map[string]any
}

// NewOperation builds an operation with an empty kwargs map.
func NewOperation(cmd Command, target Device, args ...any) Operation {
	return Operation{
		Command: cmd,
		Target:  target,
		Args:    args,
		Kwargs:  map[string]any{},
	}
}

// WithGroup returns a copy of op tagged with the given synchronization group.
func (op Operation) WithGroup(group string) Operation {
	kw := make(map[string]any, len(op.Kwargs)+1)
	for k, v := range op.Kwargs {
		kw[k] = v
	}
	kw[KeyGroup] = group
	op.Kwargs = kw
	return op
}

// Group returns the synchronization group token, or "" when absent.
func (op Operation) Group() string {
	if op.Kwargs == nil {
		return ""
	}
	g, _ := op.Kwargs[KeyGroup].(string)
	return g
}

// TargetName returns the target device name, or "" for target-less operations.
func (op Operation) TargetName() string {
	if op.Target == nil {
		return ""
	}
	return op.Target.Name()
}

func (op Operation) String() string {
	if g := op.Group(); g != "" {
		return fmt.Sprintf("%s(%s, group=%s)", op.Command, op.TargetName(), g)
	}
	return fmt.Sprintf("%s(%s)", op.Command, op.TargetName())
}
