package interceptor

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/aretw0/raysim/internal/testutils"
	"github.com/aretw0/raysim/pkg/detector"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type motor string

func (m motor) Name() string { return string(m) }

type fixture struct {
	trigger   *detector.Trigger
	engine    *testutils.FakeEngine
	detectors []domain.Device
	dir       string
}

func newFixture(t *testing.T, names ...string) fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "sim")
	eng := &testutils.FakeEngine{}
	trig, err := detector.NewTrigger("raypyng", dir, domain.NewScene("<scene/>"), eng)
	require.NoError(t, err)

	dets := make([]domain.Device, 0, len(names))
	for _, n := range names {
		dets = append(dets, detector.NewSimulated(n, dir))
	}
	return fixture{trigger: trig, engine: eng, detectors: dets, dir: dir}
}

// countPlan mirrors a one-point count over detectors with one staged motor.
func countPlan(detectors []domain.Device, extra ...domain.Device) []domain.Operation {
	var ops []domain.Operation
	for _, d := range append(slices.Clone(detectors), extra...) {
		ops = append(ops, domain.NewOperation(domain.CommandStage, d))
	}
	ops = append(ops, domain.NewOperation(domain.CommandOpenRun, nil))
	for _, d := range detectors {
		ops = append(ops, domain.NewOperation(domain.CommandTrigger, d).WithGroup("trigger-0"))
	}
	ops = append(ops, domain.NewOperation(domain.CommandWait, nil).WithGroup("trigger-0"))
	for _, d := range detectors {
		ops = append(ops, domain.NewOperation(domain.CommandRead, d))
	}
	ops = append(ops, domain.NewOperation(domain.CommandCloseRun, nil))
	return ops
}

func collect(t *testing.T, seq func(func(domain.Operation, error) bool)) ([]domain.Operation, error) {
	t.Helper()
	var out []domain.Operation
	for op, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, op)
	}
	return out, nil
}

func TestWrap_InjectsSingleTriggerBeforeFirstDetector(t *testing.T) {
	f := newFixture(t, "Dipole", "M1")
	ic := New(f.trigger, f.detectors)

	out, err := collect(t, ic.Wrap(slices.Values(countPlan(f.detectors))))
	require.NoError(t, err)

	injected := -1
	firstDetector := -1
	count := 0
	for i, op := range out {
		if op.Command != domain.CommandTrigger {
			continue
		}
		if op.Target == domain.Device(f.trigger) {
			count++
			injected = i
			assert.Equal(t, "trigger-0", op.Group())
		} else if firstDetector < 0 {
			firstDetector = i
		}
	}
	assert.Equal(t, 1, count)
	assert.Less(t, injected, firstDetector)
	assert.Equal(t, len(countPlan(f.detectors))+1, len(out))

	assert.Equal(t, []string{"Dipole", "M1"}, f.trigger.Exports())
	assert.Equal(t, 1, f.engine.Setups())
	for _, d := range f.detectors {
		_, err := d.(domain.Readable).Read()
		assert.ErrorIs(t, err, domain.ErrResultsNotReady, "detectors are bound to the prepared engine")
	}
}

func TestWrap_RejectsMixedDevices(t *testing.T) {
	f := newFixture(t, "Dipole")
	ic := New(f.trigger, f.detectors)

	out, err := collect(t, ic.Wrap(slices.Values(countPlan(f.detectors, motor("m1")))))
	var mixed *domain.MixedDevicesError
	require.ErrorAs(t, err, &mixed)
	assert.Equal(t, []string{"m1"}, mixed.External)

	for _, op := range out {
		assert.NotEqual(t, domain.CommandTrigger, op.Command, "no trigger precedes the rejection")
	}
	assert.Zero(t, f.engine.Setups())
	assert.Empty(t, f.trigger.Exports())
}

func TestWrap_ExternalRunPassesThrough(t *testing.T) {
	f := newFixture(t, "Dipole")
	externals := []domain.Device{motor("diode")}
	ic := New(f.trigger, externals)

	plan := countPlan(externals)
	out, err := collect(t, ic.Wrap(slices.Values(plan)))
	require.NoError(t, err)
	assert.Equal(t, plan, out)
	assert.Zero(t, f.engine.Setups())
}

func TestWrap_CloseRunCleansUpAndResets(t *testing.T) {
	f := newFixture(t, "Dipole")
	ic := New(f.trigger, f.detectors)

	stream := ic.Wrap(slices.Values(countPlan(f.detectors)))
	_, err := collect(t, stream)
	require.NoError(t, err)
	assert.NoDirExists(t, f.dir)

	// The same interceptor serves the next run from empty state.
	_, err = collect(t, stream)
	require.NoError(t, err)
	assert.Equal(t, 2, f.engine.Setups())

	// A run staging an external device after a simulated run is judged on its own.
	ext := New(f.trigger, []domain.Device{motor("diode")})
	_, err = collect(t, ext.Wrap(slices.Values(countPlan([]domain.Device{motor("diode")}))))
	require.NoError(t, err)
}

func TestWrap_StopsWhenConsumerStops(t *testing.T) {
	f := newFixture(t, "Dipole")
	ic := New(f.trigger, f.detectors)

	n := 0
	for range ic.Wrap(slices.Values(countPlan(f.detectors))) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestPrepareRun_RequiresExports(t *testing.T) {
	f := newFixture(t)
	st := State{Simulated: []string{"raypyng"}}

	_, _, err := PrepareRun(f.trigger, nil)(domain.NewOperation(domain.CommandOpenRun, nil), st)
	assert.ErrorIs(t, err, domain.ErrNoExports)
}

// simTrigger aliases detector.Trigger so the embedded field name does not
// shadow the promoted Trigger method.
type simTrigger = detector.Trigger

type failingTrigger struct {
	*simTrigger
}

func (failingTrigger) Setup(ctx context.Context) (ports.Engine, error) {
	return nil, errors.New("no program")
}

func TestInjectTrigger_SetupFailure(t *testing.T) {
	f := newFixture(t, "Dipole")
	stage := InjectTrigger(context.Background(), failingTrigger{f.trigger}, f.detectors)

	op := domain.NewOperation(domain.CommandTrigger, f.detectors[0]).WithGroup("g")
	_, _, err := stage(op, State{Simulated: []string{"Dipole"}, Validated: true})
	assert.ErrorContains(t, err, "no program")
}

func TestPipeline_ClassifyIsPure(t *testing.T) {
	before := State{Simulated: []string{"Dipole"}}
	_, after, err := Classify(domain.NewOperation(domain.CommandStage, motor("m1")), before)
	require.NoError(t, err)

	assert.Equal(t, []string{"m1"}, after.External)
	assert.Empty(t, before.External)
	assert.True(t, after.Mixed())
	assert.Equal(t, "classifying", after.Phase())
	assert.Equal(t, "reset", State{}.Phase())
}
