package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/raysim/internal/testutils"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/postprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzedFields(t *testing.T, dir, export string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, domain.AnalyzedFileName(export)))
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func TestLocal_Simulate(t *testing.T) {
	app := &testutils.FakeApplication{Rays: 12}
	eng := NewLocal(app.Factory(), postprocess.NewAnalyzer())
	dir := t.TempDir()

	require.NoError(t, eng.Setup(context.Background()))
	assert.False(t, eng.IsDone())

	err := eng.Simulate(context.Background(), dir, domain.NewScene("<scene/>"), []string{"Dipole", "Dipole"})
	require.NoError(t, err)
	assert.True(t, eng.IsDone())

	assert.Equal(t, []string{"load", "trace", "export", "save", "quit"}, app.Calls())
	assert.FileExists(t, filepath.Join(dir, domain.SceneFileLocal))
	assert.FileExists(t, filepath.Join(dir, domain.RawRaysFileName("Dipole")))

	fields := analyzedFields(t, dir, "Dipole")
	require.Len(t, fields, postprocess.ColumnVerticalFocus+1)
	assert.Equal(t, "12", fields[postprocess.ColumnRays])

	require.NoError(t, eng.Setup(context.Background()))
	assert.False(t, eng.IsDone(), "setup clears the done flag")
}

func TestLocal_SimulateWithoutSetup(t *testing.T) {
	app := &testutils.FakeApplication{}
	eng := NewLocal(app.Factory(), postprocess.NewAnalyzer())

	require.NoError(t, eng.Simulate(context.Background(), t.TempDir(), domain.NewScene("<scene/>"), []string{"M1", "Dipole"}))
	assert.Equal(t, []string{"load", "trace", "export", "export", "save", "quit"}, app.Calls())
}

func TestLocal_Failures(t *testing.T) {
	t.Run("program failure still quits", func(t *testing.T) {
		app := &testutils.FakeApplication{FailOn: "trace"}
		eng := NewLocal(app.Factory(), postprocess.NewAnalyzer())

		err := eng.Simulate(context.Background(), t.TempDir(), domain.NewScene("<scene/>"), []string{"Dipole"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "trace")
		assert.Equal(t, []string{"load", "trace", "quit"}, app.Calls())
		assert.False(t, eng.IsDone())
	})

	t.Run("too few rays", func(t *testing.T) {
		app := &testutils.FakeApplication{Rays: 1}
		eng := NewLocal(app.Factory(), postprocess.NewAnalyzer())

		err := eng.Simulate(context.Background(), t.TempDir(), domain.NewScene("<scene/>"), []string{"Dipole"})
		require.ErrorIs(t, err, domain.ErrInsufficientRays)
		assert.False(t, eng.IsDone())
	})

	t.Run("no exports", func(t *testing.T) {
		app := &testutils.FakeApplication{}
		eng := NewLocal(app.Factory(), postprocess.NewAnalyzer())

		err := eng.Simulate(context.Background(), t.TempDir(), domain.NewScene("<scene/>"), nil)
		require.ErrorIs(t, err, domain.ErrNoExports)
		assert.Empty(t, app.Calls())
	})
}

func TestLocal_OneSimulationInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	app := &testutils.FakeApplication{TraceHook: func(ctx context.Context) error {
		entered <- struct{}{}
		<-release
		return nil
	}}
	eng := NewLocal(app.Factory(), postprocess.NewAnalyzer())

	dir := t.TempDir()
	first := make(chan error, 1)
	go func() {
		first <- eng.Simulate(context.Background(), dir, domain.NewScene("<scene/>"), []string{"Dipole"})
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first simulation never reached trace")
	}

	err := eng.Simulate(context.Background(), t.TempDir(), domain.NewScene("<scene/>"), []string{"Dipole"})
	require.ErrorIs(t, err, domain.ErrSimulationInFlight)

	close(release)
	require.NoError(t, <-first)
}

func TestLocal_TraceWrapsFailures(t *testing.T) {
	app := &testutils.FakeApplication{FailOn: "load"}
	eng := NewLocal(app.Factory(), postprocess.NewAnalyzer())

	dir := t.TempDir()
	scenePath := filepath.Join(dir, domain.SceneFileServer)
	require.NoError(t, domain.NewScene("<scene/>").WriteFile(scenePath))

	err := eng.Trace(context.Background(), dir, scenePath, []string{"Dipole"})
	require.ErrorIs(t, err, domain.ErrSimulationFailed)
}
