package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/raysim/internal/testutils"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/postprocess"
	"github.com/aretw0/raysim/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveLocal runs a simulation server backed by a local engine until the test ends.
func serveLocal(t *testing.T, app *testutils.FakeApplication) (string, int, string) {
	t.Helper()
	root := t.TempDir()
	ln := testutils.Listen(t)
	host, port := testutils.HostPort(t, ln)

	srv := transport.NewServer(root, NewLocal(app.Factory(), postprocess.NewAnalyzer()))
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-served
	})
	return host, port, root
}

func TestNewRemote_RequiresAddress(t *testing.T) {
	_, err := NewRemote("", 5000)
	require.ErrorIs(t, err, domain.ErrMissingAddress)

	_, err = NewRemote("localhost", 0)
	require.ErrorIs(t, err, domain.ErrMissingAddress)

	r, err := NewRemote("localhost", 5000)
	require.NoError(t, err)
	assert.Equal(t, "localhost:5000", r.Address())
}

func TestRemote_Simulate(t *testing.T) {
	app := &testutils.FakeApplication{Rays: 7}
	host, port, root := serveLocal(t, app)

	eng, err := NewRemote(host, port)
	require.NoError(t, err)
	require.NoError(t, eng.Setup(context.Background()))

	dir := t.TempDir()
	require.NoError(t, eng.Simulate(context.Background(), dir, domain.NewScene("<scene/>"), []string{"Dipole"}))
	assert.True(t, eng.IsDone())

	scene, err := os.ReadFile(filepath.Join(dir, domain.SceneFileServer))
	require.NoError(t, err)
	assert.Equal(t, "<scene/>", string(scene))
	assert.FileExists(t, filepath.Join(dir, domain.SceneFileLocal))
	assert.Equal(t, "7", analyzedFields(t, dir, "Dipole")[postprocess.ColumnRays])
	assert.FileExists(t, filepath.Join(root, domain.RawRaysFileName("Dipole")), "raw exports stay on the server")
	assert.NoFileExists(t, filepath.Join(dir, domain.RawRaysFileName("Dipole")))

	require.NoError(t, eng.Setup(context.Background()))
	assert.False(t, eng.IsDone())
}

func TestRemote_SimulationError(t *testing.T) {
	app := &testutils.FakeApplication{FailOn: "trace"}
	host, port, _ := serveLocal(t, app)

	eng, err := NewRemote(host, port)
	require.NoError(t, err)

	err = eng.Simulate(context.Background(), t.TempDir(), domain.NewScene("<scene/>"), []string{"Dipole"})
	require.ErrorIs(t, err, domain.ErrSimulationFailed)
	assert.False(t, eng.IsDone())
}

func TestRemote_IndexError(t *testing.T) {
	app := &testutils.FakeApplication{Rays: 1}
	host, port, _ := serveLocal(t, app)

	eng, err := NewRemote(host, port)
	require.NoError(t, err)

	err = eng.Simulate(context.Background(), t.TempDir(), domain.NewScene("<scene/>"), []string{"Dipole"})
	require.ErrorIs(t, err, domain.ErrInsufficientRays)
}

func TestRemote_CancelledWhileTracing(t *testing.T) {
	entered := make(chan struct{}, 1)
	app := &testutils.FakeApplication{TraceHook: func(ctx context.Context) error {
		entered <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}}
	host, port, _ := serveLocal(t, app)

	eng, err := NewRemote(host, port)
	require.NoError(t, err)

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- eng.Simulate(ctx, dir, domain.NewScene("<scene/>"), []string{"Dipole"})
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("server never started tracing")
	}
	cancel()

	select {
	case err := <-result:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("simulate did not return after cancellation")
	}
	assert.False(t, eng.IsDone())
}
