package transport

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/raysim/internal/testutils"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer serves sim from a temp root until the test ends and returns the
// server, its address and its root.
func startServer(t *testing.T, sim Simulator, opts ...ServerOption) (*Server, string, string) {
	t.Helper()
	root := t.TempDir()
	ln := testutils.Listen(t)
	srv := NewServer(root, sim, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-served:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return srv, ln.Addr().String(), root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestExchange_DeliversResults(t *testing.T) {
	sim := &testutils.StaticSimulator{Results: map[string]string{"Dipole": "1,2,3\n"}}
	codec, err := protocol.NewCodec(protocol.FramingDelimited, protocol.WithChunkSize(3))
	require.NoError(t, err)
	srv, addr, root := startServer(t, sim, WithServerCodec(codec))

	dir := t.TempDir()
	paths, err := NewClient(addr).Do(context.Background(), dir, []byte("<scene/>"), []string{"Dipole"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, domain.SceneFileServer),
		filepath.Join(dir, "Dipole_analyzed_rays.dat"),
	}, paths)
	assert.Equal(t, "<scene/>", readFile(t, filepath.Join(dir, domain.SceneFileServer)))
	assert.Equal(t, "1,2,3\n", readFile(t, filepath.Join(dir, "Dipole_analyzed_rays.dat")))
	assert.Equal(t, "<scene/>", readFile(t, filepath.Join(root, domain.SceneFileServer)), "server persists the received scene")
	assert.Equal(t, []string{root}, sim.Dirs())

	assert.Eventually(t, func() bool {
		runs, err := srv.Ledger().List(context.Background())
		return err == nil && len(runs) == 1 && runs[0].Outcome == domain.OutcomeSuccess
	}, 2*time.Second, 10*time.Millisecond)

	runs, err := srv.Ledger().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Dipole"}, runs[0].Exports)
	assert.Len(t, runs[0].Scene, 64)
	assert.Equal(t, 2, runs[0].Files)
	assert.False(t, runs[0].Finished.IsZero())
}

func TestExchange_LengthPrefixedWithCompression(t *testing.T) {
	big := testutils.RawRays("Dipole", 2000)
	sim := &testutils.StaticSimulator{Results: map[string]string{"Dipole": big, "Mirror": "4,5,6\n"}}
	codec, err := protocol.NewCodec(protocol.FramingLengthPrefixed, protocol.WithCompression(protocol.CompressionZstd), protocol.WithChunkSize(1024))
	require.NoError(t, err)
	_, addr, _ := startServer(t, sim, WithServerCodec(codec))

	dir := t.TempDir()
	client := NewClient(addr, WithClientCodec(codec))
	_, err = client.Do(context.Background(), dir, []byte("<scene/>"), []string{"Dipole", "Mirror", "Dipole"})
	require.NoError(t, err)

	assert.Equal(t, big, readFile(t, filepath.Join(dir, "Dipole_analyzed_rays.dat")))
	assert.Equal(t, "4,5,6\n", readFile(t, filepath.Join(dir, "Mirror_analyzed_rays.dat")))
}

func TestExchange_FailureTokens(t *testing.T) {
	tests := []struct {
		name string
		sim  *testutils.StaticSimulator
		want error
		out  domain.Outcome
	}{
		{
			name: "trace failure",
			sim:  &testutils.StaticSimulator{TraceErr: assert.AnError},
			want: domain.ErrSimulationFailed,
			out:  domain.OutcomeSimulationError,
		},
		{
			name: "too few rays",
			sim:  &testutils.StaticSimulator{Results: map[string]string{}},
			want: domain.ErrInsufficientRays,
			out:  domain.OutcomePostprocessError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, addr, _ := startServer(t, tt.sim)

			dir := t.TempDir()
			_, err := NewClient(addr).Do(context.Background(), dir, []byte("<scene/>"), []string{"Dipole"})
			require.ErrorIs(t, err, tt.want)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries, "a failed exchange writes no files")

			assert.Eventually(t, func() bool {
				runs, err := srv.Ledger().List(context.Background())
				return err == nil && len(runs) == 1 && runs[0].Outcome == tt.out
			}, 2*time.Second, 10*time.Millisecond)
		})
	}
}

func TestExchange_NoExports(t *testing.T) {
	sim := &testutils.StaticSimulator{}
	_, addr, _ := startServer(t, sim)

	_, err := NewClient(addr).Do(context.Background(), t.TempDir(), []byte("<scene/>"), nil)
	require.ErrorIs(t, err, domain.ErrSimulationFailed)
	assert.Zero(t, sim.Calls())
}

func TestExchange_PurgesStaleResults(t *testing.T) {
	sim := &testutils.StaticSimulator{Results: map[string]string{"Dipole": "1,2,3\n"}}
	_, addr, _ := startServer(t, sim)

	dir := t.TempDir()
	stale := filepath.Join(dir, "Old_analyzed_rays.dat")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("keep"), 0o644))

	_, err := NewClient(addr).Do(context.Background(), dir, []byte("<scene/>"), []string{"Dipole"})
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, keep)
}

func TestExchange_IsolatedDirectories(t *testing.T) {
	sim := &testutils.StaticSimulator{Results: map[string]string{"Dipole": "1,2,3\n"}}
	_, addr, root := startServer(t, sim, WithIsolation(true))

	client := NewClient(addr)
	for range 2 {
		_, err := client.Do(context.Background(), t.TempDir(), []byte("<scene/>"), []string{"Dipole"})
		require.NoError(t, err)
	}

	dirs := sim.Dirs()
	require.Len(t, dirs, 2)
	assert.NotEqual(t, dirs[0], dirs[1])
	for _, d := range dirs {
		assert.Equal(t, root, filepath.Dir(d))
		assert.NoDirExists(t, d, "connection directory is removed after the exchange")
	}
}

func TestSubmit_Cancel(t *testing.T) {
	block := make(chan struct{})
	sim := &testutils.StaticSimulator{Block: block, Results: map[string]string{"Dipole": "1\n"}}
	_, addr, _ := startServer(t, sim)
	t.Cleanup(func() { close(block) })

	status := NewClient(addr).Submit(context.Background(), t.TempDir(), []byte("<scene/>"), []string{"Dipole"})
	require.Eventually(t, func() bool { return sim.Calls() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, status.Resolved())

	status.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.ErrorIs(t, status.Wait(ctx), domain.ErrStatusCancelled)
}

func TestSubmit_ConnectionRefused(t *testing.T) {
	ln := testutils.Listen(t)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	status := NewClient(addr, WithDialTimeout(time.Second)).Submit(context.Background(), t.TempDir(), []byte("<scene/>"), []string{"Dipole"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, status.Wait(ctx))
}

func TestServer_RejectsMalformedRequest(t *testing.T) {
	sim := &testutils.StaticSimulator{}
	codec, err := protocol.NewCodec(protocol.FramingLengthPrefixed)
	require.NoError(t, err)
	srv, addr, _ := startServer(t, sim, WithServerCodec(codec))

	// A delimited request is not a valid frame.
	_, err = NewClient(addr).Do(context.Background(), t.TempDir(), []byte("<scene/>"), []string{"Dipole"})
	require.Error(t, err)
	assert.Zero(t, sim.Calls())

	assert.Eventually(t, func() bool {
		runs, err := srv.Ledger().List(context.Background())
		return err == nil && len(runs) == 1 && runs[0].Outcome == domain.OutcomeProtocolError
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExchange_SenderWithoutHalfClose(t *testing.T) {
	sim := &testutils.StaticSimulator{Results: map[string]string{"Dipole": "1,2,3\n"}}
	codec, err := protocol.NewCodec(protocol.FramingDelimited, protocol.WithRequestIdle(50*time.Millisecond))
	require.NoError(t, err)
	_, addr, _ := startServer(t, sim, WithServerCodec(codec))

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	// One write, then wait for the answer with the write side still open.
	_, err = conn.Write([]byte("Dipole|||<scene/>"))
	require.NoError(t, err)

	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Contains(t, string(reply), "Dipole_analyzed_rays.dat|||1,2,3\n|||")
	assert.True(t, strings.HasSuffix(string(reply), protocol.EndMarker))
	assert.Equal(t, 1, sim.Calls())
}

func TestDo_ReassemblesChunkedFile(t *testing.T) {
	ln := testutils.Listen(t)
	served := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			served <- err
			return
		}
		defer conn.Close()
		if _, err := io.ReadAll(conn); err != nil {
			served <- err
			return
		}
		_, err = io.WriteString(conn, domain.SceneFileServer+"|||<scene/>|||"+
			"Dipole_analyzed_rays.dat|||1,2|||"+
			"Dipole_analyzed_rays.dat|||,3\n|||"+
			protocol.EndMarker)
		served <- err
	}()

	dir := t.TempDir()
	paths, err := NewClient(ln.Addr().String()).Do(context.Background(), dir, []byte("<scene/>"), []string{"Dipole"})
	require.NoError(t, err)
	require.NoError(t, <-served)

	assert.Len(t, paths, 2)
	assert.Equal(t, "<scene/>", readFile(t, filepath.Join(dir, domain.SceneFileServer)))
	assert.Equal(t, "1,2,3\n", readFile(t, filepath.Join(dir, "Dipole_analyzed_rays.dat")))
}
