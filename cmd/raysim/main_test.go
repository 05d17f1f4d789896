package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/aretw0/raysim"
	"github.com/aretw0/raysim/internal/testutils"
	"github.com/aretw0/raysim/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "raysim version "+strings.TrimSpace(raysim.Version)+"\n", out)
}

func TestSubmitCommand(t *testing.T) {
	sim := &testutils.StaticSimulator{Results: map[string]string{"Dipole": "1,2,3\n"}}
	ln := testutils.Listen(t)
	host, port := testutils.HostPort(t, ln)
	srv := transport.NewServer(t.TempDir(), sim)

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

	dir := t.TempDir()
	scene := filepath.Join(dir, "beamline.rml")
	require.NoError(t, os.WriteFile(scene, []byte("<scene/>"), 0o644))
	cfgPath := filepath.Join(dir, "raysim.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("client:\n  address: "+host+"\n  port: "+strconv.Itoa(port)+"\n"), 0o644))
	results := filepath.Join(dir, "results")

	out, err := execute(t, "--config", cfgPath, "submit", scene, "--export", "Dipole", "--out", results)
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS 2 files")

	data, err := os.ReadFile(filepath.Join(results, "Dipole_analyzed_rays.dat"))
	require.NoError(t, err)
	assert.Equal(t, "1,2,3\n", string(data))
}
