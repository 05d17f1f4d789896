// Package testutils holds fakes shared by the engine, transport and CLI tests.
package testutils

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/ports"
	"github.com/stretchr/testify/require"
)

// RawRays renders a raw rays export with n rays for element.
func RawRays(element string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s RawRaysOutgoing\n", element)
	fmt.Fprintf(&b, "%[1]s_OX\t%[1]s_OY\t%[1]s_EN\n", element)
	for i := range n {
		fmt.Fprintf(&b, "%g\t%g\t%g\n", float64(i%5)*0.001, float64(i%3)*0.002, 1000+float64(i%4))
	}
	return b.String()
}

// FakeApplication plays the ray-tracing program in memory.
// Export writes a raw rays file with Rays rays (default 10).
type FakeApplication struct {
	Rays      int
	FailOn    string // command name that fails: load, trace, export, save, quit
	TraceHook func(ctx context.Context) error

	mu    sync.Mutex
	calls []string
}

// Factory returns a factory handing out this same fake.
func (f *FakeApplication) Factory() ports.ApplicationFactory {
	return func(ctx context.Context) (ports.Application, error) {
		return f, nil
	}
}

// Calls returns the commands received so far.
func (f *FakeApplication) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeApplication) note(cmd string) error {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	if f.FailOn == cmd {
		return fmt.Errorf("fake %s failed", cmd)
	}
	return nil
}

func (f *FakeApplication) Load(ctx context.Context, path string) error {
	if err := f.note("load"); err != nil {
		return err
	}
	_, err := os.Stat(path)
	return err
}

func (f *FakeApplication) Trace(ctx context.Context, analyze bool) error {
	if f.TraceHook != nil {
		if err := f.TraceHook(ctx); err != nil {
			return err
		}
	}
	return f.note("trace")
}

func (f *FakeApplication) Export(ctx context.Context, name, kind, dir, suffix string) error {
	if err := f.note("export"); err != nil {
		return err
	}
	rays := f.Rays
	if rays == 0 {
		rays = 10
	}
	return os.WriteFile(filepath.Join(dir, domain.RawRaysFileName(name)), []byte(RawRays(name, rays)), 0o644)
}

func (f *FakeApplication) Save(ctx context.Context, path string) error {
	return f.note("save")
}

func (f *FakeApplication) Quit(ctx context.Context) error {
	return f.note("quit")
}

// StaticSimulator is a transport.Simulator that writes fixed result files.
type StaticSimulator struct {
	// Results maps export names to the content of their analyzed file.
	Results    map[string]string
	TraceErr   error
	AnalyzeErr error
	// Block, when set, makes Trace wait until it is closed or ctx ends.
	Block chan struct{}

	mu    sync.Mutex
	dirs  []string
	calls int
}

func (s *StaticSimulator) Trace(ctx context.Context, dir, scenePath string, exports []string) error {
	s.mu.Lock()
	s.calls++
	s.dirs = append(s.dirs, dir)
	s.mu.Unlock()

	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.TraceErr
}

func (s *StaticSimulator) Analyze(dir, scenePath string, exports []string) error {
	if s.AnalyzeErr != nil {
		return s.AnalyzeErr
	}
	for _, exp := range exports {
		content, ok := s.Results[exp]
		if !ok {
			return fmt.Errorf("%w: no rays for %s", domain.ErrInsufficientRays, exp)
		}
		if err := os.WriteFile(filepath.Join(dir, domain.AnalyzedFileName(exp)), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns how many traces were requested.
func (s *StaticSimulator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Dirs returns the working directories traces ran in.
func (s *StaticSimulator) Dirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dirs...)
}

// Listen opens a loopback listener closed at test cleanup.
func Listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "Failed to listen on loopback")
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

// HostPort splits a listener address into host and numeric port.
func HostPort(t *testing.T, ln net.Listener) (string, int) {
	t.Helper()
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// AnalyzedLine is the result row FakeEngine writes for every export.
const AnalyzedLine = "0 1000 10 10 2.5 40 60\n"

// FakeEngine implements ports.Engine by writing AnalyzedLine for every export.
type FakeEngine struct {
	Err error
	// Hook runs inside Simulate before results are written.
	Hook func(ctx context.Context) error

	mu      sync.Mutex
	setups  int
	exports [][]string
	done    bool
}

func (e *FakeEngine) Setup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setups++
	e.done = false
	return nil
}

func (e *FakeEngine) Simulate(ctx context.Context, dir string, scene domain.Scene, exports []string) error {
	e.mu.Lock()
	e.exports = append(e.exports, append([]string(nil), exports...))
	e.mu.Unlock()

	if e.Hook != nil {
		if err := e.Hook(ctx); err != nil {
			return err
		}
	}
	if e.Err != nil {
		return e.Err
	}
	if err := scene.WriteFile(filepath.Join(dir, domain.SceneFileLocal)); err != nil {
		return err
	}
	for _, exp := range exports {
		if err := os.WriteFile(filepath.Join(dir, domain.AnalyzedFileName(exp)), []byte(AnalyzedLine), 0o644); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.done = true
	e.mu.Unlock()
	return nil
}

func (e *FakeEngine) IsDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Setups returns how many times Setup was called.
func (e *FakeEngine) Setups() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setups
}

// Simulations returns the export lists of every Simulate call.
func (e *FakeEngine) Simulations() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.exports...)
}
