package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/pkg/ports"
)

// ErrCommandFailed is returned when the program answers a command with a failure.
var ErrCommandFailed = errors.New("application command failed")

// ErrSessionClosed is returned when a command is sent after the session ended.
var ErrSessionClosed = errors.New("application session closed")

// Session drives one instance of the ray-tracing program through its line-oriented
// command interface: one command per line on stdin, acknowledged by a stdout line
// starting with "success" (or "failed"/"error" on failure). Other output lines are
// logged and skipped.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger used for program output.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// Start launches the program described by cfg.
// The process is bound to ctx: cancelling it kills the program.
func Start(ctx context.Context, cfg Config, opts ...SessionOption) (*Session, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("application command is not configured")
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	env := cmd.Environ()
	for k, v := range cfg.Environment {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open application stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open application stdout: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, 64),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}
	s.logger.Debug("application started", "command", cfg.Command, "pid", cmd.Process.Pid)

	go s.pump(stdout)
	return s, nil
}

// Factory returns a ports.ApplicationFactory starting sessions from cfg.
func Factory(cfg Config, opts ...SessionOption) ports.ApplicationFactory {
	return func(ctx context.Context) (ports.Application, error) {
		return Start(ctx, cfg, opts...)
	}
}

func (s *Session) pump(stdout io.Reader) {
	defer close(s.lines)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.lines <- scanner.Text()
	}
}

// call sends one command and waits for its acknowledgement.
func (s *Session) call(ctx context.Context, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	s.logger.Debug("application command", "cmd", command)
	if _, err := io.WriteString(s.stdin, command+"\n"); err != nil {
		return fmt.Errorf("sending %q: %w", command, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-s.lines:
			if !ok {
				return fmt.Errorf("%w: program exited while running %q", ErrCommandFailed, command)
			}
			reply := strings.TrimSpace(line)
			lower := strings.ToLower(reply)
			switch {
			case strings.HasPrefix(lower, "success"):
				return nil
			case strings.HasPrefix(lower, "fail"), strings.HasPrefix(lower, "error"):
				return fmt.Errorf("%w: %s: %s", ErrCommandFailed, command, reply)
			default:
				s.logger.Debug("application output", "line", reply)
			}
		}
	}
}

// Load opens a scene file.
func (s *Session) Load(ctx context.Context, path string) error {
	return s.call(ctx, "load "+path)
}

// Trace runs the ray-tracing; analyze asks the program for its own analysis too.
func (s *Session) Trace(ctx context.Context, analyze bool) error {
	if analyze {
		return s.call(ctx, "trace")
	}
	return s.call(ctx, "trace noanalyze")
}

// Export writes the named element's data of the given kind into dir.
func (s *Session) Export(ctx context.Context, name, kind, dir, suffix string) error {
	return s.call(ctx, strings.TrimSpace(fmt.Sprintf("export %s %s %s %s", name, kind, dir, suffix)))
}

// Save writes the (possibly updated) scene back to path.
func (s *Session) Save(ctx context.Context, path string) error {
	return s.call(ctx, "save "+path)
}

// Quit ends the program and waits for it to exit.
func (s *Session) Quit(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	_, werr := io.WriteString(s.stdin, "quit\n")
	_ = s.stdin.Close()
	s.mu.Unlock()

	// Drain so the program never blocks on a full pipe while exiting.
	go func() {
		for range s.lines {
		}
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- s.cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("application exited: %w", err)
		}
		if werr != nil {
			s.logger.Debug("quit not delivered", "error", werr)
		}
		return nil
	case <-ctx.Done():
		_ = s.cmd.Process.Kill()
		return ctx.Err()
	}
}
