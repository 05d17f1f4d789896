package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/transport"
)

// Remote delegates simulations to a simulation server.
type Remote struct {
	client *transport.Client
	logger *slog.Logger

	running atomic.Bool
	done    atomic.Bool
}

// RemoteOption configures a Remote engine.
type RemoteOption func(*remoteConfig)

type remoteConfig struct {
	clientOpts []transport.ClientOption
	logger     *slog.Logger
}

// WithClientOptions forwards options to the transport client.
func WithClientOptions(opts ...transport.ClientOption) RemoteOption {
	return func(c *remoteConfig) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// WithRemoteLogger sets the engine logger (also used by the transport client).
func WithRemoteLogger(logger *slog.Logger) RemoteOption {
	return func(c *remoteConfig) {
		c.logger = logger
	}
}

// NewRemote creates an engine talking to the server at address:port.
// A missing address or port is a configuration error.
func NewRemote(address string, port int, opts ...RemoteOption) (*Remote, error) {
	if address == "" || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w (address=%q, port=%d)", domain.ErrMissingAddress, address, port)
	}

	cfg := remoteConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	clientOpts := append([]transport.ClientOption{transport.WithClientLogger(cfg.logger)}, cfg.clientOpts...)

	return &Remote{
		client: transport.NewClient(net.JoinHostPort(address, strconv.Itoa(port)), clientOpts...),
		logger: cfg.logger,
	}, nil
}

// Address returns the server address.
func (r *Remote) Address() string {
	return r.client.Address()
}

// Setup clears the done flag; the remote side needs no preparation.
func (r *Remote) Setup(ctx context.Context) error {
	r.done.Store(false)
	return nil
}

// Simulate writes the scene to dir/tmp.rml, sends it to the server and blocks
// until every result file has been written back into dir.
func (r *Remote) Simulate(ctx context.Context, dir string, scene domain.Scene, exports []string) error {
	if !r.running.CompareAndSwap(false, true) {
		return domain.ErrSimulationInFlight
	}
	defer r.running.Store(false)

	exports = domain.DedupExports(exports)
	if len(exports) == 0 {
		return domain.ErrNoExports
	}

	scenePath := filepath.Join(dir, domain.SceneFileLocal)
	if err := scene.WriteFile(scenePath); err != nil {
		return err
	}
	document, err := os.ReadFile(scenePath)
	if err != nil {
		return fmt.Errorf("failed to read back scene: %w", err)
	}

	status := r.client.Submit(ctx, dir, document, exports)
	if err := status.Wait(ctx); err != nil {
		status.Cancel()
		return err
	}

	r.done.Store(true)
	return nil
}

// IsDone reports whether the last simulation completed.
func (r *Remote) IsDone() bool {
	return r.done.Load()
}
