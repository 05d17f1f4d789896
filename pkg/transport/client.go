package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/protocol"
)

// Client submits simulation requests to a remote server.
type Client struct {
	address string
	codec   protocol.Codec
	dialer  net.Dialer
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientCodec selects the wire codec; both ends must agree.
func WithClientCodec(codec protocol.Codec) ClientOption {
	return func(c *Client) {
		c.codec = codec
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDialTimeout bounds connection establishment. The exchange itself has no timeout.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.dialer.Timeout = d
	}
}

// NewClient creates a client for the server at address ("host:port").
func NewClient(address string, opts ...ClientOption) *Client {
	codec, _ := protocol.NewCodec(protocol.FramingDelimited)
	c := &Client{
		address: address,
		codec:   codec,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the server address.
func (c *Client) Address() string {
	return c.address
}

// Submit starts one exchange in the background and returns its completion signal.
// The status resolves exactly once: nil after every result file is written to dir,
// or the failure. Cancelling the status or ctx closes the connection.
func (c *Client) Submit(ctx context.Context, dir string, scene []byte, exports []string) *domain.Status {
	status, runCtx := domain.NewStatusWithContext(ctx)
	go func() {
		_, err := c.Do(runCtx, dir, scene, exports)
		status.Finish(err)
	}()
	return status
}

// Do performs one exchange synchronously and returns the paths of the written
// result files.
func (c *Client) Do(ctx context.Context, dir string, scene []byte, exports []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	if err := purgeResults(dir); err != nil {
		return nil, err
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.address, err)
	}
	defer conn.Close()

	// Cancellation unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.logger.Info("submitting simulation", "server", c.address, "exports", exports)
	if err := c.codec.WriteRequest(conn, protocol.Request{Exports: exports, Scene: scene}); err != nil {
		return nil, c.fail(ctx, err)
	}
	if hc, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := hc.CloseWrite(); err != nil {
			return nil, c.fail(ctx, fmt.Errorf("closing request side: %w", err))
		}
	}

	chunks, err := c.codec.ReadResponse(conn)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	paths, err := protocol.WriteChunks(dir, chunks)
	if err != nil {
		return nil, err
	}
	c.logger.Info("simulation results received", "server", c.address, "files", len(paths))
	return paths, nil
}

func (c *Client) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logger.Error("simulation exchange failed", "server", c.address, "error", err)
	return err
}

// purgeResults removes result files of a previous run so readers never see them.
func purgeResults(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list result directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".dat") || strings.HasSuffix(name, ".csv")) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to remove stale result %s: %w", name, err)
		}
	}
	return nil
}
