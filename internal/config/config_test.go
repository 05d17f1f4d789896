package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raysim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
server:
  listen: 127.0.0.1:9000
  isolate: true
  framing: length-prefixed
  compress: zstd
  chunk_size: 1024
  request_idle: 500ms
engine:
  kind: remote
  dir: /tmp/sim
client:
  address: beamline.example
  port: 9000
  dial_timeout: 3s
application:
  command: /opt/rayui/rayui.sh
  args: [-b]
  env:
    DISPLAY: ":1"
ledger:
  backend: redis
  redis_addr: localhost:6379
  ttl: 24h
`)
	cfg, err := load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Server.Isolate)
	assert.Equal(t, 1024, cfg.Server.ChunkSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.RequestIdle)
	assert.Equal(t, EngineRemote, cfg.Engine.Kind)
	assert.Equal(t, 3*time.Second, cfg.Client.DialTimeout)
	assert.Equal(t, []string{"-b"}, cfg.Application.Args)
	assert.Equal(t, ":1", cfg.Application.Environment["DISPLAY"])
	assert.Equal(t, 24*time.Hour, cfg.Ledger.TTL)
	assert.Equal(t, "raysim:run:", cfg.Ledger.Prefix, "unset keys keep their defaults")

	codec, err := cfg.ServerCodec()
	require.NoError(t, err)
	assert.Equal(t, protocol.FramingLengthPrefixed, codec.Framing())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  chunk_size: 10\n")
	cfg, err := load(path, []string{
		"RAYSIM_SERVER_CHUNK_SIZE=2048",
		"RAYSIM_SERVER_ISOLATE=true",
		"RAYSIM_CLIENT_DIAL_TIMEOUT=1m",
		"RAYSIM_APPLICATION_ARGS=-a,-b",
		"UNRELATED=1",
		"RAYSIM_CONFIG=elsewhere.yaml",
	})
	require.NoError(t, err)

	assert.Equal(t, 2048, cfg.Server.ChunkSize)
	assert.True(t, cfg.Server.Isolate)
	assert.Equal(t, time.Minute, cfg.Client.DialTimeout)
	assert.Equal(t, []string{"-a", "-b"}, cfg.Application.Args)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     []string
		is      error
	}{
		{name: "remote without address", content: "engine:\n  kind: remote\n", is: domain.ErrMissingAddress},
		{name: "unknown framing", content: "server:\n  framing: morse\n"},
		{name: "unknown engine", content: "engine:\n  kind: quantum\n"},
		{name: "redis without address", content: "ledger:\n  backend: redis\n"},
		{name: "unknown key", content: "server:\n  colour: blue\n"},
		{name: "bad duration", env: []string{"RAYSIM_LEDGER_TTL=soon"}},
		{name: "bad yaml", content: "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(writeConfig(t, tt.content), tt.env)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}
