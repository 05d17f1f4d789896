// Package config loads raysim.yaml and RAYSIM_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/raysim/pkg/adapters/process"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/protocol"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "raysim.yaml"

// EnvPrefix prefixes environment overrides: RAYSIM_<SECTION>_<KEY>.
const EnvPrefix = "RAYSIM_"

// Engine kinds.
const (
	EngineLocal  = "local"
	EngineRemote = "remote"
)

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

type Config struct {
	Log         LogConfig      `mapstructure:"log"`
	Server      ServerConfig   `mapstructure:"server"`
	Client      ClientConfig   `mapstructure:"client"`
	Engine      EngineConfig   `mapstructure:"engine"`
	Application process.Config `mapstructure:"application"`
	Ledger      LedgerConfig   `mapstructure:"ledger"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Listen      string        `mapstructure:"listen"`
	Dir         string        `mapstructure:"dir"`
	Isolate     bool          `mapstructure:"isolate"`
	ChunkSize   int           `mapstructure:"chunk_size"`
	Framing     string        `mapstructure:"framing"`
	Compress    string        `mapstructure:"compress"`
	AdminListen string        `mapstructure:"admin_listen"`
	Analyze     bool          `mapstructure:"analyze"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	// RequestIdle ends a delimited request whose sender never half-closes.
	RequestIdle time.Duration `mapstructure:"request_idle"`
}

type ClientConfig struct {
	Address     string        `mapstructure:"address"`
	Port        int           `mapstructure:"port"`
	Framing     string        `mapstructure:"framing"`
	Compress    string        `mapstructure:"compress"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type EngineConfig struct {
	// Kind is "local" or "remote".
	Kind string `mapstructure:"kind"`
	// Dir is the working directory shared by the trigger device and detectors.
	Dir string `mapstructure:"dir"`
}

type LedgerConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Listen:      "0.0.0.0:8888",
			Dir:         "raysim-server",
			ChunkSize:   protocol.DefaultChunkSize,
			Framing:     string(protocol.FramingDelimited),
			LockTTL:     time.Hour,
			RequestIdle: protocol.DefaultRequestIdle,
		},
		Client: ClientConfig{
			Framing:     string(protocol.FramingDelimited),
			Port:        8888,
			DialTimeout: 10 * time.Second,
		},
		Engine: EngineConfig{Kind: EngineLocal, Dir: "raysim-tmp"},
		Application: process.Config{
			Command: "rayui",
		},
		Ledger: LedgerConfig{
			Backend: LedgerMemory,
			Prefix:  "raysim:run:",
			TTL:     7 * 24 * time.Hour,
		},
	}
}

// Load reads path (or DefaultFile when path is empty), applies environment
// overrides on top and validates the result. A missing default file is not an error.
func Load(path string) (Config, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (Config, error) {
	raw := map[string]any{}

	file := path
	if file == "" {
		file = DefaultFile
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	case errors.Is(err, os.ErrNotExist) && path == "":
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	applyEnv(raw, environ)

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var sections = []string{"log", "server", "client", "engine", "application", "ledger"}

// applyEnv sets raw[section][key] from every RAYSIM_SECTION_KEY variable naming a known section.
func applyEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
		if !ok || key == "" || !slices.Contains(sections, section) {
			continue
		}
		sub, ok := raw[section].(map[string]any)
		if !ok {
			sub = map[string]any{}
			raw[section] = sub
		}
		sub[key] = value
	}
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	if _, err := protocol.ParseFraming(c.Server.Framing); err != nil {
		errs = append(errs, fmt.Errorf("server.framing: %w", err))
	}
	if _, err := protocol.ParseFraming(c.Client.Framing); err != nil {
		errs = append(errs, fmt.Errorf("client.framing: %w", err))
	}
	if _, err := protocol.ParseCompression(c.Server.Compress); err != nil {
		errs = append(errs, fmt.Errorf("server.compress: %w", err))
	}
	if _, err := protocol.ParseCompression(c.Client.Compress); err != nil {
		errs = append(errs, fmt.Errorf("client.compress: %w", err))
	}
	if c.Server.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("server.chunk_size must be positive, got %d", c.Server.ChunkSize))
	}
	switch c.Engine.Kind {
	case EngineLocal:
	case EngineRemote:
		if c.Client.Address == "" || c.Client.Port <= 0 {
			errs = append(errs, domain.ErrMissingAddress)
		}
	default:
		errs = append(errs, fmt.Errorf("engine.kind: unknown engine %q", c.Engine.Kind))
	}
	switch c.Ledger.Backend {
	case LedgerMemory:
	case LedgerRedis:
		if c.Ledger.RedisAddr == "" {
			errs = append(errs, errors.New("ledger.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.backend: unknown backend %q", c.Ledger.Backend))
	}
	return errors.Join(errs...)
}

// ServerCodec builds the codec the server answers with.
func (c Config) ServerCodec() (protocol.Codec, error) {
	framing, err := protocol.ParseFraming(c.Server.Framing)
	if err != nil {
		return nil, err
	}
	compression, err := protocol.ParseCompression(c.Server.Compress)
	if err != nil {
		return nil, err
	}
	return protocol.NewCodec(framing,
		protocol.WithChunkSize(c.Server.ChunkSize),
		protocol.WithCompression(compression),
		protocol.WithRequestIdle(c.Server.RequestIdle),
	)
}

// ClientCodec builds the codec the client speaks.
func (c Config) ClientCodec() (protocol.Codec, error) {
	framing, err := protocol.ParseFraming(c.Client.Framing)
	if err != nil {
		return nil, err
	}
	compression, err := protocol.ParseCompression(c.Client.Compress)
	if err != nil {
		return nil, err
	}
	return protocol.NewCodec(framing, protocol.WithCompression(compression))
}
