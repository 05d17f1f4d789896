package main

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/raysim/internal/config"
	"github.com/aretw0/raysim/pkg/adapters/memory"
	"github.com/aretw0/raysim/pkg/adapters/process"
	"github.com/aretw0/raysim/pkg/adapters/redis"
	"github.com/aretw0/raysim/pkg/engine"
	"github.com/aretw0/raysim/pkg/ports"
	"github.com/aretw0/raysim/pkg/postprocess"
	"github.com/aretw0/raysim/pkg/transport"
)

// newLocalEngine builds a local engine driving the configured ray-tracing program.
func newLocalEngine(c config.Config, log *slog.Logger) *engine.Local {
	return engine.NewLocal(
		process.Factory(c.Application, process.WithLogger(log)),
		postprocess.NewAnalyzer(),
		engine.WithLogger(log),
		engine.WithAnalyze(c.Server.Analyze),
	)
}

// newEngine builds the engine selected by engine.kind.
func newEngine(c config.Config, log *slog.Logger) (ports.Engine, error) {
	switch c.Engine.Kind {
	case config.EngineRemote:
		codec, err := c.ClientCodec()
		if err != nil {
			return nil, err
		}
		return engine.NewRemote(c.Client.Address, c.Client.Port,
			engine.WithRemoteLogger(log),
			engine.WithClientOptions(
				transport.WithClientCodec(codec),
				transport.WithDialTimeout(c.Client.DialTimeout),
			),
		)
	case config.EngineLocal:
		return newLocalEngine(c, log), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", c.Engine.Kind)
	}
}

// newLedger builds the run ledger and the locker serializing simulations.
// The returned close function releases backend connections.
func newLedger(c config.Config) (ports.RunLedger, ports.Locker, func() error) {
	if c.Ledger.Backend == config.LedgerRedis {
		ledger := redis.New(c.Ledger.RedisAddr, c.Ledger.RedisPassword, c.Ledger.RedisDB,
			redis.WithPrefix(c.Ledger.Prefix),
			redis.WithTTL(c.Ledger.TTL),
		)
		return ledger, redis.NewLocker(ledger.Client(), c.Ledger.Prefix+"lock:"), ledger.Close
	}
	return memory.NewLedger(), memory.NewLocker(), func() error { return nil }
}
