package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aretw0/raysim"
	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/internal/metrics"
	"github.com/aretw0/raysim/internal/presentation/tui"
	httpAdapter "github.com/aretw0/raysim/pkg/adapters/http"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulation server",
	Long: `Starts the simulation server. Every TCP connection carries one request: the
scene is traced with the configured ray-tracing program, the exports are
analyzed and the results are streamed back. An optional admin HTTP listener
serves /healthz, /metrics and the run ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetString("listen"); cmd.Flags().Changed("listen") {
			cfg.Server.Listen = v
		}
		if v, _ := cmd.Flags().GetString("admin"); cmd.Flags().Changed("admin") {
			cfg.Server.AdminListen = v
		}
		if v, _ := cmd.Flags().GetString("dir"); cmd.Flags().Changed("dir") {
			cfg.Server.Dir = v
		}
		if v, _ := cmd.Flags().GetBool("isolate"); cmd.Flags().Changed("isolate") {
			cfg.Server.Isolate = v
		}

		if err := os.MkdirAll(cfg.Server.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create server directory: %w", err)
		}
		log, closer, err := logging.NewFile(logging.ParseLevel(cfg.Log.Level), filepath.Join(cfg.Server.Dir, domain.ServerLogFile))
		if err != nil {
			return err
		}
		defer closer.Close()

		codec, err := cfg.ServerCodec()
		if err != nil {
			return err
		}
		ledger, locker, closeLedger := newLedger(cfg)
		defer closeLedger()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		srv := transport.NewServer(cfg.Server.Dir, newLocalEngine(cfg, log),
			transport.WithServerCodec(codec),
			transport.WithServerLogger(log),
			transport.WithMetrics(metrics.NewServer(reg)),
			transport.WithLedger(ledger),
			transport.WithLocker(locker, cfg.Server.LockTTL),
			transport.WithIsolation(cfg.Server.Isolate),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tui.PrintBanner(cmd.ErrOrStderr())
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.Server.Listen)
		})

		if cfg.Server.AdminListen != "" {
			admin := &http.Server{
				Addr:              cfg.Server.AdminListen,
				Handler:           httpAdapter.NewHandler(ledger, reg, log, raysim.Version),
				ReadHeaderTimeout: 10 * time.Second,
			}
			g.Go(func() error {
				log.Info("Admin server started", "addr", admin.Addr)
				if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
				defer cancel()
				if err := admin.Shutdown(shutdownCtx); err != nil {
					log.Warn("Admin server did not stop gracefully", "error", err)
					return admin.Close()
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		log.Info("raysim server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "TCP address for simulation requests (overrides server.listen)")
	serveCmd.Flags().String("admin", "", "HTTP address for health, metrics and runs (overrides server.admin_listen)")
	serveCmd.Flags().String("dir", "", "Server working directory (overrides server.dir)")
	serveCmd.Flags().Bool("isolate", false, "Give every connection its own working directory")
}
