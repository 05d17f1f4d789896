package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/raysim/internal/config"
	"github.com/aretw0/raysim/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "raysim",
	Short: "raysim runs ray-tracing simulations in place of detector acquisitions",
	Long: `raysim serves and submits ray-tracing simulations. A simulation server traces
scenes with the ray-tracing program and streams the analyzed results back;
clients run plans whose simulated detectors read those results.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		cfg = loaded
		logger = logging.New(logging.ParseLevel(cfg.Log.Level))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ./raysim.yaml when present)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}
