package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/aretw0/raysim/internal/presentation/tui"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/transport"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <scene.rml>",
	Short: "Send one scene to a simulation server and fetch the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exports, _ := cmd.Flags().GetStringSlice("export")
		dir, _ := cmd.Flags().GetString("out")
		if v, _ := cmd.Flags().GetString("address"); cmd.Flags().Changed("address") {
			cfg.Client.Address = v
		}
		if v, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
			cfg.Client.Port = v
		}
		if cfg.Client.Address == "" || cfg.Client.Port <= 0 {
			return domain.ErrMissingAddress
		}

		scene, err := domain.LoadScene(args[0])
		if err != nil {
			return err
		}
		codec, err := cfg.ClientCodec()
		if err != nil {
			return err
		}
		client := transport.NewClient(
			net.JoinHostPort(cfg.Client.Address, strconv.Itoa(cfg.Client.Port)),
			transport.WithClientCodec(codec),
			transport.WithClientLogger(logger),
			transport.WithDialTimeout(cfg.Client.DialTimeout),
		)

		out := cmd.OutOrStdout()
		started := time.Now()
		paths, err := client.Do(cmd.Context(), dir, scene.Document, exports)
		if err != nil {
			tui.PrintOutcome(out, outcomeOf(err), err.Error())
			return err
		}
		tui.PrintOutcome(out, domain.OutcomeSuccess, fmt.Sprintf("%d files in %s", len(paths), time.Since(started).Round(time.Millisecond)))
		for _, p := range paths {
			fmt.Fprintln(out, "  "+p)
		}
		return nil
	},
}

func outcomeOf(err error) domain.Outcome {
	switch {
	case errors.Is(err, domain.ErrInsufficientRays):
		return domain.OutcomePostprocessError
	case errors.Is(err, domain.ErrSimulationFailed):
		return domain.OutcomeSimulationError
	default:
		return domain.OutcomeProtocolError
	}
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringSliceP("export", "e", nil, "Element to export (repeatable)")
	submitCmd.Flags().StringP("out", "o", ".", "Directory receiving the result files")
	submitCmd.Flags().String("address", "", "Server host (overrides client.address)")
	submitCmd.Flags().IntP("port", "p", 0, "Server port (overrides client.port)")
	_ = submitCmd.MarkFlagRequired("export")
}
