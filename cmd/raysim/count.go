package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/raysim"
	"github.com/aretw0/raysim/internal/presentation/tui"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/runner"
	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count <scene.rml>",
	Short: "Read simulated detectors through a count plan",
	Long: `Runs a count plan over simulated detectors, one per --detector. Every point
triggers a simulation with the configured engine (local or remote) and reads
intensity, bandwidth and focus sizes from its results.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detectors, _ := cmd.Flags().GetStringSlice("detector")
		num, _ := cmd.Flags().GetInt("num")
		if v, _ := cmd.Flags().GetString("dir"); cmd.Flags().Changed("dir") {
			cfg.Engine.Dir = v
		}

		scene, err := domain.LoadScene(args[0])
		if err != nil {
			return err
		}
		eng, err := newEngine(cfg, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		sim, err := raysim.New(cfg.Engine.Dir, scene, eng, detectors,
			raysim.WithLogger(logger),
			raysim.WithEventHandler(func(ev runner.Event) {
				tui.PrintOutcome(out, domain.OutcomeSuccess, fmt.Sprintf("point %d/%d", ev.Seq, num))
			}),
		)
		if err != nil {
			return err
		}

		// An interrupt cancels the pending simulation.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := sim.Count(ctx, num)
		if err != nil {
			return err
		}

		render := tui.NewRenderer(out)
		report, err := render(tui.EventsReport(result.Events))
		if err != nil {
			return err
		}
		fmt.Fprint(out, report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
	countCmd.Flags().StringSliceP("detector", "d", nil, "Simulated detector, named after the exported element (repeatable)")
	countCmd.Flags().IntP("num", "n", 1, "Number of points")
	countCmd.Flags().String("dir", "", "Working directory shared with the detectors (overrides engine.dir)")
	_ = countCmd.MarkFlagRequired("detector")
}
