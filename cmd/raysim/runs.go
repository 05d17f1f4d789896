package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/raysim/internal/config"
	"github.com/aretw0/raysim/internal/presentation/tui"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the run ledger of a simulation server",
	Long: `Shows recent simulation requests. With the redis ledger backend the records
are read directly; otherwise they are fetched from the server's admin listener.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, _ := cmd.Flags().GetString("admin")
		limit, _ := cmd.Flags().GetInt("limit")

		var (
			runs []domain.RunRecord
			err  error
		)
		if cfg.Ledger.Backend == config.LedgerRedis {
			ledger, _, closeLedger := newLedger(cfg)
			defer closeLedger()
			runs, err = ledger.List(cmd.Context())
		} else {
			runs, err = fetchRuns(cmd, admin)
		}
		if err != nil {
			return err
		}
		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}

		out := cmd.OutOrStdout()
		report, err := tui.NewRenderer(out)(tui.RunsReport(runs))
		if err != nil {
			return err
		}
		fmt.Fprint(out, report)
		return nil
	},
}

func fetchRuns(cmd *cobra.Command, admin string) ([]domain.RunRecord, error) {
	if admin == "" {
		admin = cfg.Server.AdminListen
	}
	if admin == "" {
		return nil, fmt.Errorf("no admin address: set --admin or server.admin_listen")
	}
	if !strings.Contains(admin, "://") {
		admin = "http://" + admin
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, strings.TrimRight(admin, "/")+"/runs", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach admin server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("admin server answered %s", resp.Status)
	}

	var runs []domain.RunRecord
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		return nil, fmt.Errorf("invalid runs response: %w", err)
	}
	return runs, nil
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().String("admin", "", "Admin address of the server (default server.admin_listen)")
	runsCmd.Flags().IntP("limit", "n", 20, "Show at most this many runs")
}
