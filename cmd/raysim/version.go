package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/raysim"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of raysim",
	// Printing the version needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "raysim version %s\n", strings.TrimSpace(raysim.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
