package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyline"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of storyline",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "storyline version %s\n", strings.TrimSpace(storyline.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
