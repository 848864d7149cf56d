package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyline/internal/cli"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Manage player checkpoints",
	Long:  `List, inspect and reset the checkpoints kept by the configured progress store.`,
}

var progressLsCmd = &cobra.Command{
	Use:   "ls <user-id>",
	Short: "List the checkpoints of a player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		recs, err := rt.Engine.ListProgress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MISSION\tSTEP\tSCENE\tPROGRESS\tCOMPLETE\tUPDATED")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%d\t%s\t%d%%\t%t\t%s\n",
				r.MissionID, r.Step, r.SceneID, r.Progress, r.IsComplete, r.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var progressInspectCmd = &cobra.Command{
	Use:   "inspect <user-id> <mission-id>",
	Short: "Print a checkpoint as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		rec, err := rt.Engine.Progress(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var progressRmCmd = &cobra.Command{
	Use:   "rm <user-id> <mission-id>...",
	Short: "Reset one or more checkpoints",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		user := args[0]
		failed := 0
		for _, mission := range args[1:] {
			if err := rt.Engine.ResetProgress(cmd.Context(), user, mission); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error resetting '%s': %v\n", mission, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset '%s' for '%s'\n", mission, user)
		}
		if failed > 0 {
			return fmt.Errorf("%d checkpoints could not be reset", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.AddCommand(progressLsCmd)
	progressCmd.AddCommand(progressInspectCmd)
	progressCmd.AddCommand(progressRmCmd)
}
