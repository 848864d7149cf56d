package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyline/pkg/action"
	"github.com/aretw0/storyline/pkg/adapters/loam"
	"github.com/aretw0/storyline/pkg/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check every mission for consistency",
	Long: `Loads every mission in the content directory and reports structural errors
(missing scenes, conflicting dialogue flags, unknown speakers) and warnings
(unregistered actions, narration without a measurable duration).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Missions.Dir
		if len(args) > 0 {
			dir = args[0]
		}
		strict, _ := cmd.Flags().GetBool("strict")
		remote, _ := cmd.Flags().GetStringSlice("remote-action")

		loader, err := loam.Open(dir)
		if err != nil {
			return err
		}

		reg := action.DefaultRegistry()
		reg.RegisterRemote(remote...)

		reports, err := validate.Loader(cmd.Context(), loader, validate.WithActions(reg), validate.WithStrict(strict))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, r := range reports {
			for _, w := range r.Warnings {
				fmt.Fprintf(out, "WARN  %s: %s\n", r.MissionID, w)
			}
			if r.OK() {
				fmt.Fprintf(out, "OK    %s\n", r.MissionID)
				continue
			}
			failed++
			for _, e := range validate.ValidationErrors(r.Err) {
				fmt.Fprintf(out, "FAIL  %s: %v\n", r.MissionID, e)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d missions failed validation", failed, len(reports))
		}
		fmt.Fprintf(out, "%d missions are valid ✅\n", len(reports))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Treat warnings as errors")
	validateCmd.Flags().StringSlice("remote-action", nil, "Action types rendered by an external client")
}
