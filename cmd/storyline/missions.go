package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/storyline/internal/cli"
	"github.com/aretw0/storyline/internal/presentation/graph"
	"github.com/aretw0/storyline/pkg/adapters/loam"
	"github.com/aretw0/storyline/pkg/domain"
)

var missionsCmd = &cobra.Command{
	Use:   "missions",
	Short: "Inspect the mission catalog",
}

var missionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the available missions",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loam.Open(cfg.Missions.Dir)
		if err != nil {
			return err
		}
		missions, err := loader.ListMissions(cmd.Context())
		if err != nil {
			return err
		}
		if len(missions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No missions found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSCENES")
		for _, m := range missions {
			fmt.Fprintf(w, "%s\t%s\t%d\n", m.ID, m.Title, m.Scenes)
		}
		return w.Flush()
	},
}

var missionsShowCmd = &cobra.Command{
	Use:   "show <mission-id>",
	Short: "Print a mission definition as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loam.Open(cfg.Missions.Dir)
		if err != nil {
			return err
		}
		m, err := loader.GetMission(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(m)
	},
}

var missionsGraphCmd = &cobra.Command{
	Use:   "graph <mission-id>",
	Short: "Export the mission as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph TD) of the mission's scenes and dialogues.
With --user the player's checkpoint is highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		rt, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		m, err := rt.Engine.Mission(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if user != "" {
			rec, err := rt.Engine.Progress(cmd.Context(), user, m.ID)
			switch {
			case err == nil:
				overlay = &graph.Overlay{Step: rec.Step, Complete: rec.IsComplete}
			case errors.Is(err, domain.ErrProgressNotFound):
				overlay = &graph.Overlay{}
			default:
				return err
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(m, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(missionsCmd)
	missionsCmd.AddCommand(missionsLsCmd)
	missionsCmd.AddCommand(missionsShowCmd)
	missionsCmd.AddCommand(missionsGraphCmd)

	missionsGraphCmd.Flags().StringP("user", "u", "", "Highlight this player's checkpoint")
}
