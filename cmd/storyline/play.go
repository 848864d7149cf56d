package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyline"
	"github.com/aretw0/storyline/internal/cli"
	"github.com/aretw0/storyline/internal/presentation/tui"
)

var playCmd = &cobra.Command{
	Use:   "play <mission-id>",
	Short: "Play a mission in the terminal",
	Long: `Plays a mission in the terminal, resuming from the player's checkpoint.
Press Enter to continue; b goes back, p pauses, r resumes, d completes the
visible action and q quits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		auto, _ := cmd.Flags().GetBool("auto")
		jsonMode, _ := cmd.Flags().GetBool("json")
		watch, _ := cmd.Flags().GetBool("watch")
		fresh, _ := cmd.Flags().GetBool("fresh")

		if watch {
			cfg.Missions.Watch = true
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rt, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		if !jsonMode && cli.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, storyline.Version)
		}

		return cli.Play(ctx, rt.Engine, cli.PlayOptions{
			UserID:    user,
			MissionID: args[0],
			Auto:      auto,
			JSON:      jsonMode,
			Watch:     cfg.Missions.Watch,
			Fresh:     fresh,
			In:        os.Stdin,
			Out:       os.Stdout,
		})
	},
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "player"
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringP("user", "u", defaultUser(), "Player id used for the checkpoint")
	playCmd.Flags().Bool("auto", false, "Advance automatically and complete actions")
	playCmd.Flags().Bool("json", false, "Write events as NDJSON")
	playCmd.Flags().BoolP("watch", "w", false, "Resume from the checkpoint when content changes")
	playCmd.Flags().Bool("fresh", false, "Discard the checkpoint before playing")
}
