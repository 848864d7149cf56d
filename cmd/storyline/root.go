package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyline/internal/cli"
	"github.com/aretw0/storyline/internal/config"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "storyline",
	Short: "Storyline plays narrated, illustrated mission scenes",
	Long: `Storyline is a playback engine for story missions: scenes with backgrounds,
characters, narrated and typed dialogues and interactive mini-games.
Missions are Markdown, YAML or JSON documents in a content directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("dir") {
			loaded.Missions.Dir, _ = cmd.Flags().GetString("dir")
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		cfg = loaded
		logger = cli.NewLogger(cfg.Log)
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
	rootCmd.PersistentFlags().String("config", "", "YAML config file (environment variables apply when omitted)")
	rootCmd.PersistentFlags().String("dir", "", "Directory containing the missions (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides config)")
}
