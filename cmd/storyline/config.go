package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/storyline/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long:  `Prints the configuration after the config file, .env and environment are applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, _ := cmd.Flags().GetBool("env")
		out := cmd.OutOrStdout()
		if env {
			desc, err := config.Describe()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, desc)
			return nil
		}

		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg.Redacted())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().Bool("env", false, "List the environment variables instead")
}
