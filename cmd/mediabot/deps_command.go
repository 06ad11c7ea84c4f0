package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediabot/internal/api"
	"mediabot/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check availability of external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := api.FromDependencies(deps.CheckBinaries(deps.ForConfig(cfg)))
			if ctx.jsonMode() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"dependencies": statuses})
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(statuses, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
}
