package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List ingested projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := os.ReadDir(cfg.Paths.DataDir)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "No projects yet. Run loom ingest to create one.")
					return nil
				}
				return err
			}
			var projects []string
			for _, entry := range entries {
				if entry.IsDir() {
					projects = append(projects, entry.Name())
				}
			}
			sort.Strings(projects)
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects yet. Run loom ingest to create one.")
				return nil
			}
			for _, project := range projects {
				fmt.Fprintln(cmd.OutOrStdout(), project)
			}
			return nil
		},
	}
}
