package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "reset <project> [segment-id]",
		Short: "Reset segments to atomized so they get re-analyzed",
		Long:  "Resets a single segment, or with --all every segment, back to the atomized state. The aggregated index is left untouched; re-analysis merges idempotently.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.openProject(args[0])
			if err != nil {
				return err
			}
			defer project.Close()

			if allFlag {
				count, err := project.Store.ResetAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d segments\n", count)
				return nil
			}
			if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
				return fmt.Errorf("segment id required unless --all is given")
			}
			if err := project.Store.Reset(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Reset every segment")
	return cmd
}
