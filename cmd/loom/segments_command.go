package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSegmentsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Inspect a project's segment table",
	}
	cmd.AddCommand(newSegmentsListCommand(ctx))
	cmd.AddCommand(newSegmentsShowCommand(ctx))
	return cmd
}

func newSegmentsListCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List segments with their analysis state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.openProject(args[0])
			if err != nil {
				return err
			}
			defer project.Close()

			segs, err := project.service().Segments(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, segs)
			}
			rows := make([][]string, 0, len(segs))
			for _, seg := range segs {
				rows = append(rows, []string{
					seg.SegmentID,
					seg.StartTime + " - " + seg.EndTime,
					strconv.Itoa(seg.AtomCount),
					seg.Status,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Segment", "Window", "Atoms", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newSegmentsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project> <segment-id>",
		Short: "Show one segment and its atoms",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.openProject(args[0])
			if err != nil {
				return err
			}
			defer project.Close()

			seg, err := project.service().Segment(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd, seg)
		},
	}
}
