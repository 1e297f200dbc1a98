package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/knowledge"
	"loom/internal/workflow"
)

const (
	ansiBlue  = "\x1b[34m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status <project>",
		Short: "Show analysis progress and segment states for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			project, err := ctx.openProject(args[0])
			if err != nil {
				return err
			}
			defer project.Close()

			window := time.Duration(cfg.Analysis.SegmentWindowMinutes) * time.Minute
			manager := workflow.NewManager(project.Atoms, project.Store, nil, knowledge.DefaultNormalizer(), project.Dir, window, nil)
			progress, err := manager.Progress(cmd.Context())
			if err != nil {
				return err
			}
			segs, err := project.service().Segments(cmd.Context())
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeJSON(cmd, struct {
					Progress api.Progress  `json:"progress"`
					Segments []api.Segment `json:"segments"`
				}{api.FromProgress(progress), segs})
			}

			out := cmd.OutOrStdout()
			header := fmt.Sprintf("%s: %.1f%% analyzed (%d/%d segments, %d entities)",
				project.ID, progress.Percent, progress.Analyzed, progress.TotalSegments, progress.TotalEntities)
			if shouldColorize(out) {
				header = ansiBlue + header + ansiReset
			}
			fmt.Fprintln(out, header)

			rows := make([][]string, 0, len(segs))
			for _, seg := range segs {
				status := seg.Status
				if seg.Status == "failed" && shouldColorize(out) {
					status = ansiRed + status + ansiReset
				}
				rows = append(rows, []string{
					seg.SegmentID,
					seg.StartTime + " - " + seg.EndTime,
					strconv.Itoa(seg.AtomCount),
					status,
					strconv.Itoa(seg.EntityCount),
					seg.ErrorMessage,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Segment", "Window", "Atoms", "Status", "Entities", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")
	return cmd
}
