package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/analysis"
	"loom/internal/knowledge"
	"loom/internal/notifications"
	"loom/internal/workflow"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var segmentFlag string

	cmd := &cobra.Command{
		Use:   "analyze <project>",
		Short: "Run incremental analysis over a project's pending segments",
		Long:  "Analyzes pending segments one at a time, merging each result into the aggregated index. Interrupted runs resume where they left off.",
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

			completer, err := ctx.completer()
			if err != nil {
				return err
			}
			logger := ctx.logger()
			norm := knowledge.DefaultNormalizer()
			analyzer := analysis.NewAnalyzer(completer, norm, logger,
				analysis.WithAnnotationBatchSize(cfg.Analysis.AnnotationBatchSize))

			window := time.Duration(cfg.Analysis.SegmentWindowMinutes) * time.Minute
			manager := workflow.NewManager(project.Atoms, project.Store, analyzer, norm, project.Dir, window, logger)

			started := time.Now()
			if segmentID := strings.TrimSpace(segmentFlag); segmentID != "" {
				if err := manager.AnalyzeOne(cmd.Context(), segmentID); err != nil {
					return err
				}
			} else {
				if err := manager.Start(cmd.Context()); err != nil {
					return err
				}
				manager.Wait()
				if err := manager.LastError(); err != nil {
					return err
				}
			}

			progress, err := manager.Progress(cmd.Context())
			if err != nil {
				return err
			}
			notify := notifications.NewService(cfg)
			_ = notify.NotifyAnalysisCompleted(cmd.Context(), project.ID, progress.Analyzed, progress.Failed, time.Since(started))

			fmt.Fprintf(cmd.OutOrStdout(), "Analysis %s: %d/%d segments analyzed, %d failed, %d entities\n",
				progress.State, progress.Analyzed, progress.TotalSegments, progress.Failed, progress.TotalEntities)
			return nil
		},
	}

	cmd.Flags().StringVarP(&segmentFlag, "segment", "s", "", "Analyze a single segment by id (e.g. SEG_003)")
	return cmd
}
