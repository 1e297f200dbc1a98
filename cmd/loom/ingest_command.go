package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/analysis"
	"loom/internal/config"
	"loom/internal/notifications"
	"loom/internal/search"
	"loom/internal/segments"
	"loom/internal/services/embedding"
	"loom/internal/subtitles"
	"loom/internal/textutil"

	atomstore "loom/internal/atoms"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var projectFlag string

	cmd := &cobra.Command{
		Use:   "ingest <subtitle-file.srt>",
		Short: "Parse a subtitle file, atomize it, and prepare segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			srtPath := args[0]
			projectID := strings.TrimSpace(projectFlag)
			if projectID == "" {
				base := filepath.Base(srtPath)
				projectID = textutil.SanitizeProjectID(strings.TrimSuffix(base, filepath.Ext(base)))
			}

			utterances, err := subtitles.ParseFile(srtPath)
			if err != nil {
				return err
			}
			cleaned, stats := subtitles.Clean(utterances)
			if len(cleaned) == 0 {
				return fmt.Errorf("%s contains no usable subtitle cues", srtPath)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Parsed %d cues (%d empty, %d duplicates removed)\n",
				len(cleaned), stats.RemovedEmpty, stats.RemovedDuplicates)

			completer, err := ctx.completer()
			if err != nil {
				return err
			}
			logger := ctx.logger()

			atomizer := analysis.NewAtomizer(completer, logger, cfg.Analysis.AtomizeBatchSize)
			atoms, err := atomizer.Atomize(cmd.Context(), cleaned)
			if err != nil {
				return fmt.Errorf("atomize transcript: %w", err)
			}

			dir := cfg.ProjectDir(projectID)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create project directory: %w", err)
			}
			store := atomstore.NewStore(dir)
			if err := store.Save(atoms); err != nil {
				return err
			}

			segStore, err := segments.Open(dir)
			if err != nil {
				return err
			}
			defer segStore.Close()

			window := time.Duration(cfg.Analysis.SegmentWindowMinutes) * time.Minute
			segs := segments.Partition(atoms, window)
			if err := segStore.ReplaceAll(cmd.Context(), segs); err != nil {
				return err
			}

			if cfg.Embed.Enabled {
				if err := indexEmbeddings(cmd, cfg, dir, atoms); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: embedding index skipped: %v\n", err)
				}
			}

			notify := notifications.NewService(cfg)
			_ = notify.NotifyIngestCompleted(cmd.Context(), projectID, len(atoms))

			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s: %d atoms across %d segments\n",
				projectID, len(atoms), len(segs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectFlag, "project", "p", "", "Project identifier (defaults to the subtitle filename)")
	return cmd
}

// indexEmbeddings embeds every atom text and stores the vectors for search.
func indexEmbeddings(cmd *cobra.Command, cfg *config.Config, dir string, atoms []atomstore.Atom) error {
	client, err := embedding.NewClient(embedding.Config{
		APIKey:  cfg.Embed.APIKey,
		BaseURL: cfg.Embed.BaseURL,
		Model:   cfg.Embed.Model,
	})
	if err != nil {
		return err
	}

	texts := make([]string, len(atoms))
	for i, atom := range atoms {
		texts[i] = atom.MergedText
	}
	vectors, err := client.Embed(cmd.Context(), texts)
	if err != nil {
		return err
	}

	store, err := search.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	entries := make([]search.Entry, len(atoms))
	for i, atom := range atoms {
		entries[i] = search.Entry{ID: atom.AtomID, Text: atom.MergedText, Vector: vectors[i]}
	}
	if err := store.Upsert(cmd.Context(), entries); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d atom embeddings\n", len(entries))
	return nil
}
