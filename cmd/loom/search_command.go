package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/config"
	"loom/internal/search"
	"loom/internal/services/embedding"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "search <project> <query>",
		Short: "Search a project's atoms",
		Long:  "Ranks atoms against the query. Uses the embedding index when embeddings are enabled and built; otherwise falls back to TF-IDF lexical matching.",
		Args:  cobra.MinimumNArgs(2),
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

			query := strings.Join(args[1:], " ")
			var results []api.SearchResult

			if cfg.Embed.Enabled {
				results, err = vectorResults(cmd, cfg, project, query, limitFlag)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: vector search unavailable: %v\n", err)
				}
			}
			if results == nil {
				results, err = project.service().SearchLexical(cmd.Context(), query, limitFlag)
				if err != nil {
					return err
				}
			}

			if jsonFlag {
				return writeJSON(cmd, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}
			for _, result := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %.3f  %s\n", result.ID, result.Score, result.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")
	return cmd
}

func vectorResults(cmd *cobra.Command, cfg *config.Config, project *projectHandles, query string, limit int) ([]api.SearchResult, error) {
	client, err := embedding.NewClient(embedding.Config{
		APIKey:  cfg.Embed.APIKey,
		BaseURL: cfg.Embed.BaseURL,
		Model:   cfg.Embed.Model,
	})
	if err != nil {
		return nil, err
	}

	store, err := search.Open(project.Dir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	count, err := store.Count(cmd.Context())
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("no embeddings indexed; re-run loom ingest with embeddings enabled")
	}

	vector, err := client.EmbedOne(cmd.Context(), query)
	if err != nil {
		return nil, err
	}
	matches, err := store.Query(cmd.Context(), vector, limit)
	if err != nil {
		return nil, err
	}
	return api.FromMatches(matches, "vector"), nil
}
