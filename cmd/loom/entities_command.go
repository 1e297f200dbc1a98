package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newEntitiesCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "entities <project>",
		Short: "List aggregated entities ranked by mentions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.openProject(args[0])
			if err != nil {
				return err
			}
			defer project.Close()

			entities, err := project.service().Entities(cmd.Context(), strings.TrimSpace(typeFlag))
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, entities)
			}
			rows := make([][]string, 0, len(entities))
			for _, entity := range entities {
				rows = append(rows, []string{
					entity.Name,
					entity.Type,
					strconv.Itoa(entity.Mentions),
					strconv.Itoa(len(entity.Segments)),
					strings.Join(entity.Context, "; "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Entity", "Type", "Mentions", "Segments", "Context"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Filter by entity type (persons, countries, organizations, time_points, events, concepts)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newTopicsCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "topics <project>",
		Short: "List aggregated topics and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.openProject(args[0])
			if err != nil {
				return err
			}
			defer project.Close()

			topics, err := project.service().Topics(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, topics)
			}
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(topics.Primary)+len(topics.Secondary))
			for _, topic := range topics.Primary {
				rows = append(rows, []string{topic.Name, "primary", strconv.Itoa(topic.Weight)})
			}
			for _, topic := range topics.Secondary {
				rows = append(rows, []string{topic.Name, "secondary", strconv.Itoa(topic.Weight)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Topic", "Tier", "Weight"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			if len(topics.Tags) > 0 {
				fmt.Fprintf(out, "Tags: %s\n", strings.Join(topics.Tags, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")
	return cmd
}
