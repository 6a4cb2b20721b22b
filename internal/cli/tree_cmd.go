package cli

import (
	"fmt"

	"github.com/alexanderramin/wbs/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newTreeCmd(app *App) *cobra.Command {
	var projectID string
	var showAll, showIDs bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show a project's WBS as a tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			view, err := app.Items.LoadTree(ctx, perms, projectID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, formatter.FormatForest(view.Forest, formatter.TreeOptions{
				ShowCollapsed: showAll,
				ShowIDs:       showIDs,
			}))
			if diag := formatter.FormatDiagnostics(view.Forest.Anomalies, view.Stale, view.Cycles); diag != "" {
				fmt.Fprintln(out)
				fmt.Fprint(out, diag)
			}

			footer := fmt.Sprintf("%d items", view.Forest.Count())
			if view.FromCache {
				footer += " (cached)"
			}
			fmt.Fprintln(out, formatter.Dim(footer))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Show children of collapsed items")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show item IDs")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
