package cli

import (
	"fmt"

	"github.com/alexanderramin/wbs/internal/cli/formatter"
	"github.com/alexanderramin/wbs/internal/service"
	"github.com/spf13/cobra"
)

func newPredCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pred",
		Short: "Manage predecessor links between items",
	}
	cmd.AddCommand(newPredAddCmd(app), newPredRemoveCmd(app))
	return cmd
}

func newPredAddCmd(app *App) *cobra.Command {
	var relType string
	var lag int

	cmd := &cobra.Command{
		Use:   "add ITEM PREDECESSOR",
		Short: "Make PREDECESSOR a predecessor of ITEM",
		Long: `Make PREDECESSOR a predecessor of ITEM. Relation types are
finish_to_start (default), start_to_start, finish_to_finish and
start_to_finish; fs, ss, ff and sf are accepted too. Adding a link that
already exists updates its type and lag.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			w, err := app.Items.AddPredecessor(ctx, perms, args[0], service.PredecessorInput{
				PredecessorID: args[1],
				RelationType:  relType,
				LagDays:       lag,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d predecessors\n", formatter.Bold(w.Title), len(w.Predecessors))
			return nil
		},
	}
	cmd.Flags().StringVarP(&relType, "type", "t", "", "Relation type")
	cmd.Flags().IntVar(&lag, "lag", 0, "Lag in days (negative for lead)")
	return cmd
}

func newPredRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ITEM PREDECESSOR",
		Short: "Remove a predecessor link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			w, err := app.Items.RemovePredecessor(ctx, perms, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d predecessors\n", formatter.Bold(w.Title), len(w.Predecessors))
			return nil
		},
	}
}
