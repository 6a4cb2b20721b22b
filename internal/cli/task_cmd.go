package cli

import (
	"fmt"

	"github.com/alexanderramin/wbs/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newTaskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Link WBS items to tasks",
	}
	cmd.AddCommand(newTaskLinkCmd(app), newTaskUnlinkCmd(app))
	return cmd
}

func newTaskLinkCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "link ITEM TASK",
		Short: "Link an item to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			w, err := app.Links.LinkTask(ctx, perms, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linked %s to task %s\n", formatter.Bold(w.Title), args[1])
			return nil
		},
	}
}

func newTaskUnlinkCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink ITEM",
		Short: "Remove an item's task link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			w, err := app.Links.UnlinkTask(ctx, perms, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unlinked %s\n", formatter.Bold(w.Title))
			return nil
		},
	}
}
