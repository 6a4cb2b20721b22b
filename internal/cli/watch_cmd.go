package cli

import (
	"context"
	"fmt"

	"github.com/alexanderramin/wbs/internal/cache"
	"github.com/alexanderramin/wbs/internal/cli/formatter"
	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *App) *cobra.Command {
	var projectID string
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream a project's WBS changes",
		Long: `Stream a project's WBS changes. Runs until interrupted, or until
--count events have been printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			perms, err := app.perms(cmd.Context())
			if err != nil {
				return err
			}
			if err := perms.RequireView(domain.ModuleProjects, domain.SubModuleWBS); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			seen := 0
			syncer := cache.NewSyncer(app.Cache, app.Feed, app.logger())
			syncer.OnEvent = func(ev feed.Event) {
				if count > 0 && seen >= count {
					return
				}
				seen++
				fmt.Fprintln(out, formatter.FormatEvent(ev))
				if count > 0 && seen >= count {
					cancel()
				}
			}

			done, err := syncer.Start(ctx, projectID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), formatter.Dim("Watching project "+projectID+"..."))
			<-done
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many events (0 = no limit)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
