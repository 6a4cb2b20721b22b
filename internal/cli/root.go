package cli

import (
	"context"
	"time"

	"github.com/alexanderramin/wbs/internal/cache"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/alexanderramin/wbs/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// App holds the services and settings used by CLI commands.
type App struct {
	Items       service.WBSService
	Links       service.TaskLinkService
	Grants      service.PermissionAdminService
	Import      service.ImportService
	Permissions *permission.Loader

	// Feed and Cache back the watch command.
	Feed  feed.Subscriber
	Cache *cache.ProjectCache

	// UserID and CompanyID are the configured identity.
	UserID    string
	CompanyID string

	Log *zap.Logger

	// IsInteractive reports whether prompts may be shown.
	IsInteractive func() bool
	// Confirm asks a yes/no question. Defaults to a huh form.
	Confirm func(title string) (bool, error)
	// Now is the clock used for relative dates.
	Now func() time.Time
}

// NewRootCmd creates the top-level "wbs" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "wbs",
		Short:         "Work breakdown structure engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&app.CompanyID, "company", app.CompanyID, "Company (tenant) ID")

	root.AddCommand(
		newItemCmd(app),
		newTreeCmd(app),
		newPredCmd(app),
		newTaskCmd(app),
		newPermCmd(app),
		newWatchCmd(app),
		newImportCmd(app),
	)
	return root
}

// perms loads the caller's grant set for the active company.
func (a *App) perms(ctx context.Context) (*permission.Set, error) {
	return a.Permissions.Load(ctx, a.CompanyID)
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) confirm(title string) (bool, error) {
	if a.Confirm != nil {
		return a.Confirm(title)
	}
	var ok bool
	if err := deleteConfirmForm(title, &ok).Run(); err != nil {
		return false, err
	}
	return ok, nil
}
