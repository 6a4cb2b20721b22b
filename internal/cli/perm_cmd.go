package cli

import (
	"fmt"

	"github.com/alexanderramin/wbs/internal/cli/formatter"
	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/service"
	"github.com/spf13/cobra"
)

// permTarget holds the user/module selectors shared by the perm subcommands.
type permTarget struct {
	user, module, sub string
}

func (t *permTarget) bind(cmd *cobra.Command, app *App, withModule bool) {
	cmd.Flags().StringVar(&t.user, "user", app.UserID, "User ID")
	if withModule {
		cmd.Flags().StringVar(&t.module, "module", domain.ModuleProjects, "Module ID")
		cmd.Flags().StringVar(&t.sub, "sub", "", "Sub-module ID (empty for a module-level row)")
	}
}

func (t *permTarget) subModule() *string {
	if t.sub == "" {
		return nil
	}
	return &t.sub
}

func newPermCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perm",
		Short: "Administer module and sub-module grants",
	}
	cmd.AddCommand(
		newPermGrantCmd(app),
		newPermRevokeCmd(app),
		newPermListCmd(app),
		newPermCheckCmd(app),
	)
	return cmd
}

func newPermGrantCmd(app *App) *cobra.Command {
	var t permTarget
	var level string

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Create or replace a grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Grants.Grant(cmd.Context(), service.GrantInput{
				UserID:      t.user,
				CompanyID:   app.CompanyID,
				ModuleID:    t.module,
				SubModuleID: t.subModule(),
				AccessLevel: level,
			})
			if err != nil {
				return err
			}
			target := p.ModuleID
			if key := p.SubModuleKey(); key != "" {
				target += "/" + key
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Granted %s on %s to %s\n", formatter.AccessPill(p.AccessLevel), target, p.UserID)
			return nil
		},
	}
	t.bind(cmd, app, true)
	cmd.Flags().StringVar(&level, "level", string(domain.AccessView), "Access level: no_access, can_view or can_edit")
	return cmd
}

func newPermRevokeCmd(app *App) *cobra.Command {
	var t permTarget

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Delete a grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Grants.Revoke(cmd.Context(), t.user, app.CompanyID, t.module, t.subModule()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s grant for %s\n", t.module, t.user)
			return nil
		},
	}
	t.bind(cmd, app, true)
	return cmd
}

func newPermListCmd(app *App) *cobra.Command {
	var t permTarget

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			grants, err := app.Grants.List(cmd.Context(), t.user, app.CompanyID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatGrants(grants))
			return nil
		},
	}
	t.bind(cmd, app, false)
	return cmd
}

func newPermCheckCmd(app *App) *cobra.Command {
	var t permTarget

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve a user's access to a module and sub-module",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := app.Grants.Check(cmd.Context(), t.user, app.CompanyID, t.module, t.sub)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatAccess(r.UserID, r.ModuleID, r.SubModuleID, r.ModuleAccess, r.SubModuleLevel))
			return nil
		},
	}
	t.bind(cmd, app, true)
	return cmd
}
