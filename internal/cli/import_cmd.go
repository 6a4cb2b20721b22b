package cli

import (
	"fmt"

	"github.com/alexanderramin/wbs/internal/cli/formatter"
	"github.com/alexanderramin/wbs/internal/importer"
	"github.com/spf13/cobra"
)

func newImportCmd(app *App) *cobra.Command {
	var projectID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a WBS outline from a JSON file",
		Long: `Import a WBS outline from a JSON file. Items refer to each other by
"ref" and list their parent as "parent_ref"; parents must come first.
Predecessor links go in a separate "predecessors" list. Items without a
wbs_id get an outline code from their position.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := importer.LoadImportSchema(args[0])
			if err != nil {
				return fmt.Errorf("loading import file: %w", err)
			}
			if projectID != "" {
				schema.ProjectID = projectID
			}

			out := cmd.OutOrStdout()
			if dryRun {
				errs := importer.ValidateImportSchema(schema)
				if len(errs) > 0 {
					for _, e := range errs {
						fmt.Fprintf(out, "  %s %v\n", formatter.StyleRed.Render("✖"), e)
					}
					return fmt.Errorf("%d validation errors", len(errs))
				}
				fmt.Fprintf(out, "%s %d items, %d predecessor links\n",
					formatter.StyleGreen.Render("✔ valid:"), len(schema.Items), len(schema.Predecessors))
				return nil
			}

			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			res, err := app.Import.ImportSchema(ctx, perms, app.CompanyID, schema)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Imported %d items and %d predecessor links into %s\n",
				len(res.Items), res.PredecessorCount, formatter.Bold(res.ProjectID))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Override the file's project_id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the file without writing")
	return cmd
}
