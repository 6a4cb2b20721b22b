package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/wbs/internal/cli/formatter"
	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/service"
	"github.com/spf13/cobra"
)

func newItemCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage WBS items",
	}

	cmd.AddCommand(
		newItemAddCmd(app),
		newItemShowCmd(app),
		newItemListCmd(app),
		newItemUpdateCmd(app),
		newItemRemoveCmd(app),
	)
	return cmd
}

func newItemAddCmd(app *App) *cobra.Command {
	var (
		projectID, title, parentID, wbsID         string
		description, category, priority, status  string
		health, progressStatus, startDate, endDate string
		level, sortOrder, duration, progress     int
		budget, actual                           float64
		preds                                    []string
		collapsed, atRisk                        bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a WBS item",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}

			in := service.CreateItemInput{
				CompanyID:      app.CompanyID,
				ProjectID:      projectID,
				WBSID:          wbsID,
				SortOrder:      sortOrder,
				Title:          title,
				Description:    description,
				Category:       category,
				Priority:       priority,
				Status:         status,
				Health:         health,
				ProgressStatus: progressStatus,
				AtRisk:         atRisk,
				Progress:       progress,
			}
			if cmd.Flags().Changed("parent") {
				in.ParentID = &parentID
			}
			if cmd.Flags().Changed("duration") {
				in.Duration = &duration
			}
			if cmd.Flags().Changed("budget") {
				in.BudgetedCost = &budget
			}
			if cmd.Flags().Changed("actual") {
				in.ActualCost = &actual
			}
			if collapsed {
				expanded := false
				in.IsExpanded = &expanded
			}
			if in.StartDate, err = parseDate("start", startDate); err != nil {
				return err
			}
			if in.EndDate, err = parseDate("end", endDate); err != nil {
				return err
			}
			for _, p := range preds {
				pi, err := parsePredecessor(p)
				if err != nil {
					return err
				}
				in.Predecessors = append(in.Predecessors, pi)
			}

			// Without --level the item goes one below its parent.
			if cmd.Flags().Changed("level") {
				in.Level = &level
			} else {
				derived := 0
				if in.ParentID != nil {
					parent, err := app.Items.Get(ctx, perms, *in.ParentID)
					if err != nil {
						return err
					}
					derived = parent.Level + 1
				}
				in.Level = &derived
			}

			w, err := app.Items.Create(ctx, perms, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (level %d)\n", formatter.Bold(w.Title), w.ID, w.Level)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&projectID, "project", "", "Project ID")
	f.StringVar(&title, "title", "", "Item title")
	f.StringVar(&parentID, "parent", "", "Parent item ID (omit for a root item)")
	f.IntVar(&level, "level", 0, "Depth; defaults to one below the parent")
	f.StringVar(&wbsID, "wbs-id", "", "Display code such as 1.2.3")
	f.IntVar(&sortOrder, "sort", 0, "Position among siblings")
	f.StringVar(&description, "description", "", "Description")
	f.StringVar(&category, "category", "", "Category")
	f.StringVar(&priority, "priority", "", "Priority")
	f.StringVar(&status, "status", "", "Status")
	f.StringVar(&health, "health", "", "Health")
	f.StringVar(&progressStatus, "progress-status", "", "Progress status")
	f.BoolVar(&atRisk, "at-risk", false, "Flag the item as at risk")
	f.StringVar(&startDate, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&endDate, "end", "", "End date (YYYY-MM-DD)")
	f.IntVar(&duration, "duration", 0, "Duration in days")
	f.IntVar(&progress, "progress", 0, "Progress percentage (0-100)")
	f.Float64Var(&budget, "budget", 0, "Budgeted cost")
	f.Float64Var(&actual, "actual", 0, "Actual cost")
	f.StringArrayVar(&preds, "pred", nil, "Predecessor as ID[:TYPE[:LAG]] (repeatable)")
	f.BoolVar(&collapsed, "collapsed", false, "Create the item collapsed")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newItemShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show item details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			w, err := app.Items.Get(ctx, perms, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatItem(w, app.now()))
			return nil
		},
	}
}

func newItemListCmd(app *App) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's items in storage order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			items, err := app.Items.List(ctx, perms, projectID)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No WBS items."))
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, w := range items {
				rows = append(rows, []string{
					formatter.TruncID(w.ID),
					w.WBSID,
					fmt.Sprintf("%d", w.Level),
					w.Title,
					fmt.Sprintf("%d%%", w.Progress),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable([]string{"ID", "WBS", "LEVEL", "TITLE", "PROGRESS"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newItemUpdateCmd(app *App) *cobra.Command {
	var title, parentID, status string
	var progress int
	set := newPatchFlag()

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Patch an item's fields",
		Long: `Patch an item's fields. Use --set key=value for any stored field; values
are read as JSON when they parse, e.g. --set progress=40 --set at_risk=true
--set parent_id=null. Task link fields are managed by "wbs task".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			patch := set.patch
			if cmd.Flags().Changed("title") {
				patch["title"] = title
			}
			if cmd.Flags().Changed("status") {
				patch["status"] = status
			}
			if cmd.Flags().Changed("progress") {
				patch["progress"] = progress
			}
			if cmd.Flags().Changed("parent") {
				if strings.EqualFold(parentID, "none") || parentID == "" {
					patch["parent_id"] = nil
				} else {
					patch["parent_id"] = parentID
				}
			}
			if len(patch) == 0 {
				return domain.NewValidationError("nothing to update; pass --set key=value or a field flag")
			}

			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			res, err := app.Items.Update(ctx, perms, args[0], patch)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Updated %s (%s)\n", formatter.Bold(res.Item.Title), strings.Join(res.Patch.Applied, ", "))
			if len(res.Patch.Ignored) > 0 {
				fmt.Fprintln(out, formatter.Dim("  ignored: "+strings.Join(res.Patch.Ignored, ", ")))
			}
			if len(res.Patch.Coerced) > 0 {
				fmt.Fprintln(out, formatter.StyleYellow.Render("  normalized: "+strings.Join(res.Patch.Coerced, ", ")))
			}
			if res.Relevelled > 0 {
				fmt.Fprintf(out, "  moved %d descendants to new levels\n", res.Relevelled)
			}
			return nil
		},
	}

	cmd.Flags().Var(set, "set", "Field to patch as key=value (repeatable)")
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().IntVar(&progress, "progress", 0, "New progress (0-100)")
	cmd.Flags().StringVar(&parentID, "parent", "", `New parent ID, or "none" to make a root`)
	return cmd
}

func newItemRemoveCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete an item and all its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perms, err := app.perms(ctx)
			if err != nil {
				return err
			}
			w, err := app.Items.Get(ctx, perms, args[0])
			if err != nil {
				return err
			}

			if !yes {
				if !app.interactive() {
					return fmt.Errorf("refusing to delete %q without confirmation; pass --yes", w.Title)
				}
				ok, err := app.confirm(fmt.Sprintf("Delete %q and everything under it?", w.Title))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("Cancelled."))
					return nil
				}
			}

			deleted, err := app.Items.Delete(ctx, perms, w.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s and %d descendants\n", formatter.Bold(w.Title), len(deleted)-1)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}
