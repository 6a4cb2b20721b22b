package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/alexanderramin/wbs/internal/hierarchy"
	"github.com/alexanderramin/wbs/internal/predecessor"
)

// TreeOptions controls FormatForest.
type TreeOptions struct {
	// ShowCollapsed renders children of collapsed items too.
	ShowCollapsed bool
	// ShowIDs appends the short item id to each badge.
	ShowIDs bool
}

// FormatForest renders a built forest. Children of collapsed items are
// hidden unless ShowCollapsed is set.
func FormatForest(f *hierarchy.Forest, opts TreeOptions) string {
	if f == nil || len(f.Roots) == 0 {
		return Dim("No WBS items.") + "\n"
	}
	var items []TreeItem
	var walk func(nodes []*domain.WBSItem, ancestors []bool)
	walk = func(nodes []*domain.WBSItem, ancestors []bool) {
		for i, w := range nodes {
			last := i == len(nodes)-1
			collapsed := !w.IsExpanded && len(w.Children) > 0
			items = append(items, TreeItem{
				Title:     w.Title,
				Code:      w.WBSID,
				Ancestors: ancestors,
				IsLast:    last,
				Collapsed: collapsed && !opts.ShowCollapsed,
				Done:      w.Progress >= 100,
				Active:    w.Progress > 0 && w.Progress < 100,
				Detail:    treeBadge(w, opts.ShowIDs),
			})
			if collapsed && !opts.ShowCollapsed {
				continue
			}
			next := append(append([]bool(nil), ancestors...), last)
			walk(w.Children, next)
		}
	}
	walk(f.Roots, nil)
	return RenderTree(items)
}

func treeBadge(w *domain.WBSItem, showID bool) string {
	var parts []string
	if w.Progress > 0 {
		parts = append(parts, fmt.Sprintf("%d%%", w.Progress))
	}
	if n := len(w.Predecessors); n > 0 {
		parts = append(parts, fmt.Sprintf("%d pred", n))
	}
	if w.HasLiveTask() {
		parts = append(parts, "task")
	}
	if showID {
		id := w.ID
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, id)
	}
	return strings.Join(parts, " · ")
}

// FormatDiagnostics lists build anomalies, stale predecessor references and
// predecessor cycles. It returns "" when there is nothing to report.
func FormatDiagnostics(anomalies []hierarchy.Anomaly, stale []predecessor.StaleRef, cycles [][]string) string {
	if len(anomalies) == 0 && len(stale) == 0 && len(cycles) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(Header("Diagnostics"))
	b.WriteString("\n")
	for _, a := range anomalies {
		b.WriteString(fmt.Sprintf("  %s %s %s  %s\n",
			StyleYellow.Render("!"), StyleYellow.Render(string(a.Kind)), TruncID(a.ItemID), Dim(a.Detail)))
	}
	for _, s := range stale {
		b.WriteString(fmt.Sprintf("  %s %s %s  %s\n",
			StyleYellow.Render("!"), StyleYellow.Render("stale_predecessor"), TruncID(s.ItemID),
			Dim("references missing item "+s.PredecessorID)))
	}
	for _, c := range cycles {
		short := make([]string, len(c))
		for i, id := range c {
			if len(id) > 8 {
				id = id[:8]
			}
			short[i] = id
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			StyleRed.Render("✖"), StyleRed.Render("predecessor_cycle"), strings.Join(short, " -> ")))
	}
	return b.String()
}

// FormatItem renders one item's details in a box.
func FormatItem(w *domain.WBSItem, now time.Time) string {
	var b strings.Builder
	title := Bold(w.Title)
	if w.WBSID != "" {
		title = Dim(w.WBSID) + "  " + title
	}
	b.WriteString(title + "\n\n")

	row := func(label, value string) {
		b.WriteString(fmt.Sprintf("  %s  %s\n", Dim(fmt.Sprintf("%-9s", label)), value))
	}
	row("ID", w.ID)
	row("PROJECT", w.ProjectID)
	if w.ParentID != nil {
		row("PARENT", *w.ParentID)
	}
	row("LEVEL", fmt.Sprintf("%d (sort %d)", w.Level, w.SortOrder))
	if w.Status != "" {
		row("STATUS", w.Status)
	}
	row("HEALTH", HealthIndicator(w.Health, w.AtRisk))
	row("PROGRESS", RenderProgress(w.Progress, 20))
	row("DATES", DateRange(w.StartDate, w.EndDate))
	if w.Duration != nil {
		row("DURATION", fmt.Sprintf("%dd", *w.Duration))
	}
	if w.BudgetedCost != nil || w.ActualCost != nil {
		row("COST", Money(w.ActualCost)+Dim(" / ")+Money(w.BudgetedCost))
	}
	if w.HasLiveTask() {
		task := ""
		if w.LinkedTaskID != nil {
			task = *w.LinkedTaskID
		}
		since := ""
		if w.TaskConversionDate != nil {
			since = Dim(" since " + RelativeDateFrom(*w.TaskConversionDate, now))
		}
		row("TASK", StyleGreen.Render(task)+since)
	}
	if len(w.LinkedTasks) > 0 {
		row("HISTORY", strings.Join(w.LinkedTasks, ", "))
	}
	row("UPDATED", HumanTimestamp(w.UpdatedAt, now))

	if len(w.Predecessors) > 0 {
		b.WriteString("\n")
		b.WriteString(Header("Predecessors"))
		b.WriteString("\n")
		rows := make([][]string, 0, len(w.Predecessors))
		for _, p := range w.Predecessors {
			rows = append(rows, []string{p.PredecessorID, string(p.RelationType), fmt.Sprintf("%+d", p.LagDays)})
		}
		b.WriteString(RenderTable([]string{"ITEM", "RELATION", "LAG"}, rows))
	}
	return RenderBox("WBS Item", b.String())
}

// FormatGrants renders permission rows as a table.
func FormatGrants(grants []domain.UserPermission) string {
	if len(grants) == 0 {
		return Dim("No explicit grants; every module is open and every sub-module is view-only.") + "\n"
	}
	rows := make([][]string, 0, len(grants))
	for _, g := range grants {
		sub := g.SubModuleKey()
		if sub == "" {
			sub = Dim("(module)")
		}
		rows = append(rows, []string{g.ModuleID, sub, AccessPill(g.AccessLevel)})
	}
	return RenderTable([]string{"MODULE", "SUB-MODULE", "ACCESS"}, rows)
}

// FormatAccess renders a resolved access answer.
func FormatAccess(userID, moduleID, subModuleID string, moduleAccess bool, level domain.AccessLevel) string {
	var b strings.Builder
	b.WriteString(Header("Access for " + userID))
	b.WriteString("\n")
	access := StyleRed.Render("✖ denied")
	if moduleAccess {
		access = StyleGreen.Render("✔ granted")
	}
	b.WriteString(fmt.Sprintf("  %s  %s\n", Dim(fmt.Sprintf("%-18s", "module "+moduleID)), access))
	if subModuleID != "" {
		b.WriteString(fmt.Sprintf("  %s  %s\n", Dim(fmt.Sprintf("%-18s", "sub-module "+subModuleID)), AccessPill(level)))
	}
	return b.String()
}

// FormatEvent renders one change-feed event as a single line.
func FormatEvent(ev feed.Event) string {
	var kind string
	switch ev.Type {
	case feed.EventInsert:
		kind = StyleGreen.Render("+ insert")
	case feed.EventUpdate:
		kind = StyleBlue.Render("~ update")
	case feed.EventDelete:
		kind = StyleRed.Render("- delete")
	default:
		kind = Dim(string(ev.Type))
	}
	line := fmt.Sprintf("%s  %s  %s", Dim(ev.At.Format("15:04:05")), kind, ev.ID)
	if ev.Record != nil {
		line += "  " + ev.Record.Title
	}
	return line
}
