package formatter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// RenderBox wraps content in a rounded-border box with an optional title.
func RenderBox(title string, content string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		PaddingLeft(2).
		PaddingRight(2).
		PaddingTop(1).
		PaddingBottom(1)

	if title == "" {
		return boxStyle.Render(content)
	}
	return boxStyle.Render(StyleHeader.Render(strings.ToUpper(title)) + "\n\n" + content)
}

// RelativeDateFrom returns a human-friendly date relative to now.
func RelativeDateFrom(t time.Time, now time.Time) string {
	days := int(math.Round(t.Sub(now).Hours() / 24))

	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days == -1:
		return "Yesterday"
	case days > 0 && days < 14:
		return fmt.Sprintf("In %dd", days)
	case days > 0 && days < 60:
		return fmt.Sprintf("In %dw", days/7)
	case days > 0:
		return fmt.Sprintf("In %dmo", days/30)
	case days > -14:
		return fmt.Sprintf("%dd ago", -days)
	case days > -60:
		return fmt.Sprintf("%dw ago", -days/7)
	default:
		return fmt.Sprintf("%dmo ago", -days/30)
	}
}

// DateRange renders start and end dates as "Mar 3, 2026 → Apr 1, 2026".
// A missing side renders as "?"; both missing renders as "--".
func DateRange(start, end *time.Time) string {
	if start == nil && end == nil {
		return StyleDim.Render("--")
	}
	side := func(t *time.Time) string {
		if t == nil {
			return "?"
		}
		return t.Format("Jan 2, 2006")
	}
	return side(start) + StyleDim.Render(" → ") + side(end)
}

// HumanTimestamp returns a human-friendly relative timestamp string.
func HumanTimestamp(t time.Time, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < 0:
		return t.Format("Jan 2, 2006")
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return RelativeDateFrom(t, now)
	}
}

// Money renders an optional cost with two decimals.
func Money(v *float64) string {
	if v == nil {
		return StyleDim.Render("--")
	}
	return fmt.Sprintf("%.2f", *v)
}

// AccessPill returns a colored access level label.
func AccessPill(level domain.AccessLevel) string {
	switch level {
	case domain.AccessEdit:
		return AccessColor(level).Render("● can edit")
	case domain.AccessView:
		return AccessColor(level).Render("○ can view")
	case domain.AccessNone:
		return AccessColor(level).Render("✖ no access")
	default:
		return StyleDim.Render(string(level))
	}
}

// TruncID returns the first 8 characters of an ID, dimmed.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return StyleDim.Render(id)
}
