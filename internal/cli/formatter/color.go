package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

// Predefined lipgloss styles.
var (
	StyleGreen      = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow     = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleYellowBold = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	StyleRed        = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue       = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple     = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim        = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg         = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader     = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold       = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// HealthColor maps the free-form health field onto a traffic light.
func HealthColor(health string) lipgloss.Style {
	h := strings.ToLower(health)
	switch {
	case h == "":
		return StyleDim
	case strings.Contains(h, "red"), strings.Contains(h, "off"), strings.Contains(h, "critical"):
		return StyleRed
	case strings.Contains(h, "amber"), strings.Contains(h, "yellow"), strings.Contains(h, "risk"):
		return StyleYellow
	default:
		return StyleGreen
	}
}

// HealthIndicator returns a colored health dot such as "● AT RISK".
func HealthIndicator(health string, atRisk bool) string {
	if atRisk && health == "" {
		return StyleYellow.Render("● AT RISK")
	}
	if health == "" {
		return StyleDim.Render("● UNKNOWN")
	}
	label := strings.ToUpper(strings.ReplaceAll(health, "_", " "))
	return HealthColor(health).Render("● " + label)
}

// AccessColor returns the style of an access level.
func AccessColor(level domain.AccessLevel) lipgloss.Style {
	switch level {
	case domain.AccessEdit:
		return StyleGreen
	case domain.AccessView:
		return StyleBlue
	case domain.AccessNone:
		return StyleRed
	default:
		return StyleDim
	}
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

// Dim renders text in the muted/dim color.
func Dim(text string) string {
	return StyleDim.Render(text)
}

// Bold renders text in bold with the foreground color.
func Bold(text string) string {
	return StyleBold.Render(text)
}
