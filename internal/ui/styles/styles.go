// Package styles defines the visual styling for the terminal views.
package styles

import "github.com/charmbracelet/lipgloss"

// Color definitions.
var (
	Primary   = lipgloss.Color("205") // Pink
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	Gemini = lipgloss.Color("39") // Blue

	// Status colors
	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow

	BgDark = lipgloss.Color("235")

	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary)

// DocStyle provides consistent document margins.
var DocStyle = lipgloss.NewStyle().
	Margin(1, 2)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpKeyStyle styles keyboard shortcut keys.
var HelpKeyStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// HelpDescStyle styles help descriptions.
var HelpDescStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// ProfileStyle styles a profile label.
var ProfileStyle = lipgloss.NewStyle().
	Foreground(TextPrimary).
	Width(28)

// CurrentMarkerStyle marks the active profile.
var CurrentMarkerStyle = lipgloss.NewStyle().
	Foreground(Gemini).
	Bold(true)

// PreferredMarkerStyle marks the recommended profile.
var PreferredMarkerStyle = lipgloss.NewStyle().
	Foreground(Warning).
	Bold(true)

// ProgressPercentStyle styles the percentage display.
var ProgressPercentStyle = lipgloss.NewStyle().
	Foreground(TextPrimary).
	Width(7).
	Align(lipgloss.Right)

// QuotaHighStyle for high quota percentages (>50%).
var QuotaHighStyle = lipgloss.NewStyle().
	Foreground(Success)

// QuotaMediumStyle for medium quota percentages (20-50%).
var QuotaMediumStyle = lipgloss.NewStyle().
	Foreground(Warning)

// QuotaLowStyle for low quota percentages.
var QuotaLowStyle = lipgloss.NewStyle().
	Foreground(Error)

// QuotaBelowThresholdStyle for the active profile once it is below threshold.
var QuotaBelowThresholdStyle = lipgloss.NewStyle().
	Foreground(Error).
	Bold(true).
	Italic(true)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// SuccessTextStyle for success messages.
var SuccessTextStyle = lipgloss.NewStyle().
	Foreground(Success)

// StatusBarStyle styles the footer line.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(TextSecondary).
	Background(BgDark).
	Padding(0, 1)

// GetQuotaStyle returns the appropriate style based on quota percentage.
func GetQuotaStyle(percent float64, belowThreshold bool) lipgloss.Style {
	if belowThreshold {
		return QuotaBelowThresholdStyle
	}
	switch {
	case percent > 50:
		return QuotaHighStyle
	case percent > 20:
		return QuotaMediumStyle
	default:
		return QuotaLowStyle
	}
}

// CenterBoth centers content both horizontally and vertically.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}
