package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/gemini-quota-switch/internal/ui/styles"
)

const (
	gradientLow  = "#ff6b6b"
	gradientHigh = "#51cf66"
)

// QuotaBar renders a remaining-quota progress bar with percentage.
type QuotaBar struct {
	progress progress.Model
}

// NewQuotaBarWithWidth creates a gradient quota bar with a specific width.
func NewQuotaBarWithWidth(width int) QuotaBar {
	p := progress.New(
		progress.WithScaledGradient(gradientLow, gradientHigh),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	return QuotaBar{progress: p}
}

// SetWidth sets the progress bar width.
func (q *QuotaBar) SetWidth(width int) {
	q.progress.Width = width
}

// Width returns the bar width.
func (q QuotaBar) Width() int {
	return q.progress.Width
}

// View renders the bar followed by the percentage. belowThreshold switches the
// percentage to the warning style.
func (q QuotaBar) View(percent float64, belowThreshold bool) string {
	bar := q.progress.ViewAs(clampPercent(percent) / 100)

	percentStr := styles.GetQuotaStyle(percent, belowThreshold).
		Width(7).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.1f%%", percent))

	return lipgloss.JoinHorizontal(lipgloss.Center, bar, " ", percentStr)
}

// ViewUnavailable renders an empty bar with a short status in place of the
// percentage.
func (q QuotaBar) ViewUnavailable(status string) string {
	empty := lipgloss.NewStyle().
		Foreground(styles.Subtle).
		Render(strings.Repeat("░", max(q.progress.Width, 1)))

	statusStr := styles.ErrorTextStyle.
		Width(7).
		Align(lipgloss.Right).
		Render(status)

	return lipgloss.JoinHorizontal(lipgloss.Center, empty, " ", statusStr)
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}
