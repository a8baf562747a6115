package top

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/gemini-quota-switch/internal/models"
	"github.com/j-veylop/gemini-quota-switch/internal/ui/styles"
)

const (
	// title and subtitle
	headerHeight = 2
	// status and help
	footerHeight = 2
	// markers, label, percentage and room for tier and reset
	rowFixedWidth = 60

	defaultWidth = 80
	labelWidth   = 28
)

// View renders the dashboard.
func (m *Model) View() string {
	sections := []string{
		m.clip(styles.TitleStyle.UnsetMarginBottom().Render("Gemini Quota Switch")),
		m.clip(m.renderSubtitle()),
		m.viewport.View(),
		m.clip(m.renderStatus()),
		m.clip(m.renderHelp()),
	}
	return strings.Join(sections, "\n")
}

func (m *Model) renderSubtitle() string {
	if m.stats == nil {
		if m.err != nil {
			return styles.ErrorTextStyle.Render("Cannot reach server: " + m.err.Error())
		}
		return m.spinner.View()
	}

	parts := []string{}
	if t, ok := m.stats.LastUpdated(); ok {
		parts = append(parts, "updated "+humanize.RelTime(t, m.now(), "ago", "from now"))
	} else {
		parts = append(parts, "waiting for first refresh")
	}
	if m.stats.Prefer != nil {
		parts = append(parts, "prefer "+*m.stats.Prefer)
	}
	line := styles.SubTitleStyle.Render(strings.Join(parts, " · "))
	if m.err != nil {
		line += " " + styles.ErrorTextStyle.Render("(stale)")
	}
	return line
}

func (m *Model) renderRows() string {
	if m.stats == nil {
		return ""
	}
	if len(m.stats.Metrics) == 0 {
		return m.clip(styles.HelpStyle.Render("No profiles found."))
	}

	prefer := ""
	if m.stats.Prefer != nil {
		prefer = *m.stats.Prefer
	}

	lines := make([]string, 0, len(m.stats.Metrics))
	for i := range m.stats.Metrics {
		lines = append(lines, m.clip(m.renderRow(&m.stats.Metrics[i], prefer)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderRow(s *models.AccountSnapshot, prefer string) string {
	current := " "
	if s.IsCurrent {
		current = styles.CurrentMarkerStyle.Render("●")
	}
	preferred := " "
	if s.ProjectID == prefer {
		preferred = styles.PreferredMarkerStyle.Render("★")
	}

	label := s.Email
	if label == "" {
		label = s.ProjectID
	}
	label = styles.ProfileStyle.Render(ansi.Truncate(label, labelWidth, "…"))

	var detail string
	switch q, ok := s.Models[models.TopTier]; {
	case ok:
		detail = m.bar.View(q.RemainingPercent, q.LowThreshold)
		if s.Tier != "" {
			detail += "  " + styles.HelpDescStyle.Render(s.Tier)
		}
		if q.ResetsIn != "" {
			detail += "  " + styles.HelpDescStyle.Render("resets "+q.ResetsIn)
		}
	case s.Error != "":
		detail = m.bar.ViewUnavailable("error") + "  " + styles.ErrorTextStyle.Render(s.Error)
	default:
		detail = m.bar.ViewUnavailable(s.Status)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, current, preferred, " ", label, " ", detail)
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if m.statusOK {
		return styles.SuccessTextStyle.Render(m.status)
	}
	return styles.ErrorTextStyle.Render(m.status)
}

func (m *Model) renderHelp() string {
	bindings := m.keymap.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	return styles.HelpStyle.Render(strings.Join(parts, "  "))
}

// clip cuts a single line to the terminal width.
func (m *Model) clip(line string) string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	if ansi.StringWidth(line) <= width {
		return line
	}
	return ansi.Truncate(line, width, "…")
}
