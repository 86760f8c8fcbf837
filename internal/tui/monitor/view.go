package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/marcus/worklog/internal/output"
)

// timeColumnMax caps the width of the time column.
const timeColumnMax = 12

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	// Handle small terminal sizes gracefully
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.ShowHelp {
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center,
			modalStyle.Render(m.helpView))
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	panelHeight := m.Height - lipgloss.Height(header) - lipgloss.Height(footer)
	base := lipgloss.JoinVertical(lipgloss.Left, header, m.renderLogPanel(panelHeight), footer)

	// Overlay modal if open
	if m.FormOpen {
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, m.renderModal(),
			lipgloss.WithWhitespaceChars(" "),
			lipgloss.WithWhitespaceForeground(lipgloss.Color("0")))
	}

	return base
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString("worklog (resize for full view)\n\n")
	if m.rows.placeholder != "" {
		s.WriteString(m.rows.placeholder + "\n")
	} else {
		s.WriteString(fmt.Sprintf("Entries: %d\n", len(m.rows.rows)))
	}
	s.WriteString("\nq:quit ?:help")

	return s.String()
}

func (m Model) renderHeader() string {
	left := titleStyle.Render("worklog")
	if m.Version != "" {
		left += " " + subtleStyle.Render(m.Version)
	}
	if m.updateMsg != nil {
		left += " " + statusStyle.Render("update "+m.updateMsg.LatestVersion+" available")
	}

	right := subtleStyle.Render("not signed in")
	if sess := m.gate.Session(); sess.IsAuthenticated() {
		right = statusStyle.Render(sess.Identity.Label())
	}

	padding := m.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return " " + left + strings.Repeat(" ", padding) + right
}

// renderLogPanel renders the row list, or its placeholder, in a panel.
func (m Model) renderLogPanel(height int) string {
	contentHeight := height - 3 // title + border
	contentWidth := m.Width - 4 // border + padding

	var lines []string
	switch {
	case m.rows.placeholder != "":
		lines = append(lines, subtleStyle.Render(m.rows.placeholder))
	case len(m.rows.rows) == 0:
		lines = append(lines, subtleStyle.Render("loading..."))
	default:
		lines = m.renderRows(contentWidth, contentHeight)
	}

	title := "WORK LOG"
	if n := len(m.rows.rows); n > 0 {
		title = fmt.Sprintf("WORK LOG (%d)", n)
	}
	return m.wrapPanel(title, lines, contentWidth, contentHeight)
}

// renderRows renders the window of rows that keeps the cursor visible.
func (m Model) renderRows(width, height int) []string {
	rows := m.rows.rows
	offset := 0
	if m.rows.cursor >= height {
		offset = m.rows.cursor - height + 1
	}
	end := offset + height
	if end > len(rows) {
		end = len(rows)
	}

	timeWidth := 0
	for _, r := range rows[offset:end] {
		timeWidth = max(timeWidth, lipgloss.Width(r.rec.Time))
	}
	timeWidth = min(timeWidth, timeColumnMax)

	lines := make([]string, 0, end-offset)
	for i := offset; i < end; i++ {
		rec := rows[i].rec
		t := ansi.Truncate(rec.Time, timeWidth, "…")
		t += strings.Repeat(" ", timeWidth-lipgloss.Width(t))
		name := ansi.Truncate(rec.Name, width-timeWidth-4, "…")

		if i == m.rows.cursor {
			lines = append(lines, selectedRowStyle.Render("> "+t+"  "+name))
			continue
		}
		lines = append(lines, "  "+timestampStyle.Render(t)+"  "+name)
	}
	return lines
}

// wrapPanel wraps content in a panel with title and border
func (m Model) wrapPanel(title string, lines []string, width, height int) string {
	style := panelStyle
	if m.rows.loggedIn {
		style = activePanelStyle
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = ansi.Truncate(line, width, "…")
		}
	}

	inner := lipgloss.JoinVertical(lipgloss.Left, panelTitleStyle.Render(title), strings.Join(lines, "\n"))
	return style.Width(m.Width - 2).Render(inner)
}

// renderFooter renders the status line above the key hints
func (m Model) renderFooter() string {
	status := ""
	if m.Status != "" {
		style := statusStyle
		if m.StatusErr {
			style = errorStyle
		}
		status = style.Render(ansi.Truncate(m.Status, m.Width-2, "…"))
	}
	return " " + status + "\n " + m.help.ShortHelpView(m.keys.ShortHelp())
}

// renderModal renders the open form with its error or progress line.
func (m Model) renderModal() string {
	fs := m.FormState
	parts := []string{fs.Form.View()}

	switch {
	case fs.Submitting:
		parts = append(parts, m.spinner.View()+" "+subtleStyle.Render("working..."))
	case fs.Err != "":
		parts = append(parts, errorStyle.Render(ansi.Truncate(fs.Err, m.formWidth(), "…")))
	}
	parts = append(parts, subtleStyle.Render("enter:next  esc:close"))

	return modalStyle.Width(m.formWidth() + 4).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// formWidth is the width of the form inside the modal.
func (m Model) formWidth() int {
	w := m.Width * 60 / 100
	return max(min(w, 70), 30)
}

func (m Model) renderHelpMarkdown() string {
	width := max(min(m.Width-8, 80), 20)
	rendered, err := output.RenderMarkdownWithStyle(HelpMarkdown, width, "dark")
	if err != nil {
		return HelpMarkdown
	}
	return rendered + "\n\n" + subtleStyle.Render("?/esc:close")
}
