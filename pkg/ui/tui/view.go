package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	errs "igmonitor/pkg/errors"
	"igmonitor/pkg/models"
	"igmonitor/pkg/ui"
)

const maxAccountRows = 12

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderLogo())

	left := m.renderLeftColumn()
	right := m.renderRightColumn()
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render(m.footer()))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	logo := `
╔═══════════════════════════════════════════╗
║   IGMONITOR  ·  instagram content monitor ║
╚═══════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

func (m *Model) columnWidth() int {
	return (m.width - 4) / 2
}

func (m *Model) renderLeftColumn() string {
	width := m.columnWidth()
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderAccountsPanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := m.columnWidth()
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderPostsPanel(width),
		m.renderLogsPanel(width),
	)
}

// renderStatsPanel renders the run statistics and overall progress bar
func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN STATS ")

	elapsed := m.now().Sub(m.sessionStartTime)
	if m.result != nil && !m.result.FinishedAt.IsZero() {
		elapsed = m.result.FinishedAt.Sub(m.result.StartedAt)
	}

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Accounts:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", m.finished, len(m.accounts)))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Posts extracted:"), statsValueStyle.Render(fmt.Sprintf("%d", m.postsFound))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Posts skipped:"), statsValueStyle.Render(fmt.Sprintf("%d", m.postsFailed))),
	}
	if m.result != nil {
		stats = append(stats, fmt.Sprintf("%s %s", statsLabelStyle.Render("In report:"), successStyle.Render(fmt.Sprintf("%d", m.result.TotalPosts))))
	}

	stats = append(stats, "", m.progress.ViewAs(m.Fraction()))

	switch {
	case m.runErr != nil:
		stats = append(stats, errorStyle.Render("✗ ABORTED"))
	case m.cancelling && !m.done:
		stats = append(stats, warningStyle.Render(m.spinner.View()+" STOPPING"))
	case m.cancelling:
		stats = append(stats, warningStyle.Render("■ CANCELLED"))
	case m.done:
		stats = append(stats, successStyle.Render("✓ COMPLETE"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

// renderAccountsPanel lists accounts around the one being scanned
func (m *Model) renderAccountsPanel(width int) string {
	title := titleStyle.Render(" ACCOUNTS ")

	if len(m.accounts) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("No accounts")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	start := 0
	if m.finished > maxAccountRows/2 {
		start = m.finished - maxAccountRows/2
	}
	end := min(len(m.accounts), start+maxAccountRows)

	var rows []string
	if start > 0 {
		rows = append(rows, accountDoneStyle.Render(fmt.Sprintf("… %d earlier", start)))
	}
	for _, it := range m.accounts[start:end] {
		rows = append(rows, m.renderAccountRow(it, width-8))
	}
	if end < len(m.accounts) {
		rows = append(rows, accountPendingStyle.Render(fmt.Sprintf("… %d more", len(m.accounts)-end)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

func (m *Model) renderAccountRow(it *AccountItem, width int) string {
	var icon, detail string
	switch it.State {
	case AccountPending:
		icon = "·"
	case AccountActive:
		icon = m.spinner.View()
		detail = fmt.Sprintf("%d posts", it.Posts)
	case AccountDone:
		icon = "✓"
		detail = fmt.Sprintf("%d posts in %s", it.Posts, formatDuration(it.Finished.Sub(it.Started)))
	case AccountFailed:
		icon = "✗"
		detail = string(errs.TypeOf(it.Err))
	}

	line := icon + " @" + it.Account.String()
	if detail != "" {
		line += "  " + detail
	}
	return accountStyle(it.State).Render(runewidth.Truncate(line, max(width, 10), "…"))
}

// renderPostsPanel shows the most recent extracted posts
func (m *Model) renderPostsPanel(width int) string {
	title := titleStyle.Render(" RECENT POSTS ")

	if len(m.recent) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Nothing extracted yet")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var rows []string
	for i := len(m.recent) - 1; i >= 0; i-- {
		rows = append(rows, renderPost(m.recent[i], width-8))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

func renderPost(p models.Post, width int) string {
	date := "undated"
	if p.PublishedAt != nil {
		date = p.PublishedAt.Format("02-01-2006")
	}
	head := "@" + p.Account.String() + " " + date + " "
	caption := ui.Preview(p.Caption, width-runewidth.StringWidth(head))
	return postAccountStyle.Render("@"+p.Account.String()) + " " +
		postDateStyle.Render(date) + " " +
		logMessageStyle.Render(caption)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOGS ")

	start := max(0, len(m.logMessages)-10)
	msgWidth := max(width-30, 10)

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(runewidth.Truncate(log.Message, msgWidth, "..."))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := max(m.height-30, 5)

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) footer() string {
	switch {
	case m.done && m.reportErr == nil && m.reportPath != "":
		return "Report: " + m.reportPath + "  ·  q to exit"
	case m.done:
		return "q to exit"
	case m.cancelling:
		return "Stopping... q again to leave now"
	default:
		return "q to stop · ? for help"
	}
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/esc    - Stop the run (press again to exit)
    ctrl+l   - Clear logs
    ?        - Toggle this help

  Accounts:
    ·        - Waiting
    ` + successStyle.Render("✓") + `        - Scanned
    ` + errorStyle.Render("✗") + `        - Failed, see logs
`

	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
