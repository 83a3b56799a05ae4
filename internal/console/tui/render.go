package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xela07ax/riskwatch/internal/view"
)

const timeLayout = "15:04:05"

func (m Model) View() string {
	s := m.snap
	if s.SignedOut {
		return m.theme.errorBox.Render("Session expired. Please sign in again.") + "\n"
	}

	var b strings.Builder
	b.WriteString(m.theme.title.Render("RiskWatch · Security Operations"))
	b.WriteString(m.theme.subtle.Render("  " + s.Now.Format(timeLayout)))
	if s.Profile != nil {
		b.WriteString(m.theme.subtle.Render("  " + s.Profile.Email))
	}
	b.WriteString("\n\n")

	if s.LoadError != nil {
		b.WriteString(m.theme.errorBox.Render(fmt.Sprintf("Failed to load dashboard: %s\nPress R to retry.", s.LoadError.Message)))
		b.WriteString("\n")
		b.WriteString(m.renderHelp())
		return b.String()
	}
	if s.Metrics == nil {
		b.WriteString(m.theme.subtle.Render("Loading dashboard..."))
		b.WriteString("\n")
		return b.String()
	}

	d := m.projector.Project(s, m.query())
	b.WriteString(m.renderCards(d.Cards))
	b.WriteString("\n\n")

	left := m.renderRisks(d.TopRisks)
	var right string
	switch {
	case d.Investigation != nil:
		right = m.renderInvestigation(d.Investigation)
	case d.Simulation != nil:
		right = m.renderSimulation(d.Simulation)
	default:
		right = m.theme.panel.Render("Deep Risk Analytics\n" + m.theme.subtle.Render("Select a user from the monitoring list to investigate."))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")

	if m.searching || m.query() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderNotices())
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderCards(cards []view.Card) string {
	cells := make([]string, 0, len(cards))
	for _, c := range cards {
		cells = append(cells, m.theme.cardVal.Render(c.Value)+" "+m.theme.cardLbl.Render(c.Label))
	}
	return strings.Join(cells, m.theme.subtle.Render("  │  "))
}

func (m Model) renderRisks(rows []view.RiskRow) string {
	var b strings.Builder
	b.WriteString(m.theme.title.Render("High Risk Monitoring") + m.theme.subtle.Render(" live") + "\n")
	if len(rows) == 0 {
		b.WriteString(m.theme.subtle.Render("no matching users"))
	}
	for i, r := range rows {
		marker := "  "
		if r.Selected {
			marker = "▸ "
		}
		line := fmt.Sprintf("%s%-18s %-6s %s", marker, truncate(r.Name, 18), r.Role,
			m.theme.tier(r.Tier).Render(fmt.Sprintf("%3d%%", r.Percent)))
		if i == m.cursor {
			line = m.theme.selected.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return m.theme.panel.Width(36).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderInvestigation(inv *view.Investigation) string {
	t := m.theme
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", t.title.Render("Investigation: "+inv.Name), t.tier(inv.Tier).Render(inv.Tier.Label()))
	access := inv.AccessLevel
	if inv.Optimistic {
		access += t.pending.Render(fmt.Sprintf(" (pending %s)", inv.Origin))
	}
	fmt.Fprintf(&b, "%s · %s · risk %d%% · access %s\n", inv.Email, inv.Role, inv.Percent, access)
	if inv.Loading {
		b.WriteString(t.subtle.Render("refreshing details...") + "\n")
	}

	b.WriteString("\n" + t.title.Render("Risk Trend") + "\n")
	points := make([]string, len(inv.Trend))
	for i, p := range inv.Trend {
		points[i] = fmt.Sprintf("%d", p.Percent)
	}
	b.WriteString(strings.Join(points, " → ") + "\n")

	b.WriteString("\n" + t.title.Render("Risk Factor Breakdown") + "\n")
	if len(inv.Factors) == 0 {
		b.WriteString(t.subtle.Render("No anomalies detected in last recalculation.") + "\n")
	}
	for _, f := range inv.Factors {
		fmt.Fprintf(&b, "%-24s %s +%g\n", truncate(f.Label, 24), bar(f.Width, 20), f.Weight)
	}

	b.WriteString("\n" + t.title.Render("Active Sessions") + "\n")
	if len(inv.Sessions) == 0 {
		b.WriteString(t.subtle.Render("No active sessions") + "\n")
	}
	for _, s := range inv.Sessions {
		mfa := ""
		if s.MFA {
			mfa = " MFA"
		}
		fmt.Fprintf(&b, "%s %s%s  login %s  up %s  left %s  %s\n",
			t.status(s.Status).Render("●"), s.IPAddress, mfa,
			s.Start.Local().Format(timeLayout), s.Duration, s.Remaining, s.Attempts)
	}

	b.WriteString("\n" + t.title.Render("Activity") + fmt.Sprintf("  most used: %s\n", inv.MostUsedModule))
	for _, d := range inv.Dwell {
		fmt.Fprintf(&b, "  %s %s", d.Module, d.Duration)
	}
	if len(inv.Dwell) > 0 {
		b.WriteString("\n")
	}
	for i, a := range inv.Activity {
		if i == 8 {
			break
		}
		fmt.Fprintf(&b, "%s %-16s %-10s %s %s\n", a.At.Local().Format(timeLayout), truncate(a.Label, 16), a.Module, a.Details, a.Dwell)
	}

	return t.panel.Width(m.rightWidth()).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderSimulation(s *view.SimulationView) string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.title.Render("Last Attack Simulation Result") + "\n")
	fmt.Fprintf(&b, "Target: %s  Risk Score: %s  Attack IP: %s\n", s.Target, t.tier(s.Tier).Render(s.Score), s.IPAddress)
	fmt.Fprintf(&b, "Downloads: %d  Login Hour: %s\n", s.Downloads, s.LoginHour)
	for _, r := range s.Breakdown {
		fmt.Fprintf(&b, "%s %-24s %s %g\n", t.status(r.Status).Render("●"), truncate(r.Label, 24), bar(r.Width, 16), r.RawRisk)
	}
	b.WriteString(t.subtle.Render(s.ActionTaken))
	return t.panel.Width(m.rightWidth()).Render(b.String())
}

func (m Model) renderNotices() string {
	var b strings.Builder
	for _, n := range m.snap.Notifications {
		line := n.Title
		if n.Text != "" {
			line += ": " + n.Text
		}
		b.WriteString(m.theme.notice(n.Level).Render(line) + "\n")
	}
	return b.String()
}

func (m Model) renderHelp() string {
	parts := make([]string, 0, len(m.keys.help()))
	for _, k := range m.keys.help() {
		h := k.Help()
		parts = append(parts, m.theme.helpKey.Render(h.Key)+" "+h.Desc)
	}
	sim := ""
	if m.snap.Simulating {
		sim = m.theme.pending.Render("  simulating...")
	}
	return m.theme.subtle.Render(strings.Join(parts, " · ")) + sim + "\n"
}

func (m Model) rightWidth() int {
	w := m.width - 40
	if w < 40 {
		w = 40
	}
	return w
}

func bar(width, cells int) string {
	filled := width * cells / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", cells-filled)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
