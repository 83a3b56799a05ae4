package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/xela07ax/riskwatch/internal/engine"
	"github.com/xela07ax/riskwatch/internal/view"
)

type theme struct {
	title    lipgloss.Style
	subtle   lipgloss.Style
	panel    lipgloss.Style
	selected lipgloss.Style
	cardVal  lipgloss.Style
	cardLbl  lipgloss.Style
	errorBox lipgloss.Style
	pending  lipgloss.Style
	helpKey  lipgloss.Style

	noticeInfo    lipgloss.Style
	noticeSuccess lipgloss.Style
	noticeError   lipgloss.Style
}

func newTheme() theme {
	return theme{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d9ff")),
		subtle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#2a2a2a")).Padding(0, 1),
		selected: lipgloss.NewStyle().Bold(true).Reverse(true),
		cardVal:  lipgloss.NewStyle().Bold(true),
		cardLbl:  lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		errorBox: lipgloss.NewStyle().Border(lipgloss.ThickBorder()).BorderForeground(lipgloss.Color("#ff4444")).Padding(0, 1),
		pending:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#ffa500")),
		helpKey:  lipgloss.NewStyle().Foreground(lipgloss.Color("#00d9ff")),

		noticeInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00d9ff")),
		noticeSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff00")),
		noticeError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444")),
	}
}

func (t theme) tier(tier view.Tier) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(tier.Color()))
}

func (t theme) status(s view.Status) lipgloss.Style {
	switch s {
	case view.StatusCritical:
		return t.tier(view.TierCritical)
	case view.StatusWarning:
		return t.tier(view.TierMedium)
	default:
		return t.tier(view.TierLow)
	}
}

func (t theme) notice(level engine.NoticeLevel) lipgloss.Style {
	switch level {
	case engine.NoticeSuccess:
		return t.noticeSuccess
	case engine.NoticeError:
		return t.noticeError
	default:
		return t.noticeInfo
	}
}
