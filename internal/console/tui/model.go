package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/console/session"
	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/engine"
	"github.com/xela07ax/riskwatch/internal/view"
)

// Controller: то, чем экран управляет движком. *engine.Engine ему удовлетворяет.
type Controller interface {
	Snapshot() engine.ReadModel
	Subscribe() (<-chan struct{}, func())
	OpenDashboard()
	CloseDashboard()
	Reload()
	Select(entry domain.RiskEntry)
	Dispatch(userID string, action domain.AdminAction, reason string)
	Simulate()
}

type updateMsg struct{}

type redirectMsg struct{ intent session.RedirectIntent }

// Model: экран оператора. Состоянием владеет движок, модель держит только
// курсор, строку поиска и размеры окна.
type Model struct {
	ctrl      Controller
	updates   <-chan struct{}
	unsub     func()
	redirects <-chan session.RedirectIntent
	logger    *zap.Logger

	keys      keyMap
	theme     theme
	projector *view.Projector

	snap      engine.ReadModel
	cursor    int
	searching bool
	search    textinput.Model
	width     int

	// Redirect: куда уйти после выхода; пусто, если оператор вышел сам
	Redirect *session.RedirectIntent
}

func New(ctrl Controller, redirects <-chan session.RedirectIntent, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	updates, unsub := ctrl.Subscribe()

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "name or email"
	search.CharLimit = 64

	return Model{
		ctrl:      ctrl,
		updates:   updates,
		unsub:     unsub,
		redirects: redirects,
		logger:    logger.Named("tui"),
		keys:      defaultKeyMap(),
		theme:     newTheme(),
		projector: &view.Projector{},
		snap:      ctrl.Snapshot(),
		search:    search,
		width:     120,
	}
}

// Run открывает экран и блокируется до выхода. Возвращает намерение перейти
// на вход, если сессия истекла.
func Run(ctx context.Context, ctrl Controller, redirects <-chan session.RedirectIntent, logger *zap.Logger) (*session.RedirectIntent, error) {
	m := New(ctrl, redirects, logger)
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if fm, ok := final.(Model); ok {
		fm.shutdown()
		return fm.Redirect, err
	}
	m.shutdown()
	return nil, err
}

func (m Model) shutdown() {
	if m.unsub != nil {
		m.unsub()
	}
	m.ctrl.CloseDashboard()
}

func (m Model) Init() tea.Cmd {
	m.ctrl.OpenDashboard()
	return tea.Batch(waitForUpdate(m.updates), waitForRedirect(m.redirects))
}

func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return updateMsg{}
	}
}

func waitForRedirect(ch <-chan session.RedirectIntent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		intent, ok := <-ch
		if !ok {
			return nil
		}
		return redirectMsg{intent: intent}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.snap = m.ctrl.Snapshot()
		m.clampCursor()
		return m, waitForUpdate(m.updates)

	case redirectMsg:
		m.logger.Info("leaving dashboard", zap.String("to", msg.intent.To), zap.String("reason", msg.intent.Reason))
		intent := msg.intent
		m.Redirect = &intent
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.cursor = 0
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.cursor = 0
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clampCursor()

	case key.Matches(msg, m.keys.Select):
		if entry, ok := m.entryAtCursor(); ok {
			m.ctrl.Select(entry)
		}

	case key.Matches(msg, m.keys.Lock):
		if sel := m.snap.Selection; sel != nil {
			action := domain.ActionLockAccount
			if sel.Entry.AccessLevel == domain.AccessBlocked {
				action = domain.ActionUnblock
			}
			m.dispatch(action)
		}

	case key.Matches(msg, m.keys.Logout):
		m.dispatch(domain.ActionForceLogout)

	case key.Matches(msg, m.keys.Resolve):
		m.dispatch(domain.ActionResolveIncident)

	case key.Matches(msg, m.keys.MarkSafe):
		m.dispatch(domain.ActionMarkSafe)

	case key.Matches(msg, m.keys.Simulate):
		m.ctrl.Simulate()

	case key.Matches(msg, m.keys.Reload):
		m.ctrl.Reload()

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Clear):
		m.search.SetValue("")
		m.cursor = 0
	}
	return m, nil
}

// dispatch отправляет команду по выбранному пользователю. Без выбора ничего не делает.
func (m Model) dispatch(action domain.AdminAction) {
	sel := m.snap.Selection
	if sel == nil {
		return
	}
	m.ctrl.Dispatch(sel.Entry.UserID, action, "")
}

func (m Model) query() string { return m.search.Value() }

func (m Model) visibleRisks() []domain.RiskEntry {
	if m.snap.Metrics == nil {
		return nil
	}
	return view.SearchRisks(m.snap.Metrics.TopRisks, m.query())
}

func (m Model) entryAtCursor() (domain.RiskEntry, bool) {
	risks := m.visibleRisks()
	if m.cursor < 0 || m.cursor >= len(risks) {
		return domain.RiskEntry{}, false
	}
	return risks[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.visibleRisks())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}
