package tui

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/riskwatch/internal/console/session"
	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/engine"
)

type dispatched struct {
	userID string
	action domain.AdminAction
}

type fakeController struct {
	mu         sync.Mutex
	snap       engine.ReadModel
	updates    chan struct{}
	opened     int
	closed     int
	reloads    int
	simulates  int
	selected   []string
	dispatches []dispatched
}

func newFakeController(snap engine.ReadModel) *fakeController {
	return &fakeController{snap: snap, updates: make(chan struct{}, 1)}
}

func (f *fakeController) Snapshot() engine.ReadModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Subscribe() (<-chan struct{}, func()) { return f.updates, func() {} }
func (f *fakeController) OpenDashboard()                       { f.opened++ }
func (f *fakeController) CloseDashboard()                      { f.closed++ }
func (f *fakeController) Reload()                              { f.reloads++ }
func (f *fakeController) Simulate()                            { f.simulates++ }
func (f *fakeController) Select(e domain.RiskEntry)            { f.selected = append(f.selected, e.UserID) }
func (f *fakeController) Dispatch(userID string, action domain.AdminAction, _ string) {
	f.dispatches = append(f.dispatches, dispatched{userID, action})
}

func loadedModel() engine.ReadModel {
	return engine.ReadModel{
		Revision:   1,
		Now:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Authorized: true,
		Metrics: &domain.MetricsSnapshot{TopRisks: []domain.RiskEntry{
			{UserID: "u1", Name: "Alice", Email: "alice@corp.io", RiskScore: 0.9, RiskLevel: "critical", AccessLevel: "full"},
			{UserID: "u2", Name: "Bob", Email: "bob@corp.io", RiskScore: 0.4, RiskLevel: "medium", AccessLevel: "blocked"},
		}},
	}
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestSelectUnderCursor(t *testing.T) {
	f := newFakeController(loadedModel())
	m := New(f, nil, nil)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"u2"}, f.selected)

	// курсор не уходит за конец списка
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)
}

func TestLockKeyTogglesByAccessLevel(t *testing.T) {
	snap := loadedModel()
	snap.Selection = &engine.SelectedUser{Entry: snap.Metrics.TopRisks[0]}
	f := newFakeController(snap)
	m := New(f, nil, nil)

	m = press(t, m, runes("l"))
	snap.Selection = &engine.SelectedUser{Entry: snap.Metrics.TopRisks[1]}
	f.snap = snap
	m = press(t, m, updateMsg{}, runes("l"), runes("o"), runes("r"), runes("s"))

	assert.Equal(t, []dispatched{
		{"u1", domain.ActionLockAccount},
		{"u2", domain.ActionUnblock},
		{"u2", domain.ActionForceLogout},
		{"u2", domain.ActionResolveIncident},
		{"u2", domain.ActionMarkSafe},
	}, f.dispatches)
}

func TestActionKeysNeedSelection(t *testing.T) {
	f := newFakeController(loadedModel())
	m := New(f, nil, nil)
	press(t, m, runes("l"), runes("o"))
	assert.Empty(t, f.dispatches)
}

func TestSearchFiltersListAndResetsCursor(t *testing.T) {
	f := newFakeController(loadedModel())
	m := New(f, nil, nil)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, runes("/"))
	require.True(t, m.searching)
	m = press(t, m, runes("B"), runes("O"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.searching)
	assert.Equal(t, "BO", m.query())
	assert.Equal(t, 0, m.cursor)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"u2"}, f.selected)

	// в режиме поиска клавиши команд печатаются, а не исполняются
	m = press(t, m, runes("/"), runes("a"), tea.KeyMsg{Type: tea.KeyEsc})
	assert.Zero(t, f.simulates)
	assert.Empty(t, m.query())
}

func TestSimulateAndReloadKeys(t *testing.T) {
	f := newFakeController(loadedModel())
	m := New(f, nil, nil)
	press(t, m, runes("a"), runes("R"))
	assert.Equal(t, 1, f.simulates)
	assert.Equal(t, 1, f.reloads)
}

func TestRedirectQuitsWithIntent(t *testing.T) {
	f := newFakeController(loadedModel())
	redirects := make(chan session.RedirectIntent, 1)
	m := New(f, redirects, nil)

	next, cmd := m.Update(redirectMsg{intent: session.RedirectIntent{To: session.SignIn, Reason: "401"}})
	m = next.(Model)
	require.NotNil(t, m.Redirect)
	assert.Equal(t, session.SignIn, m.Redirect.To)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestUpdateMsgRefreshesSnapshot(t *testing.T) {
	f := newFakeController(engine.ReadModel{})
	m := New(f, nil, nil)
	assert.Contains(t, m.View(), "Loading dashboard")

	f.snap = loadedModel()
	m = press(t, m, updateMsg{})
	out := m.View()
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "90%")
}

func TestViewShowsBlockingErrorAndSignOut(t *testing.T) {
	snap := engine.ReadModel{LoadError: &engine.Failure{Kind: engine.FailureInitialLoad, Message: "backend unavailable"}}
	m := New(newFakeController(snap), nil, nil)
	assert.Contains(t, m.View(), "backend unavailable")

	m = New(newFakeController(engine.ReadModel{SignedOut: true}), nil, nil)
	assert.Contains(t, m.View(), "sign in again")
}

func TestInitOpensDashboard(t *testing.T) {
	f := newFakeController(loadedModel())
	m := New(f, nil, nil)
	cmd := m.Init()
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, f.opened)
}
