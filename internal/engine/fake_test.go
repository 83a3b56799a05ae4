package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xela07ax/riskwatch/internal/domain"
)

var errNetwork = errors.New("dial tcp: connection refused")

// fakeFetcher: управляемый бэкенд. Хуки вызываются в горутинах запросов и могут
// блокироваться на воротах, чтобы форсировать порядок ответов.
type fakeFetcher struct {
	mu     sync.Mutex
	counts map[string]int

	role       string
	profileErr error

	dashboard func(n int) (*domain.MetricsSnapshot, error)
	history   func(userID string, n int) ([]domain.RiskHistoryEntry, error)
	sessions  func(userID string, n int) ([]domain.UserSession, error)
	activity  func(userID string, n int) (*domain.ActivityAnalytics, error)
	action    func(userID string, action domain.AdminAction) (*domain.ActionAck, error)
	simulate  func(n int) (*domain.SimulationResult, error)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{counts: make(map[string]int), role: domain.RoleAdmin}
}

func (f *fakeFetcher) inc(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key]
}

func (f *fakeFetcher) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

func (f *fakeFetcher) Profile(ctx context.Context) (*domain.UserProfile, error) {
	f.inc("profile")
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &domain.UserProfile{ID: "admin-1", Email: "admin@example.com", Role: f.role}, nil
}

func (f *fakeFetcher) Dashboard(ctx context.Context) (*domain.MetricsSnapshot, error) {
	n := f.inc("dashboard")
	if f.dashboard != nil {
		return f.dashboard(n)
	}
	return snapshot(n, riskEntry("u1", "full")), nil
}

func (f *fakeFetcher) RiskHistory(ctx context.Context, userID string) ([]domain.RiskHistoryEntry, error) {
	n := f.inc("history:" + userID)
	if f.history != nil {
		return f.history(userID, n)
	}
	return []domain.RiskHistoryEntry{{NewScore: 0.4, TriggeredBy: userID}}, nil
}

func (f *fakeFetcher) Sessions(ctx context.Context, userID string) ([]domain.UserSession, error) {
	n := f.inc("sessions:" + userID)
	if f.sessions != nil {
		return f.sessions(userID, n)
	}
	return []domain.UserSession{{SessionID: userID + "-s1"}}, nil
}

func (f *fakeFetcher) ActivityAnalytics(ctx context.Context, userID string) (*domain.ActivityAnalytics, error) {
	n := f.inc("activity:" + userID)
	if f.activity != nil {
		return f.activity(userID, n)
	}
	module := "app_" + userID
	return &domain.ActivityAnalytics{MostUsedModule: &module}, nil
}

func (f *fakeFetcher) Action(ctx context.Context, userID string, action domain.AdminAction, reason string) (*domain.ActionAck, error) {
	f.inc("action")
	if f.action != nil {
		return f.action(userID, action)
	}
	return &domain.ActionAck{Status: "success", Action: action}, nil
}

func (f *fakeFetcher) SimulateAttack(ctx context.Context, target string) (*domain.SimulationResult, error) {
	n := f.inc("simulate")
	if f.simulate != nil {
		return f.simulate(n)
	}
	return &domain.SimulationResult{Status: "success"}, nil
}

func riskEntry(userID, access string) domain.RiskEntry {
	return domain.RiskEntry{
		UserID:      userID,
		Email:       userID + "@example.com",
		Name:        "User " + userID,
		Role:        domain.RoleUser,
		RiskScore:   0.42,
		RiskLevel:   "medium",
		AccessLevel: access,
	}
}

func snapshot(total int, entries ...domain.RiskEntry) *domain.MetricsSnapshot {
	return &domain.MetricsSnapshot{TotalUsers: total, TopRisks: entries}
}

// gate: ворота для хука; закрываются в Cleanup, чтобы Close движка не ждал вечно.
type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate(t *testing.T) *gate {
	g := &gate{ch: make(chan struct{})}
	t.Cleanup(g.open)
	return g
}

func (g *gate) open() { g.once.Do(func() { close(g.ch) }) }

func (g *gate) wait() {
	select {
	case <-g.ch:
	case <-time.After(5 * time.Second):
	}
}

type harness struct {
	e    *Engine
	f    *fakeFetcher
	logs *observer.ObservedLogs
}

func newHarness(t *testing.T, f *fakeFetcher, cfg Config, session SessionKeeper) *harness {
	t.Helper()
	if cfg.MetricsInterval == 0 {
		cfg.MetricsInterval = time.Hour
	}
	if cfg.DetailInterval == 0 {
		cfg.DetailInterval = time.Hour
	}
	if cfg.ClockInterval == 0 {
		cfg.ClockInterval = time.Hour
	}
	core, logs := observer.New(zapcore.DebugLevel)
	e := New(cfg, f, session, zap.New(core), nil)
	// Cleanup выполняется в обратном порядке: ворота открываются раньше Close
	t.Cleanup(e.Close)
	return &harness{e: e, f: f, logs: logs}
}

func (h *harness) waitFor(t *testing.T, what string, cond func(m ReadModel) bool) ReadModel {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.e.Snapshot()) }, 2*time.Second, 2*time.Millisecond, what)
	return h.e.Snapshot()
}

// barrier дожидается обработки всего, что уже стоит в очереди цикла.
func (h *harness) barrier(t *testing.T) {
	t.Helper()
	require.True(t, h.e.call(func() {}))
}

func (h *harness) openLoaded(t *testing.T) ReadModel {
	t.Helper()
	h.e.OpenDashboard()
	return h.waitFor(t, "dashboard loaded", func(m ReadModel) bool {
		return m.Metrics != nil && !m.MetricsLoading
	})
}

func (h *harness) logged(msg string) int {
	return h.logs.FilterMessage(msg).Len()
}
