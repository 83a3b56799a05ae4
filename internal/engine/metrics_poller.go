package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// OpenDashboard захватывает скоуп экрана: часы, проверка роли, первичная загрузка
// метрик и их фоновый опрос. Повторный вызов при открытом экране ничего не делает.
func (e *Engine) OpenDashboard() {
	e.post(e.ctx, e.openDashboard)
}

// CloseDashboard освобождает скоуп экрана вместе с опросом деталей.
func (e *Engine) CloseDashboard() {
	e.post(e.ctx, func() {
		e.clearSelection()
		e.closeScopes()
		e.touch()
	})
}

// Reload: ручной повтор после блокирующей ошибки. Видимый запрос; успех снимает ошибку.
func (e *Engine) Reload() {
	e.post(e.ctx, func() {
		switch {
		case e.state.SignedOut:
			return
		case e.dashboard == nil:
			e.openDashboard()
		case !e.state.Authorized:
			e.authorize(e.dashboard)
		default:
			e.fetchMetrics(true)
		}
	})
}

func (e *Engine) openDashboard() {
	if e.dashboard != nil || e.state.SignedOut {
		return
	}
	scope := NewScope(e.ctx)
	e.dashboard = scope
	e.logger.Info("dashboard opened")

	e.startClock(scope)
	e.authorize(scope)
}

// authorize проверяет роль по профилю и только после этого запускает опрос метрик.
func (e *Engine) authorize(scope *Scope) {
	seq := e.issue(SourceProfile)
	e.state.MetricsLoading = true
	e.touch()

	spawn(e, SourceProfile, e.fetch.Profile, func(p *domain.UserProfile, err error) {
		if e.dashboard != scope {
			e.dropStale(SourceProfile, seq)
			return
		}
		if err != nil {
			e.state.MetricsLoading = false
			e.fail(SourceProfile, classify(err, true, false), err, "")
			return
		}
		if !e.accept(SourceProfile, seq) {
			return
		}
		if p.Role != domain.RoleAdmin {
			e.state.MetricsLoading = false
			e.fail(SourceProfile, FailureInitialLoad, errNotAdmin, "")
			return
		}

		e.state.Profile = p
		e.state.Authorized = true
		e.state.LoadError = nil
		e.touch()
		e.startMetricsPoller(scope)
	})
}

// startMetricsPoller: одна видимая загрузка сразу и тихий опрос каждые MetricsInterval.
func (e *Engine) startMetricsPoller(scope *Scope) {
	if e.metricsPolling {
		return
	}
	e.metricsPolling = true
	e.fetchMetrics(true)

	scope.Every(e.cfg.MetricsInterval, func(ctx context.Context) {
		e.post(ctx, func() {
			if e.dashboard != scope {
				return
			}
			e.fetchMetrics(false)
		})
	})
}

// fetchMetrics выдает запрос метрик. Отказ видимой загрузки (visible) блокирующий.
// Без открытого экрана метрики не запрашиваются: коммитить их некуда.
func (e *Engine) fetchMetrics(visible bool) {
	scope := e.dashboard
	if scope == nil {
		return
	}
	seq := e.issue(SourceMetrics)
	if visible {
		e.loadingMetrics = seq
		e.state.MetricsLoading = true
		e.touch()
	}

	spawn(e, SourceMetrics, e.fetch.Dashboard, func(snap *domain.MetricsSnapshot, err error) {
		if visible && e.loadingMetrics == seq {
			e.state.MetricsLoading = false
			e.touch()
		}
		if e.dashboard != scope {
			e.dropStale(SourceMetrics, seq)
			return
		}

		if err != nil {
			kind := classify(err, visible, false)
			if kind == FailureInitialLoad && seq <= e.tok(SourceMetrics).committed {
				// Более поздний запрос уже отрисован, блокировать экран нечем
				kind = FailureBackground
			}
			e.fail(SourceMetrics, kind, err, "")
			return
		}
		if !e.accept(SourceMetrics, seq) {
			return
		}

		e.state.Metrics = snap
		if visible {
			e.state.LoadError = nil
		}
		e.reconcileSelection(snap, seq)
		e.touch()
		e.logger.Debug("metrics replaced", zap.Uint64("seq", seq), zap.Int("top_risks", len(snap.TopRisks)))
	})
}
