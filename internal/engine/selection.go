package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// Select переводит координатор в Investigating(entry.UserID): ссылка ставится сразу,
// выполняется видимая загрузка деталей и запускается опрос деталей.
// Смена пользователя закрывает скоуп прежнего выбора, его ответы больше не коммитятся.
func (e *Engine) Select(entry domain.RiskEntry) {
	e.post(e.ctx, func() { e.selectUser(entry) })
}

// ClearSelection возвращает координатор в Idle и останавливает опрос деталей.
func (e *Engine) ClearSelection() {
	e.post(e.ctx, func() {
		e.clearSelection()
		e.touch()
	})
}

func (e *Engine) selectUser(entry domain.RiskEntry) {
	if e.state.SignedOut || e.dashboard == nil || entry.UserID == "" {
		return
	}

	prev, investigating := e.state.Investigating()
	next := SelectedUser{Entry: entry, Provenance: Confirmed}
	if cur := e.state.Selection; investigating && prev == entry.UserID &&
		e.pending != nil && e.pending.userID == entry.UserID && cur.Provenance == Optimistic {
		// Запись списка еще не знает о команде: прогноз остается до подтверждения
		next.Entry.AccessLevel = cur.Entry.AccessLevel
		next.Provenance = Optimistic
		next.Origin = cur.Origin
	}
	e.state.Selection = &next
	e.touch()

	if investigating && prev == entry.UserID && e.selection != nil {
		// Тот же пользователь: опрос уже идет, нужен только видимый перезапрос
		e.runDetailCycle(true)
		return
	}

	if e.selection != nil {
		e.selection.Close()
	}
	e.selEpoch++
	if e.pending != nil && e.pending.userID != entry.UserID {
		e.pending = nil
	}
	e.state.Detail = DetailSet{UserID: entry.UserID}
	e.logger.Info("investigating user", zap.String("user_id", entry.UserID), zap.Uint64("epoch", e.selEpoch))

	scope := e.dashboard.Child()
	e.selection = scope
	e.runDetailCycle(true)

	scope.Every(e.cfg.DetailInterval, func(ctx context.Context) {
		e.post(ctx, func() {
			if e.selection != scope {
				return
			}
			e.runDetailCycle(false)
		})
	})
}

func (e *Engine) clearSelection() {
	if e.selection != nil {
		e.selection.Close()
		e.selection = nil
	}
	if e.state.Selection == nil {
		return
	}
	e.selEpoch++
	e.pending = nil
	e.state.Selection = nil
	e.state.Detail = DetailSet{}
}

// reconcileSelection переставляет ссылку на запись того же пользователя в новом снимке.
// Снимок, запрошенный до последней команды, не может перетереть спрогнозированный
// уровень доступа: он о команде еще не знает.
func (e *Engine) reconcileSelection(snap *domain.MetricsSnapshot, seq uint64) {
	sel := e.state.Selection
	if sel == nil {
		return
	}
	entry, ok := snap.FindRisk(sel.Entry.UserID)
	if !ok {
		return
	}

	next := SelectedUser{Entry: entry, Provenance: Confirmed}
	if p := e.pending; p != nil && p.userID == entry.UserID {
		if seq <= p.metricsMark {
			next.Entry.AccessLevel = sel.Entry.AccessLevel
			next.Provenance = sel.Provenance
			next.Origin = sel.Origin
		} else {
			e.pending = nil
		}
	}
	e.state.Selection = &next
}
