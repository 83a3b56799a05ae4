package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// Dispatch отправляет административную команду. Команда не ретраится: при отказе
// оператор видит уведомление и повторяет сам, состояние не меняется.
//
// После ACK: уведомление об успехе; если команда касается выбранного пользователя,
// его уровень доступа прогнозируется локально (Optimistic) и запускается видимый
// перезапрос деталей; метрики перезапрашиваются в любом случае.
//
// Команда принимается только при открытом экране. Если экран закрыли, пока команда
// была в полете, ACK и отказ только логируются; 401 по-прежнему завершает сессию.
func (e *Engine) Dispatch(userID string, action domain.AdminAction, reason string) {
	e.post(e.ctx, func() { e.dispatch(userID, action, reason) })
}

func (e *Engine) dispatch(userID string, action domain.AdminAction, reason string) {
	if e.state.SignedOut {
		return
	}
	if e.dashboard == nil {
		e.metrics.ActionsTotal.WithLabelValues(string(action), "rejected").Inc()
		e.logger.Warn("operator command ignored: dashboard closed", zap.String("action", string(action)))
		return
	}
	if !action.Known() {
		e.metrics.ActionsTotal.WithLabelValues(string(action), "rejected").Inc()
		e.logger.Warn("unknown operator command", zap.String("action", string(action)))
		e.notify(NoticeError, "Action Failed", fmt.Sprintf("Unknown action %q", action))
		return
	}
	if reason == "" {
		reason = action.DefaultReason()
	}

	log := e.logger.With(zap.String("user_id", userID), zap.String("action", string(action)))
	log.Info("dispatching operator command")

	scope := e.dashboard
	send := func(ctx context.Context) (*domain.ActionAck, error) {
		return e.fetch.Action(ctx, userID, action, reason)
	}
	spawn(e, SourceAction, send, func(_ *domain.ActionAck, err error) {
		if err != nil {
			e.metrics.ActionsTotal.WithLabelValues(string(action), "error").Inc()
			kind := classify(err, false, true)
			if e.dashboard != scope && kind != FailureAuth {
				log.Warn("operator command failed after dashboard closed", zap.Error(err))
				return
			}
			e.fail(SourceAction, kind, err, "Action Failed")
			return
		}
		e.metrics.ActionsTotal.WithLabelValues(string(action), "ok").Inc()
		if e.dashboard != scope {
			log.Info("operator command acknowledged after dashboard closed")
			return
		}
		log.Info("operator command acknowledged")
		e.notify(NoticeSuccess, "Action Successful", fmt.Sprintf("Successfully executed %s", action))

		if sel := e.state.Selection; sel != nil && sel.Entry.UserID == userID {
			e.applyOptimistic(*sel, action)
			e.runDetailCycle(true)
		}
		e.fetchMetrics(false)
	})
}

// applyOptimistic помечает выбранного пользователя прогнозом последствия команды.
// Метки отсекают снимки метрик и циклы деталей, выданные до ACK.
func (e *Engine) applyOptimistic(sel SelectedUser, action domain.AdminAction) {
	next := sel
	next.Entry.AccessLevel = action.ProjectAccessLevel(sel.Entry.AccessLevel)
	next.Provenance = Optimistic
	next.Origin = action
	e.state.Selection = &next

	e.pending = &pendingAction{
		userID:      sel.Entry.UserID,
		action:      action,
		metricsMark: e.tok(SourceMetrics).issued,
		cycleMark:   e.detailCycles,
	}
	e.touch()
}
