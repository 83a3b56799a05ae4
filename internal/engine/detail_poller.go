package engine

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/riskwatch/internal/console/client"
	"github.com/xela07ax/riskwatch/internal/domain"
)

// detailTag помечает запрос деталей: для кого, в какой эпохе выбора и под каким номером.
type detailTag struct {
	userID string
	epoch  uint64
	seq    uint64
}

// runDetailCycle выдает три независимых запроса по выбранному пользователю.
// Отказ одного не отменяет и не блокирует остальные; каждый ответ коммитится сам.
func (e *Engine) runDetailCycle(visible bool) {
	sel := e.state.Selection
	if sel == nil {
		return
	}
	userID := sel.Entry.UserID
	epoch := e.selEpoch
	e.detailCycles++
	cycle := e.detailCycles

	hist := detailTag{userID, epoch, e.issue(SourceRiskHistory)}
	sess := detailTag{userID, epoch, e.issue(SourceSessions)}
	act := detailTag{userID, epoch, e.issue(SourceActivity)}

	if visible {
		e.loadingCycle = cycle
		e.state.Detail.Loading = true
		e.touch()
	}

	ctx := e.ctx
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		// Без WithContext: ошибка одного запроса не должна отменять соседей
		var g errgroup.Group
		var answered atomic.Int32
		g.Go(func() error {
			start := time.Now()
			h, err := e.fetch.RiskHistory(ctx, userID)
			e.observe(SourceRiskHistory, err, start)
			if err == nil {
				answered.Add(1)
			}
			e.post(ctx, func() { e.commitRiskHistory(hist, h, err) })
			return err
		})
		g.Go(func() error {
			start := time.Now()
			s, err := e.fetch.Sessions(ctx, userID)
			e.observe(SourceSessions, err, start)
			if err == nil {
				answered.Add(1)
			}
			e.post(ctx, func() {
				e.commitDetail(SourceSessions, sess, err, func() { e.state.Detail.Sessions = s })
			})
			return err
		})
		g.Go(func() error {
			start := time.Now()
			a, err := e.fetch.ActivityAnalytics(ctx, userID)
			e.observe(SourceActivity, err, start)
			if err == nil {
				answered.Add(1)
			}
			e.post(ctx, func() {
				e.commitDetail(SourceActivity, act, err, func() { e.state.Detail.Activity = a })
			})
			return err
		})

		// Коммиты трех ответов уже в очереди цикла, конец цикла встанет после них
		err := g.Wait()
		anyOK := answered.Load() > 0
		e.post(ctx, func() { e.endDetailCycle(userID, epoch, cycle, visible, anyOK, err) })
	}()
}

func (e *Engine) detailCurrent(tag detailTag) bool {
	id, ok := e.state.Investigating()
	return ok && id == tag.userID && e.selEpoch == tag.epoch
}

func (e *Engine) commitRiskHistory(tag detailTag, history []domain.RiskHistoryEntry, err error) {
	e.commitDetail(SourceRiskHistory, tag, err, func() {
		if len(history) == 0 {
			// Графику нужна хотя бы одна точка; это не факт бэкенда
			history = domain.BaselineHistory(e.now())
		}
		e.state.Detail.RiskHistory = history
	})
}

// commitDetail применяет ответ, только если он относится к текущему выбору
// и не устарел относительно более позднего запроса того же источника.
func (e *Engine) commitDetail(src Source, tag detailTag, err error, apply func()) {
	if e.state.SignedOut {
		return
	}
	if err != nil {
		if client.IsSessionExpired(err) {
			e.fail(src, FailureAuth, err, "")
			return
		}
		// Фоновые отказы деталей тихие; о видимом цикле сообщит endDetailCycle
		e.logger.Debug("detail fetch failed",
			zap.String("source", string(src)), zap.String("user_id", tag.userID), zap.Error(err))
		return
	}
	if !e.detailCurrent(tag) {
		e.dropStale(src, tag.seq)
		return
	}
	if !e.accept(src, tag.seq) {
		return
	}
	apply()
	e.touch()
}

func (e *Engine) endDetailCycle(userID string, epoch, cycle uint64, visible, anyOK bool, err error) {
	if e.state.SignedOut {
		return
	}
	if e.loadingCycle == cycle {
		e.state.Detail.Loading = false
		e.touch()
	}
	if !e.detailCurrent(detailTag{userID: userID, epoch: epoch}) {
		return
	}

	if visible && err != nil && !client.IsSessionExpired(err) {
		e.notify(NoticeError, "Failed to load user details", client.Message(err))
	}

	// Оптимистичное значение живет не дольше первого цикла деталей после команды,
	// в котором бэкенд ответил хотя бы по одному источнику
	p := e.pending
	if p == nil || p.userID != userID || cycle <= p.cycleMark || !anyOK {
		return
	}
	if sel := e.state.Selection; sel != nil && sel.Provenance == Optimistic {
		next := *sel
		next.Provenance = Confirmed
		next.Origin = ""
		e.state.Selection = &next
		e.touch()
	}
}
