package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// Simulate запускает симуляцию атаки. Пока запрос в полете, повторные вызовы игнорируются.
// Успех перезаписывает SimulationResult целиком и перезапрашивает метрики;
// отказ дает уведомление и ничего не меняет. Без открытого экрана вызов игнорируется,
// а результат, пришедший после закрытия экрана, отбрасывается.
func (e *Engine) Simulate() {
	e.post(e.ctx, e.simulate)
}

func (e *Engine) simulate() {
	if e.state.SignedOut || e.state.Simulating || e.dashboard == nil {
		return
	}
	e.state.Simulating = true
	e.touch()
	scope := e.dashboard

	run := func(ctx context.Context) (*domain.SimulationResult, error) {
		return e.fetch.SimulateAttack(ctx, "")
	}
	spawn(e, SourceSimulation, run, func(res *domain.SimulationResult, err error) {
		e.state.Simulating = false
		e.touch()
		kind := classify(err, false, true)
		if e.dashboard != scope && (err == nil || kind != FailureAuth) {
			e.dropStale(SourceSimulation, 0)
			return
		}
		if err != nil {
			e.fail(SourceSimulation, kind, err, "Simulation Failed")
			return
		}

		e.state.Simulation = res
		e.notify(NoticeInfo, "Attack Simulation Complete", simulationSummary(res))
		e.fetchMetrics(false)
	})
}

func simulationSummary(res *domain.SimulationResult) string {
	target := "unknown"
	if res.TargetUser != nil && res.TargetUser.Name != "" {
		target = res.TargetUser.Name
	}
	score := "?"
	if res.RiskResult != nil {
		score = strconv.FormatFloat(res.RiskResult.Score, 'f', -1, 64)
	}
	return fmt.Sprintf("Target: %s. Risk Score: %s/100. %s", target, score, res.ActionTaken)
}
