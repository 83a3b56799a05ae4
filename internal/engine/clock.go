package engine

import "context"

// startClock запускает часы экрана: показание сразу и затем раз в ClockInterval.
// Тик меняет только Now, Revision не растет: проекция пересчитывает лишь длительности.
func (e *Engine) startClock(scope *Scope) {
	e.tick()
	scope.Every(e.cfg.ClockInterval, func(ctx context.Context) {
		e.post(ctx, func() {
			if e.dashboard != scope {
				return
			}
			e.tick()
		})
	})
}

func (e *Engine) tick() {
	e.state.Now = e.now()
	e.changed = true
}
