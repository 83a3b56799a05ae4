package view

import (
	"sync"

	"github.com/xela07ax/riskwatch/internal/engine"
)

// Projector кэширует статическую часть проекции по ревизии снимка и строке поиска.
// Тик часов ревизию не меняет, поэтому на каждом тике пересчитываются только длительности.
type Projector struct {
	mu     sync.Mutex
	valid  bool
	rev    uint64
	query  string
	static Dashboard
}

func (p *Projector) Project(m engine.ReadModel, query string) Dashboard {
	p.mu.Lock()
	if !p.valid || p.rev != m.Revision || p.query != query {
		p.static = Static(FromReadModel(m, query))
		p.rev, p.query, p.valid = m.Revision, query, true
	}
	static := p.static
	p.mu.Unlock()

	return Clock(static, m.Now)
}
