package engine

import (
	"context"
	"sync"
	"time"
)

// Scope: граница жизни набора периодических задач (открытый экран, активный выбор).
// Захват экрана = NewScope/Child, уход с экрана = Close. Close гарантированно
// останавливает все задачи скоупа и его детей и дожидается их горутин.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	children []*Scope
	closed   bool
}

func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context отменяется при закрытии скоупа.
func (s *Scope) Context() context.Context { return s.ctx }

// Child создает вложенный скоуп; он закроется вместе с родителем.
func (s *Scope) Child() *Scope {
	child := NewScope(s.ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		child.closed = true
		child.cancel()
		return child
	}
	s.children = append(s.children, child)
	return child
}

// Every вызывает fn каждые interval, пока скоуп открыт. Первый вызов через interval:
// немедленный запуск, если он нужен, делает вызывающий.
// Без дрейф-коррекции: пропущенные тики не догоняются.
func (s *Scope) Every(interval time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				fn(s.ctx)
			}
		}
	}()
}

// Closed сообщает, был ли скоуп закрыт.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close идемпотентен.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	children := s.children
	s.children = nil
	s.mu.Unlock()

	s.cancel()
	for _, c := range children {
		c.Close()
	}
	s.wg.Wait()
}
