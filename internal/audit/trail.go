package audit

/*
Файл trail.go реализует асинхронную запись журнала аудита демо-бэкенда.

- Non-blocking: обработчик команды только кладет запись в буферизованный канал,
  задержка хранилища не попадает во время ответа консоли.
- Batching: записи копятся и уходят в Sink пачкой по размеру или по таймеру.
- Drain: Stop закрывает вход, воркер вычитывает остаток и делает финальный flush.
- Load Shedding: при переполнении буфера запись не блокирует вызывающего,
  а попадает в лог с уровнем Error.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink: куда физически уходят записи (Postgres или лог).
type Sink interface {
	WriteBatch(ctx context.Context, entries []Entry) error
}

// Recorder: то, что нужно сервису команд.
type Recorder interface {
	Record(e Entry)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	return o
}

type Trail struct {
	ch     chan Entry
	sink   Sink
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	// защита от Record после Stop, запись в закрытый канал паникует
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
}

func NewTrail(sink Sink, opts Options, logger *zap.Logger) *Trail {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Trail{
		ch:     make(chan Entry, opts.BufferSize),
		sink:   sink,
		opts:   opts,
		logger: logger.Named("audit"),
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop запирает вход и ждет, пока воркер допишет остаток. Повторный вызов безопасен.
func (t *Trail) Stop() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.ch)
	t.mu.Unlock()

	t.logger.Info("stopping audit trail: flushing buffer...")
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.logger.Warn("audit entry dropped: trail is stopping", zap.String("id", e.ID))
		return
	}

	select {
	case t.ch <- e:
	default:
		t.dropped.Add(1)
		t.logger.Error("audit_buffer_overflow",
			zap.String("action", e.Action),
			zap.String("target_user_id", e.TargetUserID),
			zap.String("trace_id", e.TraceID),
		)
	}
}

// Dropped: сколько записей потеряно из-за переполнения буфера.
func (t *Trail) Dropped() uint64 { return t.dropped.Load() }

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Entry, 0, t.opts.BatchSize)
	ticker := time.NewTicker(t.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: при остановке контекст сервера уже отменен
		if err := t.sink.WriteBatch(context.Background(), batch); err != nil {
			t.logger.Error("audit flush failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = make([]Entry, 0, t.opts.BatchSize)
	}

	for {
		select {
		case e, ok := <-t.ch:
			if !ok {
				flush()
				t.logger.Debug("audit worker finished")
				return
			}
			batch = append(batch, e)
			if len(batch) >= t.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// LogSink пишет пачки в zap, когда Postgres не настроен.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) WriteBatch(_ context.Context, entries []Entry) error {
	for _, e := range entries {
		s.Logger.Info("audit",
			zap.String("id", e.ID),
			zap.String("admin_id", e.AdminID),
			zap.String("target_user_id", e.TargetUserID),
			zap.String("action", e.Action),
			zap.String("reason", e.Reason),
			zap.Any("before", e.Before),
			zap.Any("after", e.After),
			zap.Time("timestamp", e.Timestamp),
		)
	}
	return nil
}
