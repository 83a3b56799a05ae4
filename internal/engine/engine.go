package engine

/*
Файл engine.go реализует движок живой синхронизации консоли: он держит экран
оператора согласованным с несколькими независимыми источниками бэкенда
(метрики, история риска, сессии, аналитика активности).

Ключевые особенности архитектуры:
- Single Writer: состояние принадлежит одной горутине (циклу движка). Любая
  мутация есть замыкание, отправленное в цикл, поэтому обработчики никогда
  не выполняются параллельно и блокировки над моделью не нужны.
- In-flight Fetches: запросы идут в своих горутинах и возвращают результат в
  цикл. Одновременно в полете может быть несколько запросов.
- Request Tokens: у каждого источника свой счетчик. Коммитится только ответ на
  самый поздний выданный запрос; детали дополнительно помечены id пользователя
  и эпохой выбора, поэтому ответ для прежнего выбора отбрасывается.
- Scopes: периодические задачи принадлежат скоупам (экран, выбор). Закрытие
  скоупа останавливает таймеры, но не обрывает запросы в полете: их ответы
  отсеиваются проверкой токена.
- Copy-on-write: после каждой мутации публикуется неизменяемый ReadModel,
  читатели (проекция, TUI) работают только с ним.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/infra"
)

// Fetcher: источники данных движка. *client.Client ему удовлетворяет.
type Fetcher interface {
	Profile(ctx context.Context) (*domain.UserProfile, error)
	Dashboard(ctx context.Context) (*domain.MetricsSnapshot, error)
	RiskHistory(ctx context.Context, userID string) ([]domain.RiskHistoryEntry, error)
	Sessions(ctx context.Context, userID string) ([]domain.UserSession, error)
	ActivityAnalytics(ctx context.Context, userID string) (*domain.ActivityAnalytics, error)
	Action(ctx context.Context, userID string, action domain.AdminAction, reason string) (*domain.ActionAck, error)
	SimulateAttack(ctx context.Context, targetUserID string) (*domain.SimulationResult, error)
}

// SessionKeeper сбрасывает сессию оператора при 401 (session.Store).
type SessionKeeper interface {
	Clear(reason string)
}

type Config struct {
	MetricsInterval time.Duration
	DetailInterval  time.Duration
	ClockInterval   time.Duration

	// Now подменяется в тестах
	Now func() time.Time
}

// ConfigFrom переносит интервалы из секции polling.
func ConfigFrom(p infra.PollingConfig) Config {
	return Config{
		MetricsInterval: p.MetricsInterval,
		DetailInterval:  p.DetailInterval,
		ClockInterval:   p.ClockInterval,
	}
}

type token struct {
	issued    uint64
	committed uint64
}

// pendingAction: метки последней команды, давшей Optimistic-состояние.
type pendingAction struct {
	userID string
	action domain.AdminAction
	// последний выданный запрос метрик на момент ACK: более ранние снимки не знают о команде
	metricsMark uint64
	// последний выданный цикл деталей на момент ACK
	cycleMark uint64
}

type Engine struct {
	cfg     Config
	fetch   Fetcher
	session SessionKeeper
	logger  *zap.Logger
	metrics *Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	ops       chan func()
	done      chan struct{}
	inflight  sync.WaitGroup
	closeOnce sync.Once

	published atomic.Pointer[ReadModel]
	subsMu    sync.Mutex
	subs      map[uint64]chan struct{}
	nextSub   uint64

	// Поля ниже принадлежат циклу движка
	state          ReadModel
	changed        bool
	tokens         map[Source]*token
	dashboard      *Scope
	selection      *Scope
	metricsPolling bool
	selEpoch       uint64
	detailCycles   uint64
	loadingCycle   uint64
	loadingMetrics uint64
	pending        *pendingAction
	noticeSeq      uint64
}

func New(cfg Config, fetch Fetcher, session SessionKeeper, logger *zap.Logger, metrics *Metrics) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = 5 * time.Second
	}
	if cfg.DetailInterval <= 0 {
		cfg.DetailInterval = 3 * time.Second
	}
	if cfg.ClockInterval <= 0 {
		cfg.ClockInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:     cfg,
		fetch:   fetch,
		session: session,
		logger:  logger.Named("engine"),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		ops:     make(chan func(), 64),
		done:    make(chan struct{}),
		subs:    make(map[uint64]chan struct{}),
		tokens:  make(map[Source]*token),
	}
	e.state.Now = cfg.Now()
	e.publish()

	go e.loop()
	return e
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.ctx.Done():
			return
		case op := <-e.ops:
			op()
			if e.changed {
				e.changed = false
				e.publish()
			}
		}
	}
}

// Close останавливает все скоупы и цикл, дожидается запросов в полете.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.call(e.closeScopes)
		e.cancel()
		<-e.done
		e.inflight.Wait()
		e.logger.Debug("engine stopped")
	})
}

// post ставит op в очередь цикла. false: отправитель или движок уже остановлен.
func (e *Engine) post(ctx context.Context, op func()) bool {
	select {
	case e.ops <- op:
		return true
	case <-ctx.Done():
		return false
	case <-e.ctx.Done():
		return false
	}
}

// call выполняет op в цикле и ждет его завершения. Нельзя вызывать из самого цикла.
func (e *Engine) call(op func()) bool {
	ack := make(chan struct{})
	if !e.post(e.ctx, func() {
		op()
		close(ack)
	}) {
		return false
	}
	select {
	case <-ack:
		return true
	case <-e.done:
		return false
	}
}

// Snapshot возвращает последний опубликованный ReadModel. Безопасен из любой горутины.
func (e *Engine) Snapshot() ReadModel {
	return *e.published.Load()
}

// Subscribe возвращает канал, в который приходит сигнал после каждой публикации.
// Сигналы схлопываются: читатель берет актуальное состояние через Snapshot.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subsMu.Unlock()

	return ch, func() {
		e.subsMu.Lock()
		delete(e.subs, id)
		e.subsMu.Unlock()
	}
}

func (e *Engine) publish() {
	snap := e.state
	e.published.Store(&snap)

	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) now() time.Time { return e.cfg.Now() }

// touch отмечает изменение данных: растет Revision, снимок будет опубликован.
func (e *Engine) touch() {
	e.state.Revision++
	e.changed = true
}

func (e *Engine) tok(src Source) *token {
	t, ok := e.tokens[src]
	if !ok {
		t = &token{}
		e.tokens[src] = t
	}
	return t
}

// issue выдает номер новому запросу к источнику.
func (e *Engine) issue(src Source) uint64 {
	t := e.tok(src)
	t.issued++
	return t.issued
}

// accept решает, можно ли коммитить ответ: авторитетен самый поздний выданный запрос,
// ответ на более ранний, пришедший после него, отбрасывается.
func (e *Engine) accept(src Source, seq uint64) bool {
	t := e.tok(src)
	if seq <= t.committed {
		e.dropStale(src, seq)
		return false
	}
	t.committed = seq
	return true
}

func (e *Engine) dropStale(src Source, seq uint64) {
	e.metrics.StaleDropped.WithLabelValues(string(src)).Inc()
	e.logger.Debug("stale result dropped", zap.String("source", string(src)), zap.Uint64("seq", seq))
}

// spawn выполняет fetch вне цикла в контексте движка и возвращает результат в цикл.
// Запрос не обрывается при закрытии скоупа; после выхода из сессии ответ игнорируется.
func spawn[T any](e *Engine, src Source, fetch func(ctx context.Context) (T, error), commit func(T, error)) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		start := time.Now()
		res, err := fetch(e.ctx)
		e.observe(src, err, start)
		e.post(e.ctx, func() {
			if e.state.SignedOut {
				return
			}
			commit(res, err)
		})
	}()
}

func (e *Engine) observe(src Source, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.metrics.observeFetch(src, outcome, time.Since(start))
}

func (e *Engine) notify(level NoticeLevel, title, text string) {
	e.noticeSeq++
	n := Notification{ID: e.noticeSeq, Level: level, Title: title, Text: text, At: e.now()}

	// Новый срез: опубликованные снимки не должны меняться
	prev := e.state.Notifications
	if len(prev) >= maxNotifications {
		prev = prev[len(prev)-maxNotifications+1:]
	}
	next := make([]Notification, 0, len(prev)+1)
	next = append(next, prev...)
	e.state.Notifications = append(next, n)
	e.touch()
}

func (e *Engine) closeScopes() {
	if e.selection != nil {
		e.selection.Close()
		e.selection = nil
	}
	if e.dashboard != nil {
		e.dashboard.Close()
		e.dashboard = nil
	}
	e.metricsPolling = false
}

// signOut реагирует на 401: остановить все опросы, забыть данные, сбросить сессию.
func (e *Engine) signOut(reason string) {
	if e.state.SignedOut {
		return
	}
	e.closeScopes()
	e.pending = nil
	e.selEpoch++

	e.state = ReadModel{
		Revision:  e.state.Revision,
		Now:       e.state.Now,
		SignedOut: true,
	}
	e.touch()

	if e.session != nil {
		e.session.Clear(reason)
	}
}
