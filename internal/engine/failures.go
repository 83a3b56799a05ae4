package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/console/client"
)

// FailureKind: класс отказа; выбирается вызывающим контекстом, а не фетчером.
type FailureKind int

const (
	// FailureInitialLoad: блокирующая ошибка видимой загрузки.
	FailureInitialLoad FailureKind = iota + 1
	// FailureBackground: тихий отказ фонового опроса, повторится на следующем тике.
	FailureBackground
	// FailureAction: отказ команды оператора. Только уведомление, без мутаций.
	FailureAction
	// FailureAuth: 401 из любого источника.
	FailureAuth
)

func (k FailureKind) String() string {
	switch k {
	case FailureInitialLoad:
		return "initial_load"
	case FailureBackground:
		return "background"
	case FailureAction:
		return "action"
	case FailureAuth:
		return "auth"
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// Failure: классифицированный отказ источника.
type Failure struct {
	Kind    FailureKind
	Source  Source
	Message string
	Err     error
	At      time.Time
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Source, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

var errNotAdmin = errors.New("admin access required")

// classify выбирает класс отказа. 401 перекрывает контекст вызова.
func classify(err error, visible, action bool) FailureKind {
	switch {
	case client.IsSessionExpired(err):
		return FailureAuth
	case action:
		return FailureAction
	case visible:
		return FailureInitialLoad
	default:
		return FailureBackground
	}
}

// fail: единая точка обработки отказов. Выполняется в цикле движка.
// title используется для уведомления, когда отказ его требует.
func (e *Engine) fail(src Source, kind FailureKind, err error, title string) {
	f := &Failure{Kind: kind, Source: src, Message: client.Message(err), Err: err, At: e.now()}
	log := e.logger.With(zap.String("source", string(src)), zap.Stringer("kind", kind), zap.Error(err))

	switch kind {
	case FailureAuth:
		log.Warn("session expired, stopping polling")
		e.signOut(fmt.Sprintf("401 from %s", src))
	case FailureInitialLoad:
		log.Error("initial load failed")
		e.state.LoadError = f
		e.touch()
	case FailureAction:
		log.Warn("operator command failed")
		e.notify(NoticeError, title, f.Message)
	case FailureBackground:
		// Тихо: одна осечка не должна деградировать экран
		log.Debug("background refresh failed")
	}
}
