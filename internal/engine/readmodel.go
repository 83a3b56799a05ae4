package engine

import (
	"time"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// Source: независимый источник данных со своим счетчиком запросов.
type Source string

const (
	SourceProfile     Source = "profile"
	SourceMetrics     Source = "metrics"
	SourceRiskHistory Source = "risk_history"
	SourceSessions    Source = "sessions"
	SourceActivity    Source = "activity"
	SourceAction      Source = "action"
	SourceSimulation  Source = "simulation"
)

// Provenance: откуда взято состояние выбранного пользователя.
type Provenance int

const (
	// Confirmed: поля пришли от бэкенда.
	Confirmed Provenance = iota
	// Optimistic: уровень доступа спрогнозирован локально после команды и ждет сверки.
	Optimistic
)

func (p Provenance) String() string {
	if p == Optimistic {
		return "optimistic"
	}
	return "confirmed"
}

// SelectedUser: ссылка на запись риска исследуемого пользователя.
type SelectedUser struct {
	Entry      domain.RiskEntry
	Provenance Provenance
	// Origin: команда, породившая Optimistic-состояние
	Origin domain.AdminAction
}

// DetailSet: три набора данных по выбранному пользователю.
// nil означает "еще не загружено"; все три всегда относятся к UserID.
type DetailSet struct {
	UserID      string
	RiskHistory []domain.RiskHistoryEntry
	Sessions    []domain.UserSession
	Activity    *domain.ActivityAnalytics
	Loading     bool
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notification: короткое уведомление оператору (аналог toast).
type Notification struct {
	ID    uint64
	Level NoticeLevel
	Title string
	Text  string
	At    time.Time
}

// maxNotifications: сколько последних уведомлений держит модель.
const maxNotifications = 5

// ReadModel: неизменяемый снимок состояния для чтения проекцией и UI.
// Движок публикует новый снимок после каждой мутации; старые не меняются.
type ReadModel struct {
	// Revision растет при каждом изменении данных. Тик часов его не трогает.
	Revision uint64
	// Now: последнее показание часов
	Now time.Time

	Authorized bool
	Profile    *domain.UserProfile

	Metrics        *domain.MetricsSnapshot
	MetricsLoading bool
	// LoadError: блокирующая ошибка первичной загрузки
	LoadError *Failure

	// Selection == nil: состояние Idle
	Selection *SelectedUser
	Detail    DetailSet

	Simulation *domain.SimulationResult
	Simulating bool

	Notifications []Notification

	// SignedOut: сессия сброшена после 401, все опросы остановлены
	SignedOut bool
}

// Investigating сообщает id исследуемого пользователя.
func (m ReadModel) Investigating() (string, bool) {
	if m.Selection == nil {
		return "", false
	}
	return m.Selection.Entry.UserID, true
}
