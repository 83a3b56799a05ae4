package domain

// ActivityAnalytics: аналитика активности пользователя по модулям.
type ActivityAnalytics struct {
	RecentLogs      []LogEntry         `json:"recent_logs"`
	MostUsedModule  *string            `json:"most_used_module"`
	ModuleDurations map[string]float64 `json:"module_durations"` // модуль -> секунды
}

type LogEntry struct {
	ID        string         `json:"id"`
	AppID     string         `json:"app_id"`
	Action    string         `json:"action"`
	Details   *string        `json:"details,omitempty"`
	Duration  *float64       `json:"duration,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp Timestamp      `json:"timestamp"`
}

// Действия, которые бэкенд пишет при входе/выходе из модуля
const (
	ActionEnterModule = "enter_module"
	ActionExitModule  = "exit_module"
)
