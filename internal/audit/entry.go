package audit

import "time"

// Entry: одна административная команда в журнале аудита.
type Entry struct {
	ID           string         `json:"id"`       // UUID записи
	TraceID      string         `json:"trace_id"` // X-Trace-ID запроса консоли
	AdminID      string         `json:"admin_id"` // Кто выполнил
	TargetUserID string         `json:"target_user_id"`
	Action       string         `json:"action"`
	Reason       string         `json:"reason"`
	Before       map[string]any `json:"before_state"`
	After        map[string]any `json:"after_state"`
	IPAddress    string         `json:"ip_address"`
	Timestamp    time.Time      `json:"timestamp"`
}
