package domain

// MetricsSnapshot: агрегированное состояние системы (GET /api/admin/dashboard).
// Заменяется целиком при каждом успешном опросе, частичного слияния нет.
type MetricsSnapshot struct {
	TotalUsers         int     `json:"total_users"`
	ActiveUsers        int     `json:"active_users"`
	CriticalRisks      int     `json:"critical_risks"`
	SuspiciousSessions int     `json:"suspicious_sessions"`
	BlockedAccounts    int     `json:"blocked_accounts"`
	RecentAlerts       int     `json:"recent_alerts"`
	Incidents24h       int     `json:"incidents_24h"`
	AvgRiskScore       float64 `json:"avg_risk_score"`
	AttackAttempts     int     `json:"attack_attempts"`
	ResolvedByAdmin    int     `json:"resolved_by_admin"`

	// Упорядочено бэкендом по убыванию риска
	TopRisks []RiskEntry `json:"top_risks"`
}

// RiskEntry: текущий агрегированный риск одного пользователя.
type RiskEntry struct {
	UserID      string  `json:"user_id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	RiskScore   float64 `json:"risk_score"` // 0..1
	RiskLevel   string  `json:"risk_level"` // low | medium | high | critical
	AccessLevel string  `json:"access_level"`
}

// FindRisk ищет запись по user_id. Второе значение false, если пользователя в снимке нет.
func (s *MetricsSnapshot) FindRisk(userID string) (RiskEntry, bool) {
	if s == nil {
		return RiskEntry{}, false
	}
	for _, r := range s.TopRisks {
		if r.UserID == userID {
			return r, true
		}
	}
	return RiskEntry{}, false
}

// Уровни доступа, которые возвращает бэкенд
const (
	AccessFull       = "full"
	AccessRestricted = "restricted"
	AccessBlocked    = "blocked"
)
