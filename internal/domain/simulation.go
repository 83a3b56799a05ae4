package domain

// SimulationResult: ответ /api/demo/simulate-attack.
// Хранится только в памяти клиента и перезаписывается целиком.
type SimulationResult struct {
	Status        string         `json:"status,omitempty"`
	TargetUser    *TargetUser    `json:"target_user,omitempty"`
	AttackDetails *AttackDetails `json:"attack_details,omitempty"`
	RiskResult    *RiskResult    `json:"risk_result,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	IncidentID    string         `json:"incident_id,omitempty"`
	ActionTaken   string         `json:"action_taken,omitempty"`

	// Бэкенд отвечает 200 с полем error, если симулировать не на ком
	Error string `json:"error,omitempty"`
}

type TargetUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AttackDetails struct {
	IPAddress            string   `json:"ip_address"`
	Device               string   `json:"device"`
	LoginHour            string   `json:"login_hour"`
	Downloads            int      `json:"downloads"`
	Actions              int      `json:"actions"`
	UnauthorizedServices []string `json:"unauthorized_services"`
}

type RiskResult struct {
	Score     float64         `json:"score"` // 0..100
	Level     string          `json:"level,omitempty"`
	Breakdown []RiskBreakdown `json:"breakdown,omitempty"`
}

type RiskBreakdown struct {
	Factor  string  `json:"factor"`
	RawRisk float64 `json:"raw_risk"` // 0..100
	Status  string  `json:"status"`   // ok | warning | critical
}

// SimulateRequest: тело запроса; пустая цель означает случайного пользователя.
type SimulateRequest struct {
	TargetUserID *string `json:"target_user_id,omitempty"`
}
