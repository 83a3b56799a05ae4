package domain

// UserSession: сессия пользователя в том виде, в каком её отдает бэкенд.
// Идентичность: SessionID. Клиент никогда не меняет поля сессии сам:
// если бэкенд перестал её возвращать, сессия считается завершенной.
type UserSession struct {
	SessionID         string     `json:"session_id"`
	IPAddress         string     `json:"ip_address"`
	UserAgent         string     `json:"user_agent"`
	StartTime         Timestamp  `json:"start_time"`
	LastActivity      *Timestamp `json:"last_activity,omitempty"`
	ExpiresAt         *Timestamp `json:"expires_at,omitempty"`
	LoginAttemptCount int        `json:"login_attempt_count"`
	MFAVerified       bool       `json:"mfa_verified"`
	Revoked           bool       `json:"revoked"`
	RiskAtLogin       float64    `json:"risk_at_login,omitempty"`
}

// ActiveSession: строка глобального списка активных сессий (/api/admin/active-sessions).
type ActiveSession struct {
	SessionID         string     `json:"session_id"`
	UserID            string     `json:"user_id"`
	UserName          string     `json:"user_name"`
	UserEmail         string     `json:"user_email"`
	IPAddress         string     `json:"ip_address"`
	Device            string     `json:"device"`
	StartTime         Timestamp  `json:"start_time"`
	LastActivity      *Timestamp `json:"last_activity,omitempty"`
	ExpiresAt         *Timestamp `json:"expires_at,omitempty"`
	LoginAttemptCount int        `json:"login_attempt_count"`
	RiskAtLogin       float64    `json:"risk_at_login"`
	RiskScore         float64    `json:"risk_score"`
	Location          string     `json:"location"`
	ActionCount       int        `json:"action_count"`
	DownloadCount     int        `json:"download_count"`
}
