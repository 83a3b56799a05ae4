package domain

// Справочники админки: пользователи, инциденты, алерты, приложения, доступы.

type UserRecord struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	Name                 string     `json:"name"`
	Role                 string     `json:"role"`
	CreatedAt            *Timestamp `json:"created_at,omitempty"`
	RiskScore            float64    `json:"risk_score"`
	AccessLevel          string     `json:"access_level"`
	IsUnderInvestigation bool       `json:"is_under_investigation"`
	IsActive             bool       `json:"is_active"`
}

type Incident struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	RiskLevel     string    `json:"risk_level"`
	IncidentType  string    `json:"incident_type"`
	Description   string    `json:"description"`
	AIExplanation string    `json:"ai_explanation"`
	Timestamp     Timestamp `json:"timestamp"`
	ActionTaken   string    `json:"action_taken"`
	Resolved      bool      `json:"resolved"`
}

type Alert struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	Severity     string    `json:"severity"`
	Status       string    `json:"status"`
	Description  string    `json:"description"`
	Timestamp    Timestamp `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

type App struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
}

type AppCreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
}

type AppCredential struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type CredentialCreateRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginWindow struct {
	ID           string `json:"id,omitempty"`
	UserID       string `json:"user_id"`
	AppID        string `json:"app_id"`
	AllowedStart string `json:"allowed_start"` // "08:00"
	AllowedEnd   string `json:"allowed_end"`
}

type AuditRecord struct {
	ID           string    `json:"id"`
	AdminID      string    `json:"admin_id"`
	TargetUserID string    `json:"target_user_id"`
	Action       string    `json:"action"`
	Reason       string    `json:"reason"`
	Timestamp    Timestamp `json:"timestamp"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// CreatedAck: стандартный ответ на создание сущности.
type CreatedAck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
